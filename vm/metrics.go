package vm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Metrics counts engine activity. A nil *Metrics is valid and counts
// nothing. One Metrics may be shared by any number of call stacks.
type Metrics struct {
	instructions prometheus.Counter
	frames       prometheus.Counter
	exceptions   *prometheus.CounterVec
	faults       prometheus.Counter
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter

	// invocation counts per method, for profiling hot code
	profiles sync.Map // *Method -> *atomic.Uint64
}

// NewMetrics creates the engine counters under namespace and registers
// them with reg when it is non-nil.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		instructions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_total",
			Help:      "Instructions dispatched.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames pushed.",
		}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exceptions_total",
			Help:      "Exceptions raised, by kind.",
		}, []string{"kind"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Call stacks aborted by an engine fault.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inline_cache_hits_total",
			Help:      "Call sites resolved from their inline cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inline_cache_misses_total",
			Help:      "Call sites resolved through the resolver.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.instructions, m.frames, m.exceptions, m.faults, m.cacheHits, m.cacheMisses,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) instruction() {
	if m != nil {
		m.instructions.Inc()
	}
}

func (m *Metrics) frame(method *Method) {
	if m == nil {
		return
	}
	m.frames.Inc()
	v, _ := m.profiles.LoadOrStore(method, atomic.NewUint64(0))
	v.(*atomic.Uint64).Inc()
}

func (m *Metrics) exception(kind ExceptionKind) {
	if m != nil {
		m.exceptions.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) fault() {
	if m != nil {
		m.faults.Inc()
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// Invocations returns how many frames have run method.
func (m *Metrics) Invocations(method *Method) uint64 {
	if m == nil {
		return 0
	}
	if v, ok := m.profiles.Load(method); ok {
		return v.(*atomic.Uint64).Load()
	}
	return 0
}

// HotMethods returns the methods invoked at least threshold times.
func (m *Metrics) HotMethods(threshold uint64) []*Method {
	if m == nil {
		return nil
	}
	var hot []*Method
	m.profiles.Range(func(k, v any) bool {
		if v.(*atomic.Uint64).Load() >= threshold {
			hot = append(hot, k.(*Method))
		}
		return true
	})
	return hot
}
