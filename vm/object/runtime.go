// Package object is the reference object model of the XVM engine. It
// implements every collaborator the engine consumes: classes with mixins
// and virtual children, properties with getters and setters, primitive
// values, futures, exception classes and a shared call-chain cache.
package object

import (
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/elliotchance/orderedmap/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tliron/commonlog"
	"go.uber.org/atomic"

	"github.com/xtclang/xvm-sub016/vm"
)

var log = commonlog.GetLogger("xvm.object")

// DefaultChainCacheSize is the number of call chains kept when Options
// leave it unset.
const DefaultChainCacheSize = 4096

// Options configure a Runtime.
type Options struct {
	ChainCacheSize int
	Out            io.Writer // destination of the print native; os.Stdout when nil

	// Namespace and Registerer expose the chain cache counters to
	// Prometheus. Counters are kept but not registered when Registerer is
	// nil.
	Namespace  string
	Registerer prometheus.Registerer
}

// chainEntry guards against hash collisions in the chain cache.
type chainEntry struct {
	comp  vm.Composition
	key   string
	chain *vm.CallChain
}

// Runtime is the reference implementation of vm.Runtime.
type Runtime struct {
	mu      sync.RWMutex
	classes *orderedmap.OrderedMap[string, *Class]
	comps   map[string]*Composition
	natives map[string]vm.NativeFunc

	chains  *lru.Cache[uint64, chainEntry]
	lookups *prometheus.CounterVec
	hits    *atomic.Uint64
	misses  *atomic.Uint64

	out io.Writer
}

var _ vm.Runtime = (*Runtime)(nil)

// NewRuntime creates a runtime with the builtin classes and natives.
func NewRuntime(opts Options) (*Runtime, error) {
	size := opts.ChainCacheSize
	if size <= 0 {
		size = DefaultChainCacheSize
	}
	chains, err := lru.New[uint64, chainEntry](size)
	if err != nil {
		return nil, errors.Wrap(err, "chain cache")
	}
	rt := &Runtime{
		classes: orderedmap.NewOrderedMap[string, *Class](),
		comps:   make(map[string]*Composition),
		natives: make(map[string]vm.NativeFunc),
		chains:  chains,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "call_chain_lookups_total",
			Help:      "Call chain resolutions, by cache result.",
		}, []string{"result"}),
		hits:   atomic.NewUint64(0),
		misses: atomic.NewUint64(0),
		out:    opts.Out,
	}
	if rt.out == nil {
		rt.out = os.Stdout
	}
	if opts.Registerer != nil {
		if err := opts.Registerer.Register(rt.lookups); err != nil {
			return nil, errors.Wrap(err, "register chain cache counters")
		}
	}
	for _, c := range builtins() {
		rt.classes.Set(c.Name, c)
	}
	rt.registerBuiltinNatives()
	return rt, nil
}

// Define registers classes (replacing classes of the same name) and
// drops every cached call chain.
func (rt *Runtime) Define(classes ...*Class) {
	rt.mu.Lock()
	for _, c := range classes {
		rt.classes.Set(c.Name, c)
		log.Debugf("defined class %s", c.Name)
	}
	rt.comps = make(map[string]*Composition)
	rt.mu.Unlock()
	rt.chains.Purge()
}

// Class looks up a registered class.
func (rt *Runtime) Class(name string) (*Class, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.classes.Get(name)
}

// Classes returns the registered classes in definition order.
func (rt *Runtime) Classes() []*Class {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return values(rt.classes)
}

// RegisterNative makes fn available to images under name.
func (rt *Runtime) RegisterNative(name string, fn vm.NativeFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.natives[name] = fn
}

// Native looks up a registered native function.
func (rt *Runtime) Native(name string) (vm.NativeFunc, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	fn, ok := rt.natives[name]
	return fn, ok
}

// ChainLookups returns how many call chain resolutions hit and missed the
// cache.
func (rt *Runtime) ChainLookups() (hits, misses uint64) {
	return rt.hits.Load(), rt.misses.Load()
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

func classOf(c vm.Composition) (*Composition, error) {
	comp, ok := c.(*Composition)
	if !ok {
		return nil, errors.Errorf("%s is not a class composition", c.Name())
	}
	return comp, nil
}

// CallChain implements vm.Resolver. The chain lists, most derived first,
// the method bodies matching sig in the class linearization, then field
// access when sig names a property accessor, then delegation.
func (rt *Runtime) CallChain(c vm.Composition, sig vm.Signature) (*vm.CallChain, error) {
	key := signatureKey(sig)
	h := xxhash.Sum64String(c.Name() + "\x00" + key)
	if e, ok := rt.chains.Get(h); ok && e.comp == c && e.key == key {
		rt.hits.Inc()
		rt.lookups.WithLabelValues("hit").Inc()
		return e.chain, nil
	}
	rt.misses.Inc()
	rt.lookups.WithLabelValues("miss").Inc()

	comp, err := classOf(c)
	if err != nil {
		return nil, err
	}
	chain := &vm.CallChain{Signature: sig, Type: c}
	for _, k := range comp.Class.Linearize() {
		m, ok := k.Method(key)
		if !ok {
			continue
		}
		kind := vm.BodyCode
		if m.IsNative() {
			kind = vm.BodyNative
		}
		chain.Bodies = append(chain.Bodies, vm.Body{Kind: kind, Method: m})
	}
	if p, ok := comp.Class.Property(sig.Name); ok && len(sig.Params) <= 1 {
		chain.Bodies = append(chain.Bodies, vm.Body{Kind: vm.BodyField, Property: p.Name})
	}
	if d := comp.Class.delegate(); d != "" && d != sig.Name {
		chain.Bodies = append(chain.Bodies, vm.Body{Kind: vm.BodyDelegating, Property: d})
	}

	rt.chains.Add(h, chainEntry{comp: c, key: key, chain: chain})
	return chain, nil
}

// Compose implements vm.Resolver.
func (rt *Runtime) Compose(id string, actual []vm.Composition) (vm.Composition, error) {
	class, ok := rt.Class(id)
	if !ok {
		return nil, errors.Errorf("unknown class %q", id)
	}
	if len(actual) == 0 {
		return class.comp, nil
	}

	comp := &Composition{Class: class, Actual: actual}
	name := comp.Name()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if existing, ok := rt.comps[name]; ok {
		return existing, nil
	}
	rt.comps[name] = comp
	return comp, nil
}

// Constructor implements vm.Resolver. Constructors are not inherited.
func (rt *Runtime) Constructor(c vm.Composition, sig vm.Signature) *vm.Method {
	comp, err := classOf(c)
	if err != nil {
		return nil
	}
	m, _ := comp.Class.Constructor(signatureKey(sig))
	return m
}

// ChildComposition implements vm.Resolver.
func (rt *Runtime) ChildComposition(parent vm.Composition, name string) (vm.Composition, error) {
	comp, err := classOf(parent)
	if err != nil {
		return nil, err
	}
	child, ok := comp.Class.Child(name)
	if !ok {
		return nil, errors.Errorf("no child class %q in %s", name, parent.Name())
	}
	return child.comp, nil
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// NewException implements vm.ExceptionFactory.
func (rt *Runtime) NewException(kind vm.ExceptionKind, message string) vm.Value {
	e := &ExceptionObject{Object: newObject(ExceptionClassOf(kind).comp, nil)}
	e.SetField("message", String(message))
	e.public = true
	return e
}
