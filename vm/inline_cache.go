package vm

import "sync"

// Inline caching for call sites
//
// Most invocation sites see a single receiver composition, a few see a
// handful and very few see many. Each site starts empty, becomes
// monomorphic on its first resolution, polymorphic on the second distinct
// composition and megamorphic once MaxPICEntries is exceeded, after which
// every lookup goes to the Resolver (which has its own shared cache).
//
// Caches are keyed by instruction address within a method. The same
// method may run on several call stacks at once, so each cache locks.

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // no cached lookup yet
	CacheMonomorphic                   // single (composition, chain) cached
	CachePolymorphic                   // 2-6 entries
	CacheMegamorphic                   // too many compositions, always resolve
)

// MaxPICEntries is the maximum number of entries in a polymorphic inline cache.
const MaxPICEntries = 6

// InlineCacheEntry holds a single cached resolution.
type InlineCacheEntry struct {
	Type  Composition
	Chain *CallChain
}

// InlineCache is the cache of one call site.
type InlineCache struct {
	mu      sync.Mutex
	State   CacheState
	Entries [MaxPICEntries]InlineCacheEntry
	Count   int

	Hits   uint64
	Misses uint64
}

// Lookup returns the cached chain for c, or nil.
func (ic *InlineCache) Lookup(c Composition) *CallChain {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	switch ic.State {
	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Type == c {
				ic.Hits++
				return ic.Entries[i].Chain
			}
		}
	}
	ic.Misses++
	return nil
}

// Update records a resolution, upgrading the cache state as needed.
func (ic *InlineCache) Update(c Composition, chain *CallChain) {
	if chain == nil {
		return
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()

	switch ic.State {
	case CacheEmpty:
		ic.State = CacheMonomorphic
		ic.Entries[0] = InlineCacheEntry{Type: c, Chain: chain}
		ic.Count = 1

	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Type == c {
				return
			}
		}
		if ic.Count < MaxPICEntries {
			ic.Entries[ic.Count] = InlineCacheEntry{Type: c, Chain: chain}
			ic.Count++
			ic.State = CachePolymorphic
			return
		}
		ic.State = CacheMegamorphic
		for i := range ic.Entries {
			ic.Entries[i] = InlineCacheEntry{}
		}
		ic.Count = 0

	case CacheMegamorphic:
	}
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache) HitRate() float64 {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	total := ic.Hits + ic.Misses
	if total == 0 {
		return 0
	}
	return float64(ic.Hits) * 100 / float64(total)
}

// Reset clears the cache back to empty state.
func (ic *InlineCache) Reset() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.State = CacheEmpty
	ic.Count = 0
	ic.Hits = 0
	ic.Misses = 0
	for i := range ic.Entries {
		ic.Entries[i] = InlineCacheEntry{}
	}
}

// ---------------------------------------------------------------------------
// Per-method site caches
// ---------------------------------------------------------------------------

// siteCaches holds the inline caches of one method, keyed by address.
type siteCaches struct {
	mu       sync.Mutex
	invokes  map[int]*InlineCache
	children map[childSite]Composition
}

type childSite struct {
	pc     int
	parent Composition
}

func (s *siteCaches) chains(pc int) *InlineCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ic := s.invokes[pc]; ic != nil {
		return ic
	}
	if s.invokes == nil {
		s.invokes = make(map[int]*InlineCache)
	}
	ic := &InlineCache{}
	s.invokes[pc] = ic
	return ic
}

func (s *siteCaches) child(pc int, parent Composition) (Composition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.children[childSite{pc, parent}]
	return c, ok
}

func (s *siteCaches) setChild(pc int, parent, child Composition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.children == nil {
		s.children = make(map[childSite]Composition)
	}
	s.children[childSite{pc, parent}] = child
}

// ICStats holds aggregate inline cache statistics.
type ICStats struct {
	CallSites   int
	Monomorphic int
	Polymorphic int
	Megamorphic int
	Hits        uint64
	Misses      uint64
}

// CacheStats gathers the inline cache statistics of a method.
func (m *Method) CacheStats() ICStats {
	m.sites.mu.Lock()
	caches := make([]*InlineCache, 0, len(m.sites.invokes))
	for _, ic := range m.sites.invokes {
		caches = append(caches, ic)
	}
	m.sites.mu.Unlock()

	var st ICStats
	for _, ic := range caches {
		ic.mu.Lock()
		st.CallSites++
		switch ic.State {
		case CacheMonomorphic:
			st.Monomorphic++
		case CachePolymorphic:
			st.Polymorphic++
		case CacheMegamorphic:
			st.Megamorphic++
		}
		st.Hits += ic.Hits
		st.Misses += ic.Misses
		ic.mu.Unlock()
	}
	return st
}
