package vm

import (
	"testing"
)

// testComposition is a minimal Composition for cache tests.
type testComposition string

func (c testComposition) Name() string { return string(c) }

func (c testComposition) IsA(other Composition) bool { return other == Composition(c) }

func testChain(name string) *CallChain {
	return &CallChain{Signature: Signature{Name: name}}
}

func TestInlineCacheEmpty(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}

	if chain := ic.Lookup(testComposition("Test")); chain != nil {
		t.Error("Expected nil from empty cache")
	}
	if ic.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", ic.Misses)
	}
}

func TestInlineCacheMonomorphic(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}
	comp := testComposition("Test")
	chain := testChain("test")

	ic.Update(comp, chain)
	if ic.State != CacheMonomorphic {
		t.Errorf("Expected monomorphic state, got %v", ic.State)
	}
	if ic.Count != 1 {
		t.Errorf("Expected count 1, got %d", ic.Count)
	}

	if got := ic.Lookup(comp); got != chain {
		t.Error("Expected cache hit")
	}
	if ic.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", ic.Hits)
	}

	if got := ic.Lookup(testComposition("Other")); got != nil {
		t.Error("Expected cache miss for different composition")
	}
	if ic.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", ic.Misses)
	}
}

func TestInlineCacheUpgradeToPolymorphic(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}
	c1, c2 := testComposition("C1"), testComposition("C2")
	m1, m2 := testChain("m1"), testChain("m2")

	ic.Update(c1, m1)
	ic.Update(c1, m1) // already cached
	if ic.State != CacheMonomorphic {
		t.Errorf("Expected monomorphic, got %v", ic.State)
	}

	ic.Update(c2, m2)
	if ic.State != CachePolymorphic {
		t.Errorf("Expected polymorphic, got %v", ic.State)
	}
	if ic.Count != 2 {
		t.Errorf("Expected count 2, got %d", ic.Count)
	}
	if ic.Lookup(c1) != m1 || ic.Lookup(c2) != m2 {
		t.Error("Expected both compositions to hit")
	}
}

func TestInlineCacheUpgradeToMegamorphic(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}
	for i := 0; i <= MaxPICEntries; i++ {
		ic.Update(testComposition(string(rune('A'+i))), testChain("m"))
	}
	if ic.State != CacheMegamorphic {
		t.Fatalf("Expected megamorphic, got %v", ic.State)
	}
	if ic.Count != 0 {
		t.Errorf("Expected entries cleared, got count %d", ic.Count)
	}

	// megamorphic sites never cache again
	ic.Update(testComposition("A"), testChain("m"))
	if ic.Lookup(testComposition("A")) != nil {
		t.Error("Expected megamorphic lookup to miss")
	}
}

func TestInlineCacheHitRateAndReset(t *testing.T) {
	ic := &InlineCache{}
	if ic.HitRate() != 0 {
		t.Errorf("Expected 0 hit rate for unused cache, got %f", ic.HitRate())
	}

	comp := testComposition("Test")
	ic.Lookup(comp)
	ic.Update(comp, testChain("m"))
	ic.Lookup(comp)
	ic.Lookup(comp)
	ic.Lookup(comp)

	if rate := ic.HitRate(); rate != 75 {
		t.Errorf("Expected 75%% hit rate, got %f", rate)
	}

	ic.Reset()
	if ic.State != CacheEmpty || ic.Hits != 0 || ic.Misses != 0 || ic.Count != 0 {
		t.Errorf("Expected reset cache, got %+v", ic)
	}
}

func TestMethodCacheStats(t *testing.T) {
	m := &Method{Name: "main"}
	a, b := testComposition("A"), testComposition("B")

	m.sites.chains(0).Update(a, testChain("x"))
	poly := m.sites.chains(4)
	poly.Update(a, testChain("y"))
	poly.Update(b, testChain("y"))
	m.sites.chains(0).Lookup(a)
	poly.Lookup(testComposition("C"))

	st := m.CacheStats()
	if st.CallSites != 2 {
		t.Errorf("Expected 2 call sites, got %d", st.CallSites)
	}
	if st.Monomorphic != 1 || st.Polymorphic != 1 {
		t.Errorf("Expected one monomorphic and one polymorphic site, got %+v", st)
	}
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %+v", st)
	}
}

func TestChildSiteCache(t *testing.T) {
	m := &Method{Name: "main"}
	parent := testComposition("Outer")
	child := testComposition("Outer.Node")

	if _, ok := m.sites.child(3, parent); ok {
		t.Fatal("Expected empty child cache")
	}
	m.sites.setChild(3, parent, child)
	got, ok := m.sites.child(3, parent)
	if !ok || got != child {
		t.Errorf("Expected cached child composition, got %v", got)
	}
	if _, ok := m.sites.child(4, parent); ok {
		t.Error("Expected cache to be keyed by address")
	}
}
