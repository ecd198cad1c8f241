package tree

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
)

// Scenario 1: write-read-delete, single thread (spec.md §8).
func TestWriteReadDelete(t *testing.T) {
	m := New[string, string]()

	m.Put("k", "hello")
	if v, ok := m.Get("k"); !ok || v != "hello" {
		t.Fatalf("Get(k) = %q, %v; want hello, true", v, ok)
	}
	if !m.Erase("k") {
		t.Fatal("Erase(k) = false, want true")
	}
	if _, ok := m.Get("k"); ok {
		t.Fatal("Get(k) found a value after Erase")
	}
}

// Scenario 2: overwrite (spec.md §8).
func TestOverwrite(t *testing.T) {
	m := New[string, string]()

	m.Put("k", "v1")
	m.Put("k", "v2")

	if v, ok := m.Get("k"); !ok || v != "v2" {
		t.Fatalf("Get(k) = %q, %v; want v2, true", v, ok)
	}
	if n := m.CountValues(); n != 1 {
		t.Fatalf("CountValues() = %d, want 1", n)
	}
}

// Scenario 3: passive/active lifecycle (spec.md §8).
func TestPassiveActiveLifecycle(t *testing.T) {
	m := New[string, string]()

	m.Put("k", "v")
	if !m.Passivate("k") {
		t.Fatal("Passivate(k) = false, want true")
	}
	if !m.EraseIfPassive("k") {
		t.Fatal("EraseIfPassive(k) = false, want true")
	}
	if m.Activate("k") {
		t.Fatal("Activate(k) = true after erase, want false")
	}
}

// Scenario 4: split induction (spec.md §8).
func TestSplitInduction(t *testing.T) {
	m := NewWithOptions[int, int](8, DefaultMaxHeight, DefaultDeletionDelay)

	for k := 1; k <= 9; k++ {
		m.Put(k, k*10)
	}

	if n := m.CountNodes(); n < 3 {
		t.Fatalf("CountNodes() = %d, want >= 3", n)
	}
	for k := 1; k <= 9; k++ {
		if v, ok := m.Get(k); !ok || v != k*10 {
			t.Fatalf("Get(%d) = %d, %v; want %d, true", k, v, ok, k*10)
		}
	}
	if h := m.TreeHeight(); h != 2 {
		t.Fatalf("TreeHeight() = %d, want 2", h)
	}
}

func TestEraseIfPassiveDoesNotRemoveActive(t *testing.T) {
	m := New[string, int]()
	m.Put("k", 1)

	if m.EraseIfPassive("k") {
		t.Fatal("EraseIfPassive removed an Active slot")
	}
	if v, ok := m.Get("k"); !ok || v != 1 {
		t.Fatalf("Get(k) = %d, %v; want 1, true after rejected EraseIfPassive", v, ok)
	}
}

func TestPutOrGetOnlyActiveOverwritesNonActive(t *testing.T) {
	m := New[string, string]()

	inserted, v := m.PutOrGet("k", "first", OnlyActive)
	if !inserted || v != "first" {
		t.Fatalf("first PutOrGet = %v, %q; want true, first", inserted, v)
	}

	inserted, v = m.PutOrGet("k", "second", OnlyActive)
	if inserted || v != "first" {
		t.Fatalf("second PutOrGet on Active slot = %v, %q; want false, first", inserted, v)
	}

	m.Passivate("k")
	inserted, v = m.PutOrGet("k", "third", OnlyActive)
	if !inserted || v != "third" {
		t.Fatalf("PutOrGet on Passive slot, OnlyActive = %v, %q; want true, third", inserted, v)
	}
	if !m.Activate("k") {
		t.Fatal("slot should be Active again after PutOrGet forced it")
	}
}

func TestPutOrGetActiveAndPassiveNeverOverwrites(t *testing.T) {
	m := New[string, string]()

	m.Put("k", "original")
	m.Passivate("k")

	inserted, v := m.PutOrGet("k", "new", ActiveAndPassive)
	if !inserted || v != "original" {
		t.Fatalf("PutOrGet(ActiveAndPassive) on Passive slot = %v, %q; want true, original", inserted, v)
	}

	inserted, v = m.PutOrGet("k", "newer", ActiveAndPassive)
	if inserted || v != "original" {
		t.Fatalf("PutOrGet(ActiveAndPassive) on Active slot = %v, %q; want false, original", inserted, v)
	}
}

func TestClearResetsToSingleLeafRoot(t *testing.T) {
	m := NewWithOptions[int, int](8, DefaultMaxHeight, DefaultDeletionDelay)
	for k := 0; k < 50; k++ {
		m.Put(k, k)
	}

	m.Clear()

	if n := m.CountValues(); n != 0 {
		t.Fatalf("CountValues() after Clear = %d, want 0", n)
	}
	if n := m.CountNodes(); n != 1 {
		t.Fatalf("CountNodes() after Clear = %d, want 1", n)
	}
	if _, ok := m.Get(0); ok {
		t.Fatal("Get found a value after Clear")
	}
}

func TestTreeHeightNeverExceedsMaxHeight(t *testing.T) {
	m := NewWithOptions[int, int](2, 64, DefaultDeletionDelay)
	for k := 0; k < 500; k++ {
		m.Put(k, k)
	}
	if h := m.TreeHeight(); h > m.maxHeight {
		t.Fatalf("TreeHeight() = %d, exceeds MaxTreeHeight %d", h, m.maxHeight)
	}
}

func TestManyInsertsDeletesMatchReferenceMap(t *testing.T) {
	m := NewWithOptions[int, int](4, DefaultMaxHeight, DefaultDeletionDelay)
	reference := map[int]int{}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		key := rng.Intn(200)
		switch rng.Intn(3) {
		case 0:
			m.Put(key, key)
			reference[key] = key
		case 1:
			m.Erase(key)
			delete(reference, key)
		case 2:
			v, ok := m.Get(key)
			wantV, wantOK := reference[key]
			if ok != wantOK || (ok && v != wantV) {
				t.Fatalf("Get(%d) = %d, %v; want %d, %v", key, v, ok, wantV, wantOK)
			}
		}
	}

	for key, wantV := range reference {
		if v, ok := m.Get(key); !ok || v != wantV {
			t.Fatalf("final Get(%d) = %d, %v; want %d, true", key, v, ok, wantV)
		}
	}
}

// Concurrent workload across <=64 keys and <=8 threads (spec.md §8): every
// get must return a value that was live at some real moment during its
// execution. We approximate this by checking that every value observed was
// at some point put for that key and not erased before the put that
// produced it was superseded — concretely, by keeping values monotonically
// identifiable with the writer goroutine and generation, and asserting a
// get never returns a value that was never written for that key.
func TestConcurrentWorkload(t *testing.T) {
	const keys = 64
	const writers = 8
	const opsPerWriter = 500

	m := NewWithOptions[int, string](8, DefaultMaxHeight, DefaultDeletionDelay)
	written := make([]sync.Map, keys) // key index -> set of values ever written

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w) + 1))
			for i := 0; i < opsPerWriter; i++ {
				key := rng.Intn(keys)
				switch rng.Intn(3) {
				case 0:
					val := fmt.Sprintf("w%d-%d", w, i)
					written[key].Store(val, struct{}{})
					m.Put(key, val)
				case 1:
					m.Erase(key)
				case 2:
					if v, ok := m.Get(key); ok {
						if _, seen := written[key].Load(v); !seen {
							t.Errorf("Get(%d) returned %q, a value never written for that key", key, v)
						}
					}
				}
			}
		}(w)
	}
	wg.Wait()
}
