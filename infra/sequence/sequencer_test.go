package sequence

import (
	"sync"
	"testing"
)

func TestSequencerNext(t *testing.T) {
	s := New(10)
	if got := s.Next(); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}
	if s.Current() != 11 {
		t.Fatalf("expected current 11, got %d", s.Current())
	}
}

func TestSequencerObserve(t *testing.T) {
	s := New(0)
	s.Observe(42)
	s.Observe(7)
	if got := s.Next(); got != 43 {
		t.Fatalf("expected 43 after observing 42, got %d", got)
	}
}

func TestSequencerConcurrentUnique(t *testing.T) {
	s := New(0)
	var mu sync.Mutex
	seen := make(map[uint64]bool)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := s.Next()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 800 {
		t.Fatalf("expected 800 ids, got %d", len(seen))
	}
}
