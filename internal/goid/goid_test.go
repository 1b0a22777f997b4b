package goid

import (
	"sync"
	"testing"
)

func TestIDStableWithinGoroutine(t *testing.T) {
	if ID() != ID() {
		t.Fatal("id changed between calls on the same goroutine")
	}
}

func TestIDDistinctAcrossGoroutines(t *testing.T) {
	const n = 16
	ids := make(map[int64]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			id := ID()
			if id <= 0 {
				t.Errorf("invalid goroutine id %d", id)
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != n {
		t.Fatalf("expected %d distinct ids, got %d", n, len(ids))
	}
}
