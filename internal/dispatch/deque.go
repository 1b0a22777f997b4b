package dispatch

import (
	"sync"

	"github.com/ravik-dev/kinetiq/internal/sched"
)

// deque is a worker's private double-ended work queue. The owning worker
// uses the front; thieves take from the back.
type deque struct {
	mu    sync.Mutex
	items []sched.Unit
}

// push adds a unit at the front (the slice's tail, so the owner's pop is a
// cheap truncation).
func (d *deque) push(u sched.Unit) {
	d.mu.Lock()
	d.items = append(d.items, u)
	d.mu.Unlock()
}

// pop removes the most recently pushed unit, or nil when empty.
func (d *deque) pop() sched.Unit {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items)
	if n == 0 {
		return nil
	}
	u := d.items[n-1]
	d.items[n-1] = nil
	d.items = d.items[:n-1]
	return u
}

// steal removes the oldest unit, or nil when empty.
func (d *deque) steal() sched.Unit {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil
	}
	u := d.items[0]
	d.items[0] = nil
	d.items = d.items[1:]
	return u
}

func (d *deque) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
