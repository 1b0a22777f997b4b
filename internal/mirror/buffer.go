// Package mirror buffers API-originated mutations made while a simulation
// step is executing and merges them with step results at flush time.
//
// The running step always sees the live snapshot taken at step start;
// external callers see their own buffered writes immediately. At flush an
// API-origin record wins over a step-produced result for the same
// attribute of the same object.
package mirror

import (
	"sync"

	"github.com/google/uuid"
)

// ObjectID identifies one simulation object.
type ObjectID = uuid.UUID

// Attr identifies one buffered attribute of an object. The scene layer
// defines the concrete attribute space.
type Attr int

// Origin tags who produced a buffered record.
type Origin uint8

const (
	OriginSim Origin = iota
	OriginAPI
)

type record struct {
	val    any
	origin Origin
}

// Buffer is the per-scene reconciliation store. Object slots are allocated
// lazily on first concurrent write; objects untouched during a step cost
// nothing. Records are only accepted while a step window is open: a writer
// racing the flush point is refused rather than parked into the next
// window, and must take the live path instead.
type Buffer struct {
	mu      sync.Mutex
	open    bool
	objects map[ObjectID]map[Attr]record
	removed map[ObjectID]bool
}

func NewBuffer() *Buffer {
	return &Buffer{
		objects: make(map[ObjectID]map[Attr]record),
		removed: make(map[ObjectID]bool),
	}
}

// Open starts a step window. Records put while the window is open are
// applied by the matching Flush.
func (b *Buffer) Open() {
	b.mu.Lock()
	b.open = true
	b.mu.Unlock()
}

// Put records a pending value and reports whether the current window
// accepted it. A refusal means the window already flushed. An API-origin
// record is never displaced by a later sim-origin write to the same slot.
func (b *Buffer) Put(id ObjectID, attr Attr, val any, origin Origin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false
	}
	attrs := b.objects[id]
	if attrs == nil {
		attrs = make(map[Attr]record)
		b.objects[id] = attrs
	}
	if prev, ok := attrs[attr]; ok && prev.origin == OriginAPI && origin == OriginSim {
		return true
	}
	attrs[attr] = record{val: val, origin: origin}
	return true
}

// Get returns the buffered value for the slot, if any. Serving reads from
// here first gives API callers an immediately consistent view of their own
// writes.
func (b *Buffer) Get(id ObjectID, attr Attr) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	attrs, ok := b.objects[id]
	if !ok {
		return nil, false
	}
	r, ok := attrs[attr]
	if !ok {
		return nil, false
	}
	return r.val, true
}

// Remove marks an object as deleted mid-step and reports whether the
// current window accepted the removal. Pending records for the object are
// dropped and flush-time notifications referencing it follow the
// removed-object rules.
func (b *Buffer) Remove(id ObjectID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false
	}
	b.removed[id] = true
	delete(b.objects, id)
	return true
}

// Removed reports whether the object was deleted during the current step.
func (b *Buffer) Removed(id ObjectID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removed[id]
}

// RemovedIDs lists the objects deleted during the current step window.
func (b *Buffer) RemovedIDs() []ObjectID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ObjectID, 0, len(b.removed))
	for id := range b.removed {
		out = append(out, id)
	}
	return out
}

// Flush closes the step window, applies every pending API-origin record
// through apply, and clears the buffer. Records for removed objects are
// discarded. The window closes atomically with taking the record set, so
// no record can land between the flush and the next Open.
func (b *Buffer) Flush(apply func(id ObjectID, attr Attr, val any)) {
	b.mu.Lock()
	b.open = false
	objects := b.objects
	b.objects = make(map[ObjectID]map[Attr]record)
	b.removed = make(map[ObjectID]bool)
	b.mu.Unlock()

	for id, attrs := range objects {
		for attr, r := range attrs {
			if r.origin == OriginAPI {
				apply(id, attr, r.val)
			}
		}
	}
}

// Len reports how many objects currently hold buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}
