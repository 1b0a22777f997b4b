package sched

import "sync/atomic"

// LightTask is the minimal unit of work for engine-internal pipelines:
// one body, one fixed continuation, no name table entry. Stage N holds a
// reference on stage N+1 and drops it on completion, so a chain runs in
// order with a single atomic decrement per hop.
type LightTask struct {
	mgr  *Manager
	fn   func()
	name string
	next *LightTask
	refs atomic.Int32
}

// NewLightTask registers a light unit with the step. The task carries one
// reference for its owner; call RemoveReference after wiring continuations.
func (m *Manager) NewLightTask(name string, fn func()) *LightTask {
	t := &LightTask{mgr: m, fn: fn, name: name}
	t.refs.Store(1)
	m.mu.Lock()
	m.pending++
	m.mu.Unlock()
	return t
}

// SetContinuation chains next after this task, taking a hold on next that
// Release drops. Must be called before this task becomes dispatchable.
func (t *LightTask) SetContinuation(next *LightTask) {
	next.refs.Add(1)
	t.next = next
}

func (t *LightTask) Run() { t.fn() }

// Release notifies the continuation and retires the task.
func (t *LightTask) Release() {
	if t.next != nil {
		t.next.RemoveReference()
	}
	t.mgr.unitDone()
}

func (t *LightTask) Name() string { return t.name }

// RemoveReference drops one hold; the 1->0 transition dispatches the task.
func (t *LightTask) RemoveReference() {
	c := t.refs.Add(-1)
	if c == 0 {
		t.mgr.becomeReady(t)
		return
	}
	if c < 0 {
		panic("sched: reference count underflow on " + t.name)
	}
}
