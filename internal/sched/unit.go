package sched

import (
	"sync"
	"sync/atomic"
)

// Unit is the atomic schedulable item. The dispatch port executes Run on a
// worker thread and then calls Release exactly once. Run bodies must not
// block and must not take the scene write lock.
type Unit interface {
	Run()
	Release()
	Name() string
}

// Dispatcher is the port the manager forwards ready units to. It is
// supplied by the application at context construction; the engine never
// owns worker threads itself.
//
// SubmitTask must be safe to call concurrently from worker threads and
// from the thread driving the step, and must not execute the unit inline.
type Dispatcher interface {
	SubmitTask(u Unit)
}

// AuxDispatcher is notified of step boundaries so non-CPU backends can key
// their synchronization epoch off the step lifecycle.
type AuxDispatcher interface {
	StartEpoch()
	StopEpoch()
}

// TaskID identifies a submitted unit within the current step.
type TaskID int32

// InvalidTask is the zero-value identity no submission ever returns.
const InvalidTask TaskID = -1

// entry is the manager-owned record behind a heavy task or a named
// synchronization point. Virtual entries have no body and complete inline
// the moment their reference count drains.
type entry struct {
	mgr     *Manager
	id      TaskID
	fn      func()
	name    string
	virtual bool

	refs atomic.Int32

	// cmu guards conts and done so edges added concurrently with the
	// producer's completion are either notified or immediately satisfied.
	cmu   sync.Mutex
	done  bool
	conts []*entry
}

func (e *entry) Run() {
	if e.fn != nil {
		e.fn()
	}
}

// Release is invoked by the dispatch port after Run returns. Completion
// propagation happens here, inline on the executing worker.
func (e *entry) Release() {
	e.mgr.completeEntry(e)
}

func (e *entry) Name() string { return e.name }

// addRef takes an additional hold unless the count already drained to
// zero, in which case the unit is dispatched and the hold is refused.
func (e *entry) addRef() bool {
	for {
		c := e.refs.Load()
		if c <= 0 {
			return false
		}
		if e.refs.CompareAndSwap(c, c+1) {
			return true
		}
	}
}

// removeRef drops one hold. The 1->0 transition is the sole dispatch
// trigger; the atomic decrement guarantees it fires at most once.
func (e *entry) removeRef() {
	c := e.refs.Add(-1)
	if c == 0 {
		e.mgr.becomeReady(e)
		return
	}
	if c < 0 {
		panic("sched: reference count underflow on " + e.name)
	}
}

// Task is the application-facing handle for a heavy unit.
type Task struct {
	m  *Manager
	id TaskID
}

// ID returns the identity usable for establishing dependencies.
func (t Task) ID() TaskID { return t.id }

// StartAfter defers this task's dispatch until dep completes.
func (t Task) StartAfter(dep TaskID) error {
	return t.m.AddDependency(dep, t.id)
}

// RemoveReference drops the submission hold, making the task eligible for
// dispatch once its remaining dependencies complete.
func (t Task) RemoveReference() {
	t.m.removeReference(t.id)
}

// AddReference takes an extra hold; it fails if the task already dispatched.
func (t Task) AddReference() error {
	return t.m.addReference(t.id)
}

// Name reports the name the task was submitted under, if any.
func (t Task) Name() string {
	return t.m.taskName(t.id)
}
