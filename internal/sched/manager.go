package sched

import (
	"fmt"
	"sync"
)

// Manager owns the set of units submitted for one simulation step. There is
// one Manager per simulation context; the dispatch port is injected at
// construction and may be shared between contexts.
type Manager struct {
	port        Dispatcher
	aux         []AuxDispatcher
	diagnostics bool

	mu           sync.Mutex
	cond         *sync.Cond
	entries      []*entry
	names        map[string]*entry
	virtualHolds []*entry
	startup      []Unit
	running      bool
	pending      int
}

// NewManager creates a manager forwarding ready units to port. With
// diagnostics enabled, StartStep validates the graph for cycles and misuse
// is reported eagerly; production mode favors the fast path.
func NewManager(port Dispatcher, diagnostics bool) *Manager {
	m := &Manager{
		port:        port,
		diagnostics: diagnostics,
		names:       make(map[string]*entry),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// RegisterAux attaches an auxiliary dispatcher whose epoch follows the
// step lifecycle. Must be called before the first StartStep.
func (m *Manager) RegisterAux(a AuxDispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aux = append(m.aux, a)
}

// Submit registers a unit of work with an initial reference count of one.
// The caller releases its hold with RemoveReference once all dependency
// edges are in place. Submitting several units under the same name forms a
// fan-out group: dependents of the name run only after every member
// completes. Fails with ErrAlreadyDispatched if the named group already
// resolved this step.
func (m *Manager) Submit(fn func(), name string) (Task, error) {
	m.mu.Lock()
	var group *entry
	if name != "" {
		group = m.namedLocked(name)
		if !group.addRef() {
			m.mu.Unlock()
			return Task{m: m, id: InvalidTask}, fmt.Errorf("%w: name %q", ErrAlreadyDispatched, name)
		}
	}
	e := &entry{mgr: m, id: TaskID(len(m.entries)), fn: fn, name: name}
	e.refs.Store(1)
	m.entries = append(m.entries, e)
	m.pending++
	m.mu.Unlock()

	if group != nil {
		e.cmu.Lock()
		e.conts = append(e.conts, group)
		e.cmu.Unlock()
	}
	return Task{m: m, id: e.id}, nil
}

// Resolve returns the identity of the named synchronization point,
// creating a virtual body-less unit on first use. Resolution is idempotent
// within a step.
func (m *Manager) Resolve(name string) TaskID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.namedLocked(name).id
}

// namedLocked returns the virtual entry for name, creating it with the
// setup hold the manager drops at StartStep.
func (m *Manager) namedLocked(name string) *entry {
	if e, ok := m.names[name]; ok {
		return e
	}
	e := &entry{mgr: m, id: TaskID(len(m.entries)), name: name, virtual: true}
	e.refs.Store(1)
	m.entries = append(m.entries, e)
	m.names[name] = e
	m.virtualHolds = append(m.virtualHolds, e)
	m.pending++
	return e
}

// AddDependency records that from's completion must precede to's dispatch,
// realized as a reference-count hold on to that from releases when it
// completes. Fails with ErrInvalidDependency if to already dispatched.
func (m *Manager) AddDependency(from, to TaskID) error {
	m.mu.Lock()
	fe := m.entryLocked(from)
	te := m.entryLocked(to)
	m.mu.Unlock()
	if fe == nil || te == nil {
		return ErrUnknownTask
	}
	if !te.addRef() {
		return fmt.Errorf("%w: %s", ErrInvalidDependency, displayName(te))
	}
	fe.cmu.Lock()
	if fe.done {
		// Producer already finished; the edge is trivially satisfied.
		fe.cmu.Unlock()
		te.removeRef()
		return nil
	}
	fe.conts = append(fe.conts, te)
	fe.cmu.Unlock()
	return nil
}

// StartStep transitions the manager into the running state, signals
// auxiliary epochs, drops the setup holds of named synchronization points
// and releases any unit whose count already drained. Exactly one
// StartStep/StopStep pair per step, even when no new units were submitted.
func (m *Manager) StartStep() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrStepActive
	}
	if m.diagnostics {
		if err := m.validateLocked(); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.running = true
	holds := m.virtualHolds
	m.virtualHolds = nil
	aux := m.aux
	m.mu.Unlock()

	for _, a := range aux {
		a.StartEpoch()
	}
	for _, e := range holds {
		e.removeRef()
	}

	m.mu.Lock()
	parked := m.startup
	m.startup = nil
	m.mu.Unlock()
	for _, u := range parked {
		m.dispatchUnit(u)
	}
	return nil
}

// StopStep finalizes the step. With block set it waits for every unit to
// complete; otherwise it polls, returning false while work is in flight so
// callers can implement cooperative timeouts. A cyclic graph never drains;
// see Stalled.
func (m *Manager) StopStep(block bool) (bool, error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false, ErrStepNotActive
	}
	if block {
		for m.pending > 0 {
			m.cond.Wait()
		}
	} else if m.pending > 0 {
		m.mu.Unlock()
		return false, nil
	}
	m.running = false
	m.entries = nil
	m.names = make(map[string]*entry)
	m.startup = nil
	m.pending = 0
	aux := m.aux
	m.mu.Unlock()

	for _, a := range aux {
		a.StopEpoch()
	}
	return true, nil
}

// Running reports whether a step is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Pending returns the number of units not yet completed this step.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Stalled lists units that still hold references and have not completed.
// With an idle dispatch port this is the liveness probe for silent
// starvation caused by dependency cycles.
func (m *Manager) Stalled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		e.cmu.Lock()
		done := e.done
		e.cmu.Unlock()
		if !done && e.refs.Load() > 0 {
			out = append(out, displayName(e))
		}
	}
	return out
}

func (m *Manager) entryLocked(id TaskID) *entry {
	if id < 0 || int(id) >= len(m.entries) {
		return nil
	}
	return m.entries[id]
}

func (m *Manager) removeReference(id TaskID) {
	m.mu.Lock()
	e := m.entryLocked(id)
	m.mu.Unlock()
	if e == nil {
		panic("sched: unknown task id")
	}
	e.removeRef()
}

func (m *Manager) addReference(id TaskID) error {
	m.mu.Lock()
	e := m.entryLocked(id)
	m.mu.Unlock()
	if e == nil {
		return ErrUnknownTask
	}
	if !e.addRef() {
		return fmt.Errorf("%w: %s", ErrAlreadyDispatched, displayName(e))
	}
	return nil
}

func (m *Manager) taskName(id TaskID) string {
	m.mu.Lock()
	e := m.entryLocked(id)
	m.mu.Unlock()
	if e == nil {
		return ""
	}
	return e.name
}

// becomeReady routes a unit whose count just drained: parked until
// StartStep, forwarded to the port while running.
func (m *Manager) becomeReady(u Unit) {
	m.mu.Lock()
	if !m.running {
		m.startup = append(m.startup, u)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.dispatchUnit(u)
}

func (m *Manager) dispatchUnit(u Unit) {
	if e, ok := u.(*entry); ok && e.virtual {
		// Virtual units have no body; completing them inline fans the
		// decrement out to everything waiting on the name.
		m.completeEntry(e)
		return
	}
	m.port.SubmitTask(u)
}

// completeEntry runs on the completing worker with no extra scheduling
// hop: it decrements each continuation and forwards those reaching zero.
func (m *Manager) completeEntry(e *entry) {
	e.cmu.Lock()
	e.done = true
	conts := e.conts
	e.conts = nil
	e.cmu.Unlock()
	for _, c := range conts {
		c.removeRef()
	}
	m.unitDone()
}

func (m *Manager) unitDone() {
	m.mu.Lock()
	m.pending--
	if m.pending == 0 {
		m.cond.Broadcast()
	}
	m.mu.Unlock()
}

func displayName(e *entry) string {
	if e.name != "" {
		return e.name
	}
	return fmt.Sprintf("task-%d", e.id)
}
