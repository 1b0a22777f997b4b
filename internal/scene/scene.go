package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ravik-dev/kinetiq/internal/dispatch"
	"github.com/ravik-dev/kinetiq/internal/gate"
	"github.com/ravik-dev/kinetiq/internal/mirror"
	"github.com/ravik-dev/kinetiq/internal/sched"
)

// ErrSceneClosed indicates an operation on a released context.
var ErrSceneClosed = errors.New("scene: context released")

// Config sizes one simulation context.
type Config struct {
	Gravity     Vec3
	Damping     float64
	SleepSpeed  float64
	ChunkSize   int
	Diagnostics bool
}

func DefaultConfig() Config {
	return Config{
		Gravity:    Vec3{0, -9.81, 0},
		Damping:    0.01,
		SleepSpeed: 0.05,
		ChunkSize:  64,
	}
}

// Listener receives flush-time notifications.
type Listener interface {
	OnEvent(ev mirror.Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ev mirror.Event)

func (f ListenerFunc) OnEvent(ev mirror.Event) { f(ev) }

// Scene is one simulation context. The dispatch port is injected and may
// be shared between scenes; the scene never owns threads.
type Scene struct {
	cfg      Config
	gate     *gate.Gate
	sentinel *gate.Sentinel
	mgr      *sched.Manager
	buf      *mirror.Buffer
	index    *spatialIndex
	stats    *Stats
	scratch  vecPool

	actors map[mirror.ObjectID]*Actor
	order  []*Actor

	stepActive atomic.Bool
	step       *stepState

	evmu   sync.Mutex
	events []mirror.Event

	lmu       sync.Mutex
	listeners []Listener

	vmu       sync.Mutex
	violation error

	closed bool
}

// New creates a scene stepping on port.
func New(cfg Config, port sched.Dispatcher) *Scene {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	s := &Scene{
		cfg:      cfg,
		gate:     gate.New(cfg.Diagnostics),
		sentinel: gate.NewSentinel(cfg.Diagnostics),
		buf:      mirror.NewBuffer(),
		index:    newSpatialIndex(),
		stats:    newStats(),
		actors:   make(map[mirror.ObjectID]*Actor),
	}
	s.mgr = sched.NewManager(port, cfg.Diagnostics)
	s.mgr.RegisterAux(dispatch.AuxFuncs{OnStart: s.stats.beginEpoch, OnStop: s.stats.endEpoch})
	return s
}

// Gate exposes the scene's lock for application-side scoped access.
func (s *Scene) Gate() *gate.Gate { return s.gate }

// Manager exposes the graph manager for application-submitted tasks.
func (s *Scene) Manager() *sched.Manager { return s.mgr }

// Stats exposes step timing.
func (s *Scene) Stats() *Stats { return s.stats }

// AddActor creates an actor. Actors cannot be added while a step runs.
func (s *Scene) AddActor(name string, pos Vec3, radius float64) (*Actor, error) {
	if s.stepActive.Load() {
		return nil, sched.ErrStepActive
	}
	if err := s.checkWrite(); err != nil {
		return nil, err
	}
	defer s.endWrite()
	if s.closed {
		return nil, ErrSceneClosed
	}
	a := &Actor{
		scene:  s,
		id:     uuid.New(),
		name:   name,
		pos:    pos,
		radius: radius,
	}
	s.actors[a.id] = a
	s.order = append(s.order, a)
	s.index.update(a.id, pos, radius)
	return a, nil
}

// AddTrigger creates a trigger-zone actor: overlaps report trigger events
// and the actor is excluded from integration.
func (s *Scene) AddTrigger(name string, pos Vec3, radius float64) (*Actor, error) {
	a, err := s.AddActor(name, pos, radius)
	if err != nil {
		return nil, err
	}
	a.trigger = true
	a.sleeping = true
	return a, nil
}

// ActorCount returns the number of live actors.
func (s *Scene) ActorCount() int {
	if s.stepActive.Load() {
		var n int
		s.gate.WithRead(func() { n = len(s.actors) })
		return n
	}
	s.checkRead()
	defer s.endRead()
	return len(s.actors)
}

// OverlapSphere queries the scene-query index. The index reflects buffered
// writes immediately, even mid-step.
func (s *Scene) OverlapSphere(center Vec3, radius float64) []uuid.UUID {
	return s.index.overlap(center, radius)
}

// RegisterListener attaches a flush-time event listener. Safe to call
// while a step is in flight; the listener sees that step's events.
func (s *Scene) RegisterListener(l Listener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

// Schedule submits an application task for the upcoming step.
func (s *Scene) Schedule(fn func(), name string) (sched.Task, error) {
	return s.mgr.Submit(fn, name)
}

// Resolve returns the named synchronization point's identity.
func (s *Scene) Resolve(name string) sched.TaskID {
	return s.mgr.Resolve(name)
}

// BeginStep snapshots live state, seeds the step pipeline and hands it to
// the graph manager. It returns as soon as the step is in flight.
func (s *Scene) BeginStep(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("scene: dt must be positive, got %f", dt)
	}
	if s.stepActive.Load() {
		return sched.ErrStepActive
	}

	var st *stepState
	err := s.gate.WithWrite(func() error {
		if s.closed {
			return ErrSceneClosed
		}
		st = s.snapshot(dt)
		s.buf.Open()
		s.stepActive.Store(true)
		return nil
	})
	if err != nil {
		return err
	}
	s.step = st
	s.buildPipeline(st)
	if err := s.mgr.StartStep(); err != nil {
		s.stepActive.Store(false)
		s.step = nil
		return err
	}
	return nil
}

// AwaitStep completes the step: blocking when asked, polling otherwise.
// On completion it reconciles buffered mutations with step results
// (API writes win), detaches removed actors and delivers notifications.
func (s *Scene) AwaitStep(block bool) (bool, error) {
	if !s.stepActive.Load() {
		return false, sched.ErrStepNotActive
	}
	done, err := s.mgr.StopStep(block)
	if err != nil || !done {
		return done, err
	}
	s.finishStep()
	return true, nil
}

// Step runs one full blocking step.
func (s *Scene) Step(dt float64) error {
	if err := s.BeginStep(dt); err != nil {
		return err
	}
	_, err := s.AwaitStep(true)
	return err
}

// Run advances the scene by steps fixed increments, checking ctx between
// steps. An in-flight step always completes; cancellation takes effect at
// the next step boundary.
func (s *Scene) Run(ctx context.Context, dt float64, steps int) error {
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(dt); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func (s *Scene) finishStep() {
	st := s.step
	var delivered []mirror.Event

	s.gate.WithWrite(func() error {
		removed := s.buf.Removed

		s.evmu.Lock()
		evs := s.events
		s.events = nil
		s.evmu.Unlock()

		evs = mirror.FilterEvents(evs, removed)
		evs = append(evs, mirror.SynthesizeLost(st.pairs, removed)...)

		// Step results land on the live objects first...
		for i, a := range st.actors {
			if removed(a.id) {
				continue
			}
			a.pos = st.newPos[i]
			a.vel = st.newVel[i]
			a.sleeping = st.newSleeping[i]
			s.index.update(a.id, a.pos, a.radius)
		}
		// ...then buffered API records override them.
		removedIDs := s.buf.RemovedIDs()
		s.buf.Flush(func(id mirror.ObjectID, attr mirror.Attr, val any) {
			if a := s.actors[id]; a != nil {
				s.applyRecord(a, attr, val)
			}
		})
		for _, id := range removedIDs {
			s.detach(id)
		}

		s.stepActive.Store(false)
		delivered = evs
		return nil
	})

	s.scratch.put(st.pos)
	s.scratch.put(st.vel)
	s.scratch.put(st.newPos)
	s.scratch.put(st.newVel)
	s.step = nil

	s.lmu.Lock()
	ls := make([]Listener, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.Unlock()
	for _, ev := range delivered {
		for _, l := range ls {
			l.OnEvent(ev)
		}
	}
}

func (s *Scene) applyRecord(a *Actor, attr mirror.Attr, val any) {
	switch attr {
	case AttrPosition:
		a.pos = val.(Vec3)
		s.index.update(a.id, a.pos, a.radius)
	case AttrVelocity:
		a.vel = val.(Vec3)
	case AttrSleeping:
		a.sleeping = val.(bool)
	}
}

func (s *Scene) detach(id mirror.ObjectID) {
	if _, ok := s.actors[id]; !ok {
		return
	}
	delete(s.actors, id)
	for i, a := range s.order {
		if a.id == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.index.remove(id)
}

// Close releases the context. It waits for an in-flight step, then takes
// the write lock before teardown.
func (s *Scene) Close() error {
	if s.stepActive.Load() {
		if _, err := s.AwaitStep(true); err != nil && !errors.Is(err, sched.ErrStepNotActive) {
			return err
		}
	}
	return s.gate.WithWrite(func() error {
		s.closed = true
		s.actors = make(map[mirror.ObjectID]*Actor)
		s.order = nil
		return nil
	})
}

// LastViolation returns the most recent access violation detected in
// diagnostic mode, if any.
func (s *Scene) LastViolation() error {
	s.vmu.Lock()
	defer s.vmu.Unlock()
	return s.violation
}

func (s *Scene) noteViolation(err error) {
	s.vmu.Lock()
	s.violation = err
	s.vmu.Unlock()
}

func (s *Scene) checkRead() {
	if s.gate.ReadHeldByMe() {
		return
	}
	if err := s.sentinel.BeginRead(); err != nil {
		s.noteViolation(err)
	}
}

func (s *Scene) endRead() {
	if s.gate.ReadHeldByMe() {
		return
	}
	s.sentinel.EndRead()
}

func (s *Scene) checkWrite() error {
	if s.gate.WriteHeldByMe() {
		return nil
	}
	if err := s.sentinel.BeginWrite(); err != nil {
		s.noteViolation(err)
		return err
	}
	return nil
}

func (s *Scene) endWrite() {
	if s.gate.WriteHeldByMe() {
		return
	}
	s.sentinel.EndWrite()
}
