package scene

import (
	"github.com/google/uuid"

	"github.com/ravik-dev/kinetiq/internal/mirror"
)

// Buffered attribute slots.
const (
	AttrPosition mirror.Attr = iota
	AttrVelocity
	AttrSleeping
)

// Actor is one simulation object. Live fields belong to the scene gate's
// protection; during a running step they are frozen and all mutation goes
// through the reconciliation buffer.
type Actor struct {
	scene *Scene
	id    mirror.ObjectID
	name  string

	pos      Vec3
	vel      Vec3
	radius   float64
	trigger  bool
	sleeping bool

	notifyTouchLost bool
	notifyForceLost bool
}

// ID returns the actor's stable identity.
func (a *Actor) ID() uuid.UUID { return a.id }

func (a *Actor) Name() string { return a.name }

// Position returns the actor's position, preferring the caller's own
// buffered write while a step is in flight.
func (a *Actor) Position() Vec3 {
	s := a.scene
	if s.stepActive.Load() {
		if v, ok := s.buf.Get(a.id, AttrPosition); ok {
			return v.(Vec3)
		}
		// The gate orders this fallback against the flush mutating
		// live state at step end.
		var v Vec3
		s.gate.WithRead(func() { v = a.pos })
		return v
	}
	s.checkRead()
	defer s.endRead()
	return a.pos
}

// SetPosition mutates the position: live outside a step, buffered while
// one runs. The scene-query index is updated immediately either way.
func (a *Actor) SetPosition(v Vec3) error {
	s := a.scene
	if s.stepActive.Load() {
		if s.buf.Put(a.id, AttrPosition, v, mirror.OriginAPI) {
			s.index.update(a.id, v, a.radius)
			return nil
		}
		// The step window closed under us; order the write after the
		// flush so it cannot be resurrected by a later one.
		return s.gate.WithWrite(func() error {
			a.pos = v
			s.index.update(a.id, v, a.radius)
			return nil
		})
	}
	if err := s.checkWrite(); err != nil {
		return err
	}
	defer s.endWrite()
	a.pos = v
	s.index.update(a.id, v, a.radius)
	return nil
}

func (a *Actor) Velocity() Vec3 {
	s := a.scene
	if s.stepActive.Load() {
		if v, ok := s.buf.Get(a.id, AttrVelocity); ok {
			return v.(Vec3)
		}
		var v Vec3
		s.gate.WithRead(func() { v = a.vel })
		return v
	}
	s.checkRead()
	defer s.endRead()
	return a.vel
}

func (a *Actor) SetVelocity(v Vec3) error {
	s := a.scene
	if s.stepActive.Load() {
		if s.buf.Put(a.id, AttrVelocity, v, mirror.OriginAPI) {
			return nil
		}
		return s.gate.WithWrite(func() error {
			a.vel = v
			return nil
		})
	}
	if err := s.checkWrite(); err != nil {
		return err
	}
	defer s.endWrite()
	a.vel = v
	return nil
}

// Sleeping reports whether the actor is below the sleep threshold.
func (a *Actor) Sleeping() bool {
	s := a.scene
	if s.stepActive.Load() {
		if v, ok := s.buf.Get(a.id, AttrSleeping); ok {
			return v.(bool)
		}
		var v bool
		s.gate.WithRead(func() { v = a.sleeping })
		return v
	}
	s.checkRead()
	defer s.endRead()
	return a.sleeping
}

// WakeUp clears the sleeping flag, buffered during a step.
func (a *Actor) WakeUp() error {
	s := a.scene
	if s.stepActive.Load() {
		if s.buf.Put(a.id, AttrSleeping, false, mirror.OriginAPI) {
			return nil
		}
		return s.gate.WithWrite(func() error {
			a.sleeping = false
			return nil
		})
	}
	if err := s.checkWrite(); err != nil {
		return err
	}
	defer s.endWrite()
	a.sleeping = false
	return nil
}

func (a *Actor) Radius() float64 { return a.radius }

// Trigger reports whether overlaps with this actor produce trigger events
// instead of contacts.
func (a *Actor) Trigger() bool { return a.trigger }

// NotifyOnLost requests touch-lost / force-lost notifications if a
// touching partner (or the actor itself) disappears mid-step.
func (a *Actor) NotifyOnLost(touch, force bool) {
	a.notifyTouchLost = touch
	a.notifyForceLost = force
}

// Remove deletes the actor. Mid-step the removal is deferred to the flush
// point: wake/sleep notifications for it are suppressed, contact/trigger
// notifications still fire with the removed marker.
func (a *Actor) Remove() error {
	s := a.scene
	if s.stepActive.Load() {
		if s.buf.Remove(a.id) {
			s.index.remove(a.id)
			return nil
		}
		return s.gate.WithWrite(func() error {
			s.detach(a.id)
			return nil
		})
	}
	if err := s.checkWrite(); err != nil {
		return err
	}
	defer s.endWrite()
	s.detach(a.id)
	return nil
}
