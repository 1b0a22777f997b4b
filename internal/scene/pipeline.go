package scene

import (
	"github.com/ravik-dev/kinetiq/internal/mirror"
	"github.com/ravik-dev/kinetiq/internal/sched"
)

// stepState is the snapshot one step works on. The live actors stay
// frozen while the pipeline fills the result slices; AwaitStep applies
// them at the flush point.
type stepState struct {
	dt     float64
	actors []*Actor

	pos      []Vec3
	vel      []Vec3
	sleeping []bool

	newPos      []Vec3
	newVel      []Vec3
	newSleeping []bool

	pairs []mirror.Pair
}

// snapshot copies live state into step-owned scratch storage. Called under
// the write gate.
func (s *Scene) snapshot(dt float64) *stepState {
	n := len(s.order)
	st := &stepState{
		dt:          dt,
		actors:      make([]*Actor, n),
		pos:         s.scratch.get(n),
		vel:         s.scratch.get(n),
		sleeping:    make([]bool, n),
		newPos:      s.scratch.get(n),
		newVel:      s.scratch.get(n),
		newSleeping: make([]bool, n),
	}
	copy(st.actors, s.order)
	for i, a := range s.order {
		st.pos[i] = a.pos
		st.vel[i] = a.vel
		st.sleeping[i] = a.sleeping
	}

	// Touching pairs at step start, for lost-touch bookkeeping.
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ai, aj := s.order[i], s.order[j]
			if !ai.notifyTouchLost && !ai.notifyForceLost &&
				!aj.notifyTouchLost && !aj.notifyForceLost {
				continue
			}
			if st.pos[i].Sub(st.pos[j]).Norm() <= ai.radius+aj.radius {
				st.pairs = append(st.pairs, mirror.Pair{
					A:             ai.id,
					B:             aj.id,
					WantTouchLost: ai.notifyTouchLost || aj.notifyTouchLost,
					WantForceLost: ai.notifyForceLost || aj.notifyForceLost,
				})
			}
		}
	}
	return st
}

// buildPipeline wires the step's light-task chain: integration chunks fan
// in to a single contact stage. Everything parks until StartStep.
func (s *Scene) buildPipeline(st *stepState) {
	contacts := s.mgr.NewLightTask("contacts", func() { s.contactsStage(st) })

	n := len(st.actors)
	var heads []*sched.LightTask
	for c := 0; c < n; c += s.cfg.ChunkSize {
		c0, c1 := c, c+s.cfg.ChunkSize
		if c1 > n {
			c1 = n
		}
		t := s.mgr.NewLightTask("integrate", func() { s.integrateStage(st, c0, c1) })
		t.SetContinuation(contacts)
		heads = append(heads, t)
	}
	for _, t := range heads {
		t.RemoveReference()
	}
	contacts.RemoveReference()
}

// integrateStage advances one chunk of the snapshot. Runs on a worker;
// touches only step-owned storage.
func (s *Scene) integrateStage(st *stepState, c0, c1 int) {
	g := s.cfg.Gravity.Scale(st.dt)
	damp := 1.0 - s.cfg.Damping*st.dt
	for i := c0; i < c1; i++ {
		if st.sleeping[i] {
			st.newPos[i] = st.pos[i]
			st.newVel[i] = st.vel[i]
			st.newSleeping[i] = true
			continue
		}
		v := st.vel[i].Add(g).Scale(damp)
		st.newVel[i] = v
		st.newPos[i] = st.pos[i].Add(v.Scale(st.dt))
		st.newSleeping[i] = v.Norm() < s.cfg.SleepSpeed
	}
}

// contactsStage runs after every integration chunk completed. It derives
// overlap and sleep-transition events from the step results.
func (s *Scene) contactsStage(st *stepState) {
	var evs []mirror.Event
	n := len(st.actors)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ai, aj := st.actors[i], st.actors[j]
			if st.newPos[i].Sub(st.newPos[j]).Norm() > ai.radius+aj.radius {
				continue
			}
			kind := mirror.EventContact
			if ai.trigger || aj.trigger {
				kind = mirror.EventTrigger
			}
			evs = append(evs, mirror.Event{Kind: kind, A: ai.id, B: aj.id})
		}
	}
	for i := 0; i < n; i++ {
		switch {
		case !st.sleeping[i] && st.newSleeping[i]:
			evs = append(evs, mirror.Event{Kind: mirror.EventSleep, A: st.actors[i].id})
		case st.sleeping[i] && !st.newSleeping[i]:
			evs = append(evs, mirror.Event{Kind: mirror.EventWake, A: st.actors[i].id})
		}
	}
	if len(evs) == 0 {
		return
	}
	s.evmu.Lock()
	s.events = append(s.events, evs...)
	s.evmu.Unlock()
}
