package mirror

// EventKind enumerates the notifications delivered at flush.
type EventKind uint8

const (
	EventWake EventKind = iota
	EventSleep
	EventContact
	EventTrigger
	EventTouchLost
	EventForceLost
)

func (k EventKind) String() string {
	switch k {
	case EventWake:
		return "wake"
	case EventSleep:
		return "sleep"
	case EventContact:
		return "contact"
	case EventTrigger:
		return "trigger"
	case EventTouchLost:
		return "touch-lost"
	case EventForceLost:
		return "force-lost"
	}
	return "unknown"
}

// Event is one notification. Pair events carry a removed marker per side
// when the object disappeared mid-step.
type Event struct {
	Kind     EventKind
	A, B     ObjectID
	RemovedA bool
	RemovedB bool
}

// Pair describes a touching pair at step start together with the
// notifications the application asked for on separation.
type Pair struct {
	A, B          ObjectID
	WantTouchLost bool
	WantForceLost bool
}

// FilterEvents applies the removed-object delivery rules: wake/sleep
// events referencing a removed object are suppressed; contact/trigger
// events are still delivered, flagged per side.
func FilterEvents(events []Event, removed func(ObjectID) bool) []Event {
	out := events[:0]
	for _, ev := range events {
		switch ev.Kind {
		case EventWake, EventSleep:
			if removed(ev.A) {
				continue
			}
		case EventContact, EventTrigger:
			ev.RemovedA = removed(ev.A)
			ev.RemovedB = removed(ev.B)
		}
		out = append(out, ev)
	}
	return out
}

// SynthesizeLost produces the touch-lost and force-lost events owed to
// pairs whose member disappeared mid-step, carrying the removed marker for
// the vanished side.
func SynthesizeLost(pairs []Pair, removed func(ObjectID) bool) []Event {
	var out []Event
	for _, p := range pairs {
		ra, rb := removed(p.A), removed(p.B)
		if !ra && !rb {
			continue
		}
		if p.WantTouchLost {
			out = append(out, Event{Kind: EventTouchLost, A: p.A, B: p.B, RemovedA: ra, RemovedB: rb})
		}
		if p.WantForceLost {
			out = append(out, Event{Kind: EventForceLost, A: p.A, B: p.B, RemovedA: ra, RemovedB: rb})
		}
	}
	return out
}
