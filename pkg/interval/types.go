// Package interval correlates raw note-on/note-off pairs into note intervals.
package interval

// EventKind tags an Event.
type EventKind uint8

const (
	KindNote EventKind = iota
	KindComment
)

// Event is a note interval or a timestamped comment, both in raw ticks.
type Event struct {
	Kind  EventKind
	Start uint64

	// note fields
	Duration        uint64
	Pitch           uint8
	AttackVelocity  uint8
	ReleaseVelocity uint8

	// comment fields
	Text string
}

// Track is a list of events kept sorted by start tick. Events with equal
// start keep their insertion order.
type Track struct {
	events []Event
}

// Insert adds ev after the last event whose start is <= ev.Start.
func (t *Track) Insert(ev Event) {
	i := len(t.events)
	for i > 0 && t.events[i-1].Start > ev.Start {
		i--
	}
	t.events = append(t.events, Event{})
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = ev
}

// Events returns the sorted events. The slice must not be modified.
func (t *Track) Events() []Event {
	return t.events
}

// Len returns the number of events.
func (t *Track) Len() int {
	return len(t.events)
}

// Notes returns only the note events, in order.
func (t *Track) Notes() []Event {
	var res []Event
	for _, ev := range t.events {
		if ev.Kind == KindNote {
			res = append(res, ev)
		}
	}
	return res
}

// Comments returns only the comment events, in order.
func (t *Track) Comments() []Event {
	var res []Event
	for _, ev := range t.events {
		if ev.Kind == KindComment {
			res = append(res, ev)
		}
	}
	return res
}

// End returns the tick at which the last note stops or the last comment
// sits, whichever is later.
func (t *Track) End() uint64 {
	var end uint64
	for _, ev := range t.events {
		if e := ev.Start + ev.Duration; e > end {
			end = e
		}
	}
	return end
}
