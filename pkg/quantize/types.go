// Package quantize snaps tick-based note intervals onto symbolic durations.
package quantize

import (
	"github.com/james-see/midi2score/pkg/duration"
	"github.com/james-see/midi2score/pkg/fraction"
)

// EventKind tags an Event.
type EventKind uint8

const (
	KindNote EventKind = iota
	KindComment
)

// Event is a quantized note or comment. Start is measured in whole notes.
//
// StartAdjust is the signed timing error of the start, as a fraction of the
// note's real duration (positive: played late). DurationAdjust is the ratio
// of the real duration to the quantized one.
type Event struct {
	Kind  EventKind
	Start fraction.Fraction

	StartAdjust     float64
	Duration        duration.Descriptor
	DurationAdjust  float64
	Pitch           uint8
	AttackVelocity  uint8
	ReleaseVelocity uint8
	// TieTarget is the note this one is tied into, if any.
	TieTarget *Event

	Text string
}

// Track holds quantized events sorted by start. Events with equal start keep
// their insertion order.
type Track struct {
	events []*Event
}

// Insert places ev after the last event whose start is <= ev.Start.
func (t *Track) Insert(ev *Event) {
	i := len(t.events)
	for i > 0 && t.events[i-1].Start.Greater(ev.Start) {
		i--
	}
	t.events = append(t.events, nil)
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = ev
}

// Events returns the sorted events.
func (t *Track) Events() []*Event {
	return t.events
}

// Len returns the number of events.
func (t *Track) Len() int {
	return len(t.events)
}
