// Package notation turns quantized events into chords, rests, ties and
// markers ready to be placed on a staff.
package notation

import (
	"fmt"

	"github.com/james-see/midi2score/pkg/duration"
	"github.com/james-see/midi2score/pkg/fraction"
)

// EntryKind tags an Entry.
type EntryKind uint8

const (
	KindNote EntryKind = iota
	KindRest
)

func (k EntryKind) String() string {
	if k == KindRest {
		return "rest"
	}
	return "note"
}

// Accidental is the spelling of a note.
type Accidental uint8

const (
	Natural Accidental = iota
	Sharp
)

// MiddleC is the MIDI key pitches are measured from.
const MiddleC = 60

// Entry is a note or rest inside a chord.
type Entry struct {
	Kind     EntryKind
	Start    fraction.Fraction
	Duration duration.Descriptor

	// Pitch is in semitones relative to MiddleC.
	Pitch      int
	Accidental Accidental
	// Accents are -log2(velocity)+AccentOffset, or AccentNone for velocity 0.
	AttackAccent    float64
	ReleaseAccent   float64
	AttackVelocity  uint8
	ReleaseVelocity uint8
	StartAdjust     float64
	DurationAdjust  float64
	// Tie is the note this one is tied into.
	Tie *Entry

	// Filler marks a rest that only shortens the chord so the next one
	// starts on time.
	Filler bool
}

// Key returns the MIDI key of a note.
func (e *Entry) Key() uint8 {
	return uint8(e.Pitch + MiddleC)
}

var letters = [12]string{"C", "C", "D", "D", "E", "F", "F", "G", "G", "A", "A", "B"}

// Name returns the spelled pitch of a note, e.g. "C4" or "F#5".
func (e *Entry) Name() string {
	if e.Kind == KindRest {
		return "rest"
	}
	key := e.Pitch + MiddleC
	octave := key/12 - 1
	s := letters[key%12]
	if e.Accidental == Sharp {
		s += "#"
	}
	return fmt.Sprintf("%s%d", s, octave)
}

// Chord is the set of entries that start together. Duration is how far the
// chord advances the time cursor: the shortest entry in it.
type Chord struct {
	Start    fraction.Fraction
	Duration fraction.Fraction
	Entries  []*Entry
}

// IsRest reports whether the chord holds a single rest.
func (c *Chord) IsRest() bool {
	return len(c.Entries) == 1 && c.Entries[0].Kind == KindRest
}

// Marker is a text annotation at a point in time.
type Marker struct {
	Start fraction.Fraction
	Text  string
}

// Track is the notation of one MIDI track and channel.
type Track struct {
	Name    string
	Chords  []*Chord
	Markers []*Marker
	// ReleaseFromEnd anchors note releases from the end of the note.
	ReleaseFromEnd bool
}

// End returns the time the last chord finishes advancing the cursor.
func (t *Track) End() fraction.Fraction {
	if len(t.Chords) == 0 {
		return fraction.Zero
	}
	last := t.Chords[len(t.Chords)-1]
	return last.Start.Add(last.Duration)
}

// Notes returns every note entry in chord order.
func (t *Track) Notes() []*Entry {
	var res []*Entry
	for _, c := range t.Chords {
		for _, e := range c.Entries {
			if e.Kind == KindNote {
				res = append(res, e)
			}
		}
	}
	return res
}
