package quantize

import (
	"fmt"
	"slices"

	"github.com/james-see/midi2score/pkg/duration"
	"github.com/james-see/midi2score/pkg/fraction"
	"github.com/james-see/midi2score/pkg/interval"
)

const (
	// DefaultStartGrid is the denominator note starts are rounded to.
	DefaultStartGrid = 64
	// BaseGrid is the denominator of the base unit; comments snap to it.
	BaseGrid = 192
)

var wholeNote = duration.Descriptor{Length: duration.Whole}

// Quantizer converts tick values to whole-note fractions for one resolution.
type Quantizer struct {
	table           *Table
	ticksPerQuarter uint16
	startGrid       uint32
}

// Option configures a Quantizer.
type Option func(*Quantizer)

// WithStartGrid sets the denominator note starts are rounded to. It must
// divide BaseGrid.
func WithStartGrid(den uint32) Option {
	return func(q *Quantizer) {
		q.startGrid = den
	}
}

// ValidStartGrid reports whether den can be used as a start grid.
func ValidStartGrid(den uint32) bool {
	return den > 0 && BaseGrid%den == 0
}

// New returns a Quantizer for ticksPerQuarter.
func New(ticksPerQuarter uint16, opts ...Option) *Quantizer {
	q := &Quantizer{
		table:           NewTable(ticksPerQuarter),
		ticksPerQuarter: ticksPerQuarter,
		startGrid:       DefaultStartGrid,
	}
	for _, opt := range opts {
		opt(q)
	}
	if !ValidStartGrid(q.startGrid) {
		panic(fmt.Sprintf("quantize: start grid %d does not divide %d", q.startGrid, BaseGrid))
	}
	return q
}

// Table returns the matching table.
func (q *Quantizer) Table() *Table {
	return q.table
}

func (q *Quantizer) wholeTicks() uint64 {
	return 4 * uint64(q.ticksPerQuarter)
}

// snap rounds tick (half up) to the nearest multiple of 1/den whole notes.
func (q *Quantizer) snap(tick uint64, den uint32) fraction.Fraction {
	whole := q.wholeTicks()
	n := (2*tick*uint64(den) + whole) / (2 * whole)
	return fraction.FromRatio(int64(n), int64(den))
}

// Duration splits ticks into whole-note overflow plus a remainder matched
// against the table. adjust is remainder/matched ticks.
func (q *Quantizer) Duration(ticks uint64) (overflow uint64, entry Entry, adjust float64) {
	whole := q.wholeTicks()
	overflow = ticks / whole
	rem := ticks % whole
	if rem == 0 && overflow > 0 {
		overflow--
		rem = whole
	}
	entry = q.table.Match(rem)
	adjust = float64(rem) / float64(entry.Ticks)
	return overflow, entry, adjust
}

// Start rounds a start tick to the start grid.
func (q *Quantizer) Start(tick uint64) fraction.Fraction {
	return q.snap(tick, q.startGrid)
}

// Quantize converts an interval track. Notes longer than a whole note become
// a chain of tied whole notes ending in the remainder note.
//
// Events are collected in source order and stable sorted once by start,
// which gives the same order as inserting each after the last event whose
// start is <= its own.
func (q *Quantizer) Quantize(src *interval.Track) *Track {
	var events []*Event
	for _, ev := range src.Events() {
		switch ev.Kind {
		case interval.KindComment:
			start := q.snap(ev.Start, BaseGrid)
			mustBeOnGrid(start, "comment start")
			events = append(events, &Event{Kind: KindComment, Start: start, Text: ev.Text})
		case interval.KindNote:
			events = q.quantizeNote(events, ev)
		}
	}
	slices.SortStableFunc(events, func(a, b *Event) int {
		return a.Start.Cmp(b.Start)
	})
	return &Track{events: events}
}

// quantizeNote appends the note and its tied whole-note chain, earliest first.
func (q *Quantizer) quantizeNote(events []*Event, ev interval.Event) []*Event {
	start := q.Start(ev.Start)
	overflow, entry, adjust := q.Duration(ev.Duration)

	startAdjust := 0.0
	if ev.Duration > 0 {
		startTicks := start.Float64() * float64(q.wholeTicks())
		startAdjust = (float64(ev.Start) - startTicks) / float64(ev.Duration)
	}

	last := &Event{
		Kind:            KindNote,
		Start:           start.Add(fraction.FromInt(int64(overflow))),
		Duration:        entry.Descriptor,
		DurationAdjust:  adjust,
		Pitch:           ev.Pitch,
		AttackVelocity:  ev.AttackVelocity,
		ReleaseVelocity: ev.ReleaseVelocity,
	}
	mustBeOnGrid(last.Start, "note start")
	mustBeOnGrid(last.Duration.Fraction(), "note duration")

	chain := make([]*Event, overflow+1)
	chain[overflow] = last
	for i := overflow; i > 0; i-- {
		chain[i-1] = &Event{
			Kind:           KindNote,
			Start:          start.Add(fraction.FromInt(int64(i - 1))),
			Duration:       wholeNote,
			DurationAdjust: 1,
			Pitch:          ev.Pitch,
			AttackVelocity: ev.AttackVelocity,
			TieTarget:      chain[i],
		}
	}
	chain[0].StartAdjust = startAdjust
	return append(events, chain...)
}

func mustBeOnGrid(f fraction.Fraction, what string) {
	if !f.IsMultipleOf(duration.BaseUnitFraction) {
		panic(fmt.Sprintf("quantize: %s %v is not a multiple of the base unit", what, f))
	}
}

// IntervalToQuantized quantizes src for a file with the given resolution.
func IntervalToQuantized(src *interval.Track, ticksPerQuarter uint16, opts ...Option) *Track {
	return New(ticksPerQuarter, opts...).Quantize(src)
}
