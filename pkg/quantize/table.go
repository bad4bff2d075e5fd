package quantize

import (
	"fmt"
	"math"
	"sort"

	"github.com/james-see/midi2score/pkg/duration"
)

const maxEscalations = 128

// Entry is one quantization target.
type Entry struct {
	Ticks      uint64
	Descriptor duration.Descriptor
}

// Table lists every admissible duration for one tick resolution, largest
// first. A descriptor is admissible when it is a multiple of the base unit
// and a positive whole number of ticks. Descriptors with equal tick counts
// are collapsed to the plainest one.
type Table struct {
	ticksPerQuarter uint16
	entries         []Entry
}

// NewTable builds the matching table for ticksPerQuarter.
func NewTable(ticksPerQuarter uint16) *Table {
	if ticksPerQuarter == 0 {
		panic("quantize: zero ticks per quarter note")
	}
	t := &Table{ticksPerQuarter: ticksPerQuarter}
	seen := make(map[uint64]bool)

	for _, d := range duration.All() {
		if !d.IsAdmissible() {
			continue
		}
		ticks, ok := DescriptorTicks(d, ticksPerQuarter)
		if !ok || ticks == 0 || seen[ticks] {
			continue
		}
		seen[ticks] = true
		t.entries = append(t.entries, Entry{Ticks: ticks, Descriptor: d})
	}

	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].Ticks > t.entries[j].Ticks
	})
	return t
}

// DescriptorTicks converts d to ticks. ok is false when the result is not
// a whole number of ticks.
func DescriptorTicks(d duration.Descriptor, ticksPerQuarter uint16) (ticks uint64, ok bool) {
	n, den := d.Fraction().Ratio()
	total := n * 4 * int64(ticksPerQuarter)
	if total%den != 0 {
		return 0, false
	}
	return uint64(total / den), true
}

// Entries returns the table, largest first.
func (t *Table) Entries() []Entry {
	return t.entries
}

// Match returns the entry closest to ticks. The search starts with an exact
// match and widens the tolerance (1 tick, then x1.5 per round) until some
// entry falls inside it.
func (t *Table) Match(ticks uint64) Entry {
	tolerance := 0.0
	for round := 0; round < maxEscalations; round++ {
		best := -1
		bestDist := math.Inf(1)
		for i, e := range t.entries {
			dist := math.Abs(float64(ticks) - float64(e.Ticks))
			if dist <= tolerance && dist < bestDist {
				best, bestDist = i, dist
			}
		}
		if best >= 0 {
			return t.entries[best]
		}
		if tolerance == 0 {
			tolerance = 1
		} else {
			tolerance *= 1.5
		}
	}
	panic(fmt.Sprintf("quantize: no table entry within reach of %d ticks (%d entries)", ticks, len(t.entries)))
}
