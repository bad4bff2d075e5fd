package quantize

import (
	"testing"
	"time"

	"github.com/james-see/midi2score/pkg/duration"
	"github.com/james-see/midi2score/pkg/fraction"
	"github.com/james-see/midi2score/pkg/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	quarter = duration.Descriptor{Length: duration.Quarter}
	whole   = duration.Descriptor{Length: duration.Whole}
)

func noteTrack(notes ...interval.Event) *interval.Track {
	tr := &interval.Track{}
	for _, n := range notes {
		n.Kind = interval.KindNote
		tr.Insert(n)
	}
	return tr
}

func TestTableContainsBaseUnit(t *testing.T) {
	for _, tpq := range []uint16{48, 96, 192, 480, 960} {
		table := NewTable(tpq)
		found := false
		for _, e := range table.Entries() {
			if e.Descriptor == duration.BaseUnit {
				found = true
				assert.Equal(t, uint64(tpq/48), e.Ticks)
			}
		}
		assert.True(t, found, "tpq %d: base unit missing", tpq)
	}
}

func TestTableInvariants(t *testing.T) {
	for _, tpq := range []uint16{1, 7, 96, 100, 384, 480} {
		table := NewTable(tpq)
		entries := table.Entries()
		require.NotEmpty(t, entries, "tpq %d", tpq)

		seen := make(map[uint64]bool)
		for i, e := range entries {
			assert.True(t, e.Descriptor.IsAdmissible(), "tpq %d: %v", tpq, e.Descriptor)
			assert.NotEqual(t, duration.Div5, e.Descriptor.Division)
			assert.NotEqual(t, duration.Div7, e.Descriptor.Division)
			assert.False(t, seen[e.Ticks], "tpq %d: duplicate %d ticks", tpq, e.Ticks)
			seen[e.Ticks] = true
			if i > 0 {
				assert.Less(t, e.Ticks, entries[i-1].Ticks)
			}
			ticks, ok := DescriptorTicks(e.Descriptor, tpq)
			assert.True(t, ok)
			assert.Equal(t, e.Ticks, ticks)
		}
		assert.True(t, seen[4*uint64(tpq)], "tpq %d: whole note missing", tpq)
	}
}

func TestTablePrefersPlainDescriptors(t *testing.T) {
	table := NewTable(96)
	for _, e := range table.Entries() {
		if e.Ticks == 24 {
			assert.Equal(t, duration.Descriptor{Length: duration.Sixteenth}, e.Descriptor)
		}
	}
}

func TestMatch(t *testing.T) {
	table := NewTable(96)
	tests := []struct {
		ticks uint64
		want  uint64
	}{
		{96, 96},
		{100, 96},
		{95, 96},
		{120, 128},
		{2, 2},
		{1, 2},
		{0, 2},
		{383, 384},
		{70, 72},
	}
	for _, tt := range tests {
		if got := table.Match(tt.ticks); got.Ticks != tt.want {
			t.Errorf("Match(%d) = %d ticks (%v), want %d", tt.ticks, got.Ticks, got.Descriptor, tt.want)
		}
	}
}

func TestExactDurationRoundTrips(t *testing.T) {
	q := New(96)
	for _, e := range q.Table().Entries() {
		if e.Ticks >= 384 {
			continue
		}
		overflow, got, adjust := q.Duration(e.Ticks)
		assert.Zero(t, overflow)
		assert.Equal(t, e.Descriptor, got.Descriptor)
		assert.Equal(t, 1.0, adjust)
	}
}

func TestQuantizeQuarterNote(t *testing.T) {
	src := noteTrack(interval.Event{Start: 0, Duration: 96, Pitch: 60, AttackVelocity: 64})

	res := IntervalToQuantized(src, 96)
	require.Equal(t, 1, res.Len())
	ev := res.Events()[0]
	assert.Equal(t, KindNote, ev.Kind)
	assert.True(t, ev.Start.IsZero())
	assert.Equal(t, quarter, ev.Duration)
	assert.Equal(t, 1.0, ev.DurationAdjust)
	assert.Zero(t, ev.StartAdjust)
	assert.Nil(t, ev.TieTarget)
	assert.Equal(t, uint8(64), ev.AttackVelocity)
}

func TestQuantizeFiveQuarters(t *testing.T) {
	src := noteTrack(interval.Event{Start: 0, Duration: 480, Pitch: 60, AttackVelocity: 64, ReleaseVelocity: 12})

	res := IntervalToQuantized(src, 96)
	require.Equal(t, 2, res.Len())
	first, second := res.Events()[0], res.Events()[1]

	assert.True(t, first.Start.IsZero())
	assert.Equal(t, whole, first.Duration)
	assert.Same(t, second, first.TieTarget)

	assert.True(t, second.Start.Equal(fraction.One))
	assert.Equal(t, quarter, second.Duration)
	assert.Nil(t, second.TieTarget)
	assert.Equal(t, uint8(12), second.ReleaseVelocity)

	total := first.Duration.Fraction().Add(second.Duration.Fraction())
	assert.True(t, total.Equal(fraction.FromRatio(480, 384)))
}

func TestQuantizeOverflowChain(t *testing.T) {
	for n := uint64(1); n <= 4; n++ {
		src := noteTrack(interval.Event{Start: 384, Duration: n*384 + 48, Pitch: 70, AttackVelocity: 90})
		res := IntervalToQuantized(src, 96)
		events := res.Events()
		require.Len(t, events, int(n)+1)

		cursor := fraction.One
		for i, ev := range events {
			assert.True(t, ev.Start.Equal(cursor), "n=%d event %d starts at %v, want %v", n, i, ev.Start, cursor)
			cursor = cursor.Add(ev.Duration.Fraction())
			if i < len(events)-1 {
				assert.Equal(t, whole, ev.Duration)
				assert.Same(t, events[i+1], ev.TieTarget)
			} else {
				assert.Equal(t, duration.Descriptor{Length: duration.Eighth}, ev.Duration)
				assert.Nil(t, ev.TieTarget)
			}
		}
		assert.True(t, cursor.Equal(fraction.FromRatio(int64(384+n*384+48), 384)))
	}
}

func TestQuantizeLongNoteChain(t *testing.T) {
	const wholes = 200000
	src := noteTrack(
		interval.Event{Start: 0, Duration: wholes*384 + 48, Pitch: 60},
		interval.Event{Start: 96, Duration: 3 * 384, Pitch: 64},
	)

	begin := time.Now()
	res := IntervalToQuantized(src, 96)
	assert.Less(t, time.Since(begin), 10*time.Second)

	events := res.Events()
	require.Len(t, events, wholes+1+3)
	for i := 1; i < len(events); i++ {
		require.False(t, events[i].Start.Less(events[i-1].Start), "event %d out of order", i)
	}

	head := events[0]
	assert.Equal(t, uint8(60), head.Pitch)
	links := 0
	for ev := head; ev.TieTarget != nil; ev = ev.TieTarget {
		links++
	}
	assert.Equal(t, wholes, links)
}

func TestQuantizeExactWholeMultiple(t *testing.T) {
	res := IntervalToQuantized(noteTrack(interval.Event{Start: 0, Duration: 768, Pitch: 60}), 96)
	require.Equal(t, 2, res.Len())
	for _, ev := range res.Events() {
		assert.Equal(t, whole, ev.Duration)
		assert.Equal(t, 1.0, ev.DurationAdjust)
	}
	assert.Same(t, res.Events()[1], res.Events()[0].TieTarget)
}

func TestQuantizeStartAdjust(t *testing.T) {
	// tick 4 rounds to 1/64 of a whole note, which is tick 6
	src := noteTrack(interval.Event{Start: 4, Duration: 96, Pitch: 60})
	res := IntervalToQuantized(src, 96)
	ev := res.Events()[0]

	assert.True(t, ev.Start.Equal(fraction.FromRatio(1, 64)))
	assert.InDelta(t, -2.0/96.0, ev.StartAdjust, 1e-12)
}

func TestQuantizeStretch(t *testing.T) {
	res := IntervalToQuantized(noteTrack(interval.Event{Start: 0, Duration: 100, Pitch: 60}), 96)
	ev := res.Events()[0]
	assert.Equal(t, quarter, ev.Duration)
	assert.InDelta(t, 100.0/96.0, ev.DurationAdjust, 1e-12)
}

func TestQuantizeStartGrid(t *testing.T) {
	src := noteTrack(interval.Event{Start: 32, Duration: 32, Pitch: 60})

	coarse := IntervalToQuantized(src, 96)
	assert.True(t, coarse.Events()[0].Start.Equal(fraction.FromRatio(5, 64)))

	fine := IntervalToQuantized(src, 96, WithStartGrid(BaseGrid))
	assert.True(t, fine.Events()[0].Start.Equal(fraction.FromRatio(1, 12)))
	assert.Equal(t, duration.Descriptor{Length: duration.Quarter, Division: duration.Div3}, fine.Events()[0].Duration)

	assert.Panics(t, func() { New(96, WithStartGrid(100)) })
	assert.True(t, ValidStartGrid(64))
	assert.False(t, ValidStartGrid(0))
	assert.False(t, ValidStartGrid(128))
}

func TestQuantizeComments(t *testing.T) {
	src := &interval.Track{}
	src.Insert(interval.Event{Kind: interval.KindComment, Start: 33, Text: "Marker:\nA"})

	res := IntervalToQuantized(src, 96)
	require.Equal(t, 1, res.Len())
	ev := res.Events()[0]
	assert.Equal(t, KindComment, ev.Kind)
	assert.Equal(t, "Marker:\nA", ev.Text)
	// 33 ticks is 16.5 base units (2 ticks each) and rounds up
	assert.True(t, ev.Start.Equal(fraction.FromRatio(17, 192)))
}

func TestTrackInsertOrder(t *testing.T) {
	var tr Track
	a := &Event{Start: fraction.FromRatio(1, 4), Text: "a"}
	b := &Event{Start: fraction.Zero, Text: "b"}
	c := &Event{Start: fraction.FromRatio(1, 4), Text: "c"}
	tr.Insert(a)
	tr.Insert(b)
	tr.Insert(c)
	require.Len(t, tr.Events(), 3)
	assert.Same(t, b, tr.Events()[0])
	assert.Same(t, a, tr.Events()[1])
	assert.Same(t, c, tr.Events()[2])
}

func TestQuantizeIsDeterministic(t *testing.T) {
	src := noteTrack(
		interval.Event{Start: 0, Duration: 1000, Pitch: 60},
		interval.Event{Start: 13, Duration: 77, Pitch: 64},
		interval.Event{Start: 200, Duration: 5, Pitch: 67},
	)
	a := IntervalToQuantized(src, 96)
	b := IntervalToQuantized(src, 96)
	require.Equal(t, a.Len(), b.Len())
	for i := range a.Events() {
		x, y := a.Events()[i], b.Events()[i]
		assert.Equal(t, x.Start, y.Start)
		assert.Equal(t, x.Duration, y.Duration)
		assert.Equal(t, x.StartAdjust, y.StartAdjust)
		assert.Equal(t, x.DurationAdjust, y.DurationAdjust)
	}
}
