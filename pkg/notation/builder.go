package notation

import (
	"fmt"
	"math"
	"strings"

	"github.com/james-see/midi2score/pkg/duration"
	"github.com/james-see/midi2score/pkg/fraction"
	"github.com/james-see/midi2score/pkg/interval"
	"github.com/james-see/midi2score/pkg/quantize"
)

const (
	// AccentOffset makes velocity 127 an accent of roughly zero.
	AccentOffset = 7.0
	// AccentNone is the accent of a zero velocity.
	AccentNone = -1.0
)

// sharps marks the black keys by pitch class.
var sharps = [12]bool{false, true, false, true, false, false, true, false, true, false, true, false}

// Accent converts a MIDI velocity to an accent value.
func Accent(velocity uint8) float64 {
	if velocity == 0 {
		return AccentNone
	}
	return AccentOffset - math.Log2(float64(velocity))
}

// RestTable returns the durations rests are built from, largest first:
// plain whole down to 64th, then the base unit.
func RestTable() []duration.Descriptor {
	res := make([]duration.Descriptor, 0, 8)
	for l := duration.Whole; ; l-- {
		res = append(res, duration.Descriptor{Length: l})
		if l == duration.Sixtyfourth {
			break
		}
	}
	return append(res, duration.BaseUnit)
}

type builder struct {
	track   *Track
	rests   []duration.Descriptor
	fillers []duration.Descriptor
	cursor  fraction.Fraction
	ties    map[*quantize.Event]*Entry
}

// QuantizedToNote builds the notation of a quantized track.
//
// Events are grouped into chords by start time. Rests fill the gaps between
// chords; when a chord's shortest note runs past the next chord, a filler
// rest is added to it so the next chord starts on time. Comments become
// markers. Ties are linked once every note exists.
func QuantizedToNote(src *quantize.Track) *Track {
	b := &builder{
		track:   &Track{ReleaseFromEnd: true},
		rests:   RestTable(),
		fillers: admissible(),
		cursor:  fraction.Zero,
		ties:    make(map[*quantize.Event]*Entry),
	}

	events := src.Events()
	for i := 0; i < len(events); {
		start := events[i].Start
		j := i + 1
		for j < len(events) && events[j].Start.Equal(start) {
			j++
		}
		var next *fraction.Fraction
		if j < len(events) {
			next = &events[j].Start
		}
		b.frame(start, events[i:j], next)
		i = j
	}

	b.linkTies(events)
	b.track.Name = TrackName(events)
	return b.track
}

func (b *builder) frame(start fraction.Fraction, events []*quantize.Event, next *fraction.Fraction) {
	b.fillRests(start)

	for _, ev := range events {
		if ev.Kind == quantize.KindComment {
			b.track.Markers = append(b.track.Markers, &Marker{Start: ev.Start, Text: ev.Text})
		}
	}

	var chord *Chord
	var shortest fraction.Fraction
	for _, ev := range events {
		if ev.Kind != quantize.KindNote {
			continue
		}
		if !ev.Start.Equal(b.cursor) {
			panic(fmt.Sprintf("notation: note at %v but cursor at %v", ev.Start, b.cursor))
		}
		entry := newNote(ev)
		b.ties[ev] = entry
		if chord == nil {
			chord = &Chord{Start: b.cursor}
			shortest = ev.Duration.Fraction()
		} else if d := ev.Duration.Fraction(); d.Less(shortest) {
			shortest = d
		}
		chord.Entries = append(chord.Entries, entry)
	}
	if chord == nil {
		return
	}

	if next != nil {
		gap := next.Sub(b.cursor)
		if shortest.Greater(gap) {
			filler := b.fillerRest(gap)
			chord.Entries = append(chord.Entries, &Entry{
				Kind:     KindRest,
				Start:    b.cursor,
				Duration: filler,
				Filler:   true,
			})
			shortest = filler.Fraction()
		}
	}

	chord.Duration = shortest
	b.track.Chords = append(b.track.Chords, chord)
	b.cursor = b.cursor.Add(shortest)
}

// fillRests appends rest chords until the cursor reaches target.
func (b *builder) fillRests(target fraction.Fraction) {
	if b.cursor.Greater(target) {
		panic(fmt.Sprintf("notation: cursor %v overshot frame at %v", b.cursor, target))
	}
	for target.Greater(b.cursor) {
		d := b.largestRest(target.Sub(b.cursor))
		f := d.Fraction()
		b.track.Chords = append(b.track.Chords, &Chord{
			Start:    b.cursor,
			Duration: f,
			Entries:  []*Entry{{Kind: KindRest, Start: b.cursor, Duration: d}},
		})
		b.cursor = b.cursor.Add(f)
	}
}

// fillerRest returns a rest that closes gap exactly, plainest first. When no
// single duration fits, it falls back to the largest rest below the gap and
// the remainder becomes rest chords.
func (b *builder) fillerRest(gap fraction.Fraction) duration.Descriptor {
	for _, d := range b.fillers {
		if d.Fraction().Equal(gap) {
			return d
		}
	}
	return b.largestRest(gap)
}

func admissible() []duration.Descriptor {
	var res []duration.Descriptor
	for _, d := range duration.All() {
		if d.IsAdmissible() {
			res = append(res, d)
		}
	}
	return res
}

func (b *builder) largestRest(gap fraction.Fraction) duration.Descriptor {
	for _, d := range b.rests {
		if gap.GreaterEqual(d.Fraction()) {
			return d
		}
	}
	panic(fmt.Sprintf("notation: gap %v is shorter than the base unit", gap))
}

func newNote(ev *quantize.Event) *Entry {
	return &Entry{
		Kind:            KindNote,
		Start:           ev.Start,
		Duration:        ev.Duration,
		Pitch:           int(ev.Pitch) - MiddleC,
		Accidental:      spelling(ev.Pitch),
		AttackAccent:    Accent(ev.AttackVelocity),
		ReleaseAccent:   Accent(ev.ReleaseVelocity),
		AttackVelocity:  ev.AttackVelocity,
		ReleaseVelocity: ev.ReleaseVelocity,
		StartAdjust:     ev.StartAdjust,
		DurationAdjust:  ev.DurationAdjust,
	}
}

func spelling(key uint8) Accidental {
	if sharps[key%12] {
		return Sharp
	}
	return Natural
}

func (b *builder) linkTies(events []*quantize.Event) {
	for _, ev := range events {
		if ev.Kind != quantize.KindNote || ev.TieTarget == nil {
			continue
		}
		from, ok := b.ties[ev]
		if !ok {
			panic(fmt.Sprintf("notation: tied note at %v was never placed", ev.Start))
		}
		to, ok := b.ties[ev.TieTarget]
		if !ok {
			panic(fmt.Sprintf("notation: tie target at %v was never placed", ev.TieTarget.Start))
		}
		from.Tie = to
	}
}

// TrackName picks a track name from the comments: the first "Track Name"
// comment, else the first plain "Comment". It returns "" when neither exists.
func TrackName(events []*quantize.Event) string {
	var fallback string
	haveFallback := false
	for _, ev := range events {
		if ev.Kind != quantize.KindComment {
			continue
		}
		switch interval.Label(ev.Text) {
		case interval.LabelTrackName:
			return firstLine(ev.Text)
		case interval.LabelComment:
			if !haveFallback {
				fallback, haveFallback = firstLine(ev.Text), true
			}
		}
	}
	return fallback
}

func firstLine(text string) string {
	for _, line := range interval.Body(text) {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
