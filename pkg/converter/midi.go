package converter

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/midi2score/pkg/fraction"
	"github.com/james-see/midi2score/pkg/interval"
	"github.com/james-see/midi2score/pkg/notation"
)

// DefaultTempo is written when the source file carries no tempo.
const DefaultTempo = 120.0

// event ordering at equal ticks: meta text, then note offs, then note ons
const (
	orderMeta = iota
	orderNoteOff
	orderNoteOn
)

type timedMessage struct {
	tick  uint32
	order int
	msg   []byte
}

// wholeTicks converts a whole-note fraction to ticks, rounding half up.
func wholeTicks(f fraction.Fraction, ticksPerQuarter uint16) uint32 {
	n, d := f.Ratio()
	whole := 4 * int64(ticksPerQuarter)
	return uint32((2*n*whole + d) / (2 * d))
}

// ExportMIDI writes the imported tracks as a format 1 Standard MIDI File
// with quantized timing. A ticksPerQuarter of 0 keeps the source resolution.
//
// Tied notes are merged into one sounding note. Track names are written as
// sequence names and markers as text events.
func ExportMIDI(res *Result, ticksPerQuarter uint16) ([]byte, error) {
	if res == nil {
		return nil, errors.New("nil import result")
	}
	if res.Empty() {
		return nil, errors.New("no tracks to export")
	}
	if ticksPerQuarter == 0 {
		ticksPerQuarter = res.TicksPerQuarter
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	tempo := res.Tempo
	if tempo <= 0 {
		tempo = DefaultTempo
	}
	var conductor smf.Track
	conductor.Add(0, smf.MetaTempo(tempo))
	conductor.Add(0, smf.MetaTimeSig(4, 4, 24, 8))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return nil, fmt.Errorf("failed to add conductor track: %w", err)
	}

	for _, t := range res.Tracks {
		track := exportTrack(t, ticksPerQuarter)
		if err := s.Add(track); err != nil {
			return nil, fmt.Errorf("failed to add track %q: %w", t.Name(), err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

func exportTrack(t ImportedTrack, ticksPerQuarter uint16) smf.Track {
	channel := t.Channel - 1
	var events []timedMessage

	for _, m := range t.Notation.Markers {
		if msg := markerMessage(m.Text); msg != nil {
			events = append(events, timedMessage{wholeTicks(m.Start, ticksPerQuarter), orderMeta, msg})
		}
	}

	targets := make(map[*notation.Entry]bool)
	for _, n := range t.Notation.Notes() {
		if n.Tie != nil {
			targets[n.Tie] = true
		}
	}
	for _, n := range t.Notation.Notes() {
		if targets[n] {
			continue
		}
		last := n
		for last.Tie != nil {
			last = last.Tie
		}
		start := wholeTicks(n.Start, ticksPerQuarter)
		end := wholeTicks(last.Start.Add(last.Duration.Fraction()), ticksPerQuarter)
		if end <= start {
			end = start + 1
		}
		velocity := n.AttackVelocity
		if velocity == 0 {
			velocity = 64
		}
		events = append(events,
			timedMessage{start, orderNoteOn, midi.NoteOn(channel, n.Key(), velocity)},
			timedMessage{end, orderNoteOff, midi.NoteOff(channel, n.Key())},
		)
	}

	slices.SortStableFunc(events, func(a, b timedMessage) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(t.Name()))
	var current uint32
	for _, ev := range events {
		track.Add(ev.tick-current, ev.msg)
		current = ev.tick
	}
	track.Close(0)
	return track
}

// markerMessage turns a rendered comment back into a meta message. Track
// names are skipped since they become the sequence name.
func markerMessage(text string) []byte {
	body := strings.Join(interval.Body(text), "\n")
	switch interval.Label(text) {
	case interval.LabelTrackName:
		return nil
	case interval.LabelLyric:
		return smf.MetaLyric(body)
	case interval.LabelMarker:
		return smf.MetaMarker(body)
	case interval.LabelComment:
		return smf.MetaText(body)
	}
	return smf.MetaText(text)
}

// WriteMIDIFile exports res to filename.
func WriteMIDIFile(res *Result, ticksPerQuarter uint16, filename string) error {
	data, err := ExportMIDI(res, ticksPerQuarter)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
