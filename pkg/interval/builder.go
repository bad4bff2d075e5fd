package interval

import (
	"fmt"

	"github.com/james-see/midi2score/pkg/rawmidi"
)

// Channels is the number of MIDI channels; channel numbers are 1-based.
const Channels = 16

const pitchCount = 128

// openNote is the per-pitch slot for a sounding note.
type openNote struct {
	on       bool
	start    uint64
	velocity uint8
}

// RawToInterval builds the interval track of one channel (1..16) of a raw
// track. hadActivity reports whether any note on or note off was seen on the
// channel, so callers can skip channels that only carry comments.
//
// A note on for a pitch that is already sounding is dropped, as is a note off
// for a pitch that is not sounding. Notes still sounding at the end of the
// track are closed at the last event.
func RawToInterval(track rawmidi.Track, channel uint8) (res *Track, hadActivity bool) {
	if channel < 1 || channel > Channels {
		panic(fmt.Sprintf("interval: channel %d out of range 1..%d", channel, Channels))
	}

	res = &Track{}
	var slots [pitchCount]openNote
	var lastTick uint64

	for _, ev := range track {
		lastTick = ev.Tick

		if !ev.IsChannel() {
			if text, ok := Comment(ev); ok {
				res.Insert(Event{Kind: KindComment, Start: ev.Tick, Text: text})
			}
			continue
		}
		if ev.Channel()+1 != channel {
			continue
		}

		kind := ev.Kind()
		if kind != rawmidi.StatusNoteOn && kind != rawmidi.StatusNoteOff {
			continue
		}
		if len(ev.Data) < 2 {
			continue
		}
		hadActivity = true

		pitch, velocity := ev.Data[0]&0x7F, ev.Data[1]
		slot := &slots[pitch]

		if kind == rawmidi.StatusNoteOn && velocity > 0 {
			if slot.on {
				continue
			}
			*slot = openNote{on: true, start: ev.Tick, velocity: velocity}
			continue
		}

		// note off, or note on with velocity 0
		if !slot.on {
			continue
		}
		if kind == rawmidi.StatusNoteOn {
			velocity = 0
		}
		res.Insert(Event{
			Kind:            KindNote,
			Start:           slot.start,
			Duration:        ev.Tick - slot.start,
			Pitch:           pitch,
			AttackVelocity:  slot.velocity,
			ReleaseVelocity: velocity,
		})
		slot.on = false
	}

	for pitch := range slots {
		slot := &slots[pitch]
		if !slot.on || lastTick <= slot.start {
			continue
		}
		res.Insert(Event{
			Kind:           KindNote,
			Start:          slot.start,
			Duration:       lastTick - slot.start,
			Pitch:          uint8(pitch),
			AttackVelocity: slot.velocity,
		})
	}

	return res, hadActivity
}
