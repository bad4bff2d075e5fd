// Package rawmidi decodes Standard MIDI Files into a raw event model.
package rawmidi

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Status bytes and meta types the decoder and its consumers care about.
const (
	StatusNoteOff         = 0x80
	StatusNoteOn          = 0x90
	StatusPolyAftertouch  = 0xA0
	StatusControlChange   = 0xB0
	StatusProgramChange   = 0xC0
	StatusChannelPressure = 0xD0
	StatusPitchBend       = 0xE0

	StatusSysEx        = 0xF0
	StatusTimeCode     = 0xF1
	StatusSongPosition = 0xF2
	StatusSongSelect   = 0xF3
	StatusTuneRequest  = 0xF6
	StatusSysExEscape  = 0xF7
	StatusMeta         = 0xFF

	MetaText          = 0x01
	MetaCuePoint      = 0x07
	MetaEndOfTrack    = 0x2F
	MetaTempo         = 0x51
	MetaTimeSignature = 0x58

	statusMask  = 0xF0
	channelMask = 0x0F
	highBit     = 0x80
)

// Format is the SMF file format.
type Format uint16

const (
	FormatSingleTrack Format = 0
	FormatMultiTrack  Format = 1
	FormatMultiSong   Format = 2
)

// Timing describes how ticks map to musical or wall-clock time.
type Timing struct {
	Metered         bool
	TicksPerQuarter uint16
	FramesPerSecond uint8
	TicksPerFrame   uint8
}

func (t Timing) String() string {
	if t.Metered {
		return fmt.Sprintf("%d ticks per quarter note", t.TicksPerQuarter)
	}
	return fmt.Sprintf("%d frames per second, %d ticks per frame", t.FramesPerSecond, t.TicksPerFrame)
}

// Event is one decoded track event.
type Event struct {
	Tick     uint64
	Status   byte
	MetaType byte   // only meaningful when Status is StatusMeta
	Data     []byte // data bytes following the status (and meta type/length)
}

// IsChannel reports whether e is a channel voice message.
func (e Event) IsChannel() bool {
	return e.Status >= highBit && e.Status < StatusSysEx
}

// Kind returns the status with the channel stripped for channel messages.
func (e Event) Kind() byte {
	if e.IsChannel() {
		return e.Status & statusMask
	}
	return e.Status
}

// Channel returns the 0-based channel of a channel message.
func (e Event) Channel() uint8 {
	return e.Status & channelMask
}

// Message returns the event as a wire message: status followed by data for
// channel and system common messages, FF type len data for meta events.
func (e Event) Message() midi.Message {
	switch e.Status {
	case StatusMeta:
		msg := []byte{StatusMeta, e.MetaType}
		msg = append(msg, encodeVarLen(uint32(len(e.Data)))...)
		return midi.Message(append(msg, e.Data...))
	default:
		return midi.Message(append([]byte{e.Status}, e.Data...))
	}
}

func (e Event) String() string {
	if e.Status == StatusMeta {
		return fmt.Sprintf("@%d meta 0x%02X %q", e.Tick, e.MetaType, e.Data)
	}
	if e.Status == StatusSysEx || e.Status == StatusSysExEscape {
		return fmt.Sprintf("@%d sysex 0x%02X % X", e.Tick, e.Status, e.Data)
	}
	return fmt.Sprintf("@%d %s", e.Tick, e.Message().String())
}

// Track is the ordered event list of one MTrk chunk.
type Track []Event

// Score is a decoded file. It is not modified after decoding.
type Score struct {
	Format Format
	Timing Timing
	Tracks []Track
}

func encodeVarLen(v uint32) []byte {
	buf := []byte{byte(v & 0x7F)}
	for v >>= 7; v > 0; v >>= 7 {
		buf = append([]byte{byte(v&0x7F) | highBit}, buf...)
	}
	return buf
}
