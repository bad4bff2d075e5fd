package rawmidi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func header(format, tracks, division uint16) []byte {
	return []byte{
		'M', 'T', 'h', 'd',
		0, 0, 0, 6,
		byte(format >> 8), byte(format),
		byte(tracks >> 8), byte(tracks),
		byte(division >> 8), byte(division),
	}
}

func chunk(id string, body []byte) []byte {
	n := len(body)
	out := append([]byte(id), byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(out, body...)
}

func file(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var endOfTrack = []byte{0x00, 0xFF, 0x2F, 0x00}

func TestParseRunningStatus(t *testing.T) {
	body := file(
		[]byte{0x00, 0xC0, 0x05},             // program change
		[]byte{0x81, 0x40, 0x90, 0x4C, 0x20}, // note on after 192 ticks
		[]byte{0x81, 0x40, 0x4C, 0x00},       // running status, velocity 0
		endOfTrack,
	)
	data := file(header(0, 1, 96), chunk("MTrk", body))

	score, err := ParseMIDI(data)
	require.NoError(t, err)
	require.Len(t, score.Tracks, 1)

	assert.Equal(t, FormatSingleTrack, score.Format)
	assert.True(t, score.Timing.Metered)
	assert.Equal(t, uint16(96), score.Timing.TicksPerQuarter)

	tr := score.Tracks[0]
	require.Len(t, tr, 4)
	assert.Equal(t, Event{Tick: 0, Status: 0xC0, Data: []byte{0x05}}, tr[0])
	assert.Equal(t, Event{Tick: 192, Status: 0x90, Data: []byte{0x4C, 0x20}}, tr[1])
	assert.Equal(t, Event{Tick: 384, Status: 0x90, Data: []byte{0x4C, 0x00}}, tr[2])
	assert.Equal(t, byte(MetaEndOfTrack), tr[3].MetaType)
	assert.Equal(t, uint64(384), tr[3].Tick)
}

func TestParseMissingHeader(t *testing.T) {
	data := file([]byte("RIFF"), []byte{0, 0, 0, 6, 0, 0, 0, 1, 0, 96})

	score, err := ParseMIDI(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadFormat)
	assert.Equal(t, BadFormat, Classify(err))
	assert.Nil(t, score)
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind ErrorKind
	}{
		{"empty", nil, FileReadError},
		{"short header", []byte("MThd\x00\x00"), FileReadError},
		{"bad length", file([]byte("MThd"), []byte{0, 0, 0, 4, 0, 0, 0, 1, 0, 96}), BadFormat},
		{"bad format", header(3, 1, 96), BadFormat},
		{"zero division", header(0, 1, 0), BadFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := ParseMIDI(tt.data)
			if got := Classify(err); got != tt.kind {
				t.Errorf("Classify() = %v, want %v (err %v)", got, tt.kind, err)
			}
			if score != nil {
				t.Errorf("score = %+v, want nil", score)
			}
		})
	}
}

func TestParseTruncatedKeepsDecodedTracks(t *testing.T) {
	good := chunk("MTrk", file([]byte{0x00, 0x90, 0x3C, 0x40, 0x60, 0x80, 0x3C, 0x00}, endOfTrack))
	truncated := file([]byte("MTrk"), []byte{0, 0, 0, 0x20}, []byte{0x00, 0x90, 0x3C})
	data := file(header(1, 2, 96), good, truncated)

	score, err := ParseMIDI(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileRead)
	assert.Equal(t, FileReadError, Classify(err))
	require.NotNil(t, score)
	assert.Len(t, score.Tracks, 1)
}

func TestParseTruncatedEvent(t *testing.T) {
	// chunk length is honest but the note on is cut short
	data := file(header(0, 1, 96), chunk("MTrk", []byte{0x00, 0x90, 0x3C}))

	score, err := ParseMIDI(data)
	assert.ErrorIs(t, err, ErrFileRead)
	require.NotNil(t, score)
	assert.Empty(t, score.Tracks)
}

func TestParseSkipsUnknownChunks(t *testing.T) {
	track := chunk("MTrk", file([]byte{0x00, 0x91, 0x40, 0x50}, endOfTrack))
	data := file(header(1, 1, 480), chunk("XFIH", []byte{1, 2, 3, 4, 5}), track)

	score, err := ParseMIDI(data)
	require.NoError(t, err)
	require.Len(t, score.Tracks, 1)
	assert.Equal(t, uint8(1), score.Tracks[0][0].Channel())
	assert.Equal(t, byte(StatusNoteOn), score.Tracks[0][0].Kind())
}

func TestParseFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"no running status", []byte{0x00, 0x3C, 0x40}},
		{"undefined status", []byte{0x00, 0xF4}},
		{"sysex cancels running status", []byte{
			0x00, 0x90, 0x3C, 0x40,
			0x00, 0xF0, 0x02, 0x7E, 0xF7,
			0x00, 0x3C, 0x00,
		}},
		{"overlong delta", []byte{0x80, 0x80, 0x80, 0x80, 0x00, 0x90, 0x3C, 0x40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := ParseMIDI(file(header(0, 1, 96), chunk("MTrk", tt.body)))
			assert.ErrorIs(t, err, ErrBadFormat)
			require.NotNil(t, score)
			assert.Empty(t, score.Tracks)
		})
	}
}

func TestParseSystemAndMetaEvents(t *testing.T) {
	body := file(
		[]byte{0x00, 0xFF, 0x03, 0x05, 'P', 'i', 'a', 'n', 'o'},
		[]byte{0x00, 0xF0, 0x03, 0x43, 0x12, 0xF7},
		[]byte{0x10, 0xF2, 0x08, 0x01},
		[]byte{0x00, 0xF3, 0x02},
		[]byte{0x00, 0xF6},
		[]byte{0x00, 0xB0, 0x07, 0x64},
		[]byte{0x00, 0xE0, 0x00, 0x40},
		endOfTrack,
	)
	score, err := ParseMIDI(file(header(0, 1, 96), chunk("MTrk", body)))
	require.NoError(t, err)
	tr := score.Tracks[0]
	require.Len(t, tr, 8)

	assert.Equal(t, byte(StatusMeta), tr[0].Status)
	assert.Equal(t, byte(0x03), tr[0].MetaType)
	assert.Equal(t, "Piano", string(tr[0].Data))
	assert.Equal(t, []byte{0x43, 0x12, 0xF7}, tr[1].Data)
	assert.Equal(t, []byte{0x08, 0x01}, tr[2].Data)
	assert.Equal(t, uint64(16), tr[2].Tick)
	assert.Equal(t, []byte{0x02}, tr[3].Data)
	assert.Empty(t, tr[4].Data)
	assert.Equal(t, byte(StatusControlChange), tr[5].Kind())
	assert.Equal(t, byte(StatusPitchBend), tr[6].Kind())
	assert.False(t, tr[0].IsChannel())
	assert.True(t, tr[5].IsChannel())

	assert.Equal(t, midi.Message{0xFF, 0x03, 0x05, 'P', 'i', 'a', 'n', 'o'}, tr[0].Message())
}

func TestParseStopsAtEndOfTrack(t *testing.T) {
	body := file(endOfTrack, []byte{0x00, 0x90, 0x3C, 0x40})
	score, err := ParseMIDI(file(header(0, 1, 96), chunk("MTrk", body)))
	require.NoError(t, err)
	assert.Len(t, score.Tracks[0], 1)
}

func TestParseSMPTETiming(t *testing.T) {
	score, err := ParseMIDI(file(header(0, 1, 0xE728), chunk("MTrk", endOfTrack)))
	require.NoError(t, err)
	assert.False(t, score.Timing.Metered)
	assert.Equal(t, uint8(25), score.Timing.FramesPerSecond)
	assert.Equal(t, uint8(40), score.Timing.TicksPerFrame)
	assert.Equal(t, "25 frames per second, 40 ticks per frame", score.Timing.String())
}

func TestParseGomidiWrittenFile(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName("lead"))
	tr.Add(0, midi.NoteOn(2, 60, 100))
	tr.Add(96, midi.NoteOff(2, 60))
	tr.Add(0, midi.NoteOn(2, 62, 90))
	tr.Add(48, midi.NoteOff(2, 62))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)
	require.NoError(t, s.Add(tr))
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	score, err := ParseMIDI(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, score.Tracks, 1)

	var notes []Event
	for _, ev := range score.Tracks[0] {
		if ev.IsChannel() {
			notes = append(notes, ev)
		}
	}
	require.Len(t, notes, 4)
	assert.Equal(t, []uint64{0, 96, 96, 144}, []uint64{notes[0].Tick, notes[1].Tick, notes[2].Tick, notes[3].Tick})
	for _, ev := range notes {
		assert.Equal(t, uint8(2), ev.Channel())
	}
	assert.Equal(t, byte(StatusNoteOn), notes[2].Kind())
	assert.Equal(t, byte(62), notes[2].Data[0])
}

func TestEncodeVarLen(t *testing.T) {
	assert.Equal(t, []byte{0x00}, encodeVarLen(0))
	assert.Equal(t, []byte{0x7F}, encodeVarLen(0x7F))
	assert.Equal(t, []byte{0x81, 0x00}, encodeVarLen(0x80))
	assert.Equal(t, []byte{0x81, 0x40}, encodeVarLen(192))
}
