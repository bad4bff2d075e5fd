package interval

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/james-see/midi2score/pkg/rawmidi"
	"golang.org/x/text/encoding/charmap"
)

// Comment category labels. A rendered comment starts with "<label>:".
const (
	LabelComment      = "Comment"
	LabelCopyright    = "Copyright"
	LabelTrackName    = "Track Name"
	LabelInstrument   = "Instrument"
	LabelLyric        = "Lyric"
	LabelMarker       = "Marker"
	LabelCuePoint     = "Cue Point"
	LabelSysEx        = "System Exclusive"
	LabelSysExCont    = "System Exclusive (continued)"
	LabelSongPosition = "Song Position"
	LabelSongSelect   = "Song Select"
	LabelTuneRequest  = "Tune Request"
)

var metaLabels = map[byte]string{
	0x01: LabelComment,
	0x02: LabelCopyright,
	0x03: LabelTrackName,
	0x04: LabelInstrument,
	0x05: LabelLyric,
	0x06: LabelMarker,
	0x07: LabelCuePoint,
}

const (
	sysExEnd      = 0xF7
	hexDumpWidth  = 16
	extendedManuf = 0x00
)

var manufacturers = map[string]string{
	"41":       "Roland",
	"42":       "Korg",
	"43":       "Yamaha",
	"7E":       "Universal Non-Real Time",
	"7F":       "Universal Real Time",
	"00 20 32": "Behringer",
	"00 20 29": "Novation",
}

// Comment renders a non-channel event as a multi-line comment. ok is false
// for events that are not preserved.
func Comment(ev rawmidi.Event) (text string, ok bool) {
	switch ev.Status {
	case rawmidi.StatusMeta:
		label, known := metaLabels[ev.MetaType]
		if !known {
			return "", false
		}
		return render(label, splitLines(decodeText(ev.Data))...), true
	case rawmidi.StatusSysEx:
		return render(LabelSysEx, describeSysEx(ev.Data)...), true
	case rawmidi.StatusSysExEscape:
		return render(LabelSysExCont, hexDump(ev.Data)...), true
	case rawmidi.StatusSongPosition:
		if len(ev.Data) < 2 {
			return "", false
		}
		beat := int(ev.Data[0]&0x7F) | int(ev.Data[1]&0x7F)<<7
		return render(LabelSongPosition, fmt.Sprintf("beat %d", beat)), true
	case rawmidi.StatusSongSelect:
		if len(ev.Data) < 1 {
			return "", false
		}
		return render(LabelSongSelect, fmt.Sprintf("song %d", ev.Data[0]&0x7F)), true
	case rawmidi.StatusTuneRequest:
		return render(LabelTuneRequest), true
	}
	return "", false
}

// Label returns the category label of a rendered comment.
func Label(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	return strings.TrimSuffix(first, ":")
}

// Body returns the lines of a rendered comment after its label.
func Body(text string) []string {
	_, rest, found := strings.Cut(text, "\n")
	if !found {
		return nil
	}
	return strings.Split(rest, "\n")
}

func render(label string, lines ...string) string {
	var s strings.Builder
	s.WriteString(label)
	s.WriteString(":")
	for _, line := range lines {
		s.WriteString("\n")
		s.WriteString(line)
	}
	return s.String()
}

// decodeText returns meta text as UTF-8. Text that is not valid UTF-8 is
// assumed to be Windows-1252, which most sequencers write.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "?")
	}
	return string(out)
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// ExtractManufacturerID returns the manufacturer id of a SysEx payload
// (the bytes after F0): one byte, or three when the first byte is 00.
func ExtractManufacturerID(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, errors.New("sysex payload too short for manufacturer ID")
	}
	if payload[0] == extendedManuf {
		if len(payload) < 3 {
			return nil, errors.New("sysex payload too short for extended manufacturer ID")
		}
		return payload[:3], nil
	}
	return payload[:1], nil
}

func describeSysEx(payload []byte) []string {
	var lines []string
	if id, err := ExtractManufacturerID(payload); err == nil {
		key := fmt.Sprintf("% X", id)
		if name, ok := manufacturers[key]; ok {
			lines = append(lines, fmt.Sprintf("manufacturer %s (%s)", key, name))
		} else {
			lines = append(lines, fmt.Sprintf("manufacturer %s", key))
		}
	}
	body := payload
	if len(body) > 0 && body[len(body)-1] == sysExEnd {
		body = body[:len(body)-1]
	}
	return append(lines, hexDump(body)...)
}

func hexDump(data []byte) []string {
	var lines []string
	for i := 0; i < len(data); i += hexDumpWidth {
		end := i + hexDumpWidth
		if end > len(data) {
			end = len(data)
		}
		lines = append(lines, fmt.Sprintf("%04X: % X", i, data[i:end]))
	}
	return lines
}
