package rawmidi

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	headerChunkID   = "MThd"
	trackChunkID    = "MTrk"
	headerDataSize  = 6
	maxVarLenBytes  = 4
	smpteFlag       = 0x8000
	chunkHeaderSize = 8
)

var errTruncated = errors.New("unexpected end of track data")

// ReadFile decodes the Standard MIDI File at filename.
func ReadFile(filename string) (*Score, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	defer func() { _ = f.Close() }()
	return ParseMIDIFile(f)
}

// ParseMIDI decodes a Standard MIDI File held in memory.
func ParseMIDI(data []byte) (*Score, error) {
	return ParseMIDIFile(bytes.NewReader(data))
}

// ParseMIDIFile decodes a Standard MIDI File from r.
//
// On failure the returned score is still non-nil once the header has been
// read and holds every track decoded before the error, so callers can salvage
// a partial import. The error wraps ErrBadFormat or ErrFileRead.
func ParseMIDIFile(r io.Reader) (*Score, error) {
	br := bufio.NewReader(r)

	score, trackCount, err := readHeader(br)
	if err != nil {
		return score, err
	}

	for len(score.Tracks) < trackCount {
		id, length, err := readChunkHeader(br)
		if err != nil {
			return score, fmt.Errorf("%w: chunk header after track %d: %v", ErrFileRead, len(score.Tracks), err)
		}

		if id != trackChunkID {
			// unknown chunk types are skipped by length
			if _, err := io.CopyN(io.Discard, br, int64(length)); err != nil {
				return score, fmt.Errorf("%w: skipping %q chunk: %v", ErrFileRead, id, err)
			}
			continue
		}

		var body bytes.Buffer
		if _, err := io.CopyN(&body, br, int64(length)); err != nil {
			return score, fmt.Errorf("%w: track %d body: %v", ErrFileRead, len(score.Tracks), err)
		}

		track, err := parseTrack(body.Bytes())
		if err != nil {
			return score, fmt.Errorf("track %d: %w", len(score.Tracks), err)
		}
		score.Tracks = append(score.Tracks, track)
	}

	return score, nil
}

func readHeader(r io.Reader) (*Score, int, error) {
	var id [4]byte
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: header: %v", ErrFileRead, err)
	}
	if string(id[:]) != headerChunkID {
		return nil, 0, fmt.Errorf("%w: missing %s signature, got %q", ErrBadFormat, headerChunkID, id[:])
	}

	var hdr struct {
		Length     uint32
		Format     uint16
		TrackCount uint16
		Division   uint16
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, 0, fmt.Errorf("%w: header: %v", ErrFileRead, err)
	}
	if hdr.Length < headerDataSize {
		return nil, 0, fmt.Errorf("%w: header length %d, want %d", ErrBadFormat, hdr.Length, headerDataSize)
	}
	if hdr.Format > uint16(FormatMultiSong) {
		return nil, 0, fmt.Errorf("%w: unknown file format %d", ErrBadFormat, hdr.Format)
	}
	if extra := int64(hdr.Length - headerDataSize); extra > 0 {
		if _, err := io.CopyN(io.Discard, r, extra); err != nil {
			return nil, 0, fmt.Errorf("%w: header: %v", ErrFileRead, err)
		}
	}

	timing := Timing{}
	if hdr.Division&smpteFlag == 0 {
		timing.Metered = true
		timing.TicksPerQuarter = hdr.Division
		if timing.TicksPerQuarter == 0 {
			return nil, 0, fmt.Errorf("%w: zero ticks per quarter note", ErrBadFormat)
		}
	} else {
		timing.FramesPerSecond = uint8(256 - int(hdr.Division>>8))
		timing.TicksPerFrame = uint8(hdr.Division & 0xFF)
	}

	score := &Score{
		Format: Format(hdr.Format),
		Timing: timing,
		Tracks: make([]Track, 0, hdr.TrackCount),
	}
	return score, int(hdr.TrackCount), nil
}

func readChunkHeader(r io.Reader) (string, uint32, error) {
	var buf [chunkHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", 0, err
	}
	return string(buf[:4]), binary.BigEndian.Uint32(buf[4:]), nil
}

// trackParser walks the body of one MTrk chunk.
type trackParser struct {
	data    []byte
	pos     int
	tick    uint64
	running byte
}

func parseTrack(data []byte) (Track, error) {
	p := &trackParser{data: data}
	var track Track

	for p.pos < len(p.data) {
		ev, err := p.next()
		if err != nil {
			if errors.Is(err, errTruncated) {
				return nil, fmt.Errorf("%w: %v at offset %d", ErrFileRead, err, p.pos)
			}
			return nil, err
		}
		track = append(track, ev)
		if ev.Status == StatusMeta && ev.MetaType == MetaEndOfTrack {
			break
		}
	}

	return track, nil
}

func (p *trackParser) next() (Event, error) {
	delta, err := p.varLen()
	if err != nil {
		return Event{}, err
	}
	p.tick += uint64(delta)

	b, err := p.peek()
	if err != nil {
		return Event{}, err
	}

	status := b
	if b&highBit != 0 {
		p.pos++
	} else {
		if p.running == 0 {
			return Event{}, fmt.Errorf("%w: data byte 0x%02X without running status at offset %d", ErrBadFormat, b, p.pos)
		}
		status = p.running
	}

	ev := Event{Tick: p.tick, Status: status}

	switch {
	case status < StatusSysEx:
		p.running = status
		ev.Data, err = p.take(channelDataLen(status))
	case status == StatusSysEx || status == StatusSysExEscape:
		p.running = 0
		ev.Data, err = p.varLenPayload()
	case status == StatusMeta:
		if ev.MetaType, err = p.readByte(); err == nil {
			ev.Data, err = p.varLenPayload()
		}
	case status == StatusTimeCode || status == StatusSongSelect:
		ev.Data, err = p.take(1)
	case status == StatusSongPosition:
		ev.Data, err = p.take(2)
	case status == StatusTuneRequest || status >= 0xF8:
		ev.Data = nil
	default:
		return Event{}, fmt.Errorf("%w: unknown status 0x%02X at offset %d", ErrBadFormat, status, p.pos-1)
	}

	return ev, err
}

func channelDataLen(status byte) int {
	switch status & statusMask {
	case StatusProgramChange, StatusChannelPressure:
		return 1
	}
	return 2
}

func (p *trackParser) peek() (byte, error) {
	if p.pos >= len(p.data) {
		return 0, errTruncated
	}
	return p.data[p.pos], nil
}

func (p *trackParser) readByte() (byte, error) {
	b, err := p.peek()
	if err == nil {
		p.pos++
	}
	return b, err
}

func (p *trackParser) take(n int) ([]byte, error) {
	if p.pos+n > len(p.data) {
		p.pos = len(p.data)
		return nil, errTruncated
	}
	out := p.data[p.pos : p.pos+n : p.pos+n]
	p.pos += n
	return out, nil
}

// varLen decodes a variable-length quantity: big-endian 7-bit groups with
// the high bit set on every byte but the last.
func (p *trackParser) varLen() (uint32, error) {
	var v uint32
	for i := 0; i < maxVarLenBytes; i++ {
		b, err := p.readByte()
		if err != nil {
			return 0, err
		}
		v = v<<7 | uint32(b&0x7F)
		if b&highBit == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: variable-length quantity longer than %d bytes", ErrBadFormat, maxVarLenBytes)
}

func (p *trackParser) varLenPayload() ([]byte, error) {
	n, err := p.varLen()
	if err != nil {
		return nil, err
	}
	return p.take(int(n))
}
