package rawmidi

import "errors"

var (
	// ErrBadFormat is returned for a malformed header, an unknown status byte
	// or a data byte without running status.
	ErrBadFormat = errors.New("bad MIDI format")
	// ErrFileRead is returned when the stream ends in the middle of a record.
	ErrFileRead = errors.New("MIDI file read error")
)

// ErrorKind is the coarse outcome of a decode.
type ErrorKind int

const (
	NoError ErrorKind = iota
	FileReadError
	BadFormat
)

func (k ErrorKind) String() string {
	switch k {
	case NoError:
		return "no error"
	case FileReadError:
		return "file read error"
	case BadFormat:
		return "bad format"
	}
	return "unknown"
}

// Classify maps an error returned by ParseMIDIFile to its ErrorKind.
// Errors that are neither format nor truncation errors count as read errors.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return NoError
	case errors.Is(err, ErrBadFormat):
		return BadFormat
	}
	return FileReadError
}
