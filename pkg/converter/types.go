// Package converter runs the MIDI import pipeline and converts its results
// to JSON and back to quantized Standard MIDI Files.
package converter

import (
	"fmt"

	"github.com/james-see/midi2score/pkg/notation"
	"github.com/james-see/midi2score/pkg/rawmidi"
)

// ImportedTrack is the notation of one MIDI track and channel combination.
type ImportedTrack struct {
	SourceTrack int   // index of the MTrk chunk
	Channel     uint8 // 1..16
	Notation    *notation.Track
}

// Name returns the track name.
func (t ImportedTrack) Name() string {
	return t.Notation.Name
}

// Result holds the outcome of one import
type Result struct {
	ID              string
	Source          string
	Format          rawmidi.Format
	TicksPerQuarter uint16
	StartGrid       uint32
	Tempo           float64 // BPM of the first tempo event, 0 if none
	Tracks          []ImportedTrack

	// Partial is set when decoding failed after some tracks were recovered.
	// DecodeErr holds the decode error in that case.
	Partial   bool
	DecodeErr error
}

// Empty reports whether the import found nothing to import.
func (r *Result) Empty() bool {
	return len(r.Tracks) == 0
}

// fallbackName names a track that carries neither a track name nor a comment.
func fallbackName(sourceTrack int, channel uint8) string {
	return fmt.Sprintf("Track %d Ch %d", sourceTrack+1, channel)
}
