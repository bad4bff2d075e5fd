package converter

import (
	"github.com/james-see/midi2score/pkg/fraction"
	"github.com/james-see/midi2score/pkg/notation"
)

// EntryView is the JSON form of a note or rest. Ties refer to entry ids.
type EntryView struct {
	ID              int               `json:"id"`
	Kind            string            `json:"kind"`
	Duration        string            `json:"duration"`
	Length          fraction.Fraction `json:"length"`
	Name            string            `json:"name,omitempty"`
	Key             uint8             `json:"key,omitempty"`
	Pitch           int               `json:"pitch,omitempty"`
	AttackVelocity  uint8             `json:"attack_velocity,omitempty"`
	ReleaseVelocity uint8             `json:"release_velocity,omitempty"`
	AttackAccent    float64           `json:"attack_accent,omitempty"`
	ReleaseAccent   float64           `json:"release_accent,omitempty"`
	StartAdjust     float64           `json:"start_adjust,omitempty"`
	DurationAdjust  float64           `json:"duration_adjust,omitempty"`
	TieTo           *int              `json:"tie_to,omitempty"`
	Filler          bool              `json:"filler,omitempty"`
}

type ChordView struct {
	Start    fraction.Fraction `json:"start"`
	Duration fraction.Fraction `json:"duration"`
	Entries  []EntryView       `json:"entries"`
}

type MarkerView struct {
	Start fraction.Fraction `json:"start"`
	Text  string            `json:"text"`
}

// TrackView is the JSON form of an imported track.
type TrackView struct {
	Name           string       `json:"name"`
	SourceTrack    int          `json:"source_track"`
	Channel        uint8        `json:"channel"`
	ReleaseFromEnd bool         `json:"release_from_end"`
	End            string       `json:"end"`
	Chords         []ChordView  `json:"chords"`
	Markers        []MarkerView `json:"markers"`
}

// ResultView is the JSON form of an import.
type ResultView struct {
	ID              string      `json:"id"`
	Source          string      `json:"source,omitempty"`
	Format          uint16      `json:"format"`
	TicksPerQuarter uint16      `json:"ticks_per_quarter"`
	StartGrid       uint32      `json:"start_grid"`
	Tempo           float64     `json:"tempo,omitempty"`
	Partial         bool        `json:"partial"`
	Error           string      `json:"error,omitempty"`
	Tracks          []TrackView `json:"tracks"`
}

// NewResultView builds the JSON view of res.
func NewResultView(res *Result) ResultView {
	v := ResultView{
		ID:              res.ID,
		Source:          res.Source,
		Format:          uint16(res.Format),
		TicksPerQuarter: res.TicksPerQuarter,
		StartGrid:       res.StartGrid,
		Tempo:           res.Tempo,
		Partial:         res.Partial,
		Tracks:          make([]TrackView, 0, len(res.Tracks)),
	}
	if res.DecodeErr != nil {
		v.Error = res.DecodeErr.Error()
	}
	for _, t := range res.Tracks {
		v.Tracks = append(v.Tracks, NewTrackView(t))
	}
	return v
}

// NewTrackView builds the JSON view of t. Entry ids are assigned in chord
// order starting at 1.
func NewTrackView(t ImportedTrack) TrackView {
	n := t.Notation
	v := TrackView{
		Name:           n.Name,
		SourceTrack:    t.SourceTrack,
		Channel:        t.Channel,
		ReleaseFromEnd: n.ReleaseFromEnd,
		End:            n.End().String(),
		Chords:         make([]ChordView, 0, len(n.Chords)),
		Markers:        make([]MarkerView, 0, len(n.Markers)),
	}

	ids := make(map[*notation.Entry]int)
	for _, c := range n.Chords {
		for _, e := range c.Entries {
			ids[e] = len(ids) + 1
		}
	}

	for _, c := range n.Chords {
		cv := ChordView{Start: c.Start, Duration: c.Duration}
		for _, e := range c.Entries {
			cv.Entries = append(cv.Entries, entryView(e, ids))
		}
		v.Chords = append(v.Chords, cv)
	}
	for _, m := range n.Markers {
		v.Markers = append(v.Markers, MarkerView{Start: m.Start, Text: m.Text})
	}
	return v
}

func entryView(e *notation.Entry, ids map[*notation.Entry]int) EntryView {
	ev := EntryView{
		ID:       ids[e],
		Kind:     e.Kind.String(),
		Duration: e.Duration.String(),
		Length:   e.Duration.Fraction(),
		Filler:   e.Filler,
	}
	if e.Kind == notation.KindRest {
		return ev
	}
	ev.Name = e.Name()
	ev.Key = e.Key()
	ev.Pitch = e.Pitch
	ev.AttackVelocity = e.AttackVelocity
	ev.ReleaseVelocity = e.ReleaseVelocity
	ev.AttackAccent = e.AttackAccent
	ev.ReleaseAccent = e.ReleaseAccent
	ev.StartAdjust = e.StartAdjust
	ev.DurationAdjust = e.DurationAdjust
	if e.Tie != nil {
		id := ids[e.Tie]
		ev.TieTo = &id
	}
	return ev
}
