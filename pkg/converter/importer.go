package converter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/james-see/midi2score/pkg/interval"
	"github.com/james-see/midi2score/pkg/notation"
	"github.com/james-see/midi2score/pkg/quantize"
	"github.com/james-see/midi2score/pkg/rawmidi"
)

// ErrUnsupportedTiming is returned for files using SMPTE (frame based) timing.
var ErrUnsupportedTiming = errors.New("SMPTE timing is not supported")

// ErrInvalidStartGrid is returned by NewImporter for a start grid that does
// not divide the base grid.
var ErrInvalidStartGrid = errors.New("invalid start grid")

// ErrTooLong is returned for a track that runs past the importer's maximum
// length. Each whole note of a long note or gap becomes its own event.
var ErrTooLong = errors.New("track too long")

// DefaultMaxLength is the default maximum track length in whole notes.
const DefaultMaxLength = 4096

// Importer runs the decode, interval, quantize and notation stages.
type Importer struct {
	logger    *log.Logger
	startGrid uint32
	channels  []uint8
	maxLength uint64
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(im *Importer) {
		im.logger = logger
	}
}

// WithStartGrid sets the denominator note starts are rounded to.
func WithStartGrid(den uint32) Option {
	return func(im *Importer) {
		im.startGrid = den
	}
}

// WithChannels restricts the import to the given channels (1..16).
func WithChannels(channels ...uint8) Option {
	return func(im *Importer) {
		im.channels = append([]uint8(nil), channels...)
	}
}

// WithMaxLength sets the maximum track length in whole notes. Zero removes
// the limit.
func WithMaxLength(wholes uint64) Option {
	return func(im *Importer) {
		im.maxLength = wholes
	}
}

func allChannels() []uint8 {
	res := make([]uint8, interval.Channels)
	for i := range res {
		res[i] = uint8(i + 1)
	}
	return res
}

// NewImporter creates an Importer.
func NewImporter(opts ...Option) (*Importer, error) {
	im := &Importer{
		startGrid: quantize.DefaultStartGrid,
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(im)
	}

	if im.logger == nil {
		im.logger = log.Default()
	}
	if !quantize.ValidStartGrid(im.startGrid) {
		return nil, fmt.Errorf("%w: %d does not divide %d", ErrInvalidStartGrid, im.startGrid, quantize.BaseGrid)
	}
	if len(im.channels) == 0 {
		im.channels = allChannels()
	}
	for _, ch := range im.channels {
		if ch < 1 || ch > interval.Channels {
			return nil, fmt.Errorf("channel %d out of range 1..%d", ch, interval.Channels)
		}
	}
	return im, nil
}

// ImportFile imports the MIDI file at path.
func (im *Importer) ImportFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MIDI file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return im.Import(f, filepath.Base(path))
}

// ImportBytes imports a MIDI file held in memory.
func (im *Importer) ImportBytes(data []byte, source string) (*Result, error) {
	return im.Import(bytes.NewReader(data), source)
}

// Import decodes r and builds one notation track per MIDI track and channel
// with note activity.
//
// A decode error is returned only when no track could be recovered. If some
// tracks were decoded before the error, they are imported and the result is
// marked Partial. A file without note activity yields an empty result and no
// error.
func (im *Importer) Import(r io.Reader, source string) (*Result, error) {
	logger := im.logger.With("source", source)

	score, err := rawmidi.ParseMIDIFile(r)
	if score == nil {
		return nil, fmt.Errorf("failed to decode MIDI: %w", err)
	}
	if !score.Timing.Metered {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTiming, score.Timing)
	}
	if err != nil && len(score.Tracks) == 0 {
		return nil, fmt.Errorf("failed to decode MIDI: %w", err)
	}

	res := &Result{
		ID:              uuid.NewString(),
		Source:          source,
		Format:          score.Format,
		TicksPerQuarter: score.Timing.TicksPerQuarter,
		StartGrid:       im.startGrid,
		Tempo:           firstTempo(score),
	}
	if err != nil {
		res.Partial = true
		res.DecodeErr = err
		logger.Warn("decode stopped early, importing recovered tracks",
			"kind", rawmidi.Classify(err), "tracks", len(score.Tracks), "err", err)
	}

	for i, track := range score.Tracks {
		for _, ch := range im.channels {
			it, active := interval.RawToInterval(track, ch)
			if !active {
				continue
			}
			if err := im.checkLength(it, res.TicksPerQuarter); err != nil {
				return nil, fmt.Errorf("track %d channel %d: %w", i, ch, err)
			}
			q := quantize.IntervalToQuantized(it, res.TicksPerQuarter, quantize.WithStartGrid(im.startGrid))
			n := notation.QuantizedToNote(q)
			if n.Name == "" {
				n.Name = fallbackName(i, ch)
			}
			res.Tracks = append(res.Tracks, ImportedTrack{SourceTrack: i, Channel: ch, Notation: n})
			logger.Debug("imported track", "track", i, "channel", ch, "name", n.Name,
				"chords", len(n.Chords), "markers", len(n.Markers))
		}
	}

	if res.Empty() {
		logger.Info("nothing to import")
	} else {
		logger.Info("import finished", "id", res.ID, "tracks", len(res.Tracks), "partial", res.Partial)
	}
	return res, nil
}

func (im *Importer) checkLength(it *interval.Track, ticksPerQuarter uint16) error {
	if im.maxLength == 0 {
		return nil
	}
	limit := im.maxLength * 4 * uint64(ticksPerQuarter)
	if end := it.End(); end > limit {
		return fmt.Errorf("%w: ends at tick %d, limit is %d whole notes (%d ticks)", ErrTooLong, end, im.maxLength, limit)
	}
	return nil
}

// firstTempo returns the BPM of the first tempo event in the score.
func firstTempo(score *rawmidi.Score) float64 {
	for _, track := range score.Tracks {
		for _, ev := range track {
			if ev.Status != rawmidi.StatusMeta || ev.MetaType != rawmidi.MetaTempo || len(ev.Data) < 3 {
				continue
			}
			us := uint32(ev.Data[0])<<16 | uint32(ev.Data[1])<<8 | uint32(ev.Data[2])
			if us > 0 {
				return 60000000.0 / float64(us)
			}
		}
	}
	return 0
}
