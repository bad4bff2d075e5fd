package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/midi2score/pkg/converter"
	"github.com/james-see/midi2score/pkg/rawmidi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testMIDI(t *testing.T) []byte {
	t.Helper()
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName("Bass"))
	tr.Add(0, midi.NoteOn(1, 40, 100))
	tr.Add(480, midi.NoteOff(1, 40))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)
	require.NoError(t, s.Add(tr))
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func upload(t *testing.T, target, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	Handler(log.New(io.Discard)).ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := httptest.NewRecorder()
		NewRouter(log.New(io.Discard)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "midi2score")
	}
}

func TestFormats(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(log.New(io.Discard)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/formats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Formats     []string `json:"formats"`
		Conversions []string `json:"conversions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"midi", "json"}, body.Formats)
	assert.Equal(t, converter.GetSupportedConversions(), body.Conversions)
}

func TestImport(t *testing.T) {
	rec := upload(t, "/api/v1/import", "bass.mid", testMIDI(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view converter.ResultView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "bass.mid", view.Source)
	require.Len(t, view.Tracks, 1)
	assert.Equal(t, "Bass", view.Tracks[0].Name)
	assert.Equal(t, uint8(2), view.Tracks[0].Channel)
	assert.Len(t, view.Tracks[0].Chords, 2)
}

func TestImportChannelFilter(t *testing.T) {
	rec := upload(t, "/api/v1/import?channel=1", "bass.mid", testMIDI(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var view converter.ResultView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Empty(t, view.Tracks)
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		data   []byte
		status int
	}{
		{"no file", "/api/v1/import", nil, http.StatusBadRequest},
		{"bad header", "/api/v1/import", []byte("not a midi file at all"), http.StatusUnprocessableEntity},
		{"bad start grid", "/api/v1/import?start_grid=100", []byte("MThd"), http.StatusBadRequest},
		{"start grid not a number", "/api/v1/import?start_grid=x", []byte("MThd"), http.StatusBadRequest},
		{"bad channel", "/api/v1/import?channel=17", []byte("MThd"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, tt.target, "x.mid", tt.data)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	saved := maxUploadSize
	maxUploadSize = 64
	defer func() { maxUploadSize = saved }()

	data := append(testMIDI(t), make([]byte, 64)...)
	for _, target := range []string{"/api/v1/import", "/api/v1/quantize"} {
		rec := upload(t, target, "big.mid", data)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "limit is 64")
	}
}

func TestImportTooLong(t *testing.T) {
	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(1<<20, midi.NoteOff(0, 60))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(1)
	require.NoError(t, s.Add(tr))
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	rec := upload(t, "/api/v1/import", "long.mid", buf.Bytes())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "too long")
}

func TestQuantize(t *testing.T) {
	rec := upload(t, "/api/v1/quantize?start_grid=192", "bass.mid", testMIDI(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "audio/midi", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bass.quantized.mid")
	assert.NotEmpty(t, rec.Header().Get("X-Import-Id"))

	score, err := rawmidi.ParseMIDI(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, score.Tracks, 2)
}

func TestQuantizeEmpty(t *testing.T) {
	rec := upload(t, "/api/v1/quantize?channel=5", "bass.mid", testMIDI(t))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/import", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	Handler(log.New(io.Discard)).ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestQuantizedName(t *testing.T) {
	assert.Equal(t, "song.quantized.mid", quantizedName("song.mid"))
	assert.Equal(t, "song.quantized.mid", quantizedName("dir/song.midi"))
	assert.Equal(t, "converted.quantized.mid", quantizedName(""))
}
