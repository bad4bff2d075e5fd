// Package api provides the REST API server for midi2score
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/midi2score/pkg/converter"
	"github.com/james-see/midi2score/pkg/rawmidi"
)

// maxUploadSize bounds the size of uploaded MIDI files.
var maxUploadSize int64 = 16 << 20

// @title midi2score API
// @version 1.0
// @description API for importing Standard MIDI Files as quantized notation
// @host localhost:8080
// @BasePath /api/v1

type server struct {
	logger *log.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(logger *log.Logger) *gin.Engine {
	if logger == nil {
		logger = log.Default()
	}
	s := &server{logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = maxUploadSize

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/formats", listFormats)
		v1.POST("/import", s.handleImport)
		v1.POST("/quantize", s.handleQuantize)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// Handler wraps the router with a permissive CORS policy.
func Handler(logger *log.Logger) http.Handler {
	return cors.AllowAll().Handler(NewRouter(logger))
}

// StartServer starts the API server on the specified port
func StartServer(port int, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	addr := fmt.Sprintf(":%d", port)
	logger.Info("starting API server", "addr", addr)
	return http.ListenAndServe(addr, Handler(logger))
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midi2score",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns a list of supported file formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{string(converter.FormatMIDI), string(converter.FormatJSON)},
		"conversions": converter.GetSupportedConversions(),
	})
}

// handleImport godoc
// @Summary Import a MIDI file
// @Description Upload a MIDI file and receive its quantized notation as JSON
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file to import"
// @Param start_grid query int false "Start quantization denominator (default: 64)"
// @Param channel query []int false "Channels to import (default: all)"
// @Success 200 {object} converter.ResultView
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/import [post]
func (s *server) handleImport(c *gin.Context) {
	res, _, ok := s.importUpload(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, converter.NewResultView(res))
}

// handleQuantize godoc
// @Summary Quantize a MIDI file
// @Description Upload a MIDI file and receive it back with quantized timing
// @Tags import
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MIDI file to quantize"
// @Param start_grid query int false "Start quantization denominator (default: 64)"
// @Param channel query []int false "Channels to keep (default: all)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/quantize [post]
func (s *server) handleQuantize(c *gin.Context) {
	res, filename, ok := s.importUpload(c)
	if !ok {
		return
	}
	if res.Empty() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "nothing to import"})
		return
	}

	data, err := converter.ExportMIDI(res, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Import-Id", res.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", quantizedName(filename)))
	c.Data(http.StatusOK, "audio/midi", data)
}

// importUpload reads the uploaded file and imports it. It writes the error
// response itself and reports ok=false on failure.
func (s *server) importUpload(c *gin.Context) (*converter.Result, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file is %d bytes, limit is %d", header.Size, maxUploadSize),
		})
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, "", false
	}
	if int64(len(data)) > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", maxUploadSize)})
		return nil, "", false
	}

	opts, err := importOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, "", false
	}
	im, err := converter.NewImporter(append(opts, converter.WithLogger(s.logger))...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, "", false
	}

	res, err := im.ImportBytes(data, header.Filename)
	if err != nil {
		status, kind := http.StatusBadRequest, rawmidi.Classify(err).String()
		switch {
		case errors.Is(err, converter.ErrUnsupportedTiming):
			status, kind = http.StatusUnprocessableEntity, "unsupported timing"
		case errors.Is(err, converter.ErrTooLong):
			status, kind = http.StatusUnprocessableEntity, "too long"
		case rawmidi.Classify(err) == rawmidi.BadFormat:
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
		return nil, "", false
	}
	return res, header.Filename, true
}

func importOptions(c *gin.Context) ([]converter.Option, error) {
	var opts []converter.Option
	if v := c.Query("start_grid"); v != "" {
		den, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid start_grid %q", v)
		}
		opts = append(opts, converter.WithStartGrid(uint32(den)))
	}
	if values := c.QueryArray("channel"); len(values) > 0 {
		channels := make([]uint8, 0, len(values))
		for _, v := range values {
			ch, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid channel %q", v)
			}
			channels = append(channels, uint8(ch))
		}
		opts = append(opts, converter.WithChannels(channels...))
	}
	return opts, nil
}

func quantizedName(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "converted"
	}
	return base + ".quantized.mid"
}
