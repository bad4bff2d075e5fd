package converter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

const midiMagic = "MThd"

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi", ".smf":
		return FormatMIDI
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	if string(data[:4]) == midiMagic {
		return FormatMIDI
	}

	trimmed := strings.TrimSpace(string(data[:min(len(data), 64)]))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}

	return FormatUnknown
}

// ConvertFile imports a MIDI file and writes the result to outputPath: a
// notation view for .json, a quantized Standard MIDI File for .mid.
func (im *Importer) ConvertFile(inputPath, outputPath string) (*Result, error) {
	inputFormat := DetectFormat(inputPath)
	outputFormat := DetectFormat(outputPath)

	if inputFormat == FormatUnknown {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		inputFormat = DetectFormatFromContent(data)
	}
	if inputFormat != FormatMIDI {
		return nil, fmt.Errorf("unsupported input format: %s", inputFormat)
	}
	if outputFormat == FormatUnknown {
		return nil, errors.New("cannot determine output format from filename")
	}

	res, err := im.ImportFile(inputPath)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return res, nil
	}

	var outputData []byte
	switch outputFormat {
	case FormatJSON:
		outputData, err = json.MarshalIndent(NewResultView(res), "", "  ")
	case FormatMIDI:
		outputData, err = ExportMIDI(res, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	im.logger.Info("wrote output", "path", outputPath, "format", outputFormat)
	return res, nil
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"midi -> json",
		"midi -> midi (quantized)",
	}
}
