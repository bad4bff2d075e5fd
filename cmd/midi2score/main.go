// Package main is the entry point for the midi2score CLI
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/james-see/midi2score/pkg/api"
	"github.com/james-see/midi2score/pkg/converter"
	"github.com/james-see/midi2score/pkg/quantize"
	"github.com/james-see/midi2score/pkg/rawmidi"
	"github.com/james-see/midi2score/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile string
	verbose    bool
	startGrid  uint32
	channels   []uint
	maxLength  uint64
	jsonOutput bool
	exportTPQ  uint16
	serverPort int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midi2score",
	Short: "Import Standard MIDI Files as quantized notation",
	Long: `midi2score reads Standard MIDI Files and turns every track and channel
into quantized notation: chords, rests, ties and markers on a grid of
64th-note triplets.

Examples:
  midi2score import song.mid
  midi2score import song.mid --json -o song.json
  midi2score quantize song.mid -o song.quantized.mid
  midi2score inspect song.mid
  midi2score convert song.mid -o song.json
  midi2score tui
  midi2score serve --port 8080`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var importCmd = &cobra.Command{
	Use:   "import <input.mid>",
	Short: "Import a MIDI file and print its notation summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var quantizeCmd = &cobra.Command{
	Use:   "quantize <input.mid>",
	Short: "Write a copy of a MIDI file with quantized timing",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuantize,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <input.mid>",
	Short: "Dump the raw decoded events of a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert based on the output file extension (.json or .mid)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Uint32Var(&startGrid, "start-grid", quantize.DefaultStartGrid, "Denominator note starts are rounded to (must divide 192)")
	rootCmd.PersistentFlags().UintSliceVarP(&channels, "channel", "c", nil, "Channels to import, 1-16 (default all)")
	rootCmd.PersistentFlags().Uint64Var(&maxLength, "max-length", converter.DefaultMaxLength, "Longest track accepted, in whole notes (0 for no limit)")

	// import command
	importCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the notation as JSON")
	importCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the output to a file instead of stdout")

	// quantize command
	quantizeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")
	quantizeCmd.Flags().Uint16Var(&exportTPQ, "tpq", 0, "Ticks per quarter note of the output (default: same as input)")

	// convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(quantizeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func newLogger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "midi2score"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func importOptions() []converter.Option {
	opts := []converter.Option{converter.WithStartGrid(startGrid), converter.WithMaxLength(maxLength)}
	if len(channels) > 0 {
		chs := make([]uint8, 0, len(channels))
		for _, ch := range channels {
			if ch > 255 {
				ch = 0 // rejected by NewImporter
			}
			chs = append(chs, uint8(ch))
		}
		opts = append(opts, converter.WithChannels(chs...))
	}
	return opts
}

func newImporter() (*converter.Importer, error) {
	return converter.NewImporter(append(importOptions(), converter.WithLogger(newLogger(os.Stderr)))...)
}

func getOutputPath(input, suffix string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + suffix
}

func runImport(cmd *cobra.Command, args []string) error {
	im, err := newImporter()
	if err != nil {
		return err
	}
	res, err := im.ImportFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(converter.NewResultView(res))
	}
	_, err = fmt.Fprintf(out, "%s (%s)\n%s\n", res.Source, res.ID, tui.Summary(res))
	return err
}

func runQuantize(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".quantized.mid")

	im, err := newImporter()
	if err != nil {
		return err
	}
	res, err := im.ImportFile(input)
	if err != nil {
		return err
	}
	if res.Empty() {
		return fmt.Errorf("%s: nothing to import", input)
	}
	if err := converter.WriteMIDIFile(res, exportTPQ, output); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Quantized %s -> %s\n", input, output)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	score, err := rawmidi.ReadFile(args[0])
	if score == nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "format %d, %s, %d tracks\n", score.Format, score.Timing, len(score.Tracks))
	for i, track := range score.Tracks {
		fmt.Fprintf(out, "track %d: %d events\n", i+1, len(track))
		for _, ev := range track {
			fmt.Fprintf(out, "  %s\n", ev)
		}
	}
	if err != nil {
		return fmt.Errorf("decode stopped (%s): %w", rawmidi.Classify(err), err)
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	im, err := newImporter()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Converting %s -> %s\n", input, outputFile)
	res, err := im.ConvertFile(input, outputFile)
	if err != nil {
		return err
	}
	if res.Empty() {
		return fmt.Errorf("%s: nothing to import", input)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Conversion complete!")
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(importOptions()...)
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.StartServer(serverPort, newLogger(os.Stderr))
}
