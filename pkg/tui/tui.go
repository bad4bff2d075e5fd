// Package tui provides a terminal user interface for midi2score
package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/james-see/midi2score/pkg/converter"
)

// Manuscript color scheme: ink on paper with a red pencil for errors
var (
	inkBlue    = lipgloss.Color("#4F7CAC")
	paperWhite = lipgloss.Color("#F5F1E6")
	pencilGray = lipgloss.Color("#A0A0A0")
	darkGray   = lipgloss.Color("#2B2B2B")
	redPencil  = lipgloss.Color("#D64545")
	markerGold = lipgloss.Color("#E3B341")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(paperWhite).
			Background(inkBlue).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(pencilGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(inkBlue).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(markerGold).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(redPencil).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(inkBlue).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(markerGold)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(inkBlue).
			Background(darkGray).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateImporting
	StateResult
)

// Action is what a menu item does with the picked file.
type Action int

const (
	ActionSummary Action = iota
	ActionQuantize
	ActionJSON
	ActionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      Action
}

var menuItems = []MenuItem{
	{Title: "Import", Description: "Import a MIDI file and show the notation summary", Action: ActionSummary},
	{Title: "Quantize", Description: "Write <name>.quantized.mid with quantized timing", Action: ActionQuantize},
	{Title: "Export JSON", Description: "Write <name>.json with the notation of every track", Action: ActionJSON},
	{Title: "Exit", Description: "Exit the application", Action: ActionExit},
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	options      []converter.Option
	selectedFile string
	outputFile   string
	action       MenuItem
	result       *converter.Result
	err          error
	width        int
	height       int
}

// importDoneMsg signals import completion
type importDoneMsg struct {
	result     *converter.Result
	outputFile string
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model. The options are passed to every import.
func New(opts ...converter.Option) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi", ".smf"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(inkBlue)

	return Model{
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
		options:    opts,
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// the file picker needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateImporting
			return m, tea.Batch(m.spinner.Tick, m.performImport())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case importDoneMsg:
		m.state = StateResult
		m.result = msg.result
		m.outputFile = msg.outputFile
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		if menuItems[m.menuIndex].Action == ActionExit {
			return m, tea.Quit
		}
		m.action = menuItems[m.menuIndex]
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.result = nil
		m.selectedFile = ""
		m.outputFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performImport() tea.Cmd {
	path, action, opts := m.selectedFile, m.action.Action, m.options
	return func() tea.Msg {
		return runImport(path, action, opts)
	}
}

// OutputPath returns the file an action writes for input.
func OutputPath(input string, action Action) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	switch action {
	case ActionQuantize:
		return base + ".quantized.mid"
	case ActionJSON:
		return base + ".json"
	}
	return ""
}

func runImport(path string, action Action, opts []converter.Option) importDoneMsg {
	// the alt screen owns the terminal, so logs are dropped unless a logger is given
	im, err := converter.NewImporter(append([]converter.Option{converter.WithLogger(log.New(io.Discard))}, opts...)...)
	if err != nil {
		return importDoneMsg{err: err}
	}

	res, err := im.ImportFile(path)
	if err != nil {
		return importDoneMsg{err: err}
	}
	if res.Empty() || action == ActionSummary {
		return importDoneMsg{result: res}
	}

	var data []byte
	switch action {
	case ActionQuantize:
		data, err = converter.ExportMIDI(res, 0)
	case ActionJSON:
		data, err = json.MarshalIndent(converter.NewResultView(res), "", "  ")
	}
	if err != nil {
		return importDoneMsg{result: res, err: err}
	}

	outputFile := OutputPath(path, action)
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return importDoneMsg{result: res, err: err}
	}
	return importDoneMsg{result: res, outputFile: outputFile}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateImporting:
		s.WriteString(m.viewImporting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT ACTION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(markerGold).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT MIDI FILE "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewImporting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" IMPORTING "))
	s.WriteString("\n\n")
	fmt.Fprintf(&s, "%s Importing %s...\n", m.spinner.View(), filepath.Base(m.selectedFile))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s", m.action.Title)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Import failed: %s", m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Import complete!"))
		s.WriteString("\n\n")
		fmt.Fprintf(&s, "Input:  %s\n", filepath.Base(m.selectedFile))
		if m.outputFile != "" {
			fmt.Fprintf(&s, "Output: %s\n", filepath.Base(m.outputFile))
		}
		s.WriteString("\n")
		s.WriteString(Summary(m.result))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

// Summary renders one line per imported track.
func Summary(res *converter.Result) string {
	if res == nil {
		return ""
	}
	var s strings.Builder
	if res.Partial {
		s.WriteString(warnStyle.Render(fmt.Sprintf("! file is damaged, imported what could be read: %v", res.DecodeErr)))
		s.WriteString("\n")
	}
	if res.Empty() {
		s.WriteString(warnStyle.Render("Nothing to import"))
		return s.String()
	}
	fmt.Fprintf(&s, "%d ticks per quarter, %d tracks\n", res.TicksPerQuarter, len(res.Tracks))
	for _, t := range res.Tracks {
		n := t.Notation
		fmt.Fprintf(&s, "  %-24s ch %-2d  %4d notes  %4d chords  %3d markers  ends at %s\n",
			t.Name(), t.Channel, len(n.Notes()), len(n.Chords), len(n.Markers), n.End())
	}
	return strings.TrimRight(s.String(), "\n")
}

func asciiLogo() string {
	logo := `
            _     _ _ ____
  _ __ ___ (_) __| (_)___ \ ___  ___ ___  _ __ ___
 | '_ ` + "`" + ` _ \| |/ _` + "`" + ` | | __) / __|/ __/ _ \| '__/ _ \
 | | | | | | | (_| | |/ __/\__ \ (_| (_) | | |  __/
 |_| |_| |_|_|\__,_|_|_____|___/\___\___/|_|  \___|
`
	return lipgloss.NewStyle().Foreground(inkBlue).Render(logo)
}

// Run starts the TUI application
func Run(opts ...converter.Option) error {
	p := tea.NewProgram(New(opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
