// Package tui implements the interactive terminal views of fedroute.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/s100fed/fedroute/internal/federation"
)

// ViewState is the screen a model is currently showing.
type ViewState int

const (
	// ViewStateLoading shows a spinner while data is fetched.
	ViewStateLoading ViewState = iota
	// ViewStateList shows the ranked table.
	ViewStateList
	// ViewStateDetail shows a single selected row.
	ViewStateDetail
	// ViewStateError shows a fatal error before quitting.
	ViewStateError
	// ViewStateQuitting renders nothing.
	ViewStateQuitting
)

const (
	keyQuit      = "q"
	keyCtrlC     = "ctrl+c"
	keyEnter     = "enter"
	keyEsc       = "esc"
	keyBackspace = "backspace"
	keySlash     = "/"
	keyS         = "s"
)

const (
	defaultWidth         = 120
	defaultHeight        = 30
	minTableHeight       = 3
	filterInputCharLimit = 64
	filterInputWidth     = 40
)

//nolint:gochecknoglobals // Shared lipgloss styles, read-only after init.
var (
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	LabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	HelpStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	ErrorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	TableHeaderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240")).
				BorderBottom(true).
				Bold(true)
	TableSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	healthStyles = map[federation.HealthStatus]lipgloss.Style{
		federation.HealthHealthy: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		federation.HealthWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		federation.HealthError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		federation.HealthOffline: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// renderHealth colors a node health status; unknown statuses are left plain.
func renderHealth(h federation.HealthStatus) string {
	if st, ok := healthStyles[h]; ok {
		return st.Render(string(h))
	}
	return string(h)
}

// LoadingState is a spinner with a caption.
type LoadingState struct {
	spinner spinner.Model
	message string
}

// NewLoadingState creates a loading spinner with the given caption.
func NewLoadingState(message string) *LoadingState {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &LoadingState{spinner: s, message: message}
}

// Init starts the spinner animation.
func (l *LoadingState) Init() tea.Cmd {
	return l.spinner.Tick
}

// Update advances the spinner on tick messages.
func (l *LoadingState) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return cmd
}

// RenderLoading renders the loading screen; a nil state renders plain text.
func RenderLoading(loading *LoadingState) string {
	if loading == nil {
		return "Loading..."
	}
	return fmt.Sprintf("\n %s %s\n\n", loading.spinner.View(), loading.message)
}
