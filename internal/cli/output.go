package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/charmbracelet/lipgloss"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
)

// tabPadding is the minimum column padding for tabwriter output.
const tabPadding = 2

// headerSeparatorLen is the length of the separator line below section headers.
const headerSeparatorLen = 40

func colorOK() lipgloss.Color      { return lipgloss.Color("42") }
func colorWarning() lipgloss.Color { return lipgloss.Color("214") }
func colorFailed() lipgloss.Color  { return lipgloss.Color("196") }
func colorTitle() lipgloss.Color   { return lipgloss.Color("39") }
func colorMuted() lipgloss.Color   { return lipgloss.Color("246") }

// styler renders text with lipgloss only when the destination is a terminal, so piped
// and captured output stays plain.
type styler struct {
	enabled bool
}

func newStyler(w io.Writer) styler {
	f, ok := w.(*os.File)
	return styler{enabled: ok && isTerminal(f)}
}

func (s styler) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func (s styler) title(text string) string {
	return s.render(lipgloss.NewStyle().Bold(true).Foreground(colorTitle()), text)
}

func (s styler) ok(text string) string {
	return s.render(lipgloss.NewStyle().Foreground(colorOK()).Bold(true), text)
}

func (s styler) warn(text string) string {
	return s.render(lipgloss.NewStyle().Foreground(colorWarning()), text)
}

func (s styler) failed(text string) string {
	return s.render(lipgloss.NewStyle().Foreground(colorFailed()).Bold(true), text)
}

func (s styler) muted(text string) string {
	return s.render(lipgloss.NewStyle().Italic(true).Foreground(colorMuted()), text)
}

// validateOutputFormat rejects anything but table or json.
func validateOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (must be %q or %q)", format, outputTable, outputJSON)
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
