package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jacobarthurs/syswhy/internal/report"
)

var (
	colorRed    = lipgloss.Color("#FF5555")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGray   = lipgloss.Color("#6272A4")
)

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	dim   lipgloss.Style
	ok    lipgloss.Style
	info  lipgloss.Style
	warn  lipgloss.Style
	crit  lipgloss.Style
}

// newStyles binds the palette to w. Without color every style renders as
// plain text.
func newStyles(w io.Writer, color bool) styles {
	re := lipgloss.NewRenderer(w)
	if !color || termenv.EnvNoColor() {
		re.SetColorProfile(termenv.Ascii)
	}
	return styles{
		title: re.NewStyle().Bold(true).Foreground(colorCyan),
		label: re.NewStyle().Foreground(colorGray),
		dim:   re.NewStyle().Foreground(colorGray),
		ok:    re.NewStyle().Foreground(colorGreen),
		info:  re.NewStyle().Foreground(colorCyan),
		warn:  re.NewStyle().Foreground(colorYellow).Bold(true),
		crit:  re.NewStyle().Foreground(colorRed).Bold(true),
	}
}

func (s styles) severity(sev report.Severity) lipgloss.Style {
	switch sev {
	case report.Critical:
		return s.crit
	case report.Warning:
		return s.warn
	case report.Info:
		return s.info
	default:
		return s.ok
	}
}
