package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/kirbytools/buildwatch/internal/supervisor"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on dark terminals
	idleColor     = lipgloss.Color("#9CA3AF") // Gray
	buildingColor = lipgloss.Color("#F59E0B") // Amber
	readyColor    = lipgloss.Color("#10B981") // Green
	watchingColor = lipgloss.Color("#60A5FA") // Blue
	errorColor    = lipgloss.Color("#F87171") // Red
	mutedColor    = lipgloss.Color("#9CA3AF")

	badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
	labelStyle = lipgloss.NewStyle().Bold(true)
)

func phaseColor(p supervisor.Phase) lipgloss.Color {
	switch p {
	case supervisor.PhaseBuilding, supervisor.PhaseRebuilding:
		return buildingColor
	case supervisor.PhaseReady:
		return readyColor
	case supervisor.PhaseWatchActive:
		return watchingColor
	case supervisor.PhaseError:
		return errorColor
	default:
		return idleColor
	}
}

// painter renders styled text only when writing to a terminal.
type painter struct {
	color bool
}

func newPainter(w io.Writer) painter {
	f, ok := w.(*os.File)
	if !ok {
		return painter{}
	}
	fd := f.Fd()
	return painter{color: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

func (p painter) phase(ph supervisor.Phase) string {
	if !p.color {
		return "[" + ph.String() + "]"
	}
	return badgeStyle.Background(phaseColor(ph)).Foreground(lipgloss.Color("#111827")).Render(ph.String())
}

func (p painter) muted(s string) string {
	if !p.color {
		return s
	}
	return mutedStyle.Render(s)
}

func (p painter) label(s string) string {
	if !p.color {
		return s
	}
	return labelStyle.Render(s)
}
