package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ayoisaiah/respawn/session"
)

const (
	padding  = 2
	maxWidth = 80
)

// Style holds the lipgloss styles of the timer board.
type Style struct {
	Base      lipgloss.Style
	Main      lipgloss.Style
	Secondary lipgloss.Style
	Hint      lipgloss.Style
	Selected  lipgloss.Style
	Warning   lipgloss.Style
	Danger    lipgloss.Style
	Done      lipgloss.Style
	Remote    lipgloss.Style
	Error     lipgloss.Style
}

// NewStyle returns the board styles for a dark or light terminal.
func NewStyle(dark bool) Style {
	main := lipgloss.Color("#1F2937")
	hint := lipgloss.Color("#6B7280")
	accent := lipgloss.Color("#2563EB")

	if dark {
		main = lipgloss.Color("#F9FAFB")
		hint = lipgloss.Color("#9CA3AF")
		accent = lipgloss.Color("#60A5FA")
	}

	return Style{
		Base:      lipgloss.NewStyle().Padding(1, padding),
		Main:      lipgloss.NewStyle().Bold(true).Foreground(main),
		Secondary: lipgloss.NewStyle().Foreground(accent),
		Hint:      lipgloss.NewStyle().Foreground(hint),
		Selected:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		Danger:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		Done:      lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")),
		Remote:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#C084FC")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")),
	}
}

// clock styles a countdown by urgency.
func (s Style) clock(v session.View) string {
	switch v.Urgency {
	case session.UrgencyDone:
		return s.Done.Render(v.Clock)
	case session.UrgencyDanger:
		return s.Danger.Render(v.Clock)
	case session.UrgencyWarning:
		return s.Warning.Render(v.Clock)
	default:
		return s.Main.Render(v.Clock)
	}
}
