// Package render formats session state for the terminal: tables for servers,
// images and history, and live download progress.
package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

// Palette is the set of colours for one theme
type Palette struct {
	Accent lipgloss.Color
	Text   lipgloss.Color
	Dim    lipgloss.Color
	Green  lipgloss.Color
	Red    lipgloss.Color
	Blue   lipgloss.Color
}

var (
	lightPalette = Palette{
		Accent: lipgloss.Color("#B45309"),
		Text:   lipgloss.Color("#111827"),
		Dim:    lipgloss.Color("#6B7280"),
		Green:  lipgloss.Color("#047857"),
		Red:    lipgloss.Color("#B91C1C"),
		Blue:   lipgloss.Color("#1D4ED8"),
	}
	darkPalette = Palette{
		Accent: lipgloss.Color("#E5A00D"),
		Text:   lipgloss.Color("#F9FAFB"),
		Dim:    lipgloss.Color("#9CA3AF"),
		Green:  lipgloss.Color("#10B981"),
		Red:    lipgloss.Color("#EF4444"),
		Blue:   lipgloss.Color("#3B82F6"),
	}
)

// Styles holds the text styles derived from a palette
type Styles struct {
	Palette Palette

	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Dim     lipgloss.Style
	Accent  lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Border  lipgloss.Style
}

// NewStyles returns the styles for theme. Unknown themes render as light.
func NewStyles(theme domain.Theme) Styles {
	p := lightPalette
	if theme == domain.ThemeDark {
		p = darkPalette
	}
	return Styles{
		Palette: p,
		Title:   lipgloss.NewStyle().Foreground(p.Text).Bold(true),
		Header:  lipgloss.NewStyle().Foreground(p.Accent).Bold(true).Padding(0, 1),
		Cell:    lipgloss.NewStyle().Foreground(p.Text).Padding(0, 1),
		Dim:     lipgloss.NewStyle().Foreground(p.Dim),
		Accent:  lipgloss.NewStyle().Foreground(p.Accent),
		Error:   lipgloss.NewStyle().Foreground(p.Red),
		Success: lipgloss.NewStyle().Foreground(p.Green),
		Border:  lipgloss.NewStyle().Foreground(p.Dim),
	}
}

// Status renders a task status in its colour
func (s Styles) Status(status domain.TaskStatus) string {
	switch status {
	case domain.TaskStatusCompleted:
		return s.Success.Render(status.String())
	case domain.TaskStatusFailed:
		return s.Error.Render(status.String())
	case domain.TaskStatusCancelled:
		return s.Dim.Render(status.String())
	default:
		return lipgloss.NewStyle().Foreground(s.Palette.Blue).Render(status.String())
	}
}

// Raw status glyphs (unstyled)
const (
	GlyphDone     = "✓"
	GlyphFailed   = "✗"
	GlyphSelected = "●"
	GlyphOffline  = "○"
)
