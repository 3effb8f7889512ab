// Package render draws the ticket detail view for a terminal.
package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"tix/internal/models"
)

const defaultWidth = 80

// Theme is the color palette for the detail view.
type Theme struct {
	Heading        lipgloss.TerminalColor
	Faint          lipgloss.TerminalColor
	Accent         lipgloss.TerminalColor
	Code           lipgloss.TerminalColor
	Danger         lipgloss.TerminalColor
	AI             lipgloss.TerminalColor
	StatusTodo     lipgloss.TerminalColor
	StatusProgress lipgloss.TerminalColor
	StatusResolved lipgloss.TerminalColor
}

// DefaultTheme targets dark terminals.
var DefaultTheme = Theme{
	Heading:        lipgloss.Color("75"),
	Faint:          lipgloss.Color("245"),
	Accent:         lipgloss.Color("39"),
	Code:           lipgloss.Color("180"),
	Danger:         lipgloss.Color("203"),
	AI:             lipgloss.Color("141"),
	StatusTodo:     lipgloss.Color("250"),
	StatusProgress: lipgloss.Color("214"),
	StatusResolved: lipgloss.Color("78"),
}

// Renderer holds the output profile and layout width.
type Renderer struct {
	lip   *lipgloss.Renderer
	theme Theme
	width int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWidth sets the wrap width. Non-positive values are ignored.
func WithWidth(width int) Option {
	return func(r *Renderer) {
		if width > 0 {
			r.width = width
		}
	}
}

// WithTheme replaces the palette.
func WithTheme(theme Theme) Option {
	return func(r *Renderer) {
		r.theme = theme
	}
}

// New creates a renderer for w. Without color the output is plain text,
// regardless of what the terminal supports.
func New(w io.Writer, color bool, opts ...Option) *Renderer {
	var lip *lipgloss.Renderer
	if color {
		lip = lipgloss.NewRenderer(w)
	} else {
		lip = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
		lip.SetColorProfile(termenv.Ascii)
	}
	r := &Renderer{lip: lip, theme: DefaultTheme, width: defaultWidth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) style() lipgloss.Style {
	return r.lip.NewStyle()
}

func (r *Renderer) faint(s string) string {
	return r.style().Foreground(r.theme.Faint).Render(s)
}

func (r *Renderer) code(s string) string {
	return r.style().Foreground(r.theme.Code).Render(s)
}

func (r *Renderer) link(s string) string {
	return r.style().Foreground(r.theme.Accent).Underline(true).Render(s)
}

func (r *Renderer) heading(s string) string {
	return r.style().Bold(true).Foreground(r.theme.Heading).Render(s)
}

// StatusBadge renders the status label with its color.
func (r *Renderer) StatusBadge(status models.Status) string {
	color := r.theme.Faint
	switch status {
	case models.StatusTodo:
		color = r.theme.StatusTodo
	case models.StatusInProgress:
		color = r.theme.StatusProgress
	case models.StatusResolved:
		color = r.theme.StatusResolved
	}
	return r.style().Bold(true).Foreground(color).Render("[" + status.Label() + "]")
}

// DecisionBadge renders a recorded decision.
func (r *Renderer) DecisionBadge(decision models.Decision) string {
	color := r.theme.StatusResolved
	if decision == models.DecisionRejected {
		color = r.theme.Danger
	}
	return r.style().Bold(true).Foreground(color).Render(string(decision))
}
