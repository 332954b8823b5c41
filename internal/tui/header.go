package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Header renders the title bar with the run position.
type Header struct {
	width  int
	title  string
	tick   uint64
	policy string
	paused bool

	titleStyle  lipgloss.Style
	infoStyle   lipgloss.Style
	pausedStyle lipgloss.Style
}

// NewHeader creates a new Header.
func NewHeader(title string) *Header {
	return &Header{
		width: 80,
		title: title,

		titleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF8E53")).
			Bold(true),

		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")),

		pausedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetRun updates the tick and board policy shown.
func (h *Header) SetRun(tick uint64, policy string) {
	h.tick = tick
	h.policy = policy
}

// SetPaused marks the run as paused.
func (h *Header) SetPaused(paused bool) {
	h.paused = paused
}

// View renders the header.
func (h *Header) View() string {
	left := h.titleStyle.Render(h.title)
	info := h.infoStyle.Render(fmt.Sprintf("  tick %d  policy %s", h.tick, h.policy))
	line := left + info
	if h.paused {
		line += "  " + h.pausedStyle.Render("PAUSED")
	}
	return lipgloss.NewStyle().Width(h.width).PaddingBottom(1).Render(line)
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 2
}
