package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Panel indexes in focus order.
const (
	PanelJobs = iota
	PanelAgents
	PanelEvents
	panelCount
)

// Footer renders the status bar and keyboard hints.
type Footer struct {
	message      string
	success      bool
	runDone      bool
	focusedPanel int
	width        int
	counts       Counts

	// Styles
	successStyle   lipgloss.Style
	errorStyle     lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		focusedPanel: PanelJobs,

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string, success bool) {
	f.message = message
	f.success = success
}

// SetRunDone marks the run as finished.
func (f *Footer) SetRunDone(success bool, message string) {
	f.runDone = true
	f.success = success
	f.message = message
}

// SetFocusedPanel sets which panel is currently focused.
func (f *Footer) SetFocusedPanel(panel int) {
	f.focusedPanel = panel
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// SetCounts updates the job counts for display.
func (f *Footer) SetCounts(counts Counts) {
	f.counts = counts
}

// View renders the footer.
func (f *Footer) View() string {
	var left string

	total := f.counts.Active + f.counts.Complete + f.counts.Failed + f.counts.Cancelled
	if total > 0 {
		left = fmt.Sprintf("✓%d", f.counts.Complete)
		if f.counts.Failed > 0 {
			left += f.errorStyle.Render(fmt.Sprintf(" ✗%d", f.counts.Failed))
		}
		if f.counts.Cancelled > 0 {
			left += fmt.Sprintf(" ⊘%d", f.counts.Cancelled)
		}
		if f.counts.Active > 0 {
			left += fmt.Sprintf(" ⏳%d", f.counts.Active)
		}
	}

	if f.runDone {
		if f.success {
			left = f.successStyle.Render("✓ " + f.message)
		} else {
			left = f.errorStyle.Render("✗ " + f.message)
		}
	} else if f.message != "" {
		if left != "" {
			left += " "
		}
		left += f.hintStyle.Render(f.message)
	}

	right := f.keyboardHints()
	sep := f.separatorStyle.Render(" │ ")

	if left != "" {
		return left + sep + right
	}
	return right
}

// keyboardHints returns context-sensitive keyboard hints.
func (f *Footer) keyboardHints() string {
	if f.runDone {
		return f.hintStyle.Render("Press q to exit")
	}

	hints := "tab panels │ p pause"

	switch f.focusedPanel {
	case PanelJobs, PanelAgents:
		hints += " │ ↑/↓ select"
	case PanelEvents:
		hints += " │ ↑/↓ scroll │ f filter │ a auto-scroll"
	}

	hints += " │ q quit"

	return f.hintStyle.Render(hints)
}

// PanelName returns the name of the given panel index.
func PanelName(panel int) string {
	switch panel {
	case PanelJobs:
		return "Jobs"
	case PanelAgents:
		return "Agents"
	case PanelEvents:
		return "Events"
	default:
		return fmt.Sprintf("Panel %d", panel)
	}
}
