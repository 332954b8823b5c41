package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/jobforge/pkg/models"
)

// JobsPanel displays every job in a scrollable table.
type JobsPanel struct {
	table   table.Model
	jobs    []JobRow
	width   int
	height  int
	focused bool

	// Styles
	titleStyle  lipgloss.Style
	borderStyle lipgloss.Style
}

var jobColumns = []table.Column{
	{Title: "ID", Width: 5},
	{Title: "Type", Width: 16},
	{Title: "State", Width: 22},
	{Title: "Pri", Width: 5},
	{Title: "Eff", Width: 5},
	{Title: "Progress", Width: 11},
	{Title: "Agent", Width: 6},
}

// NewJobsPanel creates a new JobsPanel instance.
func NewJobsPanel() *JobsPanel {
	t := table.New(
		table.WithColumns(jobColumns),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return &JobsPanel{
		table: t,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
	}
}

// SetJobs replaces the rows of the table.
func (p *JobsPanel) SetJobs(jobs []JobRow) {
	p.jobs = jobs
	rows := make([]table.Row, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", j.ID),
			truncate(j.JobType, 16),
			jobStateLabel(j),
			fmt.Sprintf("%d", j.Priority),
			fmt.Sprintf("%d", j.EffectivePriority),
			formatProgress(j.Progress, j.RequiredProgress),
			formatEntity(j.AssignedTo),
		})
	}
	p.table.SetRows(rows)
}

// SetSize updates the panel dimensions.
func (p *JobsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	// Border, title and header take four lines.
	if height > 4 {
		p.table.SetHeight(height - 4)
	}
	if width > 2 {
		p.table.SetWidth(width - 2)
	}
}

// SetFocused sets whether this panel has keyboard focus.
func (p *JobsPanel) SetFocused(focused bool) {
	p.focused = focused
	if focused {
		p.table.Focus()
	} else {
		p.table.Blur()
	}
}

// Update forwards navigation keys to the table when focused.
func (p *JobsPanel) Update(msg tea.Msg) (*JobsPanel, tea.Cmd) {
	if !p.focused {
		return p, nil
	}
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return p, cmd
}

// SelectedJob returns the highlighted job, if any.
func (p *JobsPanel) SelectedJob() (JobRow, bool) {
	i := p.table.Cursor()
	if i < 0 || i >= len(p.jobs) {
		return JobRow{}, false
	}
	return p.jobs[i], true
}

// View renders the panel.
func (p *JobsPanel) View() string {
	title := p.titleStyle.Render(fmt.Sprintf("Jobs (%d)", len(p.jobs)))
	return p.borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, p.table.View()))
}

func jobStateLabel(j JobRow) string {
	label := string(j.State)
	if j.Cancelled && j.State != models.JobCancelled {
		label += " (cancel)"
	}
	return label
}

func formatProgress(progress, required float64) string {
	if required <= 0 {
		return fmt.Sprintf("%.1f", progress)
	}
	return fmt.Sprintf("%.1f/%.1f", progress, required)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// tableStyles returns the shared table look.
func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("236")).
		Bold(true)
	return s
}
