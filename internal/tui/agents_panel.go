package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/jobforge/pkg/models"
)

// AgentsPanel displays agents with their current job and load.
type AgentsPanel struct {
	table   table.Model
	agents  []AgentRow
	width   int
	height  int
	focused bool

	// Styles
	titleStyle   lipgloss.Style
	borderStyle  lipgloss.Style
	workingStyle lipgloss.Style
	idleStyle    lipgloss.Style
}

var agentColumns = []table.Column{
	{Title: "ID", Width: 5},
	{Title: "State", Width: 8},
	{Title: "Job", Width: 5},
	{Title: "Queue", Width: 5},
	{Title: "Carrying", Width: 20},
}

// NewAgentsPanel creates a new AgentsPanel instance.
func NewAgentsPanel() *AgentsPanel {
	t := table.New(
		table.WithColumns(agentColumns),
		table.WithHeight(6),
	)
	t.SetStyles(tableStyles())

	return &AgentsPanel{
		table: t,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),

		workingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		idleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray
	}
}

// SetAgents replaces the rows of the table.
func (p *AgentsPanel) SetAgents(agents []AgentRow) {
	p.agents = agents
	rows := make([]table.Row, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", a.ID),
			string(a.State),
			formatEntity(a.CurrentJob),
			fmt.Sprintf("%d", a.Queue),
			truncate(a.Carrying, 20),
		})
	}
	p.table.SetRows(rows)
}

// SetSize updates the panel dimensions.
func (p *AgentsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	if height > 4 {
		p.table.SetHeight(height - 4)
	}
	if width > 2 {
		p.table.SetWidth(width - 2)
	}
}

// SetFocused sets whether this panel has keyboard focus.
func (p *AgentsPanel) SetFocused(focused bool) {
	p.focused = focused
	if focused {
		p.table.Focus()
	} else {
		p.table.Blur()
	}
}

// Update forwards navigation keys to the table when focused.
func (p *AgentsPanel) Update(msg tea.Msg) (*AgentsPanel, tea.Cmd) {
	if !p.focused {
		return p, nil
	}
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return p, cmd
}

// AgentCount returns the number of agents shown.
func (p *AgentsPanel) AgentCount() int {
	return len(p.agents)
}

// WorkingCount returns the number of agents with a job.
func (p *AgentsPanel) WorkingCount() int {
	n := 0
	for _, a := range p.agents {
		if a.State == models.AgentWorking {
			n++
		}
	}
	return n
}

// View renders the panel.
func (p *AgentsPanel) View() string {
	working := p.workingStyle.Render(fmt.Sprintf("%d working", p.WorkingCount()))
	idle := p.idleStyle.Render(fmt.Sprintf("%d idle", p.AgentCount()-p.WorkingCount()))
	title := p.titleStyle.Render("Agents") + " " + working + " " + idle
	return p.borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, p.table.View()))
}
