package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/jobforge/internal/events"
)

// DefaultRefreshRate is how often buffered frames are drawn.
const DefaultRefreshRate = 250 * time.Millisecond

// FrameMsg carries the world view after a tick.
type FrameMsg struct {
	Frame Frame
}

// EventMsg carries one engine event.
type EventMsg struct {
	Event events.Event
}

// RunDoneMsg signals that the run loop has returned.
type RunDoneMsg struct {
	Ticks uint64
	Err   error
}

// refreshMsg fires on the refresh timer.
type refreshMsg time.Time

// Pauser toggles the run loop. It returns true when the loop is now paused.
type Pauser interface {
	Toggle() bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithPauser lets the p key pause and resume the run.
func WithPauser(p Pauser) Option {
	return func(m *Monitor) { m.pauser = p }
}

// WithRefreshRate sets how often the latest frame is drawn.
func WithRefreshRate(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.refresh = d
		}
	}
}

// WithTitle sets the header title.
func WithTitle(title string) Option {
	return func(m *Monitor) { m.header = NewHeader(title) }
}

// Monitor is the bubbletea model of the live run view.
type Monitor struct {
	header *Header
	jobs   *JobsPanel
	agents *AgentsPanel
	log    *EventsPanel
	footer *Footer

	pauser  Pauser
	refresh time.Duration

	// pending holds the newest frame until the next refresh.
	pending *Frame
	frame   Frame

	focused  int
	width    int
	height   int
	paused   bool
	done     bool
	quitting bool
}

// New creates a Monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		header:  NewHeader("jobforge"),
		jobs:    NewJobsPanel(),
		agents:  NewAgentsPanel(),
		log:     NewEventsPanel(),
		footer:  NewFooter(),
		refresh: DefaultRefreshRate,
		focused: PanelJobs,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.setFocus(PanelJobs)
	return m
}

// NewProgram creates a full-screen program around a new Monitor.
func NewProgram(opts ...Option) (*tea.Program, *Monitor) {
	m := New(opts...)
	return tea.NewProgram(m, tea.WithAltScreen()), m
}

// forwardBuffer is the number of events held for the monitor before new
// ones are dropped.
const forwardBuffer = 1024

// Forward relays events on bus to the program until ctx is done. Events go
// through a buffered stream so a slow terminal never stalls a tick.
func Forward(ctx context.Context, p *tea.Program, bus *events.Bus) *events.Stream {
	stream := events.NewStream(bus, forwardBuffer)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-stream.Events():
				p.Send(EventMsg{Event: ev})
			}
		}
	}()
	return stream
}

// Init implements tea.Model.
func (m *Monitor) Init() tea.Cmd {
	return m.tick()
}

func (m *Monitor) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update implements tea.Model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			m.setFocus((m.focused + 1) % panelCount)
			return m, nil
		case "shift+tab":
			m.setFocus((m.focused + panelCount - 1) % panelCount)
			return m, nil
		case "p":
			if m.pauser != nil && !m.done {
				m.paused = m.pauser.Toggle()
				m.header.SetPaused(m.paused)
				if m.paused {
					m.footer.SetMessage("paused", true)
				} else {
					m.footer.SetMessage("", true)
				}
			}
			return m, nil
		}
		return m, m.updateFocused(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case FrameMsg:
		f := msg.Frame
		m.pending = &f

	case refreshMsg:
		m.flush()
		return m, m.tick()

	case EventMsg:
		m.log.AddEvent(msg.Event)

	case RunDoneMsg:
		m.flush()
		m.done = true
		m.header.SetPaused(false)
		if msg.Err != nil {
			m.footer.SetRunDone(false, fmt.Sprintf("run failed after %d ticks: %v", msg.Ticks, msg.Err))
		} else {
			m.footer.SetRunDone(true, fmt.Sprintf("run finished after %d ticks", msg.Ticks))
		}
	}

	return m, nil
}

// flush applies the pending frame to the panels.
func (m *Monitor) flush() {
	if m.pending == nil {
		return
	}
	m.frame = *m.pending
	m.pending = nil
	m.header.SetRun(m.frame.Tick, m.frame.Policy)
	m.jobs.SetJobs(m.frame.Jobs)
	m.agents.SetAgents(m.frame.Agents)
	m.footer.SetCounts(m.frame.Counts)
}

func (m *Monitor) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focused {
	case PanelJobs:
		m.jobs, cmd = m.jobs.Update(msg)
	case PanelAgents:
		m.agents, cmd = m.agents.Update(msg)
	case PanelEvents:
		m.log, cmd = m.log.Update(msg)
	}
	return cmd
}

func (m *Monitor) setFocus(panel int) {
	m.focused = panel
	m.jobs.SetFocused(panel == PanelJobs)
	m.agents.SetFocused(panel == PanelAgents)
	m.log.SetFocused(panel == PanelEvents)
	m.footer.SetFocusedPanel(panel)
}

// layout splits the screen: jobs on the left, agents over events on the right.
func (m *Monitor) layout() {
	m.header.SetWidth(m.width)
	m.footer.SetWidth(m.width)

	body := m.height - m.header.Height() - 1
	if body < 6 {
		body = 6
	}
	left := m.width * 3 / 5
	right := m.width - left
	m.jobs.SetSize(left, body)
	agentsHeight := body / 3
	m.agents.SetSize(right, agentsHeight)
	m.log.SetSize(right, body-agentsHeight)
}

// View implements tea.Model.
func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}
	right := lipgloss.JoinVertical(lipgloss.Left, m.agents.View(), m.log.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.jobs.View(), right)
	return lipgloss.JoinVertical(lipgloss.Left, m.header.View(), body, m.footer.View())
}

// Frame returns the frame currently drawn.
func (m *Monitor) Frame() Frame {
	return m.frame
}

// Paused reports whether the monitor last paused the run.
func (m *Monitor) Paused() bool {
	return m.paused
}

// Done reports whether the run loop has finished.
func (m *Monitor) Done() bool {
	return m.done
}

// Focused returns the focused panel index.
func (m *Monitor) Focused() int {
	return m.focused
}
