package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/jobforge/internal/events"
	"github.com/ShayCichocki/jobforge/pkg/models"
)

// LogLevel represents the severity of an event line.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelDebug LogLevel = "DEBUG"
)

// levelFor maps an event topic to a display level.
func levelFor(topic events.Topic) LogLevel {
	switch topic {
	case events.TopicJobFailed:
		return LogLevelError
	case events.TopicJobCancelled, events.TopicJobBlocked, events.TopicResourceShortage:
		return LogLevelWarn
	case events.TopicJobCompleted:
		return LogLevelInfo
	default:
		return LogLevelDebug
	}
}

// EventsPanel displays a filterable, scrollable event log.
type EventsPanel struct {
	entries       []events.Event
	filter        string   // "all" or a topic
	filterOptions []string // Available filter options
	filterIndex   int
	scrollOffset  int
	autoScroll    bool
	width         int
	height        int
	focused       bool
	maxEntries    int

	// One live progress line per job instead of a line per tick.
	progress map[models.EntityID]events.Event

	// Styles
	titleStyle   lipgloss.Style
	filterStyle  lipgloss.Style
	infoStyle    lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	debugStyle   lipgloss.Style
	tickStyle    lipgloss.Style
	entityStyle  lipgloss.Style
	messageStyle lipgloss.Style
}

// NewEventsPanel creates a new EventsPanel instance.
func NewEventsPanel() *EventsPanel {
	return &EventsPanel{
		filter:        "all",
		filterOptions: []string{"all"},
		autoScroll:    true,
		maxEntries:    1000,
		progress:      make(map[models.EntityID]events.Event),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1),

		filterStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),

		infoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		debugStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		tickStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		entityStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")), // Blue

		messageStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// AddEvent appends ev to the log. Progress events replace the job's live
// line; the live line is dropped once the job reaches a terminal event.
func (p *EventsPanel) AddEvent(ev events.Event) {
	switch ev.Topic {
	case events.TopicJobProgressed:
		p.progress[ev.Payload.Entity] = ev
		return
	case events.TopicJobCompleted, events.TopicJobFailed, events.TopicJobCancelled:
		delete(p.progress, ev.Payload.Entity)
	}

	p.entries = append(p.entries, ev)
	if len(p.entries) > p.maxEntries {
		p.entries = p.entries[len(p.entries)-p.maxEntries:]
	}
	p.addFilterOption(string(ev.Topic))

	if p.autoScroll {
		p.scrollToBottom()
	}
}

func (p *EventsPanel) addFilterOption(topic string) {
	for _, opt := range p.filterOptions {
		if opt == topic {
			return
		}
	}
	p.filterOptions = append(p.filterOptions, topic)
}

// SetSize updates the panel dimensions.
func (p *EventsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetFocused sets whether this panel has keyboard focus.
func (p *EventsPanel) SetFocused(focused bool) {
	p.focused = focused
}

// Update handles input messages.
func (p *EventsPanel) Update(msg tea.Msg) (*EventsPanel, tea.Cmd) {
	if !p.focused {
		return p, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if p.scrollOffset > 0 {
				p.scrollOffset--
				p.autoScroll = false
			}
		case "down", "j":
			if p.scrollOffset < len(p.filtered())-p.visibleLines() {
				p.scrollOffset++
			}
		case "f":
			p.filterIndex = (p.filterIndex + 1) % len(p.filterOptions)
			p.filter = p.filterOptions[p.filterIndex]
			p.scrollToBottom()
		case "g":
			p.scrollOffset = 0
			p.autoScroll = false
		case "G":
			p.scrollToBottom()
			p.autoScroll = true
		case "a":
			p.autoScroll = !p.autoScroll
			if p.autoScroll {
				p.scrollToBottom()
			}
		}
	}

	return p, nil
}

func (p *EventsPanel) visibleLines() int {
	lines := p.height - 5 // title, borders, scroll indicator
	if lines < 1 {
		lines = 1
	}
	return lines
}

func (p *EventsPanel) scrollToBottom() {
	p.scrollOffset = len(p.filtered()) - p.visibleLines()
	if p.scrollOffset < 0 {
		p.scrollOffset = 0
	}
}

func (p *EventsPanel) filtered() []events.Event {
	if p.filter == "all" {
		return p.entries
	}
	out := make([]events.Event, 0)
	for _, ev := range p.entries {
		if string(ev.Topic) == p.filter {
			out = append(out, ev)
		}
	}
	return out
}

// View renders the events panel.
func (p *EventsPanel) View() string {
	var b strings.Builder

	title := "Events"
	if p.focused {
		title = "[Events]"
	}
	b.WriteString(p.titleStyle.Render(title))

	filterText := fmt.Sprintf(" [%s]", p.filter)
	if p.autoScroll {
		filterText += " (auto)"
	}
	b.WriteString(p.filterStyle.Render(filterText))
	b.WriteString("\n")

	filtered := p.filtered()
	live := p.liveLines()
	visible := p.visibleLines() - len(live)
	if visible < 1 {
		visible = 1
	}

	if len(filtered) == 0 && len(live) == 0 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Render("  No events"))
	} else {
		start := p.scrollOffset
		if start < 0 {
			start = 0
		}
		end := start + visible
		if end > len(filtered) {
			end = len(filtered)
		}
		for i := start; i < end; i++ {
			b.WriteString(p.renderLine(filtered[i]))
			b.WriteString("\n")
		}

		if len(filtered) > visible {
			b.WriteString(p.tickStyle.Render(fmt.Sprintf(" [%d/%d]", end, len(filtered))))
			b.WriteString("\n")
		}

		if len(live) > 0 {
			b.WriteString(p.tickStyle.Render("─── in progress ───"))
			b.WriteString("\n")
			for _, ev := range live {
				b.WriteString(p.renderLine(ev))
				b.WriteString("\n")
			}
		}
	}

	borderColor := lipgloss.Color("240")
	if p.focused {
		borderColor = lipgloss.Color("63") // Blue when focused
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor)
	if p.width > 2 {
		style = style.Width(p.width - 2)
	}
	if p.height > 2 {
		style = style.Height(p.height - 2)
	}
	return style.Render(b.String())
}

// liveLines returns progress lines ordered by job id.
func (p *EventsPanel) liveLines() []events.Event {
	out := make([]events.Event, 0, len(p.progress))
	for _, ev := range p.progress {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Payload.Entity < out[j].Payload.Entity })
	return out
}

func (p *EventsPanel) renderLine(ev events.Event) string {
	var parts []string

	parts = append(parts, p.tickStyle.Render(fmt.Sprintf("t%-5d", ev.Tick)))

	levelStyle := p.debugStyle
	levelIcon := "D"
	switch levelFor(ev.Topic) {
	case LogLevelInfo:
		levelStyle, levelIcon = p.infoStyle, "I"
	case LogLevelWarn:
		levelStyle, levelIcon = p.warnStyle, "W"
	case LogLevelError:
		levelStyle, levelIcon = p.errorStyle, "E"
	}
	parts = append(parts, levelStyle.Render(levelIcon))

	if ev.Topic != events.TopicResourceShortage {
		parts = append(parts, p.entityStyle.Render(fmt.Sprintf("[%d]", ev.Payload.Entity)))
	}

	maxMsgLen := p.width - 20
	if maxMsgLen < 20 {
		maxMsgLen = 20
	}
	parts = append(parts, p.messageStyle.Render(truncate(describe(ev), maxMsgLen)))

	return strings.Join(parts, " ")
}

// describe renders the human text of an event.
func describe(ev events.Event) string {
	pl := ev.Payload
	switch ev.Topic {
	case events.TopicJobAssigned:
		return fmt.Sprintf("%s assigned to %s", pl.JobType, formatEntity(pl.AssignedTo))
	case events.TopicJobProgressed:
		return fmt.Sprintf("%s progress %.2f", pl.JobType, pl.Progress)
	case events.TopicJobCompleted:
		return fmt.Sprintf("%s completed", pl.JobType)
	case events.TopicJobFailed:
		return fmt.Sprintf("%s failed", pl.JobType)
	case events.TopicJobCancelled:
		return fmt.Sprintf("%s cancelled", pl.JobType)
	case events.TopicJobBlocked:
		return fmt.Sprintf("%s blocked", pl.JobType)
	case events.TopicResourceShortage:
		return fmt.Sprintf("shortage of %s", pl.Kind)
	}
	return string(ev.Topic)
}

// EventCount returns the number of stored events, excluding live progress.
func (p *EventsPanel) EventCount() int {
	return len(p.entries)
}

// LiveCount returns the number of jobs with a live progress line.
func (p *EventsPanel) LiveCount() int {
	return len(p.progress)
}

// CurrentFilter returns the current filter value.
func (p *EventsPanel) CurrentFilter() string {
	return p.filter
}
