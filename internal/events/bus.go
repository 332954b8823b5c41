// Package events carries job lifecycle events between the engine and its observers.
package events

import (
	"sync"
	"time"

	"github.com/ShayCichocki/jobforge/pkg/models"
)

// Topic names an event stream.
type Topic string

const (
	// TopicJobAssigned is sent when an agent is bound to a job.
	TopicJobAssigned Topic = "job_assigned"
	// TopicJobProgressed is sent when a job's progress changes.
	TopicJobProgressed Topic = "job_progressed"
	// TopicJobCompleted is sent on the transition into complete.
	TopicJobCompleted Topic = "job_completed"
	// TopicJobFailed is sent on the transition into failed.
	TopicJobFailed Topic = "job_failed"
	// TopicJobCancelled is sent on the transition into cancelled.
	TopicJobCancelled Topic = "job_cancelled"
	// TopicJobBlocked is sent when pathfinding leaves a job unreachable.
	TopicJobBlocked Topic = "job_blocked"
	// TopicResourceShortage is sent by producers that run out of a resource kind.
	TopicResourceShortage Topic = "resource_shortage"
)

// Payload is the body of an event.
type Payload struct {
	Entity     models.EntityID  `json:"entity"`
	JobType    string           `json:"job_type,omitempty"`
	State      models.JobState  `json:"state,omitempty"`
	Progress   float64          `json:"progress"`
	AssignedTo *models.EntityID `json:"assigned_to,omitempty"`
	Priority   int64            `json:"priority"`
	// Kind is the resource kind of a resource_shortage event.
	Kind string `json:"kind,omitempty"`
}

// JobPayload builds a payload from a job document.
func JobPayload(j *models.Job) Payload {
	p := Payload{
		Entity:   j.ID,
		JobType:  j.JobType,
		State:    j.State,
		Progress: j.Progress,
		Priority: j.Priority,
	}
	if j.AssignedTo != nil {
		p.AssignedTo = models.IDPtr(*j.AssignedTo)
	}
	return p
}

// Event is a single published event.
type Event struct {
	Topic     Topic     `json:"event_type"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Subscriber receives every event sent on a bus.
type Subscriber func(Event)

// Bus is a topic-keyed event queue. Sent events wait in their topic until
// taken; subscribers see each event as it is sent.
type Bus struct {
	mu          sync.Mutex
	queues      map[Topic][]Event
	subscribers []Subscriber
	now         func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		queues: make(map[Topic][]Event),
		now:    time.Now,
	}
}

// Subscribe registers fn for all future events.
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Send publishes payload on topic.
func (b *Bus) Send(topic Topic, tick uint64, payload Payload) Event {
	ev := Event{Topic: topic, Tick: tick, Timestamp: b.now(), Payload: payload}
	b.Publish(ev)
	return ev
}

// Publish enqueues a fully-formed event, keeping its timestamp.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	b.queues[ev.Topic] = append(b.queues[ev.Topic], ev)
	subs := append([]Subscriber(nil), b.subscribers...)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Take drains and returns the queued events of topic.
func (b *Bus) Take(topic Topic) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	evs := b.queues[topic]
	delete(b.queues, topic)
	return evs
}

// Pending returns the number of queued events on topic.
func (b *Bus) Pending(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[topic])
}

// Clear drops every queued event.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues = make(map[Topic][]Event)
}
