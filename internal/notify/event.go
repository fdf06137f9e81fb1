// Package notify delivers engine events to stdout, files, webhooks and local streams.
package notify

import (
	"encoding/json"
	"time"
)

// EventType names an engine event.
type EventType string

const (
	EventSessionStart      EventType = "session_start"
	EventSessionEnd        EventType = "session_end"
	EventAssistantDetected EventType = "assistant_detected"
	EventAssistantState    EventType = "assistant_state"
	EventCwdChanged        EventType = "cwd_changed"
	EventGitInfo           EventType = "git_info"
	EventTest              EventType = "test"
)

// EventTypes lists every event the engine publishes.
func EventTypes() []EventType {
	return []EventType{
		EventSessionStart,
		EventSessionEnd,
		EventAssistantDetected,
		EventAssistantState,
		EventCwdChanged,
		EventGitInfo,
	}
}

// Event is the JSON structure shared by every sink.
type Event struct {
	Event     EventType      `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Session   string         `json:"session,omitempty"`
	Assistant string         `json:"assistant,omitempty"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType) *Event {
	return &Event{
		Event:     eventType,
		Timestamp: time.Now(),
	}
}

// At overrides the timestamp and returns the event for chaining.
func (e *Event) At(t time.Time) *Event {
	e.Timestamp = t
	return e
}

// WithSession sets the session id and returns the event for chaining.
func (e *Event) WithSession(id string) *Event {
	e.Session = id
	return e
}

// WithAssistant sets the assistant id and returns the event for chaining.
func (e *Event) WithAssistant(id string) *Event {
	e.Assistant = id
	return e
}

// WithTitle sets the title and returns the event for chaining.
func (e *Event) WithTitle(title string) *Event {
	e.Title = title
	return e
}

// WithMessage sets the message and returns the event for chaining.
func (e *Event) WithMessage(message string) *Event {
	e.Message = message
	return e
}

// WithMetadata adds a key-value pair and returns the event for chaining.
func (e *Event) WithMetadata(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// JSON returns the event serialized as a single JSON line without a trailing newline.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// eventSet is a filter built from configured event names. A nil set accepts everything.
type eventSet map[string]bool

func newEventSet(names []string) eventSet {
	if len(names) == 0 {
		return nil
	}
	set := make(eventSet, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func (s eventSet) allows(t EventType) bool {
	return s == nil || s[string(t)] || s["all"]
}
