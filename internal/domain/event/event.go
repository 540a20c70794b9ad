// Package event describes what happened to a draft.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event records one change to a draft or report
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	ReportType string         `json:"report_type"`
	DraftID    string         `json:"draft_id"`
	Version    int            `json:"version,omitempty"`
	ServerID   string         `json:"server_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// New creates an event for one draft.
func New(eventType Type, reportType, draftID string) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ReportType: reportType,
		DraftID:    draftID,
		Timestamp:  time.Now().UTC(),
	}
}

// WithVersion returns a copy carrying the draft version.
func (e *Event) WithVersion(v int) *Event {
	c := e.clone()
	c.Version = v
	return c
}

// WithServerID returns a copy carrying the remote report id.
func (e *Event) WithServerID(id string) *Event {
	c := e.clone()
	c.ServerID = id
	return c
}

// WithPayload returns a copy with key set in the payload. The receiver is
// left untouched.
func (e *Event) WithPayload(key string, value any) *Event {
	c := e.clone()
	c.Payload[key] = value
	return c
}

// PayloadString retrieves a string value from the payload
func (e *Event) PayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// PayloadInt retrieves an integer value from the payload
func (e *Event) PayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (e *Event) clone() *Event {
	c := *e
	c.Payload = make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		c.Payload[k] = v
	}
	return &c
}
