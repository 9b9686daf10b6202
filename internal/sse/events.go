// Package sse implements Server-Sent Events for streaming tag store
// transitions to UI clients.
package sse

import (
	"strings"
	"time"

	"github.com/upnorway/sanity-plugin-media/internal/tagstore"
)

// EventType represents the type of SSE Event. Transition events are named
// after their action with the slash replaced by a dot, such as
// "tags.createComplete" or "assets.updateRequest".
type EventType string

const (
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
	// EventConnected is sent once when a client connects.
	EventConnected EventType = "connected"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the action payload as a JSON object.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Type      EventType `json:"type"`
	// Seq is the store sequence number of the transition, 0 for heartbeats.
	Seq uint64 `json:"seq,omitempty"`
}

// EventTypeFor returns the event type for a store action type.
func EventTypeFor(t tagstore.ActionType) EventType {
	return EventType(strings.ReplaceAll(string(t), "/", "."))
}

// NewTransitionEvent creates an event for an applied store transition.
func NewTransitionEvent(d tagstore.Dispatched) Event {
	return Event{
		Type:      EventTypeFor(d.Action.Type()),
		Data:      d.Action,
		Seq:       d.Seq,
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
	}
}
