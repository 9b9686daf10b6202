package docstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/upnorway/sanity-plugin-media/internal/id"
)

// Transition describes how a mutation changed a listener's result set.
type Transition string

// Mutation transitions.
const (
	TransitionCreate Transition = "create"
	TransitionUpdate Transition = "update"
	TransitionDelete Transition = "delete"
)

// MutationEvent is delivered to listeners for every committed mutation that
// affects a document matching their filter. A document that stops matching
// is reported as a delete; one that starts matching as a create.
type MutationEvent struct {
	Timestamp  time.Time  `json:"timestamp"`
	Result     Document   `json:"result,omitempty"`
	Previous   Document   `json:"previous,omitempty"`
	Transition Transition `json:"transition"`
	DocumentID string     `json:"documentId"`
}

// change is a single committed document change, before filtering.
type change struct {
	previous Document
	result   Document
	id       string
}

type listener struct {
	query  *compiledQuery
	events chan MutationEvent
	id     string
}

// listenerHub fans committed changes out to listeners. Delivery never blocks
// a commit: a slow listener loses events and a warning is logged.
type listenerHub struct {
	listeners map[string]*listener
	logger    *slog.Logger
	buffer    int
	mu        sync.RWMutex
	closed    bool
}

func newListenerHub(logger *slog.Logger, buffer int) *listenerHub {
	return &listenerHub{
		listeners: make(map[string]*listener),
		logger:    logger,
		buffer:    buffer,
	}
}

// subscribe registers a listener that lives until ctx is done.
func (h *listenerHub) subscribe(ctx context.Context, q *compiledQuery) (<-chan MutationEvent, error) {
	listenerID, err := id.Generate("lsn")
	if err != nil {
		return nil, err
	}

	l := &listener{
		id:     listenerID,
		query:  q,
		events: make(chan MutationEvent, h.buffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.listeners[l.id] = l
	total := len(h.listeners)
	h.mu.Unlock()

	h.logger.Debug("docstore listener registered",
		slog.String("listener_id", l.id),
		slog.Int("total_listeners", total))

	go func() {
		<-ctx.Done()
		h.unsubscribe(l.id)
	}()

	return l.events, nil
}

func (h *listenerHub) unsubscribe(listenerID string) {
	h.mu.Lock()
	l, ok := h.listeners[listenerID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.listeners, listenerID)
	h.mu.Unlock()

	close(l.events)
	h.logger.Debug("docstore listener removed", slog.String("listener_id", listenerID))
}

// publish delivers changes in commit order.
func (h *listenerHub) publish(changes []change, at time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, l := range h.listeners {
		for _, c := range changes {
			event, ok := eventFor(l.query, c, at)
			if !ok {
				continue
			}
			select {
			case l.events <- event:
			default:
				h.logger.Warn("dropped mutation event for slow listener",
					slog.String("listener_id", l.id),
					slog.String("document_id", c.id),
					slog.String("transition", string(event.Transition)))
			}
		}
	}
}

// close removes every listener and closes their channels.
func (h *listenerHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for listenerID, l := range h.listeners {
		close(l.events)
		delete(h.listeners, listenerID)
	}
}

func eventFor(q *compiledQuery, c change, at time.Time) (MutationEvent, bool) {
	before := q.matches(c.previous)
	after := q.matches(c.result)

	event := MutationEvent{
		Timestamp:  at,
		DocumentID: c.id,
		Result:     c.result.Clone(),
		Previous:   c.previous.Clone(),
	}

	switch {
	case before && after:
		event.Transition = TransitionUpdate
	case after:
		event.Transition = TransitionCreate
	case before:
		event.Transition = TransitionDelete
		event.Result = nil
	default:
		return MutationEvent{}, false
	}
	return event, true
}
