package tagstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Subscription.Next once the subscription or the
// store has stopped.
var ErrClosed = errors.New("tag store subscription closed")

// Dispatched is one applied transition together with the state it produced.
type Dispatched struct {
	Action Action
	State  State
	Seq    uint64
}

// Observer is called synchronously on the store loop after each transition.
// It must not block.
type Observer func(Dispatched)

// Store is the single writer of tag state. Dispatch enqueues actions from
// any goroutine; Run applies them in dispatch order and delivers each result
// to subscribers in the same order.
type Store struct {
	logger *slog.Logger
	wake   chan struct{}
	subs   map[uint64]*Subscription

	pending   []Action
	observers []Observer
	state     State
	seq       uint64
	nextSub   uint64

	pendingMu sync.Mutex
	stateMu   sync.RWMutex
	subsMu    sync.RWMutex
	stopped   bool
}

// New creates a store holding the initial state.
func New(logger *slog.Logger) *Store {
	return &Store{
		logger: logger,
		wake:   make(chan struct{}, 1),
		subs:   make(map[uint64]*Subscription),
		state:  Initial(),
	}
}

// State returns the latest applied snapshot.
func (s *Store) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Observe registers fn for every applied transition. Call before Run.
func (s *Store) Observe(fn Observer) {
	s.subsMu.Lock()
	s.observers = append(s.observers, fn)
	s.subsMu.Unlock()
}

// Dispatch enqueues actions. It never blocks and never drops; actions
// dispatched before Run starts are applied once it does.
func (s *Store) Dispatch(actions ...Action) {
	if len(actions) == 0 {
		return
	}

	s.pendingMu.Lock()
	s.pending = append(s.pending, actions...)
	s.pendingMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run applies queued actions until ctx is done, then closes every
// subscription. It should be called once.
func (s *Store) Run(ctx context.Context) error {
	s.logger.Info("tag store starting")

	for {
		select {
		case <-s.wake:
			s.drain()
		case <-ctx.Done():
			s.drain()
			s.stop()
			s.logger.Info("tag store stopped")
			return nil
		}
	}
}

func (s *Store) drain() {
	for {
		s.pendingMu.Lock()
		batch := s.pending
		s.pending = nil
		s.pendingMu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, a := range batch {
			s.apply(a)
		}
	}
}

func (s *Store) apply(a Action) {
	s.stateMu.Lock()
	s.state = Reduce(s.state, a)
	s.seq++
	d := Dispatched{Action: a, State: s.state, Seq: s.seq}
	s.stateMu.Unlock()

	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for _, fn := range s.observers {
		fn(d)
	}
	for _, sub := range s.subs {
		if sub.accepts(a.Type()) {
			sub.push(d)
		}
	}
}

func (s *Store) stop() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.stopped = true
	for subID, sub := range s.subs {
		sub.close()
		delete(s.subs, subID)
	}
}

// Subscribe returns a subscription receiving every transition applied after
// this call, or only those of the given types.
func (s *Store) Subscribe(types ...ActionType) *Subscription {
	sub := &Subscription{
		store:  s,
		notify: make(chan struct{}, 1),
	}
	if len(types) > 0 {
		sub.types = make(map[ActionType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if s.stopped {
		sub.close()
		return sub
	}
	s.nextSub++
	sub.id = s.nextSub
	s.subs[sub.id] = sub

	s.logger.Debug("tag store subscriber registered",
		slog.Uint64("subscriber_id", sub.id),
		slog.Int("total_subscribers", len(s.subs)))
	return sub
}

// SubscriberCount returns the number of open subscriptions.
func (s *Store) SubscriberCount() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.subs)
}

func (s *Store) unsubscribe(subID uint64) {
	s.subsMu.Lock()
	delete(s.subs, subID)
	s.subsMu.Unlock()
}

// Subscription is an unbounded, ordered mailbox of applied transitions.
type Subscription struct {
	store  *Store
	types  map[ActionType]struct{}
	notify chan struct{}
	queue  []Dispatched
	id     uint64
	mu     sync.Mutex
	closed bool
}

func (sub *Subscription) accepts(t ActionType) bool {
	if sub.types == nil {
		return true
	}
	_, ok := sub.types[t]
	return ok
}

func (sub *Subscription) push(d Dispatched) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.queue = append(sub.queue, d)
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *Subscription) close() {
	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a transition is available, ctx is done, or the
// subscription is closed. Queued transitions are still returned after close.
func (sub *Subscription) Next(ctx context.Context) (Dispatched, error) {
	for {
		sub.mu.Lock()
		if len(sub.queue) > 0 {
			d := sub.queue[0]
			sub.queue[0] = Dispatched{}
			sub.queue = sub.queue[1:]
			sub.mu.Unlock()
			return d, nil
		}
		closed := sub.closed
		sub.mu.Unlock()

		if closed {
			return Dispatched{}, ErrClosed
		}

		select {
		case <-sub.notify:
		case <-ctx.Done():
			return Dispatched{}, ctx.Err()
		}
	}
}

// Close stops delivery to this subscription.
func (sub *Subscription) Close() {
	if sub.store != nil && sub.id != 0 {
		sub.store.unsubscribe(sub.id)
	}
	sub.close()
}
