package realtime

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher is implemented by everything that can announce a change.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Broker publishes changes and hands out subscriptions.
type Broker interface {
	Publisher
	Subscribe(ch Channel) *Subscription
}

// Hub fans changes out to in-process subscribers.
//
// Every subscriber has a single-slot buffer. A change arriving while the slot
// is full is dropped: the pending change already tells the subscriber to
// re-read its scope, so nothing is lost.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

var _ Broker = (*Hub)(nil)

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:  log,
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

func (h *Hub) Subscribe(ch Channel) *Subscription {
	sub := &Subscription{
		hub:   h,
		topic: ch.String(),
		ch:    make(chan Change, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sub.topic] = set
	}
	set[sub] = struct{}{}
	h.log.Debug("realtime subscribe", "channel", sub.topic, "subscribers", len(set))
	return sub
}

// Publish delivers the change locally. It never blocks on slow subscribers.
func (h *Hub) Publish(_ context.Context, change Change) error {
	h.Broadcast(change)
	return nil
}

// Broadcast delivers to subscribers of the change's filtered channel and of the whole table.
func (h *Hub) Broadcast(change Change) {
	topics := []string{change.Table}
	if change.Filter != "" {
		topics = append(topics, change.Table+":"+change.Filter)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, topic := range topics {
		for sub := range h.subs[topic] {
			select {
			case sub.ch <- change:
			default:
			}
		}
	}
}

// Subscribers reports how many live subscriptions a channel has.
func (h *Hub) Subscribers(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ch.String()])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.topic]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.topic)
	}
	close(sub.ch)
}

type Subscription struct {
	hub   *Hub
	topic string
	ch    chan Change
	once  sync.Once
}

var _ Feed = (*Subscription)(nil)

func (s *Subscription) Events() <-chan Change {
	return s.ch
}

func (s *Subscription) Close() error {
	s.once.Do(func() { s.hub.remove(s) })
	return nil
}
