package board

import (
	"sync"

	"github.com/google/uuid"
)

// Notice topics.
const (
	TopicModel      = "model"
	TopicPresets    = "presets"
	TopicHistory    = "history"
	TopicPlayback   = "playback"
	TopicGeneration = "generation"
)

// Notice is one board event delivered to subscribers.
type Notice struct {
	Seq   uint64 `json:"seq"`
	Topic string `json:"topic"`
	Data  any    `json:"data,omitempty"`
}

type subscription struct {
	id string
	ch chan Notice
}

// Hub broadcasts board events to subscribers. Slow subscribers drop
// notices instead of blocking the board.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	closed        bool

	sequenceNo   uint64
	sequenceNoMu sync.Mutex
}

// NewHub creates a new event hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns its ID and channel.
// The channel is closed on Unsubscribe or when the hub closes.
func (h *Hub) Subscribe() (string, <-chan Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{id: id, ch: make(chan Notice, 32)}
	if h.closed {
		close(sub.ch)
		return id, sub.ch
	}
	h.subscriptions[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(subscriptionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscriptions[subscriptionID]
	if !ok {
		return
	}
	delete(h.subscriptions, subscriptionID)
	close(sub.ch)
}

// Broadcast sends a notice to all subscribers without blocking.
func (h *Hub) Broadcast(topic string, data any) {
	h.sequenceNoMu.Lock()
	h.sequenceNo++
	n := Notice{Seq: h.sequenceNo, Topic: topic, Data: data}
	h.sequenceNoMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscriptions {
		select {
		case sub.ch <- n:
		default:
			// Subscriber is not keeping up, drop
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// Close closes the hub and all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subscriptions {
		delete(h.subscriptions, id)
		close(sub.ch)
	}
}
