package engine

import (
	"context"

	"morse/pkg/protocol"
)

// Hub fans decoded telemetry out to subscribers. Broadcast never
// blocks: a subscriber whose buffer is full misses events rather than
// stalling the reader.
type Hub struct {
	broadcast  chan protocol.Event
	register   chan chan protocol.Event
	unregister chan chan protocol.Event
	clients    map[chan protocol.Event]struct{}
	clientBuf  int
}

type HubOption func(*Hub)

func WithBroadcastBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan protocol.Event, size)
		}
	}
}

func WithClientBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		broadcast:  make(chan protocol.Event, 256),
		register:   make(chan chan protocol.Event),
		unregister: make(chan chan protocol.Event),
		clients:    make(map[chan protocol.Event]struct{}),
		clientBuf:  64,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for ch := range h.clients {
				close(ch)
			}
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case ev := <-h.broadcast:
			for ch := range h.clients {
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}
}

func (h *Hub) Subscribe() chan protocol.Event {
	return h.SubscribeWithBuffer(h.clientBuf)
}

func (h *Hub) SubscribeWithBuffer(size int) chan protocol.Event {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan protocol.Event, size)
	h.register <- ch
	return ch
}

func (h *Hub) Unsubscribe(ch chan protocol.Event) {
	h.unregister <- ch
}

// Publish enqueues ev for broadcast, dropping it when the broadcast
// buffer is saturated. The reader loop must never block here.
func (h *Hub) Publish(ev protocol.Event) {
	select {
	case h.broadcast <- ev:
	default:
	}
}
