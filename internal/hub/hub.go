package hub

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

const defaultBufferSize = 64

// Hub is a dumb fan-out relay: it holds no event data and replays
// nothing. Each subscriber gets its own buffered channel, which
// preserves delivery order per connection. There is no ordering
// guarantee across senders.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan Envelope
	buf  int
}

func New() *Hub {
	return &Hub{subs: make(map[string]chan Envelope), buf: defaultBufferSize}
}

// Subscribe registers a connection and returns its delivery channel.
// The channel is closed on Unsubscribe.
func (h *Hub) Subscribe(connID string) <-chan Envelope {
	ch := make(chan Envelope, h.buf)
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.subs[connID]; ok {
		close(old)
	}
	h.subs[connID] = ch
	return ch
}

func (h *Hub) Unsubscribe(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[connID]; ok {
		close(ch)
		delete(h.subs, connID)
	}
}

// Broadcast delivers env to every subscriber except the sender.
func (h *Hub) Broadcast(senderID string, env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		if id == senderID {
			continue
		}
		h.deliver(id, ch, env)
	}
}

// BroadcastAll delivers env to every subscriber, sender included.
// Used for relayed notifications that have no originating connection.
func (h *Hub) BroadcastAll(env Envelope) {
	h.Broadcast("", env)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) deliver(id string, ch chan Envelope, env Envelope) {
	select {
	case ch <- env:
	default:
		// A stalled connection must not block the relay; the client
		// re-synchronizes with a full fetch on reconnect anyway.
		log.Warnf("hub: dropping %s for slow subscriber %s", env.Type, id)
	}
}
