// Package distribute holds the current schema snapshot and fans updates
// out to subscribers.
package distribute

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/funcdeck-hq/funcdeck/pkg/model"
)

// subscriber buffer; a subscriber that falls this far behind is pruned.
const subscriberBuffer = 8

// Hub owns the single current-snapshot slot. The slot is written only via
// Publish and read via Current; the snapshot itself is immutable, so
// readers share it freely.
type Hub struct {
	mu      sync.RWMutex
	current *model.Snapshot
	subs    map[chan *model.Snapshot]struct{}
}

// NewHub creates an empty hub with no current snapshot.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan *model.Snapshot]struct{})}
}

// Current returns the installed snapshot, or nil before the first build
// completes.
func (h *Hub) Current() *model.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers a new subscriber channel. If a snapshot is already
// installed it is delivered immediately; a subscriber that arrives before
// the first build receives nothing until the next publish.
func (h *Hub) Subscribe() chan *model.Snapshot {
	ch := make(chan *model.Snapshot, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
	if h.current != nil {
		ch <- h.current
	}
	return ch
}

// Unsubscribe removes a subscriber. Idempotent; the channel is closed so
// consumers unblock.
func (h *Hub) Unsubscribe(ch chan *model.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

// Publish installs snap as the current snapshot and delivers it to every
// subscriber, best effort: a subscriber whose buffer is full is pruned
// rather than retried, and never blocks delivery to the others.
func (h *Hub) Publish(snap *model.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = snap

	for ch := range h.subs {
		select {
		case ch <- snap:
		default:
			log.Warn().Msg("pruning stalled schema subscriber")
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
