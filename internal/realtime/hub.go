// Package realtime pushes post changes to connected viewers.
//
// Every committed write to the posts table fires a database trigger that
// publishes on the post_changes channel. The Hub listens on that channel
// and wakes the subscribers allowed to see the post, which then re-query
// their listing. Signals carry no post data, so a dropped or coalesced
// signal only delays a refresh.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Channel is the Postgres notification channel written by the posts trigger
const Channel = "post_changes"

// Change identifies a post that was inserted, updated or deleted
type Change struct {
	PostID     string `json:"id"`
	ClientID   string `json:"client_id"`
	DesignerID string `json:"designer_id"`
	Op         string `json:"op"`
}

// ParseChange decodes a trigger payload
func ParseChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.PostID == "" {
		return Change{}, fmt.Errorf("decode change: missing post id")
	}
	return c, nil
}

// Subscription receives a signal whenever something the viewer can see changed
type Subscription struct {
	C     <-chan Change
	ch    chan Change
	actor models.Actor
}

func (s *Subscription) wants(c Change) bool {
	if c.ClientID == s.actor.UserID || c.DesignerID == s.actor.UserID {
		return true
	}
	// Unclaimed ideas are visible to every designer
	return s.actor.Role == models.RoleDesigner && c.DesignerID == ""
}

// Hub fans changes out to subscribers
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
	log  zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[*Subscription]struct{}),
		log:  log.With().Str("component", "realtime").Logger(),
	}
}

// Subscribe registers a viewer. The caller must Unsubscribe when done.
func (h *Hub) Subscribe(actor models.Actor) *Subscription {
	// One slot: a pending signal already guarantees a refresh
	ch := make(chan Change, 1)
	sub := &Subscription{C: ch, ch: ch, actor: actor}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.log.Debug().Str("user_id", actor.UserID).Int("subscribers", count).Msg("Viewer subscribed")
	return sub
}

// Unsubscribe removes the viewer and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of connected viewers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish wakes every subscriber allowed to see the change. It never blocks.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.wants(c) {
			select {
			case sub.ch <- c:
			default:
			}
		}
	}
}

// broadcast wakes everyone, used after the listener reconnects and may have missed changes
func (h *Hub) broadcast() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- Change{Op: "resync"}:
		default:
		}
	}
}

// Listen relays database notifications until ctx is cancelled
func (h *Hub) Listen(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			h.log.Warn().Err(err).Msg("Change listener lost its connection")
		case pq.ListenerEventReconnected:
			h.log.Info().Msg("Change listener reconnected")
		}
	})
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("listen on %s: %w", Channel, err)
	}
	h.log.Info().Str("channel", Channel).Msg("Listening for post changes")

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Change listener stopped")
			return nil

		case n := <-listener.Notify:
			if n == nil {
				// Reconnected: notifications may have been lost
				h.broadcast()
				continue
			}
			change, err := ParseChange(n.Extra)
			if err != nil {
				h.log.Warn().Err(err).Str("payload", n.Extra).Msg("Ignoring malformed change")
				continue
			}
			h.Publish(change)

		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					h.log.Warn().Err(err).Msg("Change listener ping failed")
				}
			}()
		}
	}
}
