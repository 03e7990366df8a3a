package realtime

import "sync"

// Event types pushed to connected clients
const (
	EventVerificationPending  = "verification_pending"
	EventVerificationReviewed = "verification_reviewed"
	EventQuestCompleted       = "quest_completed"
	EventBalanceUpdated       = "balance_updated"
	EventBonusGranted         = "bonus_granted"
	EventChildLinked          = "child_linked"
)

// Event is one message pushed over a user's event stream
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// subscriberBuffer bounds each subscriber's channel. A subscriber that
// falls this far behind starts losing events rather than blocking
// publishers.
const subscriberBuffer = 16

// Hub fans events out to per-user subscribers. A user can hold several
// subscriptions at once (one per open browser tab).
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan Event]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subscribers: make(map[int64]map[chan Event]struct{})}
}

// Subscribe registers a new event channel for userID. The returned
// cancel function must be called when the subscriber disconnects.
func (h *Hub) Subscribe(userID int64) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan Event]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subscribers[userID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.subscribers, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to all of a user's subscribers. Slow
// subscribers are skipped, never waited on.
func (h *Hub) Publish(userID int64, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of open subscriptions for a user
func (h *Hub) SubscriberCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}
