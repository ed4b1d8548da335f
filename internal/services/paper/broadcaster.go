package paper

import (
	"sync"

	"BtcTrader/internal/domain/models"
)

// Broadcaster fans account summaries out to live subscribers (SSE clients).
// Slow subscribers drop updates instead of blocking the publisher.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan models.PaperSummary
	buffer int
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 8
	}
	return &Broadcaster{subs: make(map[string]map[int]chan models.PaperSummary), buffer: buffer}
}

// Subscribe registers a subscriber for userID. The returned cancel func closes the channel.
func (b *Broadcaster) Subscribe(userID string) (<-chan models.PaperSummary, func()) {
	ch := make(chan models.PaperSummary, b.buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]chan models.PaperSummary)
	}
	b.subs[userID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if m, ok := b.subs[userID]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(b.subs, userID)
				}
			}
			close(ch)
		})
	}
}

// Publish delivers s to every subscriber of s.UserID without blocking.
// Returns how many subscribers received it.
func (b *Broadcaster) Publish(s models.PaperSummary) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subs[s.UserID] {
		select {
		case ch <- s:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers reports the number of live subscribers for userID.
func (b *Broadcaster) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
