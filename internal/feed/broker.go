package feed

import (
	"log/slog"
	"sync"

	"github.com/yourorg/aquamonitor/internal/domain"
)

// Broker fans measurements out to live subscribers, keyed by aquarium.
// Delivery is best effort: a subscriber that cannot keep up has the event
// dropped rather than blocking the writer.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int64]map[chan *domain.Measurement]struct{}
	logger *slog.Logger
}

// NewBroker creates an empty broker
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[int64]map[chan *domain.Measurement]struct{}),
		logger: logger,
	}
}

// Subscribe registers interest in one aquarium's measurements. The returned
// cancel func must be called exactly once; after it returns the channel is
// closed.
func (b *Broker) Subscribe(aquariumID int64) (<-chan *domain.Measurement, func()) {
	ch := make(chan *domain.Measurement, 16)

	b.mu.Lock()
	if b.subs[aquariumID] == nil {
		b.subs[aquariumID] = make(map[chan *domain.Measurement]struct{})
	}
	b.subs[aquariumID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[aquariumID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, aquariumID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish delivers a measurement to every current subscriber of its
// aquarium.
func (b *Broker) Publish(m *domain.Measurement) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[m.AquariumID] {
		select {
		case ch <- m:
		default:
			b.logger.Warn("feed subscriber lagging, event dropped",
				slog.Int64("aquarium_id", m.AquariumID),
			)
		}
	}
}

// SubscriberCount reports how many clients watch the given aquarium.
func (b *Broker) SubscriberCount(aquariumID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[aquariumID])
}
