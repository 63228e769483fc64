package messaging

import (
	"context"
	"log/slog"
	"sync"

	contractsv1 "adreel/contracts/gen/events/v1"
)

// MemoryBus is an in-process publish/subscribe bus used when no broker is
// configured.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan contractsv1.Envelope
	published   []Published
	logger      *slog.Logger
}

type Published struct {
	Topic string
	Event contractsv1.Envelope
}

func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBus{
		subscribers: make(map[string][]chan contractsv1.Envelope),
		logger:      logger,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	b.mu.Lock()
	b.published = append(b.published, Published{Topic: topic, Event: event})
	subs := append([]chan contractsv1.Envelope(nil), b.subscribers[topic]...)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"event", "memory_bus_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
			)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, handler func(context.Context, contractsv1.Envelope) error) {
	ch := make(chan contractsv1.Envelope, 128)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil {
					b.logger.Error("subscriber handler failed",
						"event", "memory_bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"event_id", event.EventID,
						"error", err.Error(),
					)
				}
			}
		}
	}()
}

func (b *MemoryBus) Published() []Published {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Published(nil), b.published...)
}

func (b *MemoryBus) removeSubscriber(topic string, target chan contractsv1.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	filtered := make([]chan contractsv1.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}
