package event

import (
	"context"
	"log/slog"
	"sync"

	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
)

// LocalPublisher delivers events in-process to handlers subscribed by
// topic. It is used when Kafka is disabled so notifications still flow.
// Handler errors are logged, never returned to the publisher.
type LocalPublisher struct {
	mu       sync.RWMutex
	handlers map[string][]pkgkafka.Handler
	logger   *slog.Logger
}

// NewLocalPublisher creates an empty in-process publisher.
func NewLocalPublisher(logger *slog.Logger) *LocalPublisher {
	return &LocalPublisher{handlers: make(map[string][]pkgkafka.Handler), logger: logger}
}

// Subscribe registers h for topic.
func (p *LocalPublisher) Subscribe(topic string, h pkgkafka.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[topic] = append(p.handlers[topic], h)
}

// Publish calls every handler of topic synchronously.
func (p *LocalPublisher) Publish(ctx context.Context, topic string, evt *pkgkafka.Event) error {
	p.mu.RLock()
	handlers := p.handlers[topic]
	p.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			p.logger.ErrorContext(ctx, "local event handler failed",
				slog.String("topic", topic),
				slog.String("event_id", evt.EventID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
