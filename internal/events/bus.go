package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lending/internal/domain"

	"github.com/sirupsen/logrus"
)

// Handler consumes one committed domain event.
type Handler func(ctx context.Context, event domain.Event) error

// Bus fans committed events out to in-process subscribers. Handlers run in
// subscription order on the publishing goroutine.
type Bus struct {
	mu       sync.RWMutex
	byType   map[string][]Handler
	wildcard []Handler
	log      logrus.FieldLogger
}

func NewBus(log logrus.FieldLogger) *Bus {
	return &Bus{
		byType: make(map[string][]Handler),
		log:    log,
	}
}

func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[eventType] = append(b.byType[eventType], handler)
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish delivers every event to its subscribers. A failing handler does not
// stop delivery to the others; all failures are joined into the result.
func (b *Bus) Publish(ctx context.Context, events ...domain.Event) error {
	var errs []error
	for _, event := range events {
		for _, handler := range b.handlersFor(event.EventType()) {
			if err := handler(ctx, event); err != nil {
				b.log.WithError(err).WithFields(logrus.Fields{
					"event_id":   event.EventID(),
					"event_type": event.EventType(),
				}).Warn("event handler failed")
				errs = append(errs, fmt.Errorf("%s %s: %w", event.EventType(), event.EventID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) handlersFor(eventType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]Handler, 0, len(b.byType[eventType])+len(b.wildcard))
	handlers = append(handlers, b.byType[eventType]...)
	return append(handlers, b.wildcard...)
}
