package events

import (
	"context"

	"lending/internal/domain"

	"github.com/sirupsen/logrus"
)

func LogSink(log logrus.FieldLogger) Handler {
	return func(_ context.Context, event domain.Event) error {
		log.WithFields(logrus.Fields{
			"event_id":    event.EventID(),
			"event_type":  event.EventType(),
			"occurred_on": event.OccurredOn(),
		}).Info("domain event")
		return nil
	}
}
