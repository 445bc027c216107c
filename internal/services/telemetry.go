package services

import (
	"context"
	"sync"

	"lending/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lending/services")

var (
	operationsOnce sync.Once
	operations     metric.Int64Counter
)

func operationCounter() metric.Int64Counter {
	operationsOnce.Do(func() {
		counter, err := otel.Meter("lending/services").Int64Counter("lending.operations",
			metric.WithDescription("Lending and savings use cases by outcome"))
		if err != nil {
			otel.Handle(err)
			operations = noop.Int64Counter{}
			return
		}
		operations = counter
	})
	return operations
}

// observe starts a span for one use case. The returned func ends the span and
// counts the outcome, labelled with the domain error kind on failure.
func observe(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if kind, ok := domain.KindOf(err); ok {
				outcome = string(kind)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		operationCounter().Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
		span.End()
	}
}
