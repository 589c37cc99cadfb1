package audit

import (
	"context"

	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"
)

const workerService = "order-audit"

// Middleware decorates every handler the worker registers.
type Middleware func(consumer string, h domoutbox.Handler) domoutbox.Handler

// Worker records every order lifecycle event as a structured log line and a counter sample.
type Worker struct {
	subscriber domoutbox.Subscriber
	wrap       Middleware
	log        observability.Logger
	events     observability.Counter // order_events_total{event}
}

func NewWorker(subscriber domoutbox.Subscriber, tel observability.Observability, wrap Middleware) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	if wrap == nil {
		wrap = func(_ string, h domoutbox.Handler) domoutbox.Handler { return h }
	}
	return &Worker{
		subscriber: subscriber,
		wrap:       wrap,
		log:        tel.Logger().With(observability.F("service", workerService)),
		events:     tel.Metrics().Counter(observability.MOrderEvents),
	}
}

// Start subscribes the worker to the order events.
func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	for _, name := range []string{
		domorder.OrderCreatedEvent{}.EventName(),
		domorder.OrderStatusChangedEvent{}.EventName(),
		domorder.OrderPaymentStatusChangedEvent{}.EventName(),
		domorder.OrderDeletedEvent{}.EventName(),
	} {
		w.subscriber.Subscribe(name, w.wrap(workerService, w.handle))
	}
}

func (w *Worker) handle(ctx context.Context, e domoutbox.Event) error {
	logger := logctx.FromOr(ctx, w.log.With(observability.F("event", e.EventName())))

	var fields []observability.Field
	switch evt := e.(type) {
	case domorder.OrderCreatedEvent:
		fields = []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("order_number", evt.OrderNumber),
			observability.F("customer_id", evt.CustomerID),
			observability.F("items", evt.ItemCount),
			observability.F("total_amount", evt.TotalAmount),
		}
	case domorder.OrderStatusChangedEvent:
		fields = []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("order_number", evt.OrderNumber),
			observability.F("from", string(evt.From)),
			observability.F("to", string(evt.To)),
			observability.F("updated_by", evt.UpdatedBy),
		}
	case domorder.OrderPaymentStatusChangedEvent:
		fields = []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("order_number", evt.OrderNumber),
			observability.F("from", string(evt.From)),
			observability.F("to", string(evt.To)),
		}
	case domorder.OrderDeletedEvent:
		fields = []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("order_number", evt.OrderNumber),
			observability.F("soft", evt.Soft),
		}
	default:
		logger.Debug("order_event_ignored", observability.F("event", e.EventName()))
		return nil
	}

	w.events.Add(1, observability.L("event", e.EventName()))
	logger.Info("order_event_recorded", fields...)
	return nil
}
