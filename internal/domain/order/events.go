package order

import "time"

// OrderCreatedEvent is emitted once an order has been persisted.
type OrderCreatedEvent struct {
	OrderID     string
	OrderNumber string
	CustomerID  string
	ItemCount   int
	TotalAmount string
	OccurredAt  time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		ItemCount:   len(o.Items),
		TotalAmount: o.TotalAmount.StringFixed(2),
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted for every appended status history entry after creation.
type OrderStatusChangedEvent struct {
	OrderID     string
	OrderNumber string
	From        Status
	To          Status
	UpdatedBy   string
	OccurredAt  time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(o *Order, from Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		From:        from,
		To:          o.Status,
		UpdatedBy:   o.UpdatedBy,
		OccurredAt:  time.Now().UTC(),
	}
}

type OrderPaymentStatusChangedEvent struct {
	OrderID     string
	OrderNumber string
	From        PaymentStatus
	To          PaymentStatus
	OccurredAt  time.Time
}

func (OrderPaymentStatusChangedEvent) EventName() string { return "order.payment_status_changed" }

func NewOrderPaymentStatusChangedEvent(o *Order, from PaymentStatus) OrderPaymentStatusChangedEvent {
	return OrderPaymentStatusChangedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		From:        from,
		To:          o.PaymentStatus,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderDeletedEvent covers both hard deletes and deactivation.
type OrderDeletedEvent struct {
	OrderID     string
	OrderNumber string
	Soft        bool
	OccurredAt  time.Time
}

func (OrderDeletedEvent) EventName() string { return "order.deleted" }

func NewOrderDeletedEvent(o *Order, soft bool) OrderDeletedEvent {
	return OrderDeletedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Soft:        soft,
		OccurredAt:  time.Now().UTC(),
	}
}
