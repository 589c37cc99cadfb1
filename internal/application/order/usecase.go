package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
)

type CreateItemInput struct {
	ProductID string `json:"product" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
	// RequestedPrice is what the client saw. It is never used for pricing.
	RequestedPrice *decimal.Decimal `json:"price,omitempty"`
}

type CreateOrderInput struct {
	Actor           string               `json:"-"`
	CustomerID      string               `json:"customer,omitempty"`
	Items           []CreateItemInput    `json:"items" validate:"min=1,dive"`
	ShippingAddress domain.Address       `json:"shippingAddress"`
	BillingAddress  *domain.Address      `json:"billingAddress,omitempty"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod" validate:"required,payment_method"`
	Priority        domain.Priority      `json:"priority,omitempty" validate:"omitempty,priority"`
	Notes           domain.Notes         `json:"notes"`
	Tags            []string             `json:"tags,omitempty"`
	Tax             decimal.Decimal      `json:"tax"`
	ShippingCost    decimal.Decimal      `json:"shippingCost"`
	Discount        decimal.Decimal      `json:"discount"`
}

// Validate reports every invalid field at once.
func (in CreateOrderInput) Validate() error {
	verr := checkStruct(in)
	for i, item := range in.Items {
		if item.RequestedPrice != nil && item.RequestedPrice.IsNegative() {
			verr.Add(fmt.Sprintf("items[%d].price", i), "must be zero or greater")
		}
	}
	verr.Merge(domain.CheckCharges(in.Tax, in.ShippingCost, in.Discount))
	return verr.Err()
}

func (in CreateOrderInput) stockRequests() []product.StockRequest {
	reqs := make([]product.StockRequest, 0, len(in.Items))
	for _, item := range in.Items {
		reqs = append(reqs, product.StockRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return reqs
}

// CreateOrderUseCase places an order: reserve stock, price, number, persist.
// Any failure after the reservation releases the reserved stock again.
type CreateOrderUseCase struct {
	repo        domain.Repository
	ledger      StockLedger
	numbers     NumberGenerator
	idGenerator IDGenerator
	events      eventPublisher
	compensate  compensator
	in          application.Instruments
	now         func() time.Time
}

func NewCreateOrderUseCase(
	repo domain.Repository,
	ledger StockLedger,
	numbers NumberGenerator,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CreateOrderUseCase {
	in := application.NewInstruments(tel, orderService)
	return &CreateOrderUseCase{
		repo:        repo,
		ledger:      ledger,
		numbers:     numbers,
		idGenerator: idGen,
		events:      newEventPublisher(publisher, in.Metrics),
		compensate:  compensator{ledger: ledger, counter: in.Metrics.Counter(observability.MStockCompensations)},
		in:          in,
		now:         time.Now,
	}
}

// Execute performs the order creation flow.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *domain.Order, err error) {
	ctx, exec := uc.in.Begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.customer_id", cmd.CustomerID),
		attribute.Int("order.items", len(cmd.Items)),
	)
	defer func() { exec.End(err) }()
	logger := exec.Logger()

	if verr := cmd.Validate(); verr != nil {
		exec.Fail("VALIDATION_FAILED")
		return nil, verr
	}

	reqs := cmd.stockRequests()
	reservations, err := uc.ledger.Reserve(ctx, reqs)
	if err != nil {
		switch {
		case errors.Is(err, product.ErrInsufficientStock):
			exec.Fail("INSUFFICIENT_STOCK")
		case errors.Is(err, product.ErrNotFound):
			exec.Fail("PRODUCT_NOT_FOUND")
		default:
			exec.Fail("RESERVE_FAILED")
		}
		return nil, err
	}
	exec.Span().AddEvent("order.stock_reserved")

	now := uc.now()
	customerID := cmd.CustomerID
	if customerID == "" {
		customerID = cmd.Actor
	}
	entity, err := domain.New(domain.Params{
		ID:              uc.idGenerator.NewID(),
		CustomerID:      customerID,
		CreatedBy:       cmd.Actor,
		Items:           priceLines(logger, cmd.Items, reservations),
		Tax:             cmd.Tax,
		ShippingCost:    cmd.ShippingCost,
		Discount:        cmd.Discount,
		ShippingAddress: cmd.ShippingAddress,
		BillingAddress:  cmd.BillingAddress,
		PaymentMethod:   cmd.PaymentMethod,
		Priority:        cmd.Priority,
		Notes:           cmd.Notes,
		Tags:            cmd.Tags,
		Now:             now,
	})
	if err != nil {
		exec.Fail("ORDER_INVALID")
		_ = uc.compensate.release(ctx, logger, "order_invalid", reqs)
		return nil, err
	}

	number, err := uc.numbers.Next(ctx, now)
	if err != nil {
		exec.Fail("ORDER_NUMBER_FAILED")
		_ = uc.compensate.release(ctx, logger, "order_number_failed", reqs)
		return nil, err
	}
	entity.OrderNumber = number
	exec.Span().SetAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.number", number),
	)

	if err := ctx.Err(); err != nil {
		exec.Fail("CONTEXT_CANCELED")
		_ = uc.compensate.release(ctx, logger, "context_canceled", reqs)
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}
	if err := uc.repo.Insert(ctx, entity); err != nil {
		exec.Fail("REPO_INSERT_FAILED")
		_ = uc.compensate.release(ctx, logger, "persist_failed", reqs)
		return nil, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err)
	}

	if pubErr := uc.events.publish(ctx, domain.NewOrderCreatedEvent(entity)); pubErr != nil {
		exec.SetStatus("EVENT_PUBLISH_FAILED")
		exec.Add(observability.F("event_publish_error", pubErr.Error()))
	}

	exec.Add(
		observability.F("order_id", entity.ID),
		observability.F("order_number", entity.OrderNumber),
		observability.F("total_amount", entity.TotalAmount.StringFixed(2)),
	)
	exec.Span().AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", entity.ID)))
	return entity, nil
}

// priceLines snapshots name, unit price and discount from the reservation of each line's product.
func priceLines(logger observability.Logger, items []CreateItemInput, reservations []product.Reservation) []domain.LineItem {
	byProduct := make(map[string]product.Reservation, len(reservations))
	for _, r := range reservations {
		byProduct[r.ProductID] = r
	}

	lines := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		r := byProduct[item.ProductID]
		r.ProductID = item.ProductID
		r.Quantity = item.Quantity
		if item.RequestedPrice != nil && !item.RequestedPrice.Equal(r.UnitPrice) {
			logger.Debug("requested_price_ignored",
				observability.F("product_id", item.ProductID),
				observability.F("requested", item.RequestedPrice.String()),
				observability.F("catalog", r.UnitPrice.String()),
			)
		}
		lines = append(lines, domain.LineFromReservation(r))
	}
	return lines
}
