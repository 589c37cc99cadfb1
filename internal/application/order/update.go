package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderUpdate = "order.update"

// UpdateOrderInput carries the subset of fields an admin supplied. Nil means "leave as is".
type UpdateOrderInput struct {
	ID              string                  `json:"-"`
	Actor           string                  `json:"-"`
	Status          *domain.Status          `json:"status,omitempty"`
	StatusNote      string                  `json:"statusNote,omitempty"`
	PaymentStatus   *domain.PaymentStatus   `json:"paymentStatus,omitempty"`
	ShippingDetails *domain.ShippingDetails `json:"shippingDetails,omitempty"`
	Notes           *domain.Notes           `json:"notes,omitempty"`
	Priority        *domain.Priority        `json:"priority,omitempty"`
	Tags            *[]string               `json:"tags,omitempty"`
}

func (in UpdateOrderInput) Validate() error {
	verr := &domain.ValidationError{}
	if in.ID == "" {
		verr.Add("id", "is required")
	}
	if in.Status != nil && !in.Status.Valid() {
		verr.Add("status", "is not a known order status")
	}
	if in.PaymentStatus != nil && !in.PaymentStatus.Valid() {
		verr.Add("paymentStatus", "is not a known payment status")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		verr.Add("priority", "must be one of low, normal, high, urgent")
	}
	return verr.Err()
}

// UpdateOrderUseCase applies admin changes. Status changes go through the state
// machine and are recorded in the history; everything else is overwritten.
type UpdateOrderUseCase struct {
	repo       domain.Repository
	ledger     StockLedger
	events     eventPublisher
	compensate compensator
	in         application.Instruments
	now        func() time.Time
}

func NewUpdateOrderUseCase(
	repo domain.Repository,
	ledger StockLedger,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *UpdateOrderUseCase {
	in := application.NewInstruments(tel, orderService)
	return &UpdateOrderUseCase{
		repo:       repo,
		ledger:     ledger,
		events:     newEventPublisher(publisher, in.Metrics),
		compensate: compensator{ledger: ledger, counter: in.Metrics.Counter(observability.MStockCompensations)},
		in:         in,
		now:        time.Now,
	}
}

func (uc *UpdateOrderUseCase) Execute(ctx context.Context, cmd UpdateOrderInput) (_ *domain.Order, err error) {
	ctx, exec := uc.in.Begin(ctx, useCaseOrderUpdate, "UpdateOrder", attribute.String("order.id", cmd.ID))
	defer func() { exec.End(err) }()
	logger := exec.Logger()

	if verr := cmd.Validate(); verr != nil {
		exec.Fail("VALIDATION_FAILED")
		return nil, verr
	}

	entity, err := loadActive(ctx, uc.repo, cmd.ID)
	if err != nil {
		exec.Fail(repoStatus(err, "REPO_GET_FAILED"))
		return nil, err
	}

	at := uc.now()
	prevStatus, prevPayment := entity.Status, entity.PaymentStatus
	dirty := false

	statusChanged := false
	if cmd.Status != nil {
		statusChanged, err = entity.ChangeStatus(*cmd.Status, cmd.Actor, cmd.StatusNote, at)
		if err != nil {
			exec.Fail("INVALID_STATUS_TRANSITION")
			return nil, err
		}
		dirty = dirty || statusChanged
	}
	paymentChanged := false
	if cmd.PaymentStatus != nil {
		paymentChanged, err = entity.ChangePaymentStatus(*cmd.PaymentStatus, cmd.Actor, at)
		if err != nil {
			exec.Fail("INVALID_PAYMENT_TRANSITION")
			return nil, err
		}
		dirty = dirty || paymentChanged
	}
	if cmd.ShippingDetails != nil {
		entity.SetShippingDetails(*cmd.ShippingDetails, cmd.Actor, at)
		dirty = true
	}
	if cmd.Notes != nil {
		entity.SetNotes(*cmd.Notes, cmd.Actor, at)
		dirty = true
	}
	if cmd.Priority != nil {
		if err := entity.SetPriority(*cmd.Priority, cmd.Actor, at); err != nil {
			exec.Fail("VALIDATION_FAILED")
			return nil, err
		}
		dirty = true
	}
	if cmd.Tags != nil {
		entity.SetTags(*cmd.Tags, cmd.Actor, at)
		dirty = true
	}

	if !dirty {
		exec.SetStatus("NOOP")
		return entity, nil
	}
	if err := entity.CheckHistory(); err != nil {
		exec.Fail("HISTORY_INCONSISTENT")
		return nil, err
	}

	if err := uc.repo.Update(ctx, entity); err != nil {
		exec.Fail(repoStatus(err, "REPO_UPDATE_FAILED"))
		return nil, fmt.Errorf("order: update %s: %w", entity.ID, err)
	}

	// Only the writer whose cancellation committed returns the stock.
	released := false
	if statusChanged && entity.Status == domain.StatusCancelled {
		released = uc.compensate.releaseCancelled(ctx, logger, entity.StockRequests())
		if !released {
			exec.SetStatus("STOCK_RELEASE_INCOMPLETE")
		}
	}

	var pubErr error
	if statusChanged {
		pubErr = errors.Join(pubErr, uc.events.publish(ctx, domain.NewOrderStatusChangedEvent(entity, prevStatus)))
	}
	if paymentChanged {
		pubErr = errors.Join(pubErr, uc.events.publish(ctx, domain.NewOrderPaymentStatusChangedEvent(entity, prevPayment)))
	}
	if pubErr != nil {
		exec.SetStatus("EVENT_PUBLISH_FAILED")
		exec.Add(observability.F("event_publish_error", pubErr.Error()))
	}

	exec.Add(
		observability.F("order_id", entity.ID),
		observability.F("order_status", string(entity.Status)),
		observability.F("stock_released", released),
	)
	return entity, nil
}

// loadActive resolves id to an order that has not been soft-deleted.
func loadActive(ctx context.Context, repo domain.Repository, id string) (*domain.Order, error) {
	entity, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("order: get %s: %w", id, err)
	}
	if !entity.Active {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entity, nil
}

func repoStatus(err error, fallback string) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return "VERSION_CONFLICT"
	}
	return fallback
}
