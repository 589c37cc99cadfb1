package order_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	infraobs "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func placeOrder(t *testing.T, f *fixture) *domain.Order {
	t.Helper()
	o, err := f.create.Execute(context.Background(), checkout(item("mug", 2), item("pen", 1)))
	require.NoError(t, err)
	return o
}

func TestUpdateOrder_StatusChangeAppendsHistory(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)

	updated, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{
		ID:         o.ID,
		Actor:      "admin-7",
		Status:     ptr(domain.StatusConfirmed),
		StatusNote: "called customer",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusConfirmed, updated.Status)
	require.Equal(t, 2, updated.StatusHistory.Len())
	last, _ := updated.StatusHistory.Last()
	assert.Equal(t, "admin-7", last.UpdatedBy)
	assert.Equal(t, "called customer", last.Note)
	assert.True(t, updated.TotalAmount.Equal(o.TotalAmount))
	assert.Equal(t, []string{"order.created", "order.status_changed"}, f.publisher.names())
}

func TestUpdateOrder_SameStatusIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)

	updated, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{
		ID:     o.ID,
		Actor:  "admin",
		Status: ptr(domain.StatusPending),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, updated.StatusHistory.Len())
	assert.Equal(t, o.UpdatedAt, updated.UpdatedAt)
	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestUpdateOrder_HistoryOnlyGrows(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)
	ctx := context.Background()

	prev := 1
	for _, s := range []domain.Status{
		domain.StatusConfirmed, domain.StatusConfirmed, domain.StatusProcessing,
		domain.StatusShipped, domain.StatusOutForDelivery, domain.StatusDelivered,
	} {
		updated, err := f.update.Execute(ctx, apporder.UpdateOrderInput{ID: o.ID, Actor: "admin", Status: ptr(s)})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, updated.StatusHistory.Len(), prev)
		prev = updated.StatusHistory.Len()
		require.NoError(t, updated.CheckHistory())
	}
	assert.Equal(t, 6, prev)

	_, err := f.update.Execute(ctx, apporder.UpdateOrderInput{ID: o.ID, Actor: "admin", Status: ptr(domain.StatusCancelled)})
	require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestUpdateOrder_OverwritesPlainFields(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)

	updated, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{
		ID:              o.ID,
		Actor:           "admin",
		PaymentStatus:   ptr(domain.PaymentPaid),
		ShippingDetails: &domain.ShippingDetails{Carrier: "DHL", TrackingNumber: "JD0001"},
		Notes:           &domain.Notes{Admin: "fragile"},
		Priority:        ptr(domain.PriorityUrgent),
		Tags:            &[]string{"gift"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentPaid, updated.PaymentStatus)
	assert.NotNil(t, updated.PaymentDetails.PaidAt)
	assert.Equal(t, "DHL", updated.ShippingDetails.Carrier)
	assert.Equal(t, "fragile", updated.Notes.Admin)
	assert.Equal(t, domain.PriorityUrgent, updated.Priority)
	assert.Equal(t, []string{"gift"}, updated.Tags)
	assert.Equal(t, 1, updated.StatusHistory.Len())
	assert.Equal(t, "admin", updated.UpdatedBy)
}

func TestUpdateOrder_RejectsIllegalPaymentTransition(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)

	_, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{ID: o.ID, PaymentStatus: ptr(domain.PaymentRefunded)})

	require.ErrorIs(t, err, domain.ErrInvalidPaymentTransition)
}

func TestUpdateOrder_UnknownValues(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)

	_, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{
		ID:       o.ID,
		Status:   ptr(domain.Status("lost")),
		Priority: ptr(domain.Priority("asap")),
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestUpdateOrder_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{ID: "missing", Status: ptr(domain.StatusConfirmed)})

	require.ErrorIs(t, err, apporder.ErrNotFound)
}

func TestUpdateOrder_CancelReleasesStock(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)
	require.Equal(t, 3, f.stock(t, "mug"))

	updated, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{ID: o.ID, Actor: "admin", Status: ptr(domain.StatusCancelled)})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, updated.Status)
	assert.Equal(t, 5, f.stock(t, "mug"))
	assert.Equal(t, 2, f.stock(t, "pen"))
}

func TestUpdateOrder_CancelPersistFailureKeepsStock(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)
	f.orders.failUpdate = errors.New("primary stepped down")

	_, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{ID: o.ID, Status: ptr(domain.StatusCancelled)})

	require.Error(t, err)
	assert.Equal(t, 3, f.stock(t, "mug"))
	assert.Equal(t, 1, f.stock(t, "pen"))
	stored, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestUpdateOrder_ConcurrentCancelsReleaseOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	o, err := f.create.Execute(ctx, checkout(item("last", 1)))
	require.NoError(t, err)
	require.Equal(t, 0, f.stock(t, "last"))

	var arrived sync.WaitGroup
	arrived.Add(2)
	gate := make(chan struct{})
	f.orders.beforeUpdate = func() {
		arrived.Done()
		<-gate
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.update.Execute(ctx, apporder.UpdateOrderInput{ID: o.ID, Actor: "admin", Status: ptr(domain.StatusCancelled)})
			errs <- err
		}()
	}
	arrived.Wait()

	assert.Equal(t, 0, f.stock(t, "last"))
	_, err = f.create.Execute(ctx, checkout(item("last", 1)))
	require.ErrorIs(t, err, product.ErrInsufficientStock)

	close(gate)
	conflicts := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			require.ErrorIs(t, err, apporder.ErrConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, f.stock(t, "last"))

	_, err = f.create.Execute(ctx, checkout(item("last", 1)))
	require.NoError(t, err)
	_, err = f.create.Execute(ctx, checkout(item("last", 1)))
	require.ErrorIs(t, err, product.ErrInsufficientStock)
}

func TestUpdateOrder_CancelSkipsProductsRemovedFromCatalog(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.RegisterDefaults(prometrics.New(reg, "", ""))
	f := newFixtureWith(t, nil, infraobs.New(nil, nil, counters, histograms))
	ctx := context.Background()

	o, err := domain.New(domain.Params{
		ID:          "legacy-1",
		OrderNumber: "ORD-20250101-0001",
		CustomerID:  "cust-1",
		CreatedBy:   "cust-1",
		Items: []domain.LineItem{
			{ProductID: "discontinued", Name: "Old Mug", Quantity: 1, UnitPrice: dec("8")},
			{ProductID: "mug", Name: "Mug", Quantity: 2, UnitPrice: dec("10")},
		},
		ShippingAddress: address(),
		PaymentMethod:   domain.PaymentCreditCard,
		Now:             time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, f.orders.Insert(ctx, o))

	updated, err := f.update.Execute(ctx, apporder.UpdateOrderInput{ID: o.ID, Actor: "admin", Status: ptr(domain.StatusCancelled)})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, updated.Status)
	assert.Equal(t, 7, f.stock(t, "mug"))
	stored, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)

	expected := `
# HELP stock_compensations_total Stock movements retried, skipped or undone after a failed step.
# TYPE stock_compensations_total counter
stock_compensations_total{outcome="skipped",reason="product_missing"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "stock_compensations_total"))
}

// flakyLedger fails the first releases and then passes through.
type flakyLedger struct {
	apporder.StockLedger
	failures int
	calls    atomic.Int32
}

func (l *flakyLedger) Release(ctx context.Context, reqs []product.StockRequest) error {
	if int(l.calls.Add(1)) <= l.failures {
		return errors.New("stock store timeout")
	}
	return l.StockLedger.Release(ctx, reqs)
}

func TestUpdateOrder_CancelRetriesRelease(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)
	ledger := &flakyLedger{StockLedger: inventory.NewLedger(f.products, observability.Nop()), failures: 2}
	update := apporder.NewUpdateOrderUseCase(f.orders, ledger, f.publisher, observability.Nop())

	updated, err := update.Execute(context.Background(), apporder.UpdateOrderInput{ID: o.ID, Status: ptr(domain.StatusCancelled)})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, updated.Status)
	assert.Equal(t, int32(3), ledger.calls.Load())
	assert.Equal(t, 5, f.stock(t, "mug"))
	assert.Equal(t, 2, f.stock(t, "pen"))
}

func TestUpdateOrder_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)
	f.orders.failUpdate = domain.ErrConflict

	_, err := f.update.Execute(context.Background(), apporder.UpdateOrderInput{ID: o.ID, Notes: &domain.Notes{Admin: "x"}})

	require.ErrorIs(t, err, apporder.ErrConflict)
}

func TestDeleteOrder_HardDeleteKeepsStock(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)
	ctx := context.Background()

	_, err := f.remove.Execute(ctx, apporder.DeleteOrderInput{ID: o.ID, Actor: "admin"})
	require.NoError(t, err)

	_, err = f.orders.Get(ctx, o.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 3, f.stock(t, "mug"))

	_, err = f.remove.Execute(ctx, apporder.DeleteOrderInput{ID: o.ID})
	require.ErrorIs(t, err, apporder.ErrNotFound)
}

func TestDeleteOrder_SoftDeleteHidesOrder(t *testing.T) {
	f := newFixture(t, nil)
	o := placeOrder(t, f)
	ctx := context.Background()

	_, err := f.remove.Execute(ctx, apporder.DeleteOrderInput{ID: o.ID, Actor: "admin", Soft: true})
	require.NoError(t, err)

	stored, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	_, err = f.get.Execute(ctx, apporder.GetOrderInput{ID: o.ID})
	require.ErrorIs(t, err, apporder.ErrNotFound)
	_, err = f.update.Execute(ctx, apporder.UpdateOrderInput{ID: o.ID, Status: ptr(domain.StatusConfirmed)})
	require.ErrorIs(t, err, apporder.ErrNotFound)
	assert.Contains(t, f.publisher.names(), "order.deleted")
}
