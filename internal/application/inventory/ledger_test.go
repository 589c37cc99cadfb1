package inventory_test

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-orders/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newStore() *memory.ProductRepository {
	return memory.NewProductRepository(
		&product.Product{ID: "mug", Name: "Mug", Price: decimal.NewFromInt(10), Stock: 5, Active: true},
		&product.Product{ID: "pen", Name: "Pen", Price: decimal.NewFromInt(5), Stock: 1, Active: true},
	)
}

func stock(t *testing.T, store *memory.ProductRepository, id string) int {
	t.Helper()
	p, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestLedger_ReserveMergesDuplicateLines(t *testing.T) {
	store := newStore()
	ledger := inventory.NewLedger(store, observability.Nop())

	res, err := ledger.Reserve(context.Background(), []product.StockRequest{
		{ProductID: "mug", Quantity: 2},
		{ProductID: "pen", Quantity: 1},
		{ProductID: "mug", Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, res, 2)
	assert.Equal(t, "mug", res[0].ProductID)
	assert.Equal(t, 3, res[0].Quantity)
	assert.Equal(t, 2, stock(t, store, "mug"))
	assert.Equal(t, 0, stock(t, store, "pen"))
}

func TestLedger_ShortSecondLineLeavesFirstUntouched(t *testing.T) {
	store := newStore()
	ledger := inventory.NewLedger(store, observability.Nop())

	_, err := ledger.Reserve(context.Background(), []product.StockRequest{
		{ProductID: "mug", Quantity: 2},
		{ProductID: "pen", Quantity: 3},
	})

	require.ErrorIs(t, err, product.ErrInsufficientStock)
	var short *product.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, []string{"pen"}, short.ProductIDs)
	assert.Equal(t, 5, stock(t, store, "mug"))
	assert.Equal(t, 1, stock(t, store, "pen"))
}

func TestLedger_ReleaseRestoresStock(t *testing.T) {
	store := newStore()
	ledger := inventory.NewLedger(store, observability.Nop())
	ctx := context.Background()

	reqs := []product.StockRequest{{ProductID: "mug", Quantity: 4}}
	_, err := ledger.Reserve(ctx, reqs)
	require.NoError(t, err)
	require.NoError(t, ledger.Release(ctx, reqs))

	assert.Equal(t, 5, stock(t, store, "mug"))
}

func TestLedger_RejectsInvalidBatches(t *testing.T) {
	ledger := inventory.NewLedger(newStore(), observability.Nop())
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, nil)
	require.ErrorIs(t, err, inventory.ErrEmptyBatch)

	_, err = ledger.Reserve(ctx, []product.StockRequest{{ProductID: "mug", Quantity: 0}})
	require.ErrorIs(t, err, product.ErrInvalidQuantity)

	_, err = ledger.Reserve(ctx, []product.StockRequest{{ProductID: "ghost", Quantity: 1}})
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestLedger_LogsFailureStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tel := infraobs.New(nil, zaplogger.Wrap(zap.New(core)), nil, nil)
	ledger := inventory.NewLedger(newStore(), tel)

	_, err := ledger.Reserve(context.Background(), []product.StockRequest{{ProductID: "pen", Quantity: 2}})
	require.Error(t, err)

	done := logs.FilterMessage("use_case_done").All()
	require.Len(t, done, 1)
	fields := done[0].ContextMap()
	assert.Equal(t, "inventory.reserve", fields["use_case"])
	assert.Equal(t, "error", fields["outcome"])
	assert.Equal(t, "INSUFFICIENT_STOCK", fields["status"])
}

func TestCoalesce_KeepsFirstSeenOrder(t *testing.T) {
	out, err := inventory.Coalesce([]product.StockRequest{
		{ProductID: "b", Quantity: 1},
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, []product.StockRequest{{ProductID: "b", Quantity: 4}, {ProductID: "a", Quantity: 2}}, out)
}
