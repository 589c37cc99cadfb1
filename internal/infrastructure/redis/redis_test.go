package redis

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// uniqueID keeps parallel runs against a shared Redis apart.
func uniqueID(t *testing.T, name string) string {
	return fmt.Sprintf("%s-%s-%d", t.Name(), name, time.Now().UnixNano())
}

func seed(t *testing.T, client *goredis.Client, ps ...*product.Product) *StockLedger {
	t.Helper()
	ctx := context.Background()
	ledger := NewStockLedger(client)
	require.NoError(t, ledger.Seed(ctx, ps...))
	t.Cleanup(func() {
		for _, p := range ps {
			client.Del(ctx, productKey(p.ID))
		}
	})
	return ledger
}

func TestStockLedger_ReserveSnapshotsAndDecrements(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	mug := &product.Product{ID: uniqueID(t, "mug"), Name: "Mug", Price: decimal.RequireFromString("12.50"), DiscountPercent: decimal.RequireFromString("10"), Stock: 5, Active: true}
	ledger := seed(t, client, mug)

	got, err := ledger.Reserve(ctx, []product.StockRequest{{ProductID: mug.ID, Quantity: 2}})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "Mug", got[0].Name)
	assert.True(t, got[0].UnitPrice.Equal(mug.Price))
	assert.True(t, got[0].DiscountPercent.Equal(mug.DiscountPercent))
	stock, err := ledger.Stock(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stock)
}

func TestStockLedger_ReserveIsAllOrNothing(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	a := &product.Product{ID: uniqueID(t, "a"), Name: "A", Price: decimal.NewFromInt(1), Stock: 5, Active: true}
	b := &product.Product{ID: uniqueID(t, "b"), Name: "B", Price: decimal.NewFromInt(1), Stock: 1, Active: true}
	ledger := seed(t, client, a, b)

	_, err := ledger.Reserve(ctx, []product.StockRequest{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}})

	var short *product.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, []string{b.ID}, short.ProductIDs)
	stock, _ := ledger.Stock(ctx, a.ID)
	assert.Equal(t, 5, stock)
}

func TestStockLedger_UnknownAndInactive(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	off := &product.Product{ID: uniqueID(t, "off"), Name: "Off", Price: decimal.NewFromInt(1), Stock: 5}
	ledger := seed(t, client, off)
	ghost := uniqueID(t, "ghost")

	_, err := ledger.Reserve(ctx, []product.StockRequest{{ProductID: off.ID, Quantity: 1}, {ProductID: ghost, Quantity: 1}})

	var missing *product.NotFoundError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{off.ID, ghost}, missing.ProductIDs)

	err = ledger.Release(ctx, []product.StockRequest{{ProductID: off.ID, Quantity: 1}, {ProductID: ghost, Quantity: 1}})
	require.ErrorIs(t, err, product.ErrNotFound)
	stock, _ := ledger.Stock(ctx, off.ID)
	assert.Equal(t, 5, stock)
}

func TestStockLedger_ConcurrentLastUnit(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	last := &product.Product{ID: uniqueID(t, "last"), Name: "Last", Price: decimal.NewFromInt(1), Stock: 1, Active: true}
	ledger := seed(t, client, last)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Reserve(ctx, []product.StockRequest{{ProductID: last.ID, Quantity: 1}}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	stock, _ := ledger.Stock(ctx, last.ID)
	assert.Equal(t, 0, stock)
}

func TestCounter_NextAndExpiry(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	scope := uniqueID(t, "scope")
	t.Cleanup(func() { client.Del(ctx, sequenceKeyPrefix+scope) })
	counter := NewCounter(client)

	for want := int64(1); want <= 3; want++ {
		got, err := counter.Next(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	ttl, err := client.TTL(ctx, sequenceKeyPrefix+scope).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 47*time.Hour)
}
