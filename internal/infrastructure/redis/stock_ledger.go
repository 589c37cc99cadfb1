package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const productKeyPrefix = "product:"

const (
	scriptOK       = 0
	scriptMissing  = 1
	scriptShortage = 2
)

// reserveScript checks every product hash first and only then decrements, so a
// batch either applies completely or not at all. KEYS are product hashes, ARGV
// the quantities in the same order. It replies {0, name, price, discount, ...}
// on success, otherwise {1|2, offending key indexes...}.
var reserveScript = goredis.NewScript(`
local missing = {}
local short = {}
for i, key in ipairs(KEYS) do
	local vals = redis.call('HMGET', key, 'stock', 'active')
	if not vals[1] or vals[2] ~= '1' then
		table.insert(missing, i)
	elseif tonumber(vals[1]) < tonumber(ARGV[i]) then
		table.insert(short, i)
	end
end
if #missing > 0 then
	table.insert(missing, 1, 1)
	return missing
end
if #short > 0 then
	table.insert(short, 1, 2)
	return short
end
local out = {0}
for i, key in ipairs(KEYS) do
	redis.call('HINCRBY', key, 'stock', -tonumber(ARGV[i]))
	local snap = redis.call('HMGET', key, 'name', 'price', 'discount')
	table.insert(out, snap[1] or '')
	table.insert(out, snap[2] or '0')
	table.insert(out, snap[3] or '0')
end
return out
`)

// releaseScript is the inverse; it refuses the whole batch when a hash is gone.
var releaseScript = goredis.NewScript(`
local missing = {}
for i, key in ipairs(KEYS) do
	if redis.call('EXISTS', key) == 0 then
		table.insert(missing, i)
	end
end
if #missing > 0 then
	table.insert(missing, 1, 1)
	return missing
end
for i, key in ipairs(KEYS) do
	redis.call('HINCRBY', key, 'stock', tonumber(ARGV[i]))
end
return {0}
`)

// StockLedger keeps live stock in one hash per product. The hash also carries the
// price fields a reservation snapshots.
type StockLedger struct {
	client goredis.UniversalClient
}

func NewStockLedger(client goredis.UniversalClient) *StockLedger {
	return &StockLedger{client: client}
}

func productKey(id string) string {
	return productKeyPrefix + id
}

func batchArgs(reqs []product.StockRequest) ([]string, []any) {
	keys := make([]string, len(reqs))
	args := make([]any, len(reqs))
	for i, r := range reqs {
		keys[i] = productKey(r.ProductID)
		args[i] = r.Quantity
	}
	return keys, args
}

func (l *StockLedger) Reserve(ctx context.Context, reqs []product.StockRequest) ([]product.Reservation, error) {
	keys, args := batchArgs(reqs)
	reply, err := reserveScript.Run(ctx, l.client, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("redis: reserve stock: %w", err)
	}
	code, rest, err := splitReply(reply)
	if err != nil {
		return nil, err
	}

	switch code {
	case scriptMissing:
		return nil, &product.NotFoundError{ProductIDs: offenders(reqs, rest)}
	case scriptShortage:
		return nil, &product.InsufficientStockError{ProductIDs: offenders(reqs, rest)}
	}

	if len(rest) != 3*len(reqs) {
		return nil, fmt.Errorf("redis: reserve stock: unexpected reply length %d", len(rest))
	}
	out := make([]product.Reservation, 0, len(reqs))
	for i, r := range reqs {
		name, _ := rest[3*i].(string)
		price, err := decimal.NewFromString(asString(rest[3*i+1]))
		if err != nil {
			return nil, fmt.Errorf("redis: product %s price: %w", r.ProductID, err)
		}
		discount, err := decimal.NewFromString(asString(rest[3*i+2]))
		if err != nil {
			return nil, fmt.Errorf("redis: product %s discount: %w", r.ProductID, err)
		}
		out = append(out, product.Reservation{
			ProductID:       r.ProductID,
			Name:            name,
			Quantity:        r.Quantity,
			UnitPrice:       price,
			DiscountPercent: discount,
		})
	}
	return out, nil
}

func (l *StockLedger) Release(ctx context.Context, reqs []product.StockRequest) error {
	keys, args := batchArgs(reqs)
	reply, err := releaseScript.Run(ctx, l.client, keys, args...).Slice()
	if err != nil {
		return fmt.Errorf("redis: release stock: %w", err)
	}
	code, rest, err := splitReply(reply)
	if err != nil {
		return err
	}
	if code == scriptMissing {
		return &product.NotFoundError{ProductIDs: offenders(reqs, rest)}
	}
	return nil
}

// Seed copies catalog entries into Redis, overwriting stock and price fields.
func (l *StockLedger) Seed(ctx context.Context, products ...*product.Product) error {
	_, err := l.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, p := range products {
			active := "0"
			if p.Active {
				active = "1"
			}
			pipe.HSet(ctx, productKey(p.ID),
				"name", p.Name,
				"price", p.Price.String(),
				"discount", p.DiscountPercent.String(),
				"stock", p.Stock,
				"active", active,
				"updatedAt", time.Now().UTC().Format(time.RFC3339Nano),
			)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: seed stock: %w", err)
	}
	return nil
}

// Stock reads the live stock of one product.
func (l *StockLedger) Stock(ctx context.Context, id string) (int, error) {
	v, err := l.client.HGet(ctx, productKey(id), "stock").Int()
	if errors.Is(err, goredis.Nil) {
		return 0, product.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: read stock: %w", err)
	}
	return v, nil
}

func splitReply(reply []any) (int64, []any, error) {
	if len(reply) == 0 {
		return 0, nil, errors.New("redis: empty script reply")
	}
	code, ok := reply[0].(int64)
	if !ok {
		return 0, nil, fmt.Errorf("redis: unexpected script status %v", reply[0])
	}
	return code, reply[1:], nil
}

// offenders maps the 1-based Lua indexes back to product ids.
func offenders(reqs []product.StockRequest, idx []any) []string {
	out := make([]string, 0, len(idx))
	for _, v := range idx {
		if i, ok := v.(int64); ok && i >= 1 && int(i) <= len(reqs) {
			out = append(out, reqs[i-1].ProductID)
		}
	}
	return out
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int64:
		return fmt.Sprint(s)
	}
	return "0"
}
