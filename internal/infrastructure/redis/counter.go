package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	sequenceKeyPrefix = "order_seq:"
	// a day's counter only matters until the day is over
	sequenceTTL = 48 * time.Hour
)

// Counter is a per-scope sequence backed by INCR.
type Counter struct {
	client goredis.UniversalClient
}

func NewCounter(client goredis.UniversalClient) *Counter {
	return &Counter{client: client}
}

func (c *Counter) Next(ctx context.Context, scope string) (int64, error) {
	key := sequenceKeyPrefix + scope

	var incr *goredis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, sequenceTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis: next sequence %s: %w", scope, err)
	}
	return incr.Val(), nil
}
