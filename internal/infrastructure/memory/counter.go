package memory

import (
	"context"
	"sync"
)

// Counter is a process-local per-scope sequence.
type Counter struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewCounter() *Counter {
	return &Counter{values: make(map[string]int64)}
}

// Next increments the scope's counter and returns the new value, starting at 1.
func (c *Counter) Next(ctx context.Context, scope string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[scope]++
	return c.values[scope], nil
}
