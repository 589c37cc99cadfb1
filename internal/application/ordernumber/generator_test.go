package ordernumber_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application/ordernumber"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numberPattern = regexp.MustCompile(`^ORD-\d{8}-\d{4}$`)

type fixedCounter struct {
	value int64
	err   error
}

func (c fixedCounter) Next(context.Context, string) (int64, error) { return c.value, c.err }

func TestGenerator_SequentialWithinDay(t *testing.T) {
	gen := ordernumber.NewGenerator(memory.NewCounter(), observability.Nop())
	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)

	var got []string
	for range 3 {
		n, err := gen.Next(context.Background(), day)
		require.NoError(t, err)
		got = append(got, n)
	}

	assert.Equal(t, []string{"ORD-20260314-0001", "ORD-20260314-0002", "ORD-20260314-0003"}, got)
}

func TestGenerator_RollsOverAtDayBoundary(t *testing.T) {
	gen := ordernumber.NewGenerator(memory.NewCounter(), observability.Nop())
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)

	_, err := gen.Next(ctx, day)
	require.NoError(t, err)
	n, err := gen.Next(ctx, day.Add(2*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, "ORD-20260315-0001", n)
}

func TestGenerator_UsesDateLocation(t *testing.T) {
	tz := time.FixedZone("UTC+9", 9*60*60)
	utc := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "20260314", ordernumber.Scope(utc))
	assert.Equal(t, "20260315", ordernumber.Scope(utc.In(tz)))
}

func TestGenerator_ConcurrentCallsAreUnique(t *testing.T) {
	gen := ordernumber.NewGenerator(memory.NewCounter(), observability.Nop())
	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := gen.Next(context.Background(), day)
			assert.NoError(t, err)
			assert.Regexp(t, numberPattern, num)
			mu.Lock()
			seen[num] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	assert.Contains(t, seen, "ORD-20260314-0200")
}

func TestGenerator_StorageFailureIsGenerationError(t *testing.T) {
	boom := errors.New("connection reset")
	gen := ordernumber.NewGenerator(fixedCounter{err: boom}, observability.Nop())

	_, err := gen.Next(context.Background(), time.Now())

	var gerr *ordernumber.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.ErrorIs(t, err, boom)
}

func TestGenerator_ExhaustedSequence(t *testing.T) {
	gen := ordernumber.NewGenerator(fixedCounter{value: 10000}, observability.Nop())

	_, err := gen.Next(context.Background(), time.Now())

	var gerr *ordernumber.GenerationError
	require.ErrorAs(t, err, &gerr)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "ORD-20260101-0042", ordernumber.Format(time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local), 42))
}
