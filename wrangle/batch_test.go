package wrangle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_OrderMatchesInput(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	square := func(_ context.Context, n int) (int, error) {
		// Later items finish first.
		time.Sleep(time.Duration(50-n) * 100 * time.Microsecond)
		return n * n, nil
	}

	seq, err := Map(context.Background(), items, false, square)
	require.NoError(t, err)
	conc, err := Map(context.Background(), items, true, square)
	require.NoError(t, err)

	assert.Equal(t, seq, conc)
	for i, v := range conc {
		assert.Equal(t, i*i, v)
	}
}

func TestMap_Empty(t *testing.T) {
	out, err := Map(context.Background(), []string(nil), true, func(context.Context, string) (int, error) {
		t.Fatal("fn called for empty input")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMap_SequentialStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	_, err := Map(context.Background(), []int{1, 2, 3}, false, func(_ context.Context, n int) (int, error) {
		calls++
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestMap_ConcurrentReturnsErrorAndCancels(t *testing.T) {
	boom := errors.New("boom")
	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}
	var started atomic.Int64
	_, err := Map(context.Background(), items, true, func(ctx context.Context, n int) (int, error) {
		started.Add(1)
		if n == 0 {
			return 0, boom
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(5 * time.Millisecond):
			return n, nil
		}
	})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, started.Load(), int64(len(items)))
}

func TestForEach_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ForEach(ctx, []int{1, 2}, false, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, Workers(), 1)
}
