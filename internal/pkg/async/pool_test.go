package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolExecuteKeepsIndexOrder(t *testing.T) {
	pool := NewPool[int](4)

	tasks := make([]Task[int], 20)
	for i := range tasks {
		tasks[i] = Task[int]{
			Index: i,
			Execute: func(context.Context) (int, error) {
				// Later tasks finish first.
				time.Sleep(time.Duration(20-i) * time.Millisecond)
				return i * i, nil
			},
		}
	}

	results := pool.Execute(context.Background(), tasks)
	require.Len(t, results, 20)
	for i, result := range results {
		assert.Equal(t, i, result.Index)
		assert.NoError(t, result.Err)
		assert.Equal(t, i*i, result.Data)
	}
}

func TestPoolExecuteBoundsConcurrency(t *testing.T) {
	pool := NewPool[struct{}](2)

	var running, peak atomic.Int32
	tasks := make([]Task[struct{}], 10)
	for i := range tasks {
		tasks[i] = Task[struct{}]{
			Index: i,
			Execute: func(context.Context) (struct{}, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			},
		}
	}

	pool.Execute(context.Background(), tasks)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolExecuteReportsTaskErrors(t *testing.T) {
	boom := errors.New("boom")
	pool := NewPool[string](2)

	results := pool.Execute(context.Background(), []Task[string]{
		{Index: 0, Execute: func(context.Context) (string, error) { return "ok", nil }},
		{Index: 1, Execute: func(context.Context) (string, error) { return "", boom }},
	})

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "ok", results[0].Data)
	assert.ErrorIs(t, results[1].Err, boom)
}

func TestPoolExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPool[int](1)
	results := pool.Execute(ctx, []Task[int]{
		{Index: 0, Execute: func(ctx context.Context) (int, error) { return 0, ctx.Err() }},
	})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestPoolExecuteEmpty(t *testing.T) {
	assert.Empty(t, NewPool[int](3).Execute(context.Background(), nil))
}
