package fetcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiktokgraph/pkg/graph"
	"tiktokgraph/pkg/logger"
)

func nameLookup(calls *int32, delay time.Duration) Lookup {
	return func(ctx context.Context, handle string) (graph.Node, error) {
		atomic.AddInt32(calls, 1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return graph.Node{Name: handle, DisplayName: "name of " + handle}, nil
	}
}

func TestResolveKeepsInputOrder(t *testing.T) {
	var calls int32
	handles := []string{"a", "b", "c", "d", "e", "f", "g"}

	nodes, err := Resolve(context.Background(), handles, 3, nameLookup(&calls, time.Millisecond), logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, handles, nodes.Names())
	assert.Equal(t, "name of d", nodes[3].DisplayName)
	assert.Equal(t, int32(len(handles)), atomic.LoadInt32(&calls))
}

func TestResolveRunsConcurrently(t *testing.T) {
	var running, peak int32
	lookup := func(ctx context.Context, handle string) (graph.Node, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return graph.Node{Name: handle}, nil
	}

	_, err := Resolve(context.Background(), []string{"a", "b", "c", "d"}, 4, lookup, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
}

func TestResolveEmpty(t *testing.T) {
	var calls int32
	nodes, err := Resolve(context.Background(), nil, 4, nameLookup(&calls, 0), logger.NewNopLogger())
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Zero(t, calls)
}

func TestResolveReturnsLookupError(t *testing.T) {
	upstream := errors.New("no such user")
	lookup := func(ctx context.Context, handle string) (graph.Node, error) {
		if handle == "ghost" {
			return graph.Node{}, upstream
		}
		return graph.Node{Name: handle}, nil
	}

	nodes, err := Resolve(context.Background(), []string{"a", "ghost", "b"}, 1, lookup, logger.NewNopLogger())
	assert.Nil(t, nodes)
	assert.ErrorIs(t, err, upstream)
	assert.EqualError(t, err, "user info for ghost: no such user")
}

func TestResolveStopsAfterFailure(t *testing.T) {
	var calls int32
	lookup := func(ctx context.Context, handle string) (graph.Node, error) {
		atomic.AddInt32(&calls, 1)
		return graph.Node{}, errors.New("down")
	}

	handles := make([]string, 50)
	for i := range handles {
		handles[i] = "h"
	}

	_, err := Resolve(context.Background(), handles, 1, lookup, logger.NewNopLogger())
	require.Error(t, err)
	assert.Less(t, atomic.LoadInt32(&calls), int32(len(handles)))
}

func TestResolveCancelledContext(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, []string{"a", "b"}, 2, nameLookup(&calls, 0), logger.NewNopLogger())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestWorkerPoolSubmitAfterCancel(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 1, nameLookup(&calls, 0), nil)
	cancel()

	// the queue holds two jobs, so a third submit cannot succeed
	failures := 0
	for i := 0; i < 3; i++ {
		if err := pool.Submit(Job{Index: i, Handle: "a"}); err != nil {
			failures++
		}
	}
	assert.Positive(t, failures)
	assert.Zero(t, atomic.LoadInt32(&calls))
}
