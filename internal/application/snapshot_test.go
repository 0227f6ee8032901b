package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSnapshotCache_ServesFreshWithoutRefetch(t *testing.T) {
	var fetches atomic.Int32
	cache := newSnapshotCache("test", time.Minute, discardLogger(), func(_ context.Context) ([]string, error) {
		fetches.Add(1)
		return []string{"a", "b"}, nil
	})

	ctx := context.Background()
	require.Equal(t, []string{"a", "b"}, cache.Get(ctx))
	require.Equal(t, []string{"a", "b"}, cache.Get(ctx))
	assert.Equal(t, int32(1), fetches.Load())
}

func TestSnapshotCache_RefetchesAfterTTL(t *testing.T) {
	var fetches atomic.Int32
	cache := newSnapshotCache("test", 10*time.Millisecond, discardLogger(), func(_ context.Context) ([]string, error) {
		fetches.Add(1)
		return []string{"a"}, nil
	})

	ctx := context.Background()
	cache.Get(ctx)
	time.Sleep(20 * time.Millisecond)
	cache.Get(ctx)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestSnapshotCache_ServesStaleOnFetchError(t *testing.T) {
	var fail atomic.Bool
	cache := newSnapshotCache("test", time.Minute, discardLogger(), func(_ context.Context) ([]string, error) {
		if fail.Load() {
			return nil, errors.New("upstream down")
		}
		return []string{"a"}, nil
	})

	ctx := context.Background()
	require.Equal(t, []string{"a"}, cache.Get(ctx))

	fail.Store(true)
	cache.Invalidate()
	assert.Equal(t, []string{"a"}, cache.Get(ctx),
		"a failed refetch must serve the previous snapshot")
}

func TestSnapshotCache_EmptyWhenFirstFetchFails(t *testing.T) {
	cache := newSnapshotCache("test", time.Minute, discardLogger(), func(_ context.Context) ([]string, error) {
		return nil, errors.New("upstream down")
	})

	got := cache.Get(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSnapshotCache_InvalidateForcesRefetch(t *testing.T) {
	var fetches atomic.Int32
	cache := newSnapshotCache("test", time.Hour, discardLogger(), func(_ context.Context) ([]string, error) {
		fetches.Add(1)
		return []string{"a"}, nil
	})

	ctx := context.Background()
	cache.Get(ctx)
	cache.Invalidate()
	cache.Get(ctx)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestSnapshotCache_ConcurrentMissesShareOneFetch(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	cache := newSnapshotCache("test", time.Minute, discardLogger(), func(_ context.Context) ([]string, error) {
		fetches.Add(1)
		<-release
		return []string{"a"}, nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Get(context.Background())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
}
