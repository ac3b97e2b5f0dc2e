package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndConsume(t *testing.T) {
	q := NewMemory(10, 2)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen []string
		done = make(chan struct{})
	)
	err := q.Start(ctx, func(_ context.Context, jobID string) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, jobID)
		if len(seen) == 3 {
			close(done)
		}
		return nil
	})
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.PublishImport(ctx, id))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not consumed in time")
	}

	require.NoError(t, q.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestPublishAfterStop(t *testing.T) {
	q := NewMemory(1, 1)
	ctx := context.Background()

	require.NoError(t, q.Stop(ctx))
	assert.Error(t, q.PublishImport(ctx, "x"))
}

func TestPublishEmptyID(t *testing.T) {
	q := NewMemory(1, 1)
	assert.Error(t, q.PublishImport(context.Background(), ""))
}

func TestStopIsIdempotent(t *testing.T) {
	q := NewMemory(1, 1)
	ctx := context.Background()
	require.NoError(t, q.Stop(ctx))
	require.NoError(t, q.Stop(ctx))
	require.NoError(t, q.Close())
}
