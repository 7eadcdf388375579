package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessQueueRunsHandler(t *testing.T) {
	q := NewInProcessQueue(log.Default())
	defer q.Close()

	done := make(chan []byte, 1)
	q.Register("send", func(ctx context.Context, payload []byte) error {
		done <- payload
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), "send", []byte(`{"id":1}`)))

	select {
	case payload := <-done:
		assert.JSONEq(t, `{"id":1}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}
}

func TestInProcessQueueUnknownTask(t *testing.T) {
	q := NewInProcessQueue(log.Default())
	defer q.Close()

	err := q.Enqueue(context.Background(), "unregistered", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestInProcessQueueDelay(t *testing.T) {
	q := NewInProcessQueue(log.Default())
	defer q.Close()

	done := make(chan time.Time, 1)
	q.Register("later", func(ctx context.Context, payload []byte) error {
		done <- time.Now()
		return nil
	})

	start := time.Now()
	require.NoError(t, q.Enqueue(context.Background(), "later", nil, WithDelay(50*time.Millisecond)))

	select {
	case ran := <-done:
		assert.GreaterOrEqual(t, ran.Sub(start), 50*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("delayed handler did not run")
	}
}

func TestInProcessQueueCloseWaitsForRunningJobs(t *testing.T) {
	q := NewInProcessQueue(log.Default())

	var mu sync.Mutex
	finished := false
	q.Register("slow", func(ctx context.Context, payload []byte) error {
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), "slow", nil))
	require.NoError(t, q.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, finished)
}

func TestInProcessQueueCloseCancelsDelayedJobs(t *testing.T) {
	q := NewInProcessQueue(log.Default())

	ran := make(chan struct{}, 1)
	q.Register("later", func(ctx context.Context, payload []byte) error {
		ran <- struct{}{}
		return nil
	})

	require.NoError(t, q.Enqueue(context.Background(), "later", nil, WithDelay(time.Hour)))
	require.NoError(t, q.Close())

	select {
	case <-ran:
		t.Fatal("delayed job ran after close")
	default:
	}
}

func TestInProcessQueueHandlerErrorDoesNotPropagate(t *testing.T) {
	q := NewInProcessQueue(log.Default())

	done := make(chan struct{}, 1)
	q.Register("flaky", func(ctx context.Context, payload []byte) error {
		done <- struct{}{}
		return errors.New("boom")
	})

	// The error surfaces in the log, not to the producer
	require.NoError(t, q.Enqueue(context.Background(), "flaky", nil))
	<-done
	require.NoError(t, q.Close())
}
