package tasks

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	N int `json:"n"`
}

func TestJobRoundTrip(t *testing.T) {
	job, err := NewJob("count", payload{N: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	var p payload
	require.NoError(t, job.Decode(&p))
	assert.Equal(t, 3, p.N)
}

func TestDispatcherOutcomes(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	d.Handle("ok", func(ctx context.Context, job Job) error { return nil })
	d.Handle("fail", func(ctx context.Context, job Job) error { return errors.New("nope") })
	d.Handle("panic", func(ctx context.Context, job Job) error { panic("boom") })

	for _, kind := range []string{"ok", "fail", "panic", "missing"} {
		d.Dispatch(context.Background(), Job{ID: kind, Kind: kind})
	}

	assert.Equal(t, Stats{Succeeded: 1, Failed: 1, Panicked: 1, Unknown: 1}, d.Stats())
}

func runQueue(t *testing.T, q Queue, d *Dispatcher) {
	var sum atomic.Int64
	done := make(chan struct{}, 10)
	d.Handle("add", func(ctx context.Context, job Job) error {
		var p payload
		if err := job.Decode(&p); err != nil {
			return err
		}
		sum.Add(int64(p.N))
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx) }()

	for i := 1; i <= 10; i++ {
		job, err := NewJob("add", payload{N: i})
		require.NoError(t, err)
		require.NoError(t, q.Enqueue(context.Background(), job))
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, int64(55), sum.Load())
	assert.Equal(t, int64(10), q.Stats().Enqueued)
	assert.Equal(t, int64(10), q.Stats().Succeeded)
}

func TestMemoryQueue(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	q := NewMemoryQueue(d, 3, 16)
	runQueue(t, q, d)

	job, _ := NewJob("add", payload{N: 1})
	assert.ErrorIs(t, q.Enqueue(context.Background(), job), ErrClosed)
}

func TestMemoryQueueDrainsOnShutdown(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	var ran atomic.Int64
	d.Handle("slow", func(ctx context.Context, job Job) error {
		time.Sleep(10 * time.Millisecond)
		ran.Add(1)
		return ctx.Err()
	})
	q := NewMemoryQueue(d, 1, 8)
	for i := 0; i < 5; i++ {
		job, _ := NewJob("slow", nil)
		require.NoError(t, q.Enqueue(context.Background(), job))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, q.Run(ctx))
	assert.Equal(t, int64(5), ran.Load())
	assert.Equal(t, int64(5), d.Stats().Succeeded)
}

func TestRedisQueue(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	key := "softvault:test:" + t.Name()
	require.NoError(t, rdb.Del(context.Background(), key).Err())

	d := NewDispatcher(zerolog.Nop())
	q := NewRedisQueueClient(d, rdb, key, 2)
	require.NoError(t, q.Ping(context.Background()))
	runQueue(t, q, d)
}
