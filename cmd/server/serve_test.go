package main

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohits-web03/softvault/internal/tasks"
)

// fakeServer blocks in ListenAndServe until Shutdown, which first runs
// onShutdown the way a draining request handler would.
type fakeServer struct {
	started    chan struct{}
	stopped    chan struct{}
	listenErr  error
	onShutdown func() error
	shutdowns  int
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}), stopped: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	close(s.started)
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stopped
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.shutdowns++
	var err error
	if s.onShutdown != nil {
		err = s.onShutdown()
	}
	select {
	case <-s.stopped:
	default:
		close(s.stopped)
	}
	return err
}

func TestRunStopsQueueAfterServer(t *testing.T) {
	d := tasks.NewDispatcher(zerolog.Nop())
	ran := make(chan struct{}, 1)
	d.Handle("noop", func(ctx context.Context, job tasks.Job) error {
		ran <- struct{}{}
		return nil
	})
	queue := tasks.NewMemoryQueue(d, 1, 4)

	srv := newFakeServer()
	srv.onShutdown = func() error {
		job, err := tasks.NewJob("noop", struct{}{})
		if err != nil {
			return err
		}
		return queue.Enqueue(context.Background(), job)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, srv, queue, zerolog.Nop()) }()
	<-srv.started
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
	assert.Equal(t, 1, srv.shutdowns)
	assert.Len(t, ran, 1)
	assert.Equal(t, int64(1), queue.Stats().Succeeded)
}

func TestRunReturnsListenError(t *testing.T) {
	queue := tasks.NewMemoryQueue(tasks.NewDispatcher(zerolog.Nop()), 1, 4)
	srv := newFakeServer()
	srv.listenErr = errors.New("address already in use")

	err := run(context.Background(), srv, queue, zerolog.Nop())
	assert.ErrorIs(t, err, srv.listenErr)
	assert.Equal(t, 1, srv.shutdowns)
}
