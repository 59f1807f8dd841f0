// Package tasks runs background jobs outside the request that scheduled
// them. Delivery is at-least-once for the redis queue and best effort for the
// in-memory one; handlers must tolerate seeing a job twice.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("task queue is closed")

type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// NewJob encodes payload as a job of the given kind.
func NewJob(kind string, payload any) (Job, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("cannot encode %s payload: %w", kind, err)
	}
	return Job{ID: uuid.NewString(), Kind: kind, Payload: b, EnqueuedAt: time.Now().UTC()}, nil
}

// Decode unmarshals the job payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("cannot decode %s payload of job %s: %w", j.Kind, j.ID, err)
	}
	return nil
}

type Handler func(ctx context.Context, job Job) error

// Queue accepts jobs and runs them on its own workers until the context
// passed to Run is cancelled.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Run(ctx context.Context) error
	Stats() Stats
}

type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Panicked  int64 `json:"panicked"`
	Unknown   int64 `json:"unknown"`
}

// Dispatcher routes jobs to the handler registered for their kind. Failures
// are logged and counted, never returned to whoever enqueued the job.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      zerolog.Logger

	enqueued, succeeded, failed, panicked, unknown atomic.Int64
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: map[string]Handler{},
		log:      log.With().Str("component", "tasks").Logger(),
	}
}

func (d *Dispatcher) Handle(kind string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued:  d.enqueued.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
		Panicked:  d.panicked.Load(),
		Unknown:   d.unknown.Load(),
	}
}

func (d *Dispatcher) markEnqueued() { d.enqueued.Add(1) }

// Dispatch runs job synchronously on the calling goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) {
	d.mu.RLock()
	h, ok := d.handlers[job.Kind]
	d.mu.RUnlock()

	log := d.log.With().Str("job_id", job.ID).Str("kind", job.Kind).Logger()
	if !ok {
		d.unknown.Add(1)
		log.Error().Msg("no handler for job kind")
		return
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			d.panicked.Add(1)
			log.Error().Interface("panic", rec).Msg("job panicked")
		}
	}()

	log.Debug().Msg("job started")
	if err := h(ctx, job); err != nil {
		d.failed.Add(1)
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("job failed")
		return
	}
	d.succeeded.Add(1)
	log.Info().Dur("elapsed", time.Since(start)).Msg("job done")
}
