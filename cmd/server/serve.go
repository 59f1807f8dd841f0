package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rohits-web03/softvault/internal/advisor"
	"github.com/rohits-web03/softvault/internal/api"
	"github.com/rohits-web03/softvault/internal/api/handlers"
	"github.com/rohits-web03/softvault/internal/api/services"
	"github.com/rohits-web03/softvault/internal/config"
	"github.com/rohits-web03/softvault/internal/fetcher"
	"github.com/rohits-web03/softvault/internal/lifecycle"
	"github.com/rohits-web03/softvault/internal/logger"
	"github.com/rohits-web03/softvault/internal/repositories"
	"github.com/rohits-web03/softvault/internal/storage"
	"github.com/rohits-web03/softvault/internal/tasks"
)

const (
	jobBuffer       = 128
	shutdownTimeout = 30 * time.Second
)

func serve(ctx context.Context) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	db, err := repositories.Connect(cfg, log)
	if err != nil {
		return err
	}

	blobs, err := newStore(cfg)
	if err != nil {
		return err
	}

	dispatcher := tasks.NewDispatcher(log)
	queue, err := newQueue(ctx, cfg, dispatcher)
	if err != nil {
		return err
	}

	configs := repositories.NewConfigStore(db)
	manager := lifecycle.New(db, configs, advisor.New(log),
		fetcher.New(blobs, cfg.FetchTimeout, log), blobs, queue, log)
	manager.Register(dispatcher)

	users := repositories.NewUserStore(db)
	h := handlers.New(handlers.Deps{
		Config:     cfg,
		DB:         db,
		Users:      users,
		Requests:   repositories.NewRequestStore(db),
		Catalog:    repositories.NewCatalogStore(db, blobs, cfg.MaxUploadSize, log),
		Downloads:  repositories.NewDownloadStore(db),
		Configs:    configs,
		Categories: repositories.NewCategoryStore(db),
		Audit:      repositories.NewAuditStore(db, log),
		Lifecycle:  manager,
		Tasks:      queue,
		Google:     services.NewGoogleOAuth(cfg.Google),
		Log:        log,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: api.SetupRouter(h, log),
		// Timeouts prevent resource exhaustion from slow clients. Writes are
		// unbounded since artifact downloads stream for as long as they need.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("port", cfg.Port).Str("storage", cfg.StorageBackend).Str("queue", cfg.TaskQueue).
		Msg("starting SoftVault server")
	if err := run(ctx, server, queue, log); err != nil {
		return fmt.Errorf("could not serve on port %s: %w", cfg.Port, err)
	}
	return nil
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// run serves until ctx is cancelled. The queue outlives the HTTP server:
// it is stopped only once Shutdown has returned, so jobs enqueued by
// requests that were still in flight are accepted and drained.
func run(ctx context.Context, srv httpServer, queue tasks.Queue, log zerolog.Logger) error {
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	queueErr := make(chan error, 1)
	go func() { queueErr <- queue.Run(queueCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err := g.Wait()

	stopQueue()
	if qerr := <-queueErr; qerr != nil && err == nil {
		err = qerr
	}
	log.Info().Interface("tasks", queue.Stats()).Msg("server stopped")
	return err
}

func newStore(cfg *config.Config) (storage.Store, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Store(cfg.R2), nil
	}
	return storage.NewLocalStore(cfg.StoragePath)
}

func newQueue(ctx context.Context, cfg *config.Config, d *tasks.Dispatcher) (tasks.Queue, error) {
	if cfg.TaskQueue != "redis" {
		return tasks.NewMemoryQueue(d, cfg.TaskWorkers, jobBuffer), nil
	}
	q, err := tasks.NewRedisQueue(d, cfg.RedisURL, cfg.TaskWorkers)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("redis is unreachable: %w", err)
	}
	return q, nil
}
