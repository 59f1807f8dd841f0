package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRedisKey = "softvault:jobs"
	popTimeout      = 2 * time.Second
)

// RedisQueue keeps jobs in a redis list so they survive a restart. A job
// popped by a worker that dies before finishing is lost.
type RedisQueue struct {
	*Dispatcher

	rdb     *redis.Client
	key     string
	workers int
}

// NewRedisQueue connects to url (redis://host:port/db).
func NewRedisQueue(d *Dispatcher, url string, workers int) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisQueueClient(d, redis.NewClient(opts), DefaultRedisKey, workers), nil
}

func NewRedisQueueClient(d *Dispatcher, rdb *redis.Client, key string, workers int) *RedisQueue {
	if workers < 1 {
		workers = 1
	}
	return &RedisQueue{Dispatcher: d, rdb: rdb, key: key, workers: workers}
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, q.key, b).Err(); err != nil {
		return err
	}
	q.markEnqueued()
	return nil
}

// Run pops jobs until ctx is cancelled. Workers finish the job they hold.
func (q *RedisQueue) Run(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for {
				res, err := q.rdb.BLPop(gctx, popTimeout, q.key).Result()
				switch {
				case gctx.Err() != nil:
					return nil
				case errors.Is(err, redis.Nil):
					continue
				case err != nil:
					q.log.Error().Err(err).Msg("cannot pop job")
					select {
					case <-gctx.Done():
						return nil
					case <-time.After(popTimeout):
					}
					continue
				}

				// BLPOP returns [key, value]
				var job Job
				if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
					q.log.Error().Err(err).Msg("dropping undecodable job")
					continue
				}
				q.Dispatch(jobCtx, job)
			}
		})
	}

	err := g.Wait()
	if cerr := q.rdb.Close(); err == nil {
		err = cerr
	}
	return err
}
