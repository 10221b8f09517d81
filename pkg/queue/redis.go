package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/relaymesh/bridge-indexer/pkg/config"
)

const (
	keyPrefix = "indexer:queue:"

	// How long a worker blocks waiting for a task before re-checking the
	// delayed set and context.
	popTimeout = 2 * time.Second

	promoteInterval = time.Second
	promoteBatch    = 256
)

type stageWorker struct {
	handler     Handler
	concurrency int
}

// RedisQueue is the production Queue implementation. Each stage has a pending
// list, a processing list for in-flight tasks, a delayed zset scored by
// ready-time for backoff retries, and a failed list for dead letters.
type RedisQueue struct {
	client  *redis.Client
	logger  *zap.Logger
	backoff time.Duration
	maxBack time.Duration

	mu     sync.Mutex
	stages map[string]stageWorker
}

// NewRedisQueue connects to redis and verifies the connection.
func NewRedisQueue(ctx context.Context, cfg *config.RedisConfig, pipeline *config.PipelineConfig, logger *zap.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisQueue{
		client:  client,
		logger:  logger,
		backoff: pipeline.RetryBackoff,
		maxBack: pipeline.MaxRetryBackoff,
		stages:  make(map[string]stageWorker),
	}, nil
}

// NewRedisQueueFromClient wraps an existing client. Used by tests with
// miniredis.
func NewRedisQueueFromClient(client *redis.Client, backoff, maxBackoff time.Duration, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:  client,
		logger:  logger,
		backoff: backoff,
		maxBack: maxBackoff,
		stages:  make(map[string]stageWorker),
	}
}

func pendingKey(stage string) string    { return keyPrefix + stage + ":pending" }
func processingKey(stage string) string { return keyPrefix + stage + ":processing" }
func delayedKey(stage string) string    { return keyPrefix + stage + ":delayed" }
func failedKey(stage string) string     { return keyPrefix + stage + ":failed" }

// Enqueue pushes one task onto a stage's pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, stage string, payload any) error {
	raw, err := q.encode(stage, payload)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, pendingKey(stage), raw).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", stage, err)
	}
	return nil
}

// EnqueueBulk pushes many tasks onto a stage's pending list in one round
// trip.
func (q *RedisQueue) EnqueueBulk(ctx context.Context, stage string, payloads []any) error {
	if len(payloads) == 0 {
		return nil
	}
	raws := make([]any, 0, len(payloads))
	for _, payload := range payloads {
		raw, err := q.encode(stage, payload)
		if err != nil {
			return err
		}
		raws = append(raws, raw)
	}
	if err := q.client.LPush(ctx, pendingKey(stage), raws...).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %d %s tasks: %w", len(raws), stage, err)
	}
	return nil
}

func (q *RedisQueue) encode(stage string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", stage, err)
	}
	task := Task{
		ID:         uuid.NewString(),
		Stage:      stage,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s task: %w", stage, err)
	}
	return string(raw), nil
}

// Counts returns the queue depths for one stage.
func (q *RedisQueue) Counts(ctx context.Context, stage string) (Counts, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, pendingKey(stage))
	active := pipe.LLen(ctx, processingKey(stage))
	delayed := pipe.ZCard(ctx, delayedKey(stage))
	failed := pipe.LLen(ctx, failedKey(stage))
	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to count %s queue: %w", stage, err)
	}
	return Counts{
		Waiting: waiting.Val(),
		Active:  active.Val(),
		Delayed: delayed.Val(),
		Failed:  failed.Val(),
	}, nil
}

// RegisterHandler binds a handler to a stage with the given worker
// concurrency. Must be called before Run.
func (q *RedisQueue) RegisterHandler(stage string, concurrency int, handler Handler) {
	if concurrency < 1 {
		concurrency = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stages[stage] = stageWorker{handler: handler, concurrency: concurrency}
}

// Run consumes tasks for every registered stage until the context is
// cancelled.
func (q *RedisQueue) Run(ctx context.Context) {
	var wg sync.WaitGroup

	q.mu.Lock()
	stages := make(map[string]stageWorker, len(q.stages))
	for stage, worker := range q.stages {
		stages[stage] = worker
	}
	q.mu.Unlock()

	for stage, worker := range stages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.promoteLoop(ctx, stage)
		}()

		for i := 0; i < worker.concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.workLoop(ctx, stage, worker.handler)
			}()
		}
	}
	wg.Wait()
}

// promoteLoop moves delayed tasks whose backoff expired back to pending.
func (q *RedisQueue) promoteLoop(ctx context.Context, stage string) {
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := strconv.FormatInt(time.Now().Unix(), 10)
			ready, err := q.client.ZRangeByScore(ctx, delayedKey(stage), &redis.ZRangeBy{
				Min:   "-inf",
				Max:   now,
				Count: promoteBatch,
			}).Result()
			if err != nil || len(ready) == 0 {
				continue
			}
			for _, raw := range ready {
				pipe := q.client.TxPipeline()
				pipe.ZRem(ctx, delayedKey(stage), raw)
				pipe.LPush(ctx, pendingKey(stage), raw)
				if _, err := pipe.Exec(ctx); err != nil {
					q.logger.Warn("failed to promote delayed task",
						zap.String("stage", stage), zap.Error(err))
				}
			}
		}
	}
}

func (q *RedisQueue) workLoop(ctx context.Context, stage string, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := q.client.BLMove(ctx, pendingKey(stage), processingKey(stage), "RIGHT", "LEFT", popTimeout).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Warn("failed to pop task", zap.String("stage", stage), zap.Error(err))
			time.Sleep(popTimeout)
			continue
		}

		q.process(ctx, stage, handler, raw)
	}
}

func (q *RedisQueue) process(ctx context.Context, stage string, handler Handler, raw string) {
	defer q.client.LRem(context.WithoutCancel(ctx), processingKey(stage), 1, raw)

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		q.logger.Error("dropping undecodable task to dead letter",
			zap.String("stage", stage), zap.Error(err))
		q.client.LPush(context.WithoutCancel(ctx), failedKey(stage), raw)
		return
	}

	err := handler(ctx, task.Payload)
	if err == nil {
		return
	}

	if IsPermanent(err) {
		q.logger.Error("task failed permanently",
			zap.String("stage", stage),
			zap.String("task_id", task.ID),
			zap.Error(err))
		q.client.LPush(context.WithoutCancel(ctx), failedKey(stage), raw)
		return
	}

	// Retryable: requeue with capped exponential backoff. Retries are
	// unbounded; precondition errors resolve once the upstream stage lands.
	task.Retries++
	delay := q.backoff << uint(task.Retries-1)
	if delay > q.maxBack || delay <= 0 {
		delay = q.maxBack
	}
	requeued, mErr := json.Marshal(task)
	if mErr != nil {
		q.client.LPush(context.WithoutCancel(ctx), failedKey(stage), raw)
		return
	}
	q.logger.Warn("task retrying",
		zap.String("stage", stage),
		zap.String("task_id", task.ID),
		zap.Int("retries", task.Retries),
		zap.Duration("delay", delay),
		zap.Error(err))
	q.client.ZAdd(context.WithoutCancel(ctx), delayedKey(stage), redis.Z{
		Score:  float64(time.Now().Add(delay).Unix()),
		Member: string(requeued),
	})
}

// Close releases the redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
