package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"coloringbook/internal/domain"
)

// QueueName is the asynq queue all job tasks go to.
const QueueName = "jobs"

type taskPayload struct {
	JobID string `json:"jobId"`
}

// AsynqOptions configures AsynqDispatcher.
type AsynqOptions struct {
	MaxRetry  int
	Retention time.Duration
}

// AsynqDispatcher enqueues tasks to Redis for cmd/worker to pick up.
type AsynqDispatcher struct {
	client    *asynq.Client
	maxRetry  int
	retention time.Duration
}

var _ Dispatcher = (*AsynqDispatcher)(nil)

func NewAsynqDispatcher(redis asynq.RedisClientOpt, opts AsynqOptions) *AsynqDispatcher {
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 3
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &AsynqDispatcher{
		client:    asynq.NewClient(redis),
		maxRetry:  opts.MaxRetry,
		retention: opts.Retention,
	}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, task Task) error {
	t, err := newAsynqTask(task)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, t,
		asynq.Queue(QueueName),
		asynq.MaxRetry(d.maxRetry),
		asynq.Retention(d.retention),
	); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return nil
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

func newAsynqTask(task Task) (*asynq.Task, error) {
	data, err := json.Marshal(taskPayload{JobID: task.JobID})
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}
	return asynq.NewTask(task.Type, data), nil
}

// NewServeMux routes asynq tasks to handlers. Jobs that no longer exist or
// carry an invalid payload are not retried.
func NewServeMux(handlers Handlers, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for taskType, handler := range handlers {
		mux.HandleFunc(taskType, asynqHandler(taskType, handler, logger))
	}
	return mux
}

func asynqHandler(taskType string, handler HandlerFunc, logger zerolog.Logger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload taskPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.JobID == "" {
			logger.Error().Str("task_type", taskType).Msg("taskqueue: invalid task payload")
			return fmt.Errorf("invalid %s payload: %w", taskType, asynq.SkipRetry)
		}
		err := handler(ctx, payload.JobID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%s %s: %v: %w", taskType, payload.JobID, err, asynq.SkipRetry)
		}
		return err
	}
}

// NewServer builds the asynq worker server consuming QueueName.
func NewServer(redis asynq.RedisClientOpt, concurrency int, appEnv string) *asynq.Server {
	level := asynq.InfoLevel
	if strings.EqualFold(appEnv, "development") {
		level = asynq.DebugLevel
	}
	return asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueName: 1},
		LogLevel:    level,
	})
}
