package taskqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"coloringbook/internal/infra"
)

// Pool runs tasks on a fixed set of goroutines fed by a buffered channel.
// Handlers run on the pool's own context, not the caller's.
type Pool struct {
	handlers Handlers
	tasks    chan Task
	logger   zerolog.Logger
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ Dispatcher = (*Pool)(nil)

// NewPool starts workers goroutines with room for queueSize pending tasks.
func NewPool(handlers Handlers, workers, queueSize int, logger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		handlers: handlers,
		tasks:    make(chan Task, queueSize),
		logger:   infra.Component(logger, "taskqueue"),
		tracer:   otel.Tracer("coloringbook/taskqueue"),
		ctx:      ctx,
		cancel:   cancel,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// Dispatch queues task. It never blocks: a full buffer returns ErrQueueFull.
func (p *Pool) Dispatch(ctx context.Context, task Task) error {
	if _, ok := p.handlers[task.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, task.Type)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	ctx, span := p.tracer.Start(p.ctx, "taskqueue.run", trace.WithAttributes(
		attribute.String("task.type", task.Type),
		attribute.String("job.id", task.JobID),
	))
	defer span.End()
	logger := p.logger.With().Str("task_type", task.Type).Str("job_id", task.JobID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			infra.CaptureException(span, err)
			logger.Error().Err(err).Bytes("stack", debug.Stack()).Msg("taskqueue: handler panicked")
		}
	}()

	if err := p.handlers[task.Type](ctx, task.JobID); err != nil {
		infra.CaptureException(span, err)
		logger.Error().Err(err).Msg("taskqueue: task failed")
		return
	}
	logger.Debug().Msg("taskqueue: task done")
}

// Shutdown stops accepting tasks and waits for queued ones to finish. When
// ctx expires first, running handlers are cancelled and ctx.Err is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
