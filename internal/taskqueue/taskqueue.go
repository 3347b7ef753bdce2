// Package taskqueue hands job ids to background workers, either in process
// or through Redis with asynq.
package taskqueue

import (
	"context"
	"errors"
)

// Task types.
const (
	TypePhotobookProcess = "photobook:process"
	TypeRemixProcess     = "remix:process"
)

var (
	ErrQueueFull   = errors.New("taskqueue: queue full")
	ErrClosed      = errors.New("taskqueue: closed")
	ErrUnknownType = errors.New("taskqueue: unknown task type")
)

// Task identifies one unit of background work.
type Task struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// HandlerFunc processes the job identified by jobID.
type HandlerFunc func(ctx context.Context, jobID string) error

// Handlers routes task types to their handler.
type Handlers map[string]HandlerFunc

// Dispatcher schedules a task for background execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}
