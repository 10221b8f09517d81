// Package queue provides the asynchronous task dispatch boundary used by the
// enrichment pipeline. Stages enqueue follow-up work here instead of calling
// each other, which keeps every stage separately retryable.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Task is one unit of work on a stage queue.
type Task struct {
	ID         string          `json:"id"`
	Stage      string          `json:"stage"`
	Payload    json.RawMessage `json:"payload"`
	Retries    int             `json:"retries"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Counts exposes queue depth per state for monitoring.
type Counts struct {
	Waiting int64
	Active  int64
	Delayed int64
	Failed  int64
}

// Queue is the dispatch interface the pipeline depends on.
type Queue interface {
	Enqueue(ctx context.Context, stage string, payload any) error
	EnqueueBulk(ctx context.Context, stage string, payloads []any) error
	Counts(ctx context.Context, stage string) (Counts, error)
}

// Handler processes one task payload. Returning nil completes the task.
// Returning an error retries it with backoff unless the error is marked
// permanent, in which case the task is dead-lettered.
type Handler func(ctx context.Context, payload json.RawMessage) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable. The task carrying it goes to
// the dead-letter list for manual inspection instead of being retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether an error was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
