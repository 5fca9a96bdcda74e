package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/primetime43/PlexSubSetter/internal/web/sse"
)

// TaskContext is handed to a task body for progress reporting. All methods
// are safe for concurrent use by worker goroutines.
type TaskContext struct {
	ctx context.Context
	m   *Manager
	t   *task
}

// ID returns the task id
func (tc *TaskContext) ID() string {
	return tc.t.rec.ID
}

// Context returns the cancellation context for the task. Bodies pass it to
// every remote call.
func (tc *TaskContext) Context() context.Context {
	return tc.ctx
}

// SetTotal adjusts the expected item count, used when the workload is only
// known after an initial remote query
func (tc *TaskContext) SetTotal(n int) {
	tc.t.mu.Lock()
	defer tc.t.mu.Unlock()
	tc.t.rec.Total = n
}

// ItemDone records one processed item and emits a progress event. The
// counter update and the emission happen under the task lock, so a client
// never observes progress moving backwards.
func (tc *TaskContext) ItemDone(label string, err error) {
	tc.t.mu.Lock()
	defer tc.t.mu.Unlock()

	tc.t.rec.Current++
	tc.t.rec.CurrentItem = label
	if err != nil {
		tc.t.rec.Failed++
		tc.t.rec.FailedItems = append(tc.t.rec.FailedItems, ItemError{Label: label, Error: err.Error()})
	} else {
		tc.t.rec.Succeeded++
	}

	tc.m.emit(sse.EventProgress, map[string]any{
		"task_id":   tc.t.rec.ID,
		"task_type": string(tc.t.rec.Type),
		"current":   tc.t.rec.Current,
		"total":     tc.t.rec.Total,
		"item":      label,
	})
}

// Log emits a log event to connected clients and mirrors it to the server
// log. level is "info", "warning" or "error".
func (tc *TaskContext) Log(level, message string) {
	switch level {
	case "error":
		log.Error().Str("task_id", tc.t.rec.ID).Msg(message)
	case "warning":
		log.Warn().Str("task_id", tc.t.rec.ID).Msg(message)
	default:
		log.Info().Str("task_id", tc.t.rec.ID).Msg(message)
	}
	tc.m.emit(sse.EventLog, map[string]any{
		"task_id": tc.t.rec.ID,
		"level":   level,
		"message": message,
	})
}

// Emit publishes an arbitrary event on behalf of the task, used for
// subtitle status updates during cache warms
func (tc *TaskContext) Emit(eventType sse.EventType, data map[string]any) {
	tc.m.emit(eventType, data)
}

type fatalError struct {
	err error
}

func (f fatalError) Error() string { return f.err.Error() }
func (f fatalError) Unwrap() error { return f.err }

// Fatal marks an item error as batch-fatal: remaining queued items are
// skipped and the task fails with this error
func Fatal(err error) error {
	return fatalError{err: err}
}

// Outcome summarizes a batch run
type Outcome[T any] struct {
	Succeeded []T
	Failed    []ItemError
	Fatal     error
	Cancelled bool
}

// Err returns the error the task should finish with, or nil when the batch
// ran to completion. Per-item failures alone do not fail the batch.
func (o *Outcome[T]) Err(ctx context.Context) error {
	if o.Fatal != nil {
		return o.Fatal
	}
	if o.Cancelled {
		return ctx.Err()
	}
	return nil
}

// RunItems processes items through fn on a bounded worker pool, recording
// each outcome on the task. Per-item errors are collected and do not stop
// the batch; an error wrapped with Fatal aborts dispatch of queued items, as
// does cancellation. Items already dispatched run to completion either way.
func RunItems[T any](tc *TaskContext, items []T, workers int, label func(T) string, fn func(ctx context.Context, item T) error) *Outcome[T] {
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		outcome Outcome[T]
		aborted bool
	)
	sem := make(chan struct{}, workers)

dispatch:
	for _, item := range items {
		select {
		case <-tc.ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		// Checked after acquiring the slot: a fatal worker releases its slot
		// only after recording the abort, so no further item starts once one
		// has gone fatal
		mu.Lock()
		stop := aborted
		mu.Unlock()
		if stop {
			<-sem
			break
		}

		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()

			err := fn(tc.ctx, item)

			mu.Lock()
			if err != nil {
				var fatal fatalError
				if errors.As(err, &fatal) {
					aborted = true
					if outcome.Fatal == nil {
						outcome.Fatal = fatal.err
					}
				}
				outcome.Failed = append(outcome.Failed, ItemError{Label: label(item), Error: err.Error()})
			} else {
				outcome.Succeeded = append(outcome.Succeeded, item)
			}
			mu.Unlock()

			tc.ItemDone(label(item), err)
		}(item)
	}

	wg.Wait()
	outcome.Cancelled = tc.ctx.Err() != nil
	return &outcome
}
