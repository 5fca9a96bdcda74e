package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/primetime43/PlexSubSetter/internal/database"
	"github.com/primetime43/PlexSubSetter/internal/web/sse"
)

// DefaultRetention is how long terminal records stay queryable before the
// reaper reclaims them
const DefaultRetention = 5 * time.Minute

// Broadcaster publishes task lifecycle events to connected clients
type Broadcaster interface {
	Broadcast(event sse.Event)
}

// HistoryStore persists terminal task outcomes
type HistoryStore interface {
	InsertTaskHistory(entry *database.TaskHistoryEntry) error
}

// Body is a task body. It runs on its own goroutine, reports progress
// through the TaskContext and returns the task's result payload. A returned
// error marks the task Failed (or Cancelled when it is the context error);
// the result is preserved either way so partial results survive failures.
type Body func(tc *TaskContext) (any, error)

// Manager runs background tasks for one session. Submissions return
// immediately with a task id; progress and completion are published through
// the broadcaster, and Status stays available as the polling fallback until
// the record is reaped.
type Manager struct {
	mu        sync.Mutex
	tasks     map[string]*task
	broker    Broadcaster
	history   HistoryStore
	retention time.Duration
	wg        sync.WaitGroup
	closed    bool
}

type task struct {
	// mu guards the record and serializes event emission so observed
	// progress is monotonically non-decreasing and completion is last
	mu     sync.Mutex
	rec    Record
	cancel context.CancelFunc
}

// NewManager creates a task manager publishing to the given broadcaster
func NewManager(broker Broadcaster) *Manager {
	return &Manager{
		tasks:     make(map[string]*task),
		broker:    broker,
		retention: DefaultRetention,
	}
}

// SetHistoryStore enables persistence of terminal task records
func (m *Manager) SetHistoryStore(h HistoryStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = h
}

// SetRetention overrides how long terminal records remain pollable
func (m *Manager) SetRetention(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.retention = d
	}
}

// Submit registers a task and starts it asynchronously. A mutating task is
// rejected with ErrBusy while another mutating task is in flight. Duplicate
// cache-warm submissions coalesce into the already-running warm task.
func (m *Manager) Submit(taskType Type, total int, body Body) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", errors.New("task manager is shut down")
	}
	if taskType.Mutating() && m.activeMutatingLocked() != "" {
		m.mu.Unlock()
		return "", ErrBusy
	}
	if taskType == TypeCacheWarm {
		if id := m.activeOfTypeLocked(TypeCacheWarm); id != "" {
			m.mu.Unlock()
			return id, nil
		}
	}

	id := uuid.NewString()[:8]
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		rec: Record{
			ID:        id,
			Type:      taskType,
			Status:    StatusPending,
			Total:     total,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
	}
	m.tasks[id] = t
	m.wg.Add(1)
	m.mu.Unlock()

	log.Info().Str("task_id", id).Str("task_type", string(taskType)).Int("total", total).Msg("Task submitted")

	go m.run(ctx, t, body)
	return id, nil
}

// Status returns a copy of the task record. ErrNotFound after the record has
// been reclaimed.
func (m *Manager) Status(id string) (Record, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.rec
	rec.FailedItems = append([]ItemError(nil), t.rec.FailedItems...)
	return rec, nil
}

// Cancel requests cooperative cancellation. Items already dispatched to the
// remote service finish; queued items are skipped. No-op for terminal tasks.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	t.mu.Lock()
	terminal := t.rec.Status.Terminal()
	t.mu.Unlock()
	if terminal {
		return nil
	}
	log.Info().Str("task_id", id).Msg("Cancelling task")
	t.cancel()
	return nil
}

// CancelReadOnly cancels all non-terminal read-only tasks, used on library
// switch. Mutating tasks already running against explicit item ids continue.
func (m *Manager) CancelReadOnly() {
	for _, t := range m.snapshotTasks() {
		t.mu.Lock()
		cancel := !t.rec.Type.Mutating() && !t.rec.Status.Terminal()
		t.mu.Unlock()
		if cancel {
			t.cancel()
		}
	}
}

// CancelAll cancels every non-terminal task
func (m *Manager) CancelAll() {
	for _, t := range m.snapshotTasks() {
		t.cancel()
	}
}

// Shutdown cancels all tasks and waits for their goroutines to exit
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.CancelAll()
	m.wg.Wait()
}

// ReapExpired removes terminal records older than the retention window and
// returns how many were reclaimed
func (m *Manager) ReapExpired() int {
	m.mu.Lock()
	retention := m.retention
	m.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	reaped := 0

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		t.mu.Lock()
		expired := t.rec.Status.Terminal() && t.rec.CompletedAt.Before(cutoff)
		t.mu.Unlock()
		if expired {
			delete(m.tasks, id)
			reaped++
		}
	}
	if reaped > 0 {
		log.Debug().Int("count", reaped).Msg("Reaped expired task records")
	}
	return reaped
}

// ActiveMutating returns the id of the running mutating task, if any
func (m *Manager) ActiveMutating() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeMutatingLocked()
}

func (m *Manager) activeMutatingLocked() string {
	for id, t := range m.tasks {
		t.mu.Lock()
		active := t.rec.Type.Mutating() && !t.rec.Status.Terminal()
		t.mu.Unlock()
		if active {
			return id
		}
	}
	return ""
}

func (m *Manager) activeOfTypeLocked(taskType Type) string {
	for id, t := range m.tasks {
		t.mu.Lock()
		active := t.rec.Type == taskType && !t.rec.Status.Terminal()
		t.mu.Unlock()
		if active {
			return id
		}
	}
	return ""
}

func (m *Manager) snapshotTasks() []*task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out
}

func (m *Manager) run(ctx context.Context, t *task, body Body) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("task_id", t.rec.ID).Msg("Task body panicked")
			m.finish(t, nil, errors.New("internal task failure"))
		}
	}()

	t.mu.Lock()
	t.rec.Status = StatusRunning
	t.mu.Unlock()

	tc := &TaskContext{ctx: ctx, m: m, t: t}
	result, err := body(tc)

	// A body that observed cancellation may surface it as any wrapped error
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	m.finish(t, result, err)
}

// finish sets the terminal state exactly once, persists history and emits
// the completion event as the task's last event
func (m *Manager) finish(t *task, result any, err error) {
	t.mu.Lock()
	if t.rec.Status.Terminal() {
		t.mu.Unlock()
		return
	}

	t.rec.Result = result
	t.rec.CompletedAt = time.Now()
	t.rec.CurrentItem = ""

	switch {
	case err == nil:
		t.rec.Status = StatusComplete
	case errors.Is(err, context.Canceled):
		t.rec.Status = StatusCancelled
		t.rec.Error = "cancelled"
	default:
		t.rec.Status = StatusFailed
		t.rec.Error = err.Error()
	}

	rec := t.rec
	data := map[string]any{
		"task_id":   rec.ID,
		"task_type": string(rec.Type),
		"success":   rec.Status == StatusComplete,
	}
	if rec.Error != "" {
		data["error"] = rec.Error
	}
	m.emit(sse.EventTaskComplete, data)
	t.mu.Unlock()

	log.Info().
		Str("task_id", rec.ID).
		Str("task_type", string(rec.Type)).
		Str("status", string(rec.Status)).
		Int("succeeded", rec.Succeeded).
		Int("failed", rec.Failed).
		Msg("Task finished")

	m.mu.Lock()
	history := m.history
	m.mu.Unlock()
	if history != nil {
		entry := &database.TaskHistoryEntry{
			TaskID:      rec.ID,
			TaskType:    string(rec.Type),
			Status:      string(rec.Status),
			Total:       rec.Total,
			Succeeded:   rec.Succeeded,
			Failed:      rec.Failed,
			Error:       rec.Error,
			CreatedAt:   rec.CreatedAt,
			CompletedAt: rec.CompletedAt,
		}
		if err := history.InsertTaskHistory(entry); err != nil {
			log.Error().Err(err).Str("task_id", rec.ID).Msg("Failed to persist task history")
		}
	}
}

func (m *Manager) emit(eventType sse.EventType, data map[string]any) {
	if m.broker != nil {
		m.broker.Broadcast(sse.Event{Type: eventType, Data: data})
	}
}
