package tasks

import (
	"errors"
	"time"
)

// Type identifies what a task does
type Type string

const (
	TypeSearch    Type = "search"
	TypeDryRun    Type = "dry_run"
	TypeDownload  Type = "download"
	TypeDelete    Type = "delete"
	TypeSelectAll Type = "select_all"
	TypeCacheWarm Type = "cache_warm"
)

// Mutating reports whether the task writes to the remote server. At most one
// mutating task may be running per session.
func (t Type) Mutating() bool {
	return t == TypeDownload || t == TypeDelete
}

// Status is the lifecycle state of a task
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrBusy is returned when a mutating task is submitted while another
	// mutating task is in flight. Never queued silently.
	ErrBusy = errors.New("a mutating task is already running")

	// ErrNotFound is returned for unknown or reclaimed task ids. Callers
	// treat it as "assume stale, re-derive from current state".
	ErrNotFound = errors.New("task not found")
)

// ItemError records a single failed item within a batch
type ItemError struct {
	Label string `json:"label"`
	Error string `json:"error"`
}

// Record is the externally visible state of a task. Copies are returned to
// callers; the manager owns the live record.
type Record struct {
	ID          string      `json:"id"`
	Type        Type        `json:"type"`
	Status      Status      `json:"status"`
	Current     int         `json:"current"`
	Total       int         `json:"total"`
	CurrentItem string      `json:"current_item,omitempty"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	FailedItems []ItemError `json:"failed_items,omitempty"`
	Result      any         `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
}
