package database

import (
	"fmt"
	"time"
)

// TaskHistoryEntry is a terminal task record persisted for the history view
type TaskHistoryEntry struct {
	ID          int64     `json:"id"`
	TaskID      string    `json:"task_id"`
	TaskType    string    `json:"task_type"`
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// InsertTaskHistory records a terminal task outcome
func (db *DB) InsertTaskHistory(entry *TaskHistoryEntry) error {
	_, err := db.Exec(`
		INSERT INTO task_history (task_id, task_type, status, total, succeeded, failed, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.TaskID, entry.TaskType, entry.Status, entry.Total, entry.Succeeded,
		entry.Failed, entry.Error, entry.CreatedAt, entry.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task history: %w", err)
	}
	return nil
}

// ListTaskHistory returns the most recent terminal task records
func (db *DB) ListTaskHistory(limit int) ([]*TaskHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, task_id, task_type, status, total, succeeded, failed, COALESCE(error, ''), created_at, completed_at
		FROM task_history
		ORDER BY completed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list task history: %w", err)
	}
	defer rows.Close()

	var entries []*TaskHistoryEntry
	for rows.Next() {
		entry := &TaskHistoryEntry{}
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.TaskType, &entry.Status,
			&entry.Total, &entry.Succeeded, &entry.Failed, &entry.Error,
			&entry.CreatedAt, &entry.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task history: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PruneTaskHistory deletes history entries older than the cutoff
func (db *DB) PruneTaskHistory(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := db.Exec("DELETE FROM task_history WHERE completed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune task history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
