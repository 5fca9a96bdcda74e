package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// TaskStatus is the polling fallback for the event stream. 404 means the
// record was reclaimed; clients re-derive state from the browse endpoints.
func (h *Handlers) TaskStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	record, err := sess.TaskStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// TaskCancel requests cooperative cancellation of a task
func (h *Handlers) TaskCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	if err := sess.CancelTask(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// TaskHistory lists recent terminal tasks from the database
func (h *Handlers) TaskHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.db.ListTaskHistory(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": entries})
}
