package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/primetime43/PlexSubSetter/internal/database"
	"github.com/primetime43/PlexSubSetter/internal/session"
	"github.com/primetime43/PlexSubSetter/internal/tasks"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db      *database.DB
	service *session.Service
	watcher *notificationWatcher
}

// New creates a new Handlers instance
func New(db *database.DB, service *session.Service) *Handlers {
	return &Handlers{
		db:      db,
		service: service,
		watcher: &notificationWatcher{},
	}
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps an error to a JSON error response. Sentinel errors get
// their conventional status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tasks.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, tasks.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNotConnected):
		status = http.StatusUnauthorized
	case errors.Is(err, session.ErrNoLibrary), errors.Is(err, session.ErrEmptySelection):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON reads a JSON request body into v
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// currentSession resolves the live session or writes a 401
func (h *Handlers) currentSession(w http.ResponseWriter) (*session.Session, bool) {
	sess, err := h.service.Current()
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}
