package handlers

import (
	"net/http"

	"github.com/primetime43/PlexSubSetter/internal/session"
)

// SubtitleSearch launches a search task over the selection
func (h *Handlers) SubtitleSearch(w http.ResponseWriter, r *http.Request) {
	h.submitSubtitleTask(w, r, func(sess *session.Session, opts session.SearchOptions) (string, error) {
		return sess.SearchSubtitles(opts)
	})
}

// SubtitleDryRun launches a dry-run task reporting what a download would do
func (h *Handlers) SubtitleDryRun(w http.ResponseWriter, r *http.Request) {
	h.submitSubtitleTask(w, r, func(sess *session.Session, opts session.SearchOptions) (string, error) {
		return sess.DryRun(opts)
	})
}

// SubtitleDownload launches the mutating download task. Returns 409 while
// another mutating task is running.
func (h *Handlers) SubtitleDownload(w http.ResponseWriter, r *http.Request) {
	h.submitSubtitleTask(w, r, func(sess *session.Session, opts session.SearchOptions) (string, error) {
		return sess.Download(opts)
	})
}

// SubtitleDelete launches the mutating delete task. An empty language
// removes every subtitle stream.
func (h *Handlers) SubtitleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	var req struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	taskID, err := sess.Delete(req.Language)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// SubtitleListCurrent synchronously lists the subtitle streams attached to
// each selected item
func (h *Handlers) SubtitleListCurrent(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	listing, err := sess.ListCurrent(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": listing})
}

func (h *Handlers) submitSubtitleTask(w http.ResponseWriter, r *http.Request, submit func(*session.Session, session.SearchOptions) (string, error)) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	var opts session.SearchOptions
	if err := decodeJSON(r, &opts); err != nil {
		writeError(w, err)
		return
	}

	taskID, err := submit(sess, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}
