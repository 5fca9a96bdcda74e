package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Libraries lists the server's library sections
func (h *Handlers) Libraries(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}
	libraries, err := sess.Libraries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"libraries": libraries})
}

// OpenLibrary switches the active library, clearing selection and cache
func (h *Handlers) OpenLibrary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}
	if err := sess.OpenLibrary(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"library": chi.URLParam(r, "id")})
}

// Items returns one page of the open library with subtitle-status
// annotations. Query params: page, search, filter (all|has|missing).
func (h *Handlers) Items(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	search := r.URL.Query().Get("search")
	filter := r.URL.Query().Get("filter")

	result, err := sess.BrowsePage(r.Context(), page, search, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Seasons returns the seasons of a show
func (h *Handlers) Seasons(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}
	items, err := sess.Seasons(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Episodes returns the episodes of a season
func (h *Handlers) Episodes(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}
	items, err := sess.Episodes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// WarmCache launches a cache-warm task for the given rating keys and returns
// its task id. Clients re-fetch the page once cache_complete fires.
func (h *Handlers) WarmCache(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	var req struct {
		Keys []string `json:"keys"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	taskID, err := sess.WarmView(req.Keys)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}
