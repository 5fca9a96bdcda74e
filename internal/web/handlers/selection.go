package handlers

import (
	"net/http"
)

type selectionRequest struct {
	Keys []string `json:"keys"`
}

// SelectionAdd adds rating keys to the selection, expanding containers to
// their leaf descendants, and returns the new cardinality
func (h *Handlers) SelectionAdd(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	count, err := sess.AddSelection(r.Context(), req.Keys)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// SelectionRemove removes rating keys from the selection
func (h *Handlers) SelectionRemove(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": sess.RemoveSelection(req.Keys)})
}

// SelectionClear empties the selection
func (h *Handlers) SelectionClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}
	sess.ClearSelection()
	writeJSON(w, http.StatusOK, map[string]int{"count": 0})
}

// SelectionCount returns the current cardinality
func (h *Handlers) SelectionCount(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": sess.SelectionCount()})
}

// SelectionList returns the selected items with display labels
func (h *Handlers) SelectionList(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	items := sess.SelectionItems()
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"rating_key": item.RatingKey,
			"label":      item.Label(),
			"type":       item.Type,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}

// SelectionAddAll launches a select-all task covering every item matching
// the current search and filter, returning its task id
func (h *Handlers) SelectionAddAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w)
	if !ok {
		return
	}

	var req struct {
		Search string `json:"search"`
		Filter string `json:"filter"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	taskID, err := sess.AddAllInView(req.Search, req.Filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}
