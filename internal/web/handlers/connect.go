package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/primetime43/PlexSubSetter/internal/plex"
)

// notificationWatcher owns the WebSocket listener for the connected server.
// One watcher runs per session; connecting again or disconnecting stops it.
type notificationWatcher struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (n *notificationWatcher) start(client *plex.Client, onTimeline plex.TimelineCallback) {
	n.stop()
	ctx, cancel := context.WithCancel(context.Background())
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	go func() {
		if err := client.WatchNotifications(ctx, onTimeline); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Plex notification watcher stopped")
		}
	}()
}

func (n *notificationWatcher) stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

type connectRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Connect establishes the session against a Plex server. An existing
// session is torn down first.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.URL == "" || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url and token are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	client, err := plex.Connect(ctx, req.URL, req.Token, 0)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	sess := h.service.CreateSession(client)
	h.watcher.start(client, func(ratingKeys []string) {
		sess.InvalidateExternal(ratingKeys)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"server": client.FriendlyName(),
	})
}

// Disconnect tears down the session. Idempotent.
func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.watcher.stop()
	h.service.Teardown()
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// ConnectionStatus reports whether a session is live and which library is
// open
func (h *Handlers) ConnectionStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Current()
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": true,
		"server":    sess.Server().FriendlyName(),
		"library":   sess.LibraryID(),
		"selected":  sess.SelectionCount(),
	})
}
