package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/primetime43/PlexSubSetter/internal/database"
	"github.com/primetime43/PlexSubSetter/internal/plex"
	"github.com/primetime43/PlexSubSetter/internal/session"
	"github.com/primetime43/PlexSubSetter/internal/web/sse"
)

// stubServer is a minimal MediaServer for handler tests
type stubServer struct {
	items map[string]plex.Item
}

func (s *stubServer) FriendlyName() string { return "stub" }

func (s *stubServer) Libraries(ctx context.Context) ([]plex.Library, error) {
	return []plex.Library{{ID: "1", Name: "Movies", Type: "movie"}}, nil
}

func (s *stubServer) LibraryItems(ctx context.Context, sectionID string) ([]plex.Item, error) {
	var out []plex.Item
	for _, item := range s.items {
		out = append(out, item)
	}
	return out, nil
}

func (s *stubServer) Children(ctx context.Context, ratingKey string) ([]plex.Item, error) {
	return nil, nil
}

func (s *stubServer) AllLeaves(ctx context.Context, ratingKey string) ([]plex.Item, error) {
	return nil, nil
}

func (s *stubServer) Item(ctx context.Context, ratingKey string) (*plex.Item, error) {
	item, ok := s.items[ratingKey]
	if !ok {
		return nil, errors.New("item not found")
	}
	return &item, nil
}

func (s *stubServer) SubtitleStreams(ctx context.Context, ratingKey string) ([]plex.StreamInfo, error) {
	return nil, nil
}

func (s *stubServer) UploadSubtitles(ctx context.Context, ratingKey, langCode, title string, data []byte) error {
	return nil
}

func (s *stubServer) DeleteSubtitleStream(ctx context.Context, streamID int) error {
	return nil
}

func newTestHandlers(t *testing.T) (*Handlers, *session.Service) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	broker := sse.NewBroker()
	t.Cleanup(broker.Stop)
	svc := session.NewService(broker, db, nil, nil)
	t.Cleanup(svc.Teardown)
	return New(db, svc), svc
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestConnectionStatusWithoutSession(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := httptest.NewRecorder()
	h.ConnectionStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["connected"] != false {
		t.Errorf("connected = %v, want false", body["connected"])
	}
}

func TestSelectionCountRequiresSession(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := httptest.NewRecorder()
	h.SelectionCount(rec, httptest.NewRequest(http.MethodGet, "/api/selection/count", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestTaskStatusUnknownIDIs404(t *testing.T) {
	h, svc := newTestHandlers(t)
	svc.CreateSession(&stubServer{})

	r := chi.NewRouter()
	r.Get("/api/tasks/{id}", h.TaskStatus)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/deadbeef", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadWithEmptySelectionIs400(t *testing.T) {
	h, svc := newTestHandlers(t)
	svc.CreateSession(&stubServer{})

	req := httptest.NewRequest(http.MethodPost, "/api/subtitles/download", strings.NewReader(`{"language": "English"}`))
	rec := httptest.NewRecorder()
	h.SubtitleDownload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSettingsUpdateRejectsUnknownKey(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/settings", strings.NewReader(`{"bogus.key": "1"}`))
	rec := httptest.NewRecorder()
	h.SettingsUpdate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/settings",
		strings.NewReader(`{"subtitles.default_language": "de"}`))
	rec := httptest.NewRecorder()
	h.SettingsUpdate(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.SettingsGet(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	settings := body["settings"].(map[string]any)
	if settings["subtitles.default_language"] != "de" {
		t.Errorf("stored language = %v, want de", settings["subtitles.default_language"])
	}
	// Unset keys come back with their defaults
	if settings["browse.items_per_page"] != "30" {
		t.Errorf("default items per page = %v, want 30", settings["browse.items_per_page"])
	}
	if _, ok := body["languages"].([]any); !ok {
		t.Error("response is missing the languages list")
	}
}
