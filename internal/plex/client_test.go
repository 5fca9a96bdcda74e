package plex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "token123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestConnectVerifiesIdentity(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/identity": `{"MediaContainer": {}}`,
		"/":         `{"MediaContainer": {"friendlyName": "Den"}}`,
	})

	client, err := Connect(context.Background(), server.URL, "token123", 0)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if client.FriendlyName() != "Den" {
		t.Errorf("FriendlyName = %q, want Den", client.FriendlyName())
	}
}

func TestConnectRejectsBadToken(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/identity": `{"MediaContainer": {}}`,
	})

	if _, err := Connect(context.Background(), server.URL, "wrong", 0); err == nil {
		t.Fatal("Connect with bad token succeeded")
	}
}

func TestLibraries(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/library/sections": `{"MediaContainer": {"Directory": [
			{"key": "1", "title": "Movies", "type": "movie"},
			{"key": "2", "title": "TV Shows", "type": "show"}
		]}}`,
	})
	client := &Client{baseURL: server.URL, token: "token123", http: server.Client()}

	libraries, err := client.Libraries(context.Background())
	if err != nil {
		t.Fatalf("Libraries: %v", err)
	}
	if len(libraries) != 2 {
		t.Fatalf("got %d libraries, want 2", len(libraries))
	}
	if libraries[0].ID != "1" || libraries[0].Name != "Movies" || libraries[0].Type != "movie" {
		t.Errorf("library[0] = %+v", libraries[0])
	}
}

func TestSubtitleStreamsFiltersByType(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/library/metadata/42": `{"MediaContainer": {"Metadata": [{
			"ratingKey": "42", "title": "Heat", "type": "movie",
			"Media": [{"Part": [{"id": 7, "Stream": [
				{"id": 1, "streamType": 1, "codec": "h264"},
				{"id": 2, "streamType": 2, "languageCode": "en", "codec": "aac"},
				{"id": 3, "streamType": 3, "language": "English", "languageCode": "en", "codec": "srt", "selected": 1},
				{"id": 4, "streamType": 3, "language": "French", "languageCode": "fr", "codec": "srt", "forced": 1}
			]}]}]
		}]}}`,
	})
	client := &Client{baseURL: server.URL, token: "token123", http: server.Client()}

	streams, err := client.SubtitleStreams(context.Background(), "42")
	if err != nil {
		t.Fatalf("SubtitleStreams: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("got %d subtitle streams, want 2", len(streams))
	}
	if streams[0].LanguageCode != "en" || !streams[0].Selected || streams[0].PartID != 7 {
		t.Errorf("streams[0] = %+v", streams[0])
	}
	if streams[1].LanguageCode != "fr" || !streams[1].Forced {
		t.Errorf("streams[1] = %+v", streams[1])
	}
}

func TestItemLabel(t *testing.T) {
	tests := []struct {
		name     string
		item     Item
		expected string
	}{
		{
			name:     "movie with year",
			item:     Item{Title: "Heat", Type: "movie", Year: 1995},
			expected: "Heat (1995)",
		},
		{
			name:     "movie without year",
			item:     Item{Title: "Heat", Type: "movie"},
			expected: "Heat",
		},
		{
			name: "episode",
			item: Item{
				Title: "Ozymandias", Type: "episode",
				GrandparentTitle: "Breaking Bad", ParentIndex: 5, Index: 14,
			},
			expected: "Breaking Bad S05E14 - Ozymandias",
		},
		{
			name:     "show falls back to title",
			item:     Item{Title: "The Wire", Type: "show"},
			expected: "The Wire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Label(); got != tt.expected {
				t.Errorf("Label() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsLeaf(t *testing.T) {
	for itemType, want := range map[string]bool{
		"movie": true, "episode": true, "show": false, "season": false,
	} {
		item := Item{Type: itemType}
		if got := item.IsLeaf(); got != want {
			t.Errorf("IsLeaf(%s) = %v, want %v", itemType, got, want)
		}
	}
}
