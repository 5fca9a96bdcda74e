package subtitles

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubProvider struct {
	name    string
	results []Result
	err     error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	return s.results, s.err
}

func (s *stubProvider) Download(ctx context.Context, r Result) ([]byte, error) {
	return []byte(s.name), nil
}

func TestMultiProviderMergesSortedByScore(t *testing.T) {
	mp := NewMultiProvider([]string{"a", "b"}, map[string]Provider{
		"a": &stubProvider{name: "a", results: []Result{{ID: "1", Provider: "a", Score: 10}}},
		"b": &stubProvider{name: "b", results: []Result{{ID: "2", Provider: "b", Score: 50}}},
	})

	results, err := mp.Search(context.Background(), Query{Title: "Heat", Language: "en"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Provider != "b" {
		t.Errorf("first result from %s, want b (higher score)", results[0].Provider)
	}
}

func TestMultiProviderToleratesPartialFailure(t *testing.T) {
	mp := NewMultiProvider([]string{"a", "b"}, map[string]Provider{
		"a": &stubProvider{name: "a", err: errors.New("down")},
		"b": &stubProvider{name: "b", results: []Result{{ID: "2", Provider: "b"}}},
	})

	results, err := mp.Search(context.Background(), Query{Title: "Heat"})
	if err != nil {
		t.Fatalf("Search with one failing provider: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestMultiProviderAllFailed(t *testing.T) {
	mp := NewMultiProvider([]string{"a"}, map[string]Provider{
		"a": &stubProvider{name: "a", err: errors.New("down")},
	})

	if _, err := mp.Search(context.Background(), Query{Title: "Heat"}); err == nil {
		t.Fatal("Search succeeded with every provider failing")
	}
}

func TestMultiProviderSkipsUnknownNames(t *testing.T) {
	mp := NewMultiProvider([]string{"a", "gone"}, map[string]Provider{
		"a": &stubProvider{name: "a"},
	})
	if len(mp.Providers()) != 1 {
		t.Errorf("got %d providers, want 1", len(mp.Providers()))
	}
}

func TestMultiProviderDownloadRoutesByName(t *testing.T) {
	mp := NewMultiProvider([]string{"a", "b"}, map[string]Provider{
		"a": &stubProvider{name: "a"},
		"b": &stubProvider{name: "b"},
	})

	data, err := mp.Download(context.Background(), Result{ID: "1", Provider: "b"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "b" {
		t.Errorf("download routed to %q, want b", data)
	}

	if _, err := mp.Download(context.Background(), Result{Provider: "missing"}); err == nil {
		t.Error("Download for unconfigured provider succeeded")
	}
}

func TestOpenSubtitlesSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subtitles" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Api-Key") != "key123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("query") != "Breaking Bad" || q.Get("season_number") != "5" || q.Get("episode_number") != "14" {
			t.Errorf("unexpected query params: %v", q)
		}
		_, _ = w.Write([]byte(`{"data": [
			{"attributes": {"language": "en", "release": "WEB-DL", "ratings": 4.5,
				"files": [{"file_id": 99, "file_name": "ep.srt"}]}},
			{"attributes": {"language": "en", "files": []}}
		]}`))
	}))
	defer server.Close()

	os := NewOpenSubtitles(server.URL, "key123", time.Second)
	results, err := os.Search(context.Background(), Query{
		Series: "Breaking Bad", Season: 5, Episode: 14, Language: "en",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (entries without files skipped)", len(results))
	}
	if results[0].ID != "99" || results[0].Provider != "opensubtitles" || results[0].ReleaseInfo != "WEB-DL" {
		t.Errorf("result = %+v", results[0])
	}
}

func TestOpenSubtitlesDownload(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			_, _ = w.Write([]byte(`{"link": "` + server.URL + `/file.srt", "file_name": "file.srt"}`))
		case "/file.srt":
			_, _ = w.Write([]byte("subtitle content"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	os := NewOpenSubtitles(server.URL, "key123", time.Second)
	data, err := os.Download(context.Background(), Result{ID: "99", Provider: "opensubtitles"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "subtitle content" {
		t.Errorf("data = %q", data)
	}
}
