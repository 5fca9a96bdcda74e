package subtitles

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestPodnapisiSearchFiltersFlags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subtitles/search/advanced" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data": [
			{"id": "s1", "title": "Heat", "language": "en", "releases": ["BluRay"], "flags": [],
				"download": "/subtitles/s1/download", "stats_downloads": 120},
			{"id": "s2", "title": "Heat", "language": "en", "releases": [], "flags": ["hearing_impaired"],
				"download": "/subtitles/s2/download", "stats_downloads": 40},
			{"id": "s3", "title": "Heat", "language": "en", "releases": [], "flags": [], "download": ""}
		]}`))
	}))
	defer server.Close()

	p := NewPodnapisi(server.URL, time.Second)
	results, err := p.Search(context.Background(), Query{Title: "Heat", Year: 1995, Language: "en"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (SDH and linkless entries filtered)", len(results))
	}
	if results[0].ID != "s1" || results[0].Score != 120 {
		t.Errorf("result = %+v", results[0])
	}

	sdh, err := p.Search(context.Background(), Query{Title: "Heat", Language: "en", SDH: true})
	if err != nil {
		t.Fatalf("SDH search: %v", err)
	}
	if len(sdh) != 1 || sdh[0].ID != "s2" {
		t.Errorf("SDH results = %+v, want only s2", sdh)
	}
}

func TestPodnapisiDownloadExtractsFromZip(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"readme.txt": "ignore me",
		"movie.srt":  "1\n00:00:01,000 --> 00:00:02,000\nhello\n",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	p := NewPodnapisi(server.URL, time.Second)
	data, err := p.Download(context.Background(), Result{
		ID: "s1", Provider: "podnapisi", DownloadURL: server.URL + "/subtitles/s1/download",
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Contains(data, []byte("hello")) {
		t.Errorf("extracted data = %q", data)
	}
}

func TestPodnapisiDownloadRejectsArchiveWithoutSubtitle(t *testing.T) {
	archive := zipArchive(t, map[string]string{"readme.txt": "nothing here"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	p := NewPodnapisi(server.URL, time.Second)
	if _, err := p.Download(context.Background(), Result{DownloadURL: server.URL + "/d"}); err == nil {
		t.Fatal("Download succeeded on an archive without subtitle files")
	}
}
