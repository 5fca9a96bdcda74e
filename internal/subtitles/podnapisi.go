package subtitles

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultPodnapisiURL = "https://www.podnapisi.net"

// Podnapisi is a Provider backed by the podnapisi.net JSON search API.
// Downloads arrive as zip archives containing the subtitle file.
type Podnapisi struct {
	baseURL string
	client  *http.Client
}

// NewPodnapisi creates a podnapisi.net provider. baseURL is overridable for
// tests; pass "" for the public site.
func NewPodnapisi(baseURL string, timeout time.Duration) *Podnapisi {
	if baseURL == "" {
		baseURL = defaultPodnapisiURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Podnapisi{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identifier used in settings and results
func (p *Podnapisi) Name() string {
	return "podnapisi"
}

// Search queries the advanced search endpoint for the given item
func (p *Podnapisi) Search(ctx context.Context, q Query) ([]Result, error) {
	params := url.Values{}
	params.Set("language", q.Language)
	if q.Series != "" {
		params.Set("keywords", q.Series)
		params.Set("seasons", strconv.Itoa(q.Season))
		params.Set("episodes", strconv.Itoa(q.Episode))
		params.Set("movie_type", "tv-series")
	} else {
		params.Set("keywords", q.Title)
		if q.Year > 0 {
			params.Set("year", strconv.Itoa(q.Year))
		}
		params.Set("movie_type", "movie")
	}

	endpoint := p.baseURL + "/subtitles/search/advanced?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("podnapisi: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("podnapisi: search returned status %d", resp.StatusCode)
	}

	var parsed pnSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("podnapisi: failed to parse search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Download == "" {
			continue
		}
		release := strings.Join(d.Releases, " ")
		if release == "" {
			release = d.Title
		}
		// forced/SDH flags arrive as custom markers on the flags list
		if q.Forced != containsFlag(d.Flags, "foreign_only") {
			continue
		}
		if q.SDH != containsFlag(d.Flags, "hearing_impaired") {
			continue
		}
		results = append(results, Result{
			ID:          d.ID,
			Provider:    p.Name(),
			Language:    d.Language,
			ReleaseInfo: truncate(release, 100),
			DownloadURL: p.baseURL + d.Download,
			Score:       d.Downloads,
		})
	}
	return results, nil
}

// Download fetches the subtitle archive and extracts the first subtitle file
func (p *Podnapisi) Download(ctx context.Context, r Result) ([]byte, error) {
	if r.DownloadURL == "" {
		return nil, fmt.Errorf("podnapisi: result %s has no download url", r.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("podnapisi: download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("podnapisi: download returned status %d", resp.StatusCode)
	}

	archive, err := io.ReadAll(io.LimitReader(resp.Body, maxSubtitleSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle archive: %w", err)
	}
	if len(archive) > maxSubtitleSize {
		return nil, fmt.Errorf("podnapisi: subtitle archive exceeds %d bytes", maxSubtitleSize)
	}
	return extractSubtitle(archive)
}

func extractSubtitle(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("podnapisi: failed to open subtitle archive: %w", err)
	}
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		if !strings.HasSuffix(name, ".srt") && !strings.HasSuffix(name, ".ass") && !strings.HasSuffix(name, ".ssa") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("podnapisi: failed to open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxSubtitleSize+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("podnapisi: failed to read %s: %w", f.Name, err)
		}
		if len(data) > maxSubtitleSize {
			return nil, fmt.Errorf("podnapisi: subtitle file exceeds %d bytes", maxSubtitleSize)
		}
		return data, nil
	}
	return nil, fmt.Errorf("podnapisi: archive contains no subtitle file")
}

func containsFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

type pnSearchResponse struct {
	Data []struct {
		ID        string   `json:"id"`
		Title     string   `json:"title"`
		Language  string   `json:"language"`
		Releases  []string `json:"releases"`
		Flags     []string `json:"flags"`
		Download  string   `json:"download"`
		Downloads int      `json:"stats_downloads"`
	} `json:"data"`
}
