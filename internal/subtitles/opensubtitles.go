package subtitles

import (
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

const defaultOpenSubtitlesURL = "https://api.opensubtitles.com/api/v1"

// maxSubtitleSize caps downloaded subtitle payloads; anything larger is not a
// plausible subtitle file
const maxSubtitleSize = 2 << 20

// OpenSubtitles is a Provider backed by the OpenSubtitles REST API
type OpenSubtitles struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenSubtitles creates an OpenSubtitles provider. baseURL is overridable
// for tests; pass "" for the public API.
func NewOpenSubtitles(baseURL, apiKey string, timeout time.Duration) *OpenSubtitles {
	if baseURL == "" {
		baseURL = defaultOpenSubtitlesURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenSubtitles{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identifier used in settings and results
func (o *OpenSubtitles) Name() string {
	return "opensubtitles"
}

// Search queries the subtitles endpoint for the given item
func (o *OpenSubtitles) Search(ctx context.Context, q Query) ([]Result, error) {
	params := url.Values{}
	params.Set("languages", q.Language)
	if q.Series != "" {
		params.Set("query", q.Series)
		params.Set("season_number", strconv.Itoa(q.Season))
		params.Set("episode_number", strconv.Itoa(q.Episode))
	} else {
		params.Set("query", q.Title)
		if q.Year > 0 {
			params.Set("year", strconv.Itoa(q.Year))
		}
	}
	if q.SDH {
		params.Set("hearing_impaired", "only")
	}
	if q.Forced {
		params.Set("foreign_parts_only", "only")
	}

	body, err := o.get(ctx, "/subtitles?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var parsed osSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("opensubtitles: failed to parse search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if len(d.Attributes.Files) == 0 {
			continue
		}
		release := d.Attributes.Release
		if release == "" {
			release = d.Attributes.Files[0].FileName
		}
		results = append(results, Result{
			ID:          strconv.Itoa(d.Attributes.Files[0].FileID),
			Provider:    o.Name(),
			Language:    d.Attributes.Language,
			ReleaseInfo: truncate(release, 100),
			Score:       int(d.Attributes.Ratings * 100),
		})
	}
	return results, nil
}

// Download resolves a download link for the file and fetches its content
func (o *OpenSubtitles) Download(ctx context.Context, r Result) ([]byte, error) {
	payload := fmt.Sprintf(`{"file_id":%s}`, r.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/download", strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	o.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("opensubtitles: download returned status %d: %s", resp.StatusCode, string(body))
	}

	var link osDownloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return nil, fmt.Errorf("opensubtitles: failed to parse download response: %w", err)
	}
	if link.Link == "" {
		return nil, fmt.Errorf("opensubtitles: no download link for file %s", r.ID)
	}

	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, link.Link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	fileResp, err := o.client.Do(fileReq)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: file fetch failed: %w", err)
	}
	defer fileResp.Body.Close()

	if fileResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensubtitles: file fetch returned status %d", fileResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(fileResp.Body, maxSubtitleSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle content: %w", err)
	}
	if len(data) > maxSubtitleSize {
		return nil, fmt.Errorf("opensubtitles: subtitle file exceeds %d bytes", maxSubtitleSize)
	}
	return data, nil
}

func (o *OpenSubtitles) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	o.setHeaders(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opensubtitles: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensubtitles: %s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

func (o *OpenSubtitles) setHeaders(req *http.Request) {
	req.Header.Set("Api-Key", o.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PlexSubSetter v1")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

type osSearchResponse struct {
	Data []struct {
		Attributes struct {
			Language string  `json:"language"`
			Release  string  `json:"release"`
			Ratings  float64 `json:"ratings"`
			Files    []struct {
				FileID   int    `json:"file_id"`
				FileName string `json:"file_name"`
			} `json:"files"`
		} `json:"attributes"`
	} `json:"data"`
}

type osDownloadResponse struct {
	Link     string `json:"link"`
	FileName string `json:"file_name"`
}
