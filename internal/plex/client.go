package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const subtitleStreamType = 3

// Client talks to a single Plex Media Server over its HTTP API.
// The client is safe for concurrent use; the token is never mutated after
// Connect.
type Client struct {
	baseURL      string
	token        string
	friendlyName string
	http         *http.Client
}

// Connect verifies the server is reachable with the given token and returns
// a ready client
func Connect(ctx context.Context, baseURL, token string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}

	body, err := c.get(ctx, "/identity", nil)
	if err != nil {
		return nil, fmt.Errorf("plex: connection to %s failed: %w", baseURL, err)
	}

	var identity metadataContainer
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("plex: failed to parse identity response: %w", err)
	}

	// friendlyName lives on the server root, identity only proves reachability
	if root, err := c.get(ctx, "/", nil); err == nil {
		var container metadataContainer
		if json.Unmarshal(root, &container) == nil {
			c.friendlyName = container.MediaContainer.FriendlyName
		}
	}

	log.Info().Str("server", c.friendlyName).Str("url", baseURL).Msg("Connected to Plex server")
	return c, nil
}

// FriendlyName returns the server's display name
func (c *Client) FriendlyName() string {
	return c.friendlyName
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Libraries returns the server's library sections
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	body, err := c.get(ctx, "/library/sections", nil)
	if err != nil {
		return nil, err
	}

	var container libraryContainer
	if err := json.Unmarshal(body, &container); err != nil {
		return nil, fmt.Errorf("plex: failed to parse libraries response: %w", err)
	}

	libraries := make([]Library, 0, len(container.MediaContainer.Directory))
	for _, dir := range container.MediaContainer.Directory {
		libraries = append(libraries, Library{ID: dir.Key, Name: dir.Title, Type: dir.Type})
	}
	return libraries, nil
}

// LibraryItems returns all top-level items of a section (movies or shows)
func (c *Client) LibraryItems(ctx context.Context, sectionID string) ([]Item, error) {
	return c.fetchItems(ctx, fmt.Sprintf("/library/sections/%s/all", sectionID))
}

// Children returns the direct children of an item (seasons of a show,
// episodes of a season)
func (c *Client) Children(ctx context.Context, ratingKey string) ([]Item, error) {
	return c.fetchItems(ctx, fmt.Sprintf("/library/metadata/%s/children", ratingKey))
}

// AllLeaves returns every leaf descendant of a container item. For a show it
// is all episodes across seasons, for a season its episodes.
func (c *Client) AllLeaves(ctx context.Context, ratingKey string) ([]Item, error) {
	return c.fetchItems(ctx, fmt.Sprintf("/library/metadata/%s/allLeaves", ratingKey))
}

// Item fetches a single item with its media and stream metadata
func (c *Client) Item(ctx context.Context, ratingKey string) (*Item, error) {
	items, err := c.fetchItems(ctx, fmt.Sprintf("/library/metadata/%s", ratingKey))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("plex: item %s not found", ratingKey)
	}
	return &items[0], nil
}

// SubtitleStreams returns the subtitle streams currently attached to an item
func (c *Client) SubtitleStreams(ctx context.Context, ratingKey string) ([]StreamInfo, error) {
	item, err := c.Item(ctx, ratingKey)
	if err != nil {
		return nil, err
	}

	var streams []StreamInfo
	for _, media := range item.Media {
		for _, part := range media.Parts {
			for _, s := range part.Streams {
				if s.StreamType != subtitleStreamType {
					continue
				}
				streams = append(streams, StreamInfo{
					ID:           s.ID,
					PartID:       part.ID,
					Language:     s.Language,
					LanguageCode: s.LanguageCode,
					Codec:        s.Codec,
					Forced:       s.Forced,
					SDH:          s.SDH,
					Selected:     s.Selected,
				})
			}
		}
	}
	return streams, nil
}

// UploadSubtitles attaches subtitle data to an item as a sidecar stream
func (c *Client) UploadSubtitles(ctx context.Context, ratingKey, langCode, title string, data []byte) error {
	params := url.Values{}
	params.Set("title", title)
	params.Set("language", langCode)

	endpoint := fmt.Sprintf("%s/library/metadata/%s/subtitles?%s", c.baseURL, ratingKey, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plex: subtitle upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("plex: subtitle upload returned status %d: %s", resp.StatusCode, string(body))
	}

	log.Debug().Str("rating_key", ratingKey).Str("language", langCode).Msg("Uploaded subtitle stream")
	return nil
}

// DeleteSubtitleStream removes a single subtitle stream from the server
func (c *Client) DeleteSubtitleStream(ctx context.Context, streamID int) error {
	endpoint := fmt.Sprintf("%s/library/streams/%d", c.baseURL, streamID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plex: subtitle delete failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("plex: subtitle delete returned status %d", resp.StatusCode)
	}

	log.Debug().Int("stream_id", streamID).Msg("Deleted subtitle stream")
	return nil
}

func (c *Client) fetchItems(ctx context.Context, path string) ([]Item, error) {
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var container metadataContainer
	if err := json.Unmarshal(body, &container); err != nil {
		return nil, fmt.Errorf("plex: failed to parse response for %s: %w", path, err)
	}

	items := make([]Item, 0, len(container.MediaContainer.Metadata))
	for _, meta := range container.MediaContainer.Metadata {
		items = append(items, meta.toItem())
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("plex: invalid token for %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plex: %s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	return body, nil
}
