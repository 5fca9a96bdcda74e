package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// TimelineCallback receives the rating keys of items the server reported as
// changed (new media, metadata updates, deletions)
type TimelineCallback func(ratingKeys []string)

// WatchNotifications connects to the server's notification WebSocket and
// invokes the callback for timeline entries. It reconnects with exponential
// backoff and blocks until the context is cancelled.
func (c *Client) WatchNotifications(ctx context.Context, callback TimelineCallback) error {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
	)

	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.watchOnce(ctx, callback)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			log.Warn().
				Err(err).
				Dur("backoff", backoff).
				Msg("Plex WebSocket disconnected, reconnecting")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff = min(backoff*2, maxBackoff)
		} else {
			backoff = initialBackoff
		}
	}
}

// watchOnce establishes a single WebSocket connection and handles messages.
// Plex keeps the connection alive with its own notification traffic, so no
// ping frames are sent.
func (c *Client) watchOnce(ctx context.Context, callback TimelineCallback) error {
	wsURL, err := c.buildWebSocketURL()
	if err != nil {
		return fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	log.Debug().Str("url", wsURL).Msg("Connecting to Plex WebSocket")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("WebSocket dial failed: %w", err)
	}
	defer conn.Close()

	log.Info().Msg("Connected to Plex notification WebSocket")

	readErrCh := make(chan error, 1)

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				readErrCh <- err
				return
			}

			var notification wsNotification
			if err := json.Unmarshal(message, &notification); err != nil {
				log.Debug().Err(err).RawJSON("message", message).Msg("Failed to parse WebSocket message")
				continue
			}

			if notification.NotificationContainer.Type != "timeline" {
				continue
			}

			var keys []string
			for _, entry := range notification.NotificationContainer.TimelineEntry {
				if entry.ItemID != "" && entry.State == timelineStateFinished {
					keys = append(keys, entry.ItemID)
				}
			}
			if len(keys) > 0 {
				log.Debug().Strs("rating_keys", keys).Msg("Plex timeline change")
				callback(keys)
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return ctx.Err()
	case err := <-readErrCh:
		return err
	}
}

func (c *Client) buildWebSocketURL() (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}

	parsed.Path = "/:/websockets/notifications"

	q := parsed.Query()
	q.Set("X-Plex-Token", c.token)
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

// timelineStateFinished is the state Plex reports once an item's metadata
// settled after a change
const timelineStateFinished = 5

type wsNotification struct {
	NotificationContainer struct {
		Type          string            `json:"type"`
		TimelineEntry []wsTimelineEntry `json:"TimelineEntry,omitempty"`
	} `json:"NotificationContainer"`
}

type wsTimelineEntry struct {
	Identifier string `json:"identifier"`
	ItemID     string `json:"itemID"`
	SectionID  string `json:"sectionID"`
	State      int    `json:"state"`
}
