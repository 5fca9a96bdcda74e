package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/primetime43/PlexSubSetter/internal/config"
	"github.com/primetime43/PlexSubSetter/internal/plex"
	"github.com/primetime43/PlexSubSetter/internal/subtitles"
	"github.com/primetime43/PlexSubSetter/internal/tasks"
)

// SearchOptions tune a subtitle search or download task
type SearchOptions struct {
	Language string `json:"language"`
	SDH      bool   `json:"sdh"`
	Forced   bool   `json:"forced"`
}

// AddSelection resolves the given rating keys to leaf items and adds them to
// the selection. Container keys (shows, seasons) expand to all their leaf
// descendants. Returns the new cardinality.
func (s *Session) AddSelection(ctx context.Context, keys []string) (int, error) {
	for _, key := range keys {
		item, err := s.server.Item(ctx, key)
		if err != nil {
			return s.selection.Count(), fmt.Errorf("failed to resolve item %s: %w", key, err)
		}
		if item.IsLeaf() {
			s.selection.Add([]plex.Item{*item})
			continue
		}
		leaves, err := s.server.AllLeaves(ctx, key)
		if err != nil {
			return s.selection.Count(), fmt.Errorf("failed to expand %s: %w", item.Title, err)
		}
		s.selection.Add(leaves)
	}
	return s.selection.Count(), nil
}

// RemoveSelection removes rating keys from the selection and returns the new
// cardinality. Non-members are ignored.
func (s *Session) RemoveSelection(keys []string) int {
	return s.selection.Remove(keys)
}

// ClearSelection empties the selection
func (s *Session) ClearSelection() {
	s.selection.Clear()
}

// SelectionCount returns the current selection cardinality
func (s *Session) SelectionCount() int {
	return s.selection.Count()
}

// SelectionItems returns the selected items for display
func (s *Session) SelectionItems() []plex.Item {
	return s.selection.Snapshot()
}

// SearchSubtitles launches a search task over the selection snapshot.
// Results are kept on the session keyed by rating key, so a following
// download can reuse them without re-searching.
func (s *Session) SearchSubtitles(opts SearchOptions) (string, error) {
	snapshot := s.selection.Snapshot()
	if len(snapshot) == 0 {
		return "", ErrEmptySelection
	}
	if s.provider == nil {
		return "", fmt.Errorf("no subtitle providers configured")
	}
	lang := s.resolveLanguage(opts.Language)

	return s.tasks.Submit(tasks.TypeSearch, len(snapshot), func(tc *tasks.TaskContext) (any, error) {
		var (
			mu      sync.Mutex
			found   = make(map[string][]subtitles.Result)
			labels  = make(map[string]string)
			maxHits = s.maxResults()
		)

		outcome := tasks.RunItems(tc, snapshot, s.concurrency(), itemLabel,
			func(ctx context.Context, item plex.Item) error {
				results, err := s.searchOne(ctx, item, lang, opts)
				if err != nil {
					return fatalIfUnreachable(err)
				}
				if len(results) > maxHits {
					results = results[:maxHits]
				}
				s.storeSearchResults(item.RatingKey, results)
				tc.Log("info", fmt.Sprintf("%s: %d match(es)", item.Label(), len(results)))

				mu.Lock()
				found[item.RatingKey] = results
				labels[item.RatingKey] = item.Label()
				mu.Unlock()
				return nil
			})

		return map[string]any{
			"matches": found,
			"labels":  labels,
		}, outcome.Err(tc.Context())
	})
}

// DryRun launches a task that reports what a download would do without
// mutating anything: items bucketed into already_have, available,
// not_available and errors.
func (s *Session) DryRun(opts SearchOptions) (string, error) {
	snapshot := s.selection.Snapshot()
	if len(snapshot) == 0 {
		return "", ErrEmptySelection
	}
	if s.provider == nil {
		return "", fmt.Errorf("no subtitle providers configured")
	}
	lang := s.resolveLanguage(opts.Language)

	return s.tasks.Submit(tasks.TypeDryRun, len(snapshot), func(tc *tasks.TaskContext) (any, error) {
		var (
			mu           sync.Mutex
			alreadyHave  []string
			available    []string
			notAvailable []string
			errored      []string
		)

		outcome := tasks.RunItems(tc, snapshot, s.concurrency(), itemLabel,
			func(ctx context.Context, item plex.Item) error {
				label := item.Label()

				callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
				streams, err := s.server.SubtitleStreams(callCtx, item.RatingKey)
				cancel()
				if err != nil {
					mu.Lock()
					errored = append(errored, label)
					mu.Unlock()
					return fatalIfUnreachable(err)
				}
				if hasLanguage(streams, lang) {
					mu.Lock()
					alreadyHave = append(alreadyHave, label)
					mu.Unlock()
					return nil
				}

				results, err := s.searchOne(ctx, item, lang, opts)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					errored = append(errored, label)
					return fatalIfUnreachable(err)
				case len(results) > 0:
					available = append(available, label)
				default:
					notAvailable = append(notAvailable, label)
				}
				return nil
			})

		return map[string]any{
			"already_have":  alreadyHave,
			"available":     available,
			"not_available": notAvailable,
			"errors":        errored,
		}, outcome.Err(tc.Context())
	})
}

// Download launches the mutating download task: for each selected item, the
// best match (from a prior search, or searched fresh) is downloaded from its
// provider and uploaded to the server. Entries for the items actually
// mutated are invalidated before the completion event fires.
func (s *Session) Download(opts SearchOptions) (string, error) {
	snapshot := s.selection.Snapshot()
	if len(snapshot) == 0 {
		return "", ErrEmptySelection
	}
	if s.provider == nil {
		return "", fmt.Errorf("no subtitle providers configured")
	}
	lang := s.resolveLanguage(opts.Language)

	return s.tasks.Submit(tasks.TypeDownload, len(snapshot), func(tc *tasks.TaskContext) (any, error) {
		outcome := tasks.RunItems(tc, snapshot, s.concurrency(), itemLabel,
			func(ctx context.Context, item plex.Item) error {
				results := s.storedSearchResults(item.RatingKey)
				if results == nil {
					var err error
					results, err = s.searchOne(ctx, item, lang, opts)
					if err != nil {
						return fatalIfUnreachable(err)
					}
				}
				if len(results) == 0 {
					return fmt.Errorf("no subtitles found")
				}

				best := results[0]
				callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
				defer cancel()

				data, err := s.provider.Download(callCtx, best)
				if err != nil {
					return fatalIfUnreachable(fmt.Errorf("download from %s failed: %w", best.Provider, err))
				}
				title := fmt.Sprintf("%s (%s)", best.ReleaseInfo, best.Provider)
				if err := s.server.UploadSubtitles(callCtx, item.RatingKey, lang, title, data); err != nil {
					return fatalIfUnreachable(err)
				}
				tc.Log("info", fmt.Sprintf("Downloaded subtitles for %s", item.Label()))
				return nil
			})

		touched := ratingKeys(outcome.Succeeded)
		s.cache.Invalidate(touched)

		return map[string]any{
			"success_count":   len(outcome.Succeeded),
			"total_count":     len(snapshot),
			"failed":          failedLabels(outcome.Failed),
			"successful_keys": touched,
		}, outcome.Err(tc.Context())
	})
}

// Delete launches the mutating delete task: every subtitle stream on each
// selected item is removed, optionally restricted to one language code.
// Invalidation covers exactly the items whose streams were deleted.
func (s *Session) Delete(language string) (string, error) {
	snapshot := s.selection.Snapshot()
	if len(snapshot) == 0 {
		return "", ErrEmptySelection
	}
	langCode := ""
	if language != "" {
		langCode = config.LanguageCode(language)
	}

	return s.tasks.Submit(tasks.TypeDelete, len(snapshot), func(tc *tasks.TaskContext) (any, error) {
		// An item that fails midway may still have lost streams, so mutated
		// keys are tracked separately from succeeded items for invalidation
		var (
			mu      sync.Mutex
			mutated []string
		)

		outcome := tasks.RunItems(tc, snapshot, s.concurrency(), itemLabel,
			func(ctx context.Context, item plex.Item) error {
				callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
				defer cancel()

				streams, err := s.server.SubtitleStreams(callCtx, item.RatingKey)
				if err != nil {
					return fatalIfUnreachable(err)
				}
				deleted := 0
				defer func() {
					if deleted > 0 {
						mu.Lock()
						mutated = append(mutated, item.RatingKey)
						mu.Unlock()
					}
				}()
				for _, stream := range streams {
					if langCode != "" && !strings.EqualFold(stream.LanguageCode, langCode) {
						continue
					}
					if err := s.server.DeleteSubtitleStream(callCtx, stream.ID); err != nil {
						return fatalIfUnreachable(fmt.Errorf("failed to delete stream %d: %w", stream.ID, err))
					}
					deleted++
				}
				tc.Log("info", fmt.Sprintf("Deleted %d subtitle stream(s) from %s", deleted, item.Label()))
				return nil
			})

		s.cache.Invalidate(mutated)

		return map[string]any{
			"success_count":   len(outcome.Succeeded),
			"total_count":     len(snapshot),
			"failed":          failedLabels(outcome.Failed),
			"successful_keys": ratingKeys(outcome.Succeeded),
		}, outcome.Err(tc.Context())
	})
}

// CurrentSubtitles describes the subtitle streams attached to one item
type CurrentSubtitles struct {
	RatingKey string            `json:"rating_key"`
	Label     string            `json:"label"`
	Streams   []plex.StreamInfo `json:"streams"`
	Error     string            `json:"error,omitempty"`
}

// ListCurrent synchronously lists the subtitle streams attached to each
// selected item. Per-item lookup failures are reported inline rather than
// failing the listing.
func (s *Session) ListCurrent(ctx context.Context) ([]CurrentSubtitles, error) {
	snapshot := s.selection.Snapshot()
	if len(snapshot) == 0 {
		return nil, ErrEmptySelection
	}

	out := make([]CurrentSubtitles, 0, len(snapshot))
	for _, item := range snapshot {
		entry := CurrentSubtitles{RatingKey: item.RatingKey, Label: item.Label()}
		streams, err := s.server.SubtitleStreams(ctx, item.RatingKey)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Streams = streams
		}
		out = append(out, entry)
	}
	return out, nil
}

// searchOne queries the provider for one item with the per-call timeout
func (s *Session) searchOne(ctx context.Context, item plex.Item, lang string, opts SearchOptions) ([]subtitles.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()

	q := subtitles.Query{Language: lang, SDH: opts.SDH, Forced: opts.Forced}
	if item.Type == "episode" {
		q.Series = item.GrandparentTitle
		q.Season = item.ParentIndex
		q.Episode = item.Index
	} else {
		q.Title = item.Title
		q.Year = item.Year
	}
	return s.provider.Search(callCtx, q)
}

func (s *Session) resolveLanguage(language string) string {
	if language == "" {
		if s.settings != nil {
			return config.LanguageCode(s.settings.String(config.KeyDefaultLanguage, config.DefaultLanguage))
		}
		return config.DefaultLanguage
	}
	return config.LanguageCode(language)
}

func (s *Session) maxResults() int {
	if s.settings == nil {
		return config.DefaultMaxResults
	}
	return s.settings.Int(config.KeyMaxResults, config.DefaultMaxResults)
}

func (s *Session) storeSearchResults(key string, results []subtitles.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchResults == nil {
		s.searchResults = make(map[string][]subtitles.Result)
	}
	s.searchResults[key] = results
}

func (s *Session) storedSearchResults(key string) []subtitles.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchResults[key]
}

// fatalIfUnreachable classifies connection-level failures as batch-fatal.
// A per-item timeout or missing metadata is that item's problem, but a
// server or provider refusing connections fails every remaining item the
// same way, so dispatch stops and the task fails.
func fatalIfUnreachable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return tasks.Fatal(err)
	}
	return err
}

func itemLabel(item plex.Item) string {
	return item.Label()
}

func hasLanguage(streams []plex.StreamInfo, langCode string) bool {
	for _, stream := range streams {
		if strings.EqualFold(stream.LanguageCode, langCode) {
			return true
		}
	}
	return false
}

func ratingKeys(items []plex.Item) []string {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.RatingKey)
	}
	return keys
}

func failedLabels(failed []tasks.ItemError) []string {
	labels := make([]string, 0, len(failed))
	for _, f := range failed {
		labels = append(labels, f.Label)
	}
	return labels
}
