package session

import (
	"context"
	"strings"

	"github.com/primetime43/PlexSubSetter/internal/config"
	"github.com/primetime43/PlexSubSetter/internal/plex"
	"github.com/primetime43/PlexSubSetter/internal/subcache"
	"github.com/primetime43/PlexSubSetter/internal/tasks"
	"github.com/primetime43/PlexSubSetter/internal/web/sse"
)

// Subtitle filter values accepted by BrowsePage and AddAllInView
const (
	FilterAll     = "all"
	FilterHas     = "has"
	FilterMissing = "missing"
)

// PageItem is one library item annotated for display
type PageItem struct {
	RatingKey      string `json:"rating_key"`
	Title          string `json:"title"`
	Label          string `json:"label"`
	Type           string `json:"type"`
	Year           int    `json:"year,omitempty"`
	LeafCount      int    `json:"leaf_count,omitempty"`
	SubtitleStatus string `json:"subtitle_status"`
	Selected       bool   `json:"selected"`
}

// Page is one page of a filtered library view
type Page struct {
	Items     []PageItem `json:"items"`
	Page      int        `json:"page"`
	Pages     int        `json:"pages"`
	Total     int        `json:"total"`
	NeedsWarm bool       `json:"needs_warm"`
}

// BrowsePage returns one page of the open library, filtered by title search
// and subtitle status. Status annotations come from the cache only; the call
// never blocks on the remote service beyond the initial item listing. Items
// with Unknown status always pass the subtitle filter, so the filter
// degrades to "all" until a warm has covered them; NeedsWarm tells the
// caller to trigger WarmView and re-fetch after cache_complete.
func (s *Session) BrowsePage(ctx context.Context, page int, search, filter string) (*Page, error) {
	items, err := s.libraryItems(ctx)
	if err != nil {
		return nil, err
	}

	if search != "" {
		needle := strings.ToLower(search)
		filtered := items[:0:0]
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Title), needle) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	if filter == FilterHas || filter == FilterMissing {
		want := subcache.StatusPresent
		if filter == FilterMissing {
			want = subcache.StatusAbsent
		}
		filtered := items[:0:0]
		for _, item := range items {
			status, found := s.cache.Get(item.RatingKey)
			if !found || status == want {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	perPage := config.DefaultItemsPerPage
	if s.settings != nil {
		perPage = s.settings.Int(config.KeyItemsPerPage, config.DefaultItemsPerPage)
	}
	if perPage < 1 {
		perPage = config.DefaultItemsPerPage
	}
	if page < 1 {
		page = 1
	}

	total := len(items)
	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}

	result := &Page{Page: page, Pages: pages, Total: total, Items: make([]PageItem, 0, end-start)}
	for _, item := range items[start:end] {
		status, found := s.cache.Get(item.RatingKey)
		if !found {
			result.NeedsWarm = true
		}
		result.Items = append(result.Items, PageItem{
			RatingKey:      item.RatingKey,
			Title:          item.Title,
			Label:          item.Label(),
			Type:           item.Type,
			Year:           item.Year,
			LeafCount:      item.LeafCount,
			SubtitleStatus: status.String(),
			Selected:       s.selection.Contains(item.RatingKey),
		})
	}
	return result, nil
}

// Seasons returns the seasons of a show
func (s *Session) Seasons(ctx context.Context, ratingKey string) ([]plex.Item, error) {
	return s.server.Children(ctx, ratingKey)
}

// Episodes returns the episodes of a season
func (s *Session) Episodes(ctx context.Context, ratingKey string) ([]plex.Item, error) {
	return s.server.Children(ctx, ratingKey)
}

// WarmView launches a cache-warm task for the given rating keys. Each key is
// resolved against the server's stream metadata and written back under the
// generation observed at task start, so entries invalidated mid-warm stay
// invalid. Duplicate submissions coalesce into the running warm task.
func (s *Session) WarmView(keys []string) (string, error) {
	if s.LibraryID() == "" {
		return "", ErrNoLibrary
	}
	keys = append([]string(nil), keys...)

	return s.tasks.Submit(tasks.TypeCacheWarm, len(keys), func(tc *tasks.TaskContext) (any, error) {
		generation := s.cache.Generation()

		outcome := tasks.RunItems(tc, keys, s.concurrency(), func(key string) string { return key },
			func(ctx context.Context, key string) error {
				callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
				defer cancel()

				streams, err := s.server.SubtitleStreams(callCtx, key)
				if err != nil {
					return fatalIfUnreachable(err)
				}
				present := len(streams) > 0
				if s.cache.Set(key, present, generation) {
					tc.Emit(sse.EventSubtitleStatus, map[string]any{
						"rating_key":    key,
						"has_subtitles": present,
					})
				}
				return nil
			})

		tc.Emit(sse.EventCacheComplete, map[string]any{
			"task_id": tc.ID(),
			"warmed":  len(outcome.Succeeded),
		})
		return map[string]any{"warmed": len(outcome.Succeeded)}, outcome.Err(tc.Context())
	})
}

// AddAllInView launches a select-all task that expands every item matching
// the current search and subtitle filter to its leaf descendants and adds
// them to the selection. The completion result carries the final
// cardinality.
func (s *Session) AddAllInView(search, filter string) (string, error) {
	if s.LibraryID() == "" {
		return "", ErrNoLibrary
	}

	return s.tasks.Submit(tasks.TypeSelectAll, 0, func(tc *tasks.TaskContext) (any, error) {
		matches, err := s.filteredItems(tc.Context(), search, filter)
		if err != nil {
			return nil, err
		}
		tc.SetTotal(len(matches))

		outcome := tasks.RunItems(tc, matches, s.concurrency(), func(item plex.Item) string { return item.Label() },
			func(ctx context.Context, item plex.Item) error {
				if item.IsLeaf() {
					s.selection.Add([]plex.Item{item})
					return nil
				}
				callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
				defer cancel()
				leaves, err := s.server.AllLeaves(callCtx, item.RatingKey)
				if err != nil {
					return fatalIfUnreachable(err)
				}
				s.selection.Add(leaves)
				return nil
			})

		return map[string]any{"count": s.selection.Count()}, outcome.Err(tc.Context())
	})
}

// filteredItems applies the browse search and subtitle filter to the full
// library listing
func (s *Session) filteredItems(ctx context.Context, search, filter string) ([]plex.Item, error) {
	items, err := s.libraryItems(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]plex.Item, 0, len(items))
	needle := strings.ToLower(search)
	for _, item := range items {
		if search != "" && !strings.Contains(strings.ToLower(item.Title), needle) {
			continue
		}
		if filter == FilterHas || filter == FilterMissing {
			want := subcache.StatusPresent
			if filter == FilterMissing {
				want = subcache.StatusAbsent
			}
			if status, found := s.cache.Get(item.RatingKey); found && status != want {
				continue
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// libraryItems returns the open library's top-level items, fetching and
// caching them on first use
func (s *Session) libraryItems(ctx context.Context) ([]plex.Item, error) {
	s.mu.Lock()
	libraryID := s.libraryID
	cached := s.items
	s.mu.Unlock()

	if libraryID == "" {
		return nil, ErrNoLibrary
	}
	if cached != nil {
		return cached, nil
	}

	items, err := s.server.LibraryItems(ctx, libraryID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Only adopt the listing if the library has not changed underneath us
	if s.libraryID == libraryID {
		s.items = items
	}
	s.mu.Unlock()
	return items, nil
}

// RefreshItems drops the cached library listing so the next browse re-fetches
func (s *Session) RefreshItems() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}
