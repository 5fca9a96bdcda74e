package subtitles

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Query describes what to search for. Series/Season/Episode are set for
// episodes, Title/Year for movies.
type Query struct {
	Title    string
	Series   string
	Season   int
	Episode  int
	Year     int
	Language string // ISO 639-1 code
	SDH      bool
	Forced   bool
}

// Result is a single subtitle candidate returned by a provider
type Result struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	Language    string `json:"language"`
	ReleaseInfo string `json:"release_info"`
	DownloadURL string `json:"-"`
	Score       int    `json:"-"`
}

// Provider searches and downloads subtitles from a single source
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Result, error)
	Download(ctx context.Context, r Result) ([]byte, error)
}

// MultiProvider fans a search out across providers and merges results.
// Per-provider failures are logged and skipped; the search only errors when
// every provider fails.
type MultiProvider struct {
	providers []Provider
}

// NewMultiProvider builds a fan-out over the named providers. Unknown names
// are ignored so a stale settings value cannot break search.
func NewMultiProvider(names []string, available map[string]Provider) *MultiProvider {
	mp := &MultiProvider{}
	for _, name := range names {
		if p, ok := available[name]; ok {
			mp.providers = append(mp.providers, p)
		} else {
			log.Warn().Str("provider", name).Msg("Unknown subtitle provider, skipping")
		}
	}
	return mp
}

// Providers returns the resolved provider list
func (m *MultiProvider) Providers() []Provider {
	return m.providers
}

// Name identifies the fan-out in logs
func (m *MultiProvider) Name() string {
	return "multi"
}

// Search queries all providers concurrently and merges results by score
func (m *MultiProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	if len(m.providers) == 0 {
		return nil, fmt.Errorf("no subtitle providers configured")
	}

	var (
		mu      sync.Mutex
		merged  []Result
		errs    []error
		wg      sync.WaitGroup
	)

	for _, p := range m.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			results, err := p.Search(ctx, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("provider", p.Name()).Msg("Provider search failed")
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				return
			}
			merged = append(merged, results...)
		}(p)
	}
	wg.Wait()

	if len(merged) == 0 && len(errs) == len(m.providers) {
		return nil, fmt.Errorf("all providers failed: %w", errs[0])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged, nil
}

// Download routes the download to the provider that produced the result
func (m *MultiProvider) Download(ctx context.Context, r Result) ([]byte, error) {
	for _, p := range m.providers {
		if p.Name() == r.Provider {
			return p.Download(ctx, r)
		}
	}
	return nil, fmt.Errorf("provider %s not configured", r.Provider)
}
