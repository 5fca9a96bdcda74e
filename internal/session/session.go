package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/primetime43/PlexSubSetter/internal/config"
	"github.com/primetime43/PlexSubSetter/internal/plex"
	"github.com/primetime43/PlexSubSetter/internal/selection"
	"github.com/primetime43/PlexSubSetter/internal/subcache"
	"github.com/primetime43/PlexSubSetter/internal/subtitles"
	"github.com/primetime43/PlexSubSetter/internal/tasks"
)

var (
	// ErrNotConnected is returned when an operation requires a live session
	ErrNotConnected = errors.New("not connected to a media server")

	// ErrNoLibrary is returned when an operation requires an open library
	ErrNoLibrary = errors.New("no library selected")

	// ErrEmptySelection rejects mutating tasks submitted with nothing selected
	ErrEmptySelection = errors.New("selection is empty")
)

// MediaServer is the surface of the remote media service the session
// consumes. *plex.Client satisfies it; tests substitute a fake.
type MediaServer interface {
	FriendlyName() string
	Libraries(ctx context.Context) ([]plex.Library, error)
	LibraryItems(ctx context.Context, sectionID string) ([]plex.Item, error)
	Children(ctx context.Context, ratingKey string) ([]plex.Item, error)
	AllLeaves(ctx context.Context, ratingKey string) ([]plex.Item, error)
	Item(ctx context.Context, ratingKey string) (*plex.Item, error)
	SubtitleStreams(ctx context.Context, ratingKey string) ([]plex.StreamInfo, error)
	UploadSubtitles(ctx context.Context, ratingKey, langCode, title string, data []byte) error
	DeleteSubtitleStream(ctx context.Context, streamID int) error
}

// Service holds the single live session. All accessors are safe for
// concurrent use; operations on a session obtained from Current remain valid
// until Teardown even if a new session replaces it.
type Service struct {
	mu       sync.Mutex
	current  *Session
	broker   tasks.Broadcaster
	history  tasks.HistoryStore
	settings *config.Loader
	provider subtitles.Provider
}

// NewService creates the session holder. provider may be nil when no
// subtitle providers are configured; search and download then reject.
func NewService(broker tasks.Broadcaster, history tasks.HistoryStore, settings *config.Loader, provider subtitles.Provider) *Service {
	return &Service{
		broker:   broker,
		history:  history,
		settings: settings,
		provider: provider,
	}
}

// CreateSession replaces the live session with a fresh one bound to the
// given server connection. An existing session is torn down first.
func (s *Service) CreateSession(server MediaServer) *Session {
	s.mu.Lock()
	old := s.current
	s.mu.Unlock()
	if old != nil {
		old.Teardown()
	}

	manager := tasks.NewManager(s.broker)
	if s.history != nil {
		manager.SetHistoryStore(s.history)
	}
	if s.settings != nil {
		manager.SetRetention(s.settings.DurationMinutes(config.KeyTaskRetention, config.DefaultTaskRetention))
	}

	sess := &Session{
		server:    server,
		provider:  s.provider,
		settings:  s.settings,
		selection: selection.NewStore(),
		cache:     subcache.New(),
		tasks:     manager,
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	log.Info().Str("server", server.FriendlyName()).Msg("Session created")
	return sess
}

// Current returns the live session or ErrNotConnected
func (s *Service) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNotConnected
	}
	return s.current, nil
}

// Teardown destroys the live session. Idempotent.
func (s *Service) Teardown() {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	s.mu.Unlock()
	if sess != nil {
		sess.Teardown()
		log.Info().Msg("Session torn down")
	}
}

// Reap removes expired task records from the live session, if any
func (s *Service) Reap() {
	if sess, err := s.Current(); err == nil {
		sess.tasks.ReapExpired()
	}
}

// Session is the aggregate state for one connected user: the server handle,
// the open library, the selection, the subtitle-status cache and the task
// manager. Collaborator substructures carry their own locks; the session
// mutex only guards the library view and cached search results.
type Session struct {
	server   MediaServer
	provider subtitles.Provider
	settings *config.Loader

	selection *selection.Store
	cache     *subcache.Cache
	tasks     *tasks.Manager

	mu            sync.Mutex
	libraryID     string
	libraryType   string
	items         []plex.Item // top-level items of the open library
	searchResults map[string][]subtitles.Result
}

// Server returns the media server handle
func (s *Session) Server() MediaServer {
	return s.server
}

// Libraries lists the server's library sections
func (s *Session) Libraries(ctx context.Context) ([]plex.Library, error) {
	return s.server.Libraries(ctx)
}

// OpenLibrary switches the active library. Selection and cache entries are
// library-scoped, so both are cleared, and read-only tasks tied to the old
// view are cancelled. Mutating tasks keep running against their explicit
// item ids.
func (s *Session) OpenLibrary(ctx context.Context, libraryID string) error {
	libraries, err := s.server.Libraries(ctx)
	if err != nil {
		return err
	}
	libraryType := ""
	for _, lib := range libraries {
		if lib.ID == libraryID {
			libraryType = lib.Type
			break
		}
	}
	if libraryType == "" {
		return errors.New("library not found")
	}

	s.tasks.CancelReadOnly()
	s.selection.Clear()
	s.cache.Clear()

	s.mu.Lock()
	s.libraryID = libraryID
	s.libraryType = libraryType
	s.items = nil
	s.searchResults = nil
	s.mu.Unlock()

	log.Info().Str("library", libraryID).Str("type", libraryType).Msg("Library opened")
	return nil
}

// LibraryID returns the open library id, empty when none is open
func (s *Session) LibraryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.libraryID
}

// Teardown cancels all tasks and clears every substructure. Idempotent.
func (s *Session) Teardown() {
	s.tasks.Shutdown()
	s.selection.Clear()
	s.cache.Clear()
	s.mu.Lock()
	s.libraryID = ""
	s.libraryType = ""
	s.items = nil
	s.searchResults = nil
	s.mu.Unlock()
}

// TaskStatus returns the record for a task id, ErrNotFound once reclaimed
func (s *Session) TaskStatus(id string) (tasks.Record, error) {
	return s.tasks.Status(id)
}

// CancelTask requests cooperative cancellation of a task
func (s *Session) CancelTask(id string) error {
	return s.tasks.Cancel(id)
}

// InvalidateExternal drops cache entries for items mutated outside this
// process, observed through the server's notification stream
func (s *Session) InvalidateExternal(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.cache.Invalidate(keys)
	log.Debug().Int("count", len(keys)).Msg("Invalidated cache entries from server notification")
}

// concurrency returns the bounded worker count for item-level work
func (s *Session) concurrency() int {
	if s.settings == nil {
		return config.DefaultConcurrentJobs
	}
	return s.settings.Int(config.KeyConcurrentJobs, config.DefaultConcurrentJobs)
}

// callTimeout returns the per-call timeout for provider and server calls
func (s *Session) callTimeout() time.Duration {
	if s.settings == nil {
		return time.Duration(config.DefaultSearchTimeout) * time.Second
	}
	return s.settings.DurationSeconds(config.KeySearchTimeout, config.DefaultSearchTimeout)
}
