package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/primetime43/PlexSubSetter/internal/database"
	"github.com/primetime43/PlexSubSetter/internal/session"
	"github.com/primetime43/PlexSubSetter/internal/web/handlers"
	"github.com/primetime43/PlexSubSetter/internal/web/middleware"
	"github.com/primetime43/PlexSubSetter/internal/web/sse"
)

// Server is the HTTP front of the application
type Server struct {
	db        *database.DB
	port      int
	bind      string
	router    *chi.Mux
	sseBroker *sse.Broker
	service   *session.Service
	handlers  *handlers.Handlers
}

// NewServer creates a web server over the given session service and broker
func NewServer(db *database.DB, service *session.Service, broker *sse.Broker, port int, bind string) *Server {
	s := &Server{
		db:        db,
		port:      port,
		bind:      bind,
		router:    chi.NewRouter(),
		sseBroker: broker,
		service:   service,
	}
	s.setupRoutes()
	return s
}

// SSEBroker returns the SSE broker for broadcasting events
func (s *Server) SSEBroker() *sse.Broker {
	return s.sseBroker
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware; timeout is per-group so the SSE stream stays open
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)

	h := handlers.New(s.db, s.service)
	s.handlers = h

	// SSE endpoint, no timeout
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(s.service))
		r.Get("/api/events", s.sseBroker.ServeHTTP)
	})

	// Connection lifecycle, available without a session
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))
		r.Post("/api/connect", h.Connect)
		r.Post("/api/disconnect", h.Disconnect)
		r.Get("/api/status", h.ConnectionStatus)
	})

	// Session-scoped API
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))
		r.Use(middleware.RequireSession(s.service))

		r.Route("/api/libraries", func(r chi.Router) {
			r.Get("/", h.Libraries)
			r.Post("/{id}/open", h.OpenLibrary)
		})

		r.Route("/api/items", func(r chi.Router) {
			r.Get("/", h.Items)
			r.Get("/{id}/seasons", h.Seasons)
			r.Get("/{id}/episodes", h.Episodes)
			r.Post("/warm", h.WarmCache)
		})

		r.Route("/api/selection", func(r chi.Router) {
			r.Get("/", h.SelectionList)
			r.Get("/count", h.SelectionCount)
			r.Post("/add", h.SelectionAdd)
			r.Post("/remove", h.SelectionRemove)
			r.Post("/clear", h.SelectionClear)
			r.Post("/add-all", h.SelectionAddAll)
		})

		r.Route("/api/subtitles", func(r chi.Router) {
			r.Post("/search", h.SubtitleSearch)
			r.Post("/dry-run", h.SubtitleDryRun)
			r.Post("/download", h.SubtitleDownload)
			r.Post("/delete", h.SubtitleDelete)
			r.Get("/current", h.SubtitleListCurrent)
		})

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/history", h.TaskHistory)
			r.Get("/{id}", h.TaskStatus)
			r.Post("/{id}/cancel", h.TaskCancel)
		})

		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", h.SettingsGet)
			r.Post("/", h.SettingsUpdate)
		})
	})
}

// Start starts the web server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	var addr string
	if s.bind != "" {
		addr = fmt.Sprintf("%s:%d", s.bind, s.port)
	} else {
		addr = fmt.Sprintf(":%d", s.port)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
		// WriteTimeout stays 0 so SSE connections are not cut; the per-group
		// chi timeout protects regular requests
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		s.sseBroker.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
