package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/primetime43/PlexSubSetter/internal/config"
	"github.com/primetime43/PlexSubSetter/internal/database"
	"github.com/primetime43/PlexSubSetter/internal/logging"
	"github.com/primetime43/PlexSubSetter/internal/session"
	"github.com/primetime43/PlexSubSetter/internal/subtitles"
	"github.com/primetime43/PlexSubSetter/internal/web"
	"github.com/primetime43/PlexSubSetter/internal/web/sse"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	port      int
	bind      string
	dbPath    string
	verbosity int
)

// envSettings are the PSS_* environment fallbacks for the CLI flags
type envSettings struct {
	Port             int    `envconfig:"PORT"`
	Bind             string `envconfig:"BIND"`
	DBPath           string `envconfig:"DB_PATH"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
	OpenSubtitlesKey string `envconfig:"OPENSUBTITLES_API_KEY"`
	ProviderTimeoutS int    `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"30"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "plexsubsetter",
		Short: "PlexSubSetter - Batch subtitle manager for Plex",
		Long:  `PlexSubSetter is a web server for browsing a Plex library and running batch subtitle search, download and delete operations with live progress.`,
		RunE:  run,
	}

	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (required, or set PSS_PORT)")
	rootCmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1)")
	rootCmd.Flags().StringVarP(&dbPath, "db", "d", "./plexsubsetter.db", "SQLite database path (or set PSS_DB_PATH)")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("plexsubsetter %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	var env envSettings
	if err := envconfig.Process("pss", &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if port == 0 {
		port = env.Port
	}
	if bind == "" {
		bind = env.Bind
	}
	if dbPath == "./plexsubsetter.db" && env.DBPath != "" {
		dbPath = env.DBPath
	}

	if port == 0 {
		return fmt.Errorf("--port flag or PSS_PORT environment variable is required")
	}
	if bind != "" {
		if ip := net.ParseIP(bind); ip == nil {
			return fmt.Errorf("invalid bind address: %s", bind)
		}
	}

	level := env.LogLevel
	switch verbosity {
	case 0:
	case 1:
		level = "debug"
	default:
		level = "trace"
	}
	logging.Apply(level, logging.FilePathForDB(dbPath))

	log.Info().
		Str("version", version).
		Int("port", port).
		Str("bind", bind).
		Str("database", dbPath).
		Msg("Starting PlexSubSetter")

	db, err := database.New(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	settings := config.NewLoader(db)
	broker := sse.NewBroker()

	provider := buildProvider(settings, env)
	service := session.NewService(broker, db, settings, provider)
	defer service.Teardown()

	server := web.NewServer(db, service, broker, port, bind)

	// Scheduled maintenance: reap expired task records every minute, prune
	// persisted history hourly
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("* * * * *", service.Reap); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule task reaper")
	}
	if _, err := scheduler.AddFunc("@hourly", func() {
		if n, err := db.PruneTaskHistory(30 * 24 * time.Hour); err != nil {
			log.Error().Err(err).Msg("Failed to prune task history")
		} else if n > 0 {
			log.Debug().Int64("count", n).Msg("Pruned task history")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule history pruning")
	}
	scheduler.Start()
	defer scheduler.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("PlexSubSetter stopped")
	return nil
}

// buildProvider assembles the subtitle provider fan-out from the configured
// provider list. Providers missing their credentials are left out.
func buildProvider(settings *config.Loader, env envSettings) subtitles.Provider {
	timeout := time.Duration(env.ProviderTimeoutS) * time.Second

	available := map[string]subtitles.Provider{
		"podnapisi": subtitles.NewPodnapisi("", timeout),
	}
	if env.OpenSubtitlesKey != "" {
		available["opensubtitles"] = subtitles.NewOpenSubtitles("", env.OpenSubtitlesKey, timeout)
	} else {
		log.Warn().Msg("PSS_OPENSUBTITLES_API_KEY not set, OpenSubtitles provider disabled")
	}

	names := settings.StringList(config.KeyDefaultProviders, config.DefaultProviders)
	return subtitles.NewMultiProvider(names, available)
}
