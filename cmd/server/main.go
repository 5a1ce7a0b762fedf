package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/cleaner/internal/config"
	"github.com/JonMunkholm/cleaner/internal/core"
	"github.com/JonMunkholm/cleaner/internal/format"
	"github.com/JonMunkholm/cleaner/internal/history"
	"github.com/JonMunkholm/cleaner/internal/logging"
	"github.com/JonMunkholm/cleaner/internal/telemetry"
	"github.com/JonMunkholm/cleaner/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load and validate configuration (.env, environment, CONFIG_FILE)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	closeLogs := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		SeqURL: cfg.Logging.SeqURL,
	})
	defer closeLogs()

	slog.Info("configuration loaded", "config", cfg.String(), "version", version)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		closeLogs()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// Background jobs stop when a signal arrives.
	jobCtx, stopJobs := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopJobs()

	tel, err := telemetry.Init(telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		MetricsEnabled: cfg.Telemetry.MetricsEnabled,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	caps := format.Probe(cfg.Spreadsheet.Enabled)
	if caps.Spreadsheet {
		slog.Info("spreadsheet output available")
	} else {
		slog.Warn("spreadsheet output unavailable", "reason", caps.Reason)
	}

	opts := []core.Option{core.WithMetrics(tel.Metrics)}

	if cfg.Database.HistoryEnabled() {
		pool, err := connectDatabase(jobCtx, cfg.Database)
		if err != nil {
			return fmt.Errorf("history database: %w", err)
		}
		defer pool.Close()

		store := history.NewStore(pool)
		if err := store.EnsureSchema(jobCtx); err != nil {
			return fmt.Errorf("history schema: %w", err)
		}
		go store.StartPurgeScheduler(jobCtx, cfg.Database.HistoryRetention, cfg.Database.PurgeInterval)
		opts = append(opts, core.WithRecorder(store))
	} else {
		slog.Info("run history disabled, DATABASE_URL is not set")
	}

	service := core.NewService(core.Config{
		PreviewRows:   cfg.Upload.PreviewRows,
		Workers:       cfg.Upload.Workers,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWait,
		ArtifactTTL:   cfg.Upload.ArtifactTTL,
	}, format.NewSerializer(caps), opts...)
	go service.Artifacts().StartJanitor(jobCtx, cfg.Upload.JanitorInterval)
	go service.Uploads().StartJanitor(jobCtx, cfg.Upload.JanitorInterval)

	server := web.NewServer(cfg, service, tel)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(jobCtx)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-jobCtx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	stopServing(shutdownCtx, server, service.Limiter())
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// stopServing closes the listener, then waits for cleaning requests that
// are still running. New requests cannot take a slot once the server stops.
func stopServing(ctx context.Context, srv shutdowner, limiter *core.Limiter) {
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Wait for active cleaning requests to complete (with timeout)
	if status := limiter.Status(); status.Active > 0 {
		slog.Info("waiting for uploads to complete", "active", status.Active)
		if err := limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		}
	}
}

// connectDatabase opens and verifies the history connection pool.
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to history database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to history database")
	}
	return pool, nil
}
