package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/Dimasikck/teacher-tool/internal/application"
	"github.com/Dimasikck/teacher-tool/internal/config"
	httptransport "github.com/Dimasikck/teacher-tool/internal/http"
	"github.com/Dimasikck/teacher-tool/internal/logging"
	"github.com/Dimasikck/teacher-tool/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		logging.New(os.Stderr, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to prepare storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	server := newServer(cfg, storage, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening", "addr", server.Addr, "timezone", cfg.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// openStorage opens the SQLite database and applies pending migrations.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlite.Storage, error) {
	storage, err := sqlite.Open(cfg.SQLitePath, sqlite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	status, err := storage.MigrationStatus(ctx)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("read migration status: %w", err)
	}
	logger.Info("database ready", "path", cfg.SQLitePath, "schema_version", status.CurrentVersion)
	return storage, nil
}

func newServer(cfg config.Config, storage *sqlite.Storage, logger *slog.Logger) *http.Server {
	service := application.NewScheduleServiceWithLogger(storage, uuid.NewString, time.Now, cfg.Settings(), logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Events:  httptransport.NewEventHandler(service, logger),
		Imports: httptransport.NewImportHandler(service, logger),
		Sync:    httptransport.NewSyncHandler(service, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireOwner(logger),
		},
	})

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
