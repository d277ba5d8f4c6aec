package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Dimasikck/teacher-tool/internal/application"
	"github.com/Dimasikck/teacher-tool/internal/config"
	"github.com/Dimasikck/teacher-tool/internal/logging"
	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/persistence/memory"
	"github.com/Dimasikck/teacher-tool/internal/persistence/sqlite"
)

type rootOptions struct {
	envFile string
	dbPath  string
	ownerID string
	verbose bool
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	opts   rootOptions
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
	now    func() time.Time
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, now: time.Now}

	cmd := &cobra.Command{
		Use:           "schedulectl",
		Short:         "Operate the calendar and journal reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.opts.envFile)
			if err != nil {
				return err
			}
			if a.opts.dbPath != "" {
				cfg.SQLitePath = a.opts.dbPath
			}
			a.opts.ownerID = strings.TrimSpace(a.opts.ownerID)
			if a.opts.ownerID == "" {
				return errors.New("укажите преподавателя флагом --owner")
			}
			level := cfg.LogLevel
			if a.opts.verbose {
				level = slog.LevelDebug
			} else if level < slog.LevelWarn {
				level = slog.LevelWarn
			}
			a.cfg = cfg
			a.logger = logging.New(stderr, level)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&a.opts.envFile, "env", ".env", "dotenv file with SCHEDULER_* settings")
	cmd.PersistentFlags().StringVar(&a.opts.dbPath, "db", "", "SQLite database path (overrides SCHEDULER_SQLITE_DSN)")
	cmd.PersistentFlags().StringVar(&a.opts.ownerID, "owner", "", "teacher whose calendar is processed (required)")
	cmd.PersistentFlags().BoolVarP(&a.opts.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newStatusCmd(a), newSyncCmd(a), newImportCmd(a))
	return cmd
}

// withStorage opens and migrates the configured database for the duration of fn.
func (a *app) withStorage(ctx context.Context, fn func(*sqlite.Storage) error) error {
	storage, err := sqlite.Open(a.cfg.SQLitePath, sqlite.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("не удалось открыть базу данных: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			a.logger.Error("failed to close storage", "error", cerr)
		}
	}()
	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("не удалось применить миграции: %w", err)
	}
	return fn(storage)
}

func (a *app) withService(ctx context.Context, fn func(*application.ScheduleService) error) error {
	return a.withStorage(ctx, func(storage *sqlite.Storage) error {
		return fn(a.service(storage))
	})
}

// withDryRunService copies the owner's groups, events and lessons into an
// in-memory store so writes can be previewed without touching the database.
func (a *app) withDryRunService(ctx context.Context, fn func(*application.ScheduleService) error) error {
	return a.withStorage(ctx, func(storage *sqlite.Storage) error {
		scratch := memory.New()
		if err := copyOwnerData(ctx, storage, scratch, a.opts.ownerID); err != nil {
			return fmt.Errorf("не удалось подготовить пробный запуск: %w", err)
		}
		return fn(a.service(scratch))
	})
}

func (a *app) service(store persistence.TxManager) *application.ScheduleService {
	return application.NewScheduleServiceWithLogger(store, uuid.NewString, a.now, a.cfg.Settings(), a.logger)
}

func copyOwnerData(ctx context.Context, from, to persistence.TxManager, ownerID string) error {
	var (
		groups  []persistence.Group
		events  []persistence.CalendarEvent
		lessons []persistence.JournalLesson
	)
	if err := from.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var err error
		if groups, err = repos.Groups.ListGroups(ctx, ownerID); err != nil {
			return err
		}
		if events, err = repos.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: ownerID}); err != nil {
			return err
		}
		lessons, err = repos.Lessons.ListLessons(ctx, ownerID)
		return err
	}); err != nil {
		return err
	}

	return to.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		for _, group := range groups {
			if err := repos.Groups.CreateGroup(ctx, group); err != nil {
				return err
			}
		}
		for _, event := range events {
			if err := repos.Events.CreateEvent(ctx, event); err != nil {
				return err
			}
		}
		for _, lesson := range lessons {
			if err := repos.Lessons.CreateLesson(ctx, lesson); err != nil {
				return err
			}
		}
		return nil
	})
}
