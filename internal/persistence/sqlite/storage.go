// Package sqlite implements the persistence ports on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage is a SQLite-backed persistence.TxManager.
type Storage struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	logger *slog.Logger
}

var _ persistence.TxManager = (*Storage)(nil)

// Option customises Storage.
type Option func(*Storage)

// WithLogger sets the logger used for migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryConfig overrides the lock retry policy.
func WithRetryConfig(config RetryConfig) Option {
	return func(s *Storage) {
		s.retry = NewRetryHelper(config)
	}
}

// Open opens the database file at path with production settings.
func Open(path string, opts ...Option) (*Storage, error) {
	return OpenConfig(migration.DefaultSQLiteConfig(path), opts...)
}

// OpenConfig opens a database with an explicit configuration.
func OpenConfig(config migration.SQLiteConfig, opts ...Option) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping checks the connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema versions.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.Status(ctx)
}

// WithTx runs fn in one SQLite transaction. A transaction that fails because
// the database is locked is retried from the start.
func (s *Storage) WithTx(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return fn(ctx, repositoriesFor(tx))
		})
	})
}

func repositoriesFor(q querier) persistence.Repositories {
	mapper := NewErrorMapper()
	return persistence.Repositories{
		Events:     &eventRepository{q: q, mapper: mapper},
		Lessons:    &lessonRepository{q: q, mapper: mapper},
		Attendance: &attendanceRepository{q: q, mapper: mapper},
		Groups:     &groupRepository{q: q, mapper: mapper},
	}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatTime(t time.Time) string {
	return persistence.NormalizeInstant(t).Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", value, err)
	}
	return t.UTC(), nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
