package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dimasikck/teacher-tool/internal/logging"
	"github.com/Dimasikck/teacher-tool/internal/recurrence"
	"github.com/Dimasikck/teacher-tool/internal/scheduler"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}

	var (
		vErr     *ValidationError
		rangeErr *scheduler.InvalidRangeError
		ruleErr  *recurrence.InvalidRuleError
	)
	if errors.As(err, &vErr) || errors.As(err, &rangeErr) || errors.As(err, &ruleErr) {
		return "validation"
	}

	return "unexpected"
}

// logOutcome writes the standard completion record of an operation. Caller
// mistakes are logged at Warn, everything else at Error.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, failure, success string, attrs ...any) {
	if err == nil {
		logger.With(attrs...).InfoContext(ctx, success)
		return
	}
	switch kind := ErrorKind(err); kind {
	case "validation", "not_found", "already_exists":
		logger.WarnContext(ctx, failure, "error", err, "error_kind", kind)
	default:
		logger.ErrorContext(ctx, failure, "error", err, "error_kind", kind)
	}
}
