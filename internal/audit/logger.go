// Package audit writes the durable transfer trail. Writes are fire-and-forget: a failed
// append is reported but never changes the outcome of the transfer being logged.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpattn/dropfeed/internal/domain"
	"github.com/rpattn/dropfeed/internal/repository"

	"github.com/google/uuid"
)

// Logger appends one AuditRecord per call.
type Logger struct {
	repo    repository.AuditRepository
	logger  *slog.Logger
	now     func() time.Time
	newID   func() uuid.UUID
	onError func(domain.AuditRecord, error)
	timeout time.Duration
}

type Option func(*Logger)

// WithLogger sets the structured logger used to report failed appends.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithErrorHook registers a callback invoked after an append fails.
func WithErrorHook(fn func(domain.AuditRecord, error)) Option {
	return func(l *Logger) {
		l.onError = fn
	}
}

// WithTimeout bounds each append.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Logger) {
		if timeout > 0 {
			l.timeout = timeout
		}
	}
}

// NewLogger creates an audit logger over repo.
func NewLogger(repo repository.AuditRepository, opts ...Option) *Logger {
	l := &Logger{
		repo:    repo,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.New,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends {id, timestamp, subject, status}. It never returns an error and
// recovers from a panicking store.
func (l *Logger) Record(ctx context.Context, subject, status string) {
	record := domain.AuditRecord{
		ID:        l.newID(),
		Timestamp: l.now(),
		Subject:   subject,
		Status:    status,
	}

	if err := l.append(ctx, record); err != nil {
		l.logger.Warn("audit append failed",
			slog.String("subject", subject),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		if l.onError != nil {
			l.onError(record, err)
		}
		return
	}

	l.logger.Debug("audit record written", slog.String("subject", subject), slog.String("status", status))
}

func (l *Logger) append(ctx context.Context, record domain.AuditRecord) (err error) {
	if l == nil || l.repo == nil {
		return fmt.Errorf("audit repository not configured")
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	// The audit write must land even if the run that triggered it was cancelled.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	return l.repo.Append(writeCtx, record)
}
