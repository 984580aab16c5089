package repository

import (
	"context"
	"errors"

	"github.com/rpattn/dropfeed/internal/domain"
)

// ErrListUnsupported is returned by audit stores that are write-only from this service.
var ErrListUnsupported = errors.New("audit store does not support listing")

// AuditRepository is the append-only store behind the transfer log.
type AuditRepository interface {
	Append(ctx context.Context, record domain.AuditRecord) error
	List(ctx context.Context, subject string, limit int, offset int) ([]domain.AuditRecord, error)
}
