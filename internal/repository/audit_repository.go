package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/dropfeed/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository wires a transfer log repository backed by pgxpool.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

// Append acquires a connection for the single insert and releases it on every path.
func (r *auditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	if r.pool == nil {
		return fmt.Errorf("audit repository not initialized")
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire audit connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(
		ctx,
		`INSERT INTO transfer_logs (id, logged_at, subject, status)
		 VALUES ($1, $2, $3, $4)`,
		record.ID,
		record.Timestamp,
		record.Subject,
		record.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to record transfer log: %w", err)
	}

	return nil
}

func (r *auditRepository) List(ctx context.Context, subject string, limit int, offset int) ([]domain.AuditRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("audit repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, logged_at, subject, status
		 FROM transfer_logs
		 WHERE ($1::text = '' OR subject = $1)
		 ORDER BY logged_at DESC
		 LIMIT $2 OFFSET $3`,
		subject,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer logs: %w", err)
	}
	defer rows.Close()

	records := []domain.AuditRecord{}
	for rows.Next() {
		var (
			record   domain.AuditRecord
			loggedAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&record.ID,
			&loggedAt,
			&record.Subject,
			&record.Status,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan transfer log: %w", scanErr)
		}
		if loggedAt.Valid {
			record.Timestamp = loggedAt.Time
		}
		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate transfer logs: %w", rowsErr)
	}

	return records, nil
}
