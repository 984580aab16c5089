package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/dropfeed/internal/domain"

	"github.com/tsuna/gohbase"
	"github.com/tsuna/gohbase/hrpc"
)

const (
	hbaseFamily          = "log_data"
	hbaseTimestampLayout = "2006-01-02 15:04:05"
)

type hbaseAuditRepository struct {
	table string
	dial  func() gohbase.Client
}

// NewHBaseAuditRepository writes transfer logs into an HBase table keyed by record id,
// one column family holding timestamp, file_name and status.
func NewHBaseAuditRepository(zkQuorum string, table string) AuditRepository {
	return &hbaseAuditRepository{
		table: table,
		dial: func() gohbase.Client {
			return gohbase.NewClient(zkQuorum)
		},
	}
}

// Append opens a client for the single put and closes it on every path.
func (r *hbaseAuditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	put, err := hrpc.NewPutStr(ctx, r.table, record.ID.String(), hbaseValues(record))
	if err != nil {
		return fmt.Errorf("failed to build transfer log put: %w", err)
	}

	client := r.dial()
	defer client.Close()

	if _, err := client.Put(put); err != nil {
		return fmt.Errorf("failed to record transfer log: %w", err)
	}
	return nil
}

func (r *hbaseAuditRepository) List(ctx context.Context, subject string, limit int, offset int) ([]domain.AuditRecord, error) {
	return nil, ErrListUnsupported
}

func hbaseValues(record domain.AuditRecord) map[string]map[string][]byte {
	return map[string]map[string][]byte{
		hbaseFamily: {
			"timestamp": []byte(record.Timestamp.In(time.Local).Format(hbaseTimestampLayout)),
			"file_name": []byte(record.Subject),
			"status":    []byte(record.Status),
		},
	}
}
