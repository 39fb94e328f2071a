package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/resilience"
)

// AuditRepository is the append-only audit sink fed by the worker.
type AuditRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewAuditRepository(db *sql.DB, executor *resilience.Executor) *AuditRepository {
	return &AuditRepository{db: db, executor: executor}
}

func (r *AuditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	err = resilience.Run(ctx, r.executor, "postgres.audit.append", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_log (report_id, report_number, event_type, occurred_at, actor_id, actor_role, action, description, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			record.ReportID, record.ReportNumber, string(record.EventType), record.Timestamp,
			record.ActorID, string(record.ActorRole), record.Action, record.Description, metadataJSON,
		)
		return err
	}, classifyPostgresError)
	if err != nil {
		return resilience.WrapTemporary("append audit record", fmt.Errorf("append audit record: %w", err), classifyPostgresError)
	}
	return nil
}

// ListByReport returns the audit records of one report in append order.
func (r *AuditRepository) ListByReport(ctx context.Context, reportID string) ([]domain.AuditRecord, error) {
	records, err := resilience.Query(ctx, r.executor, "postgres.audit.list", func(ctx context.Context) ([]domain.AuditRecord, error) {
		rows, err := r.db.QueryContext(ctx, `
SELECT report_id, report_number, event_type, occurred_at, actor_id, actor_role, action, description, metadata
FROM audit_log WHERE report_id = $1 ORDER BY id
`, reportID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanAuditRecords(rows)
	}, classifyPostgresError)
	if err != nil {
		return nil, resilience.WrapTemporary("list audit records", fmt.Errorf("list audit records: %w", err), classifyPostgresError)
	}
	return records, nil
}

func scanAuditRecords(rows *sql.Rows) ([]domain.AuditRecord, error) {
	out := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var rec domain.AuditRecord
		var eventType, role string
		var metadataRaw []byte
		if err := rows.Scan(&rec.ReportID, &rec.ReportNumber, &eventType, &rec.Timestamp,
			&rec.ActorID, &role, &rec.Action, &rec.Description, &metadataRaw); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.EventType = domain.ReportEventType(eventType)
		rec.ActorRole = domain.Role(role)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}
