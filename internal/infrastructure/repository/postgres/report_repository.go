package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/resilience"
)

const reportColumns = `id, report_number, status, assigned_appraiser_id, created_by, title, debtor_name, property_address,
	appraisal_date, remarks, valuation_input, valuation_result, comparables, attachments, audit_trail, pdf_path,
	created_at, updated_at, submitted_at, approved_at, rejected_at, rejection_reason`

// reportCounterName keys the single report number counter row.
const reportCounterName = "report_number"

type ReportRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewReportRepository(db *sql.DB, executor *resilience.Executor) *ReportRepository {
	return &ReportRepository{db: db, executor: executor}
}

// NextReportNumber increments the counter row in a single statement, so
// concurrent callers on any number of processes never share a value.
func (r *ReportRepository) NextReportNumber(ctx context.Context) (int64, error) {
	var next int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO report_counters (name, value) VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = report_counters.value + 1
RETURNING value
`, reportCounterName).Scan(&next)
	if err != nil {
		return 0, resilience.WrapTemporary("next report number", fmt.Errorf("next report number: %w", err), classifyPostgresError)
	}
	return next, nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	report, err := resilience.Query(ctx, r.executor, "postgres.report.get", func(ctx context.Context) (*domain.Report, error) {
		row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
		report, err := scanReport(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get report", id)
		}
		return report, err
	}, classifyPostgresError)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, resilience.WrapTemporary("get report", fmt.Errorf("get report: %w", err), classifyPostgresError)
	}
	return report, nil
}

func (r *ReportRepository) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	query, args := buildListQuery(filter)
	out, err := resilience.Query(ctx, r.executor, "postgres.report.list", func(ctx context.Context) ([]domain.Report, error) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := make([]domain.Report, 0)
		for rows.Next() {
			report, err := scanReport(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, *report)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate reports: %w", err)
		}
		return out, nil
	}, classifyPostgresError)
	if err != nil {
		return nil, resilience.WrapTemporary("list reports", fmt.Errorf("list reports: %w", err), classifyPostgresError)
	}
	return out, nil
}

func buildListQuery(filter domain.ReportFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.AssignedAppraiserID != "" {
		where = append(where, "assigned_appraiser_id = "+arg(filter.AssignedAppraiserID))
	}
	if filter.DateFrom != nil {
		where = append(where, "created_at >= "+arg(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		where = append(where, "created_at <= "+arg(*filter.DateTo))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		where = append(where, fmt.Sprintf(
			"(report_number ILIKE %[1]s OR title ILIKE %[1]s OR debtor_name ILIKE %[1]s OR property_address ILIKE %[1]s)", p))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, report_number DESC"
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	payload, err := marshalReportJSON(report)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO reports (`+reportColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
`,
		report.ID, report.ReportNumber, string(report.Status), report.AssignedAppraiserID, report.CreatedBy,
		report.Title, report.DebtorName, report.PropertyAddress, report.AppraisalDate, report.Remarks,
		payload.input, payload.result, payload.comparables, payload.attachments, payload.audit, report.PDFPath,
		report.CreatedAt, report.UpdatedAt, report.SubmittedAt, report.ApprovedAt, report.RejectedAt, report.RejectionReason,
	)
	if err != nil {
		return mapWriteError("insert report", err)
	}
	return nil
}

// Update writes editable content and attachments and appends one audit
// entry. Status columns are owned by UpdateStatus.
func (r *ReportRepository) Update(ctx context.Context, report *domain.Report, entry domain.AuditEntry) error {
	payload, err := marshalReportJSON(report)
	if err != nil {
		return err
	}
	entryJSON, err := json.Marshal([]domain.AuditEntry{entry})
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE reports
SET assigned_appraiser_id = $2, title = $3, debtor_name = $4, property_address = $5, appraisal_date = $6,
	remarks = $7, valuation_input = $8, valuation_result = $9, comparables = $10, attachments = $11,
	audit_trail = audit_trail || $12::jsonb, pdf_path = $13, updated_at = $14
WHERE id = $1
`,
		report.ID, report.AssignedAppraiserID, report.Title, report.DebtorName, report.PropertyAddress,
		report.AppraisalDate, report.Remarks, payload.input, payload.result, payload.comparables,
		payload.attachments, entryJSON, report.PDFPath, report.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("update report", err)
	}
	return requireAffected(res, "update report", report.ID)
}

// UpdateStatus stores the transition and appends its audit entry in one
// statement.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, change domain.StatusChange) error {
	entry, err := json.Marshal([]domain.AuditEntry{change.Audit})
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE reports
SET status = $2, submitted_at = $3, approved_at = $4, rejected_at = $5, rejection_reason = $6,
	updated_at = $7, audit_trail = audit_trail || $8::jsonb
WHERE id = $1
`, id, string(change.To), change.SubmittedAt, change.ApprovedAt, change.RejectedAt, change.RejectionReason, change.UpdatedAt, entry)
	if err != nil {
		return mapWriteError("update report status", err)
	}
	return requireAffected(res, "update report status", id)
}

func (r *ReportRepository) UpdateValuation(ctx context.Context, id string, input domain.ValuationInput, result domain.ValuationResult, updatedAt time.Time) error {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal valuation input: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal valuation result: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE reports SET valuation_input = $2, valuation_result = $3, updated_at = $4 WHERE id = $1
`, id, inputJSON, resultJSON, updatedAt)
	if err != nil {
		return mapWriteError("update report valuation", err)
	}
	return requireAffected(res, "update report valuation", id)
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return mapWriteError("delete report", err)
	}
	return requireAffected(res, "delete report", id)
}

func requireAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return notFound(operation, id)
	}
	return nil
}

type reportJSON struct {
	input       []byte
	result      []byte
	comparables []byte
	attachments []byte
	audit       []byte
}

func marshalReportJSON(report *domain.Report) (reportJSON, error) {
	var out reportJSON
	var err error
	if out.input, err = json.Marshal(report.ValuationInput); err != nil {
		return out, fmt.Errorf("marshal valuation input: %w", err)
	}
	if out.result, err = json.Marshal(report.ValuationResult); err != nil {
		return out, fmt.Errorf("marshal valuation result: %w", err)
	}
	if out.comparables, err = json.Marshal(nonNil(report.Comparables)); err != nil {
		return out, fmt.Errorf("marshal comparables: %w", err)
	}
	if out.attachments, err = json.Marshal(nonNil(report.Attachments)); err != nil {
		return out, fmt.Errorf("marshal attachments: %w", err)
	}
	if out.audit, err = json.Marshal(nonNil(report.AuditTrail)); err != nil {
		return out, fmt.Errorf("marshal audit trail: %w", err)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var (
		report                                             domain.Report
		status                                             string
		appraisalDate, submittedAt, approvedAt, rejectedAt sql.NullTime
		inputRaw, resultRaw, comparablesRaw, attachRaw     []byte
		auditRaw                                           []byte
	)
	err := row.Scan(
		&report.ID, &report.ReportNumber, &status, &report.AssignedAppraiserID, &report.CreatedBy,
		&report.Title, &report.DebtorName, &report.PropertyAddress, &appraisalDate, &report.Remarks,
		&inputRaw, &resultRaw, &comparablesRaw, &attachRaw, &auditRaw, &report.PDFPath,
		&report.CreatedAt, &report.UpdatedAt, &submittedAt, &approvedAt, &rejectedAt, &report.RejectionReason,
	)
	if err != nil {
		return nil, err
	}

	report.Status = domain.ReportStatus(status)
	report.AppraisalDate = nullTime(appraisalDate)
	report.SubmittedAt = nullTime(submittedAt)
	report.ApprovedAt = nullTime(approvedAt)
	report.RejectedAt = nullTime(rejectedAt)

	for _, field := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"valuation_input", inputRaw, &report.ValuationInput},
		{"valuation_result", resultRaw, &report.ValuationResult},
		{"comparables", comparablesRaw, &report.Comparables},
		{"attachments", attachRaw, &report.Attachments},
		{"audit_trail", auditRaw, &report.AuditTrail},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", field.name, err)
		}
	}
	return &report, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
