package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/resilience"
)

func newReportRepoWithMock(t *testing.T, executor *resilience.Executor) (*ReportRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewReportRepository(db, executor), mock, func() { _ = db.Close() }
}

func reportRowColumns() []string {
	return []string{
		"id", "report_number", "status", "assigned_appraiser_id", "created_by", "title", "debtor_name", "property_address",
		"appraisal_date", "remarks", "valuation_input", "valuation_result", "comparables", "attachments", "audit_trail", "pdf_path",
		"created_at", "updated_at", "submitted_at", "approved_at", "rejected_at", "rejection_reason",
	}
}

func TestNextReportNumberUsesAtomicUpsert(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t, nil)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (name) DO UPDATE SET value = report_counters.value + 1")).
		WithArgs(reportCounterName).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(42)))

	got, err := repo.NextReportNumber(context.Background())
	if err != nil {
		t.Fatalf("NextReportNumber() error = %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t, nil)
	defer done()

	mock.ExpectQuery("SELECT id, report_number, status").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansJSONColumns(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t, nil)
	defer done()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rejected := created.Add(time.Hour)
	input, _ := json.Marshal(domain.ValuationInput{LandArea: 200, BuildingStandardCode: "house_one_story_type_a"})
	result, _ := json.Marshal(domain.ValuationResult{LiquidationValue: 397_278_000})
	audit, _ := json.Marshal([]domain.AuditEntry{{Action: domain.AuditActionCreated}})

	mock.ExpectQuery("SELECT id, report_number, status").
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(reportRowColumns()).AddRow(
			"r-1", "APR-2026-0001", "rejected", "u-1", "u-1", "Title", "", "Jl. A",
			nil, "", input, result, []byte(`[]`), []byte(`[]`), audit, "",
			created, created, nil, nil, rejected, "photos missing",
		))

	report, err := repo.GetByID(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if report.Status != domain.ReportStatusRejected || report.RejectionReason != "photos missing" {
		t.Fatalf("unexpected status fields: %+v", report)
	}
	if report.RejectedAt == nil || !report.RejectedAt.Equal(rejected) {
		t.Fatalf("unexpected rejected_at %v", report.RejectedAt)
	}
	if report.ValuationInput.BuildingStandardCode != "house_one_story_type_a" || report.ValuationResult.LiquidationValue != 397_278_000 {
		t.Fatalf("unexpected valuation: %+v", report.ValuationInput)
	}
	if len(report.AuditTrail) != 1 || report.AppraisalDate != nil {
		t.Fatalf("unexpected audit/appraisal date: %+v", report)
	}
}

func TestCreateMapsUniqueViolationToConflict(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t, nil)
	defer done()

	mock.ExpectExec("INSERT INTO reports").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reports_report_number_key"})

	err := repo.Create(context.Background(), &domain.Report{ID: "r-1", ReportNumber: "APR-2026-0001", Status: domain.ReportStatusDraft})
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateStatusAppendsAuditEntry(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t, nil)
	defer done()

	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	change := domain.StatusChange{
		To:          domain.ReportStatusForReview,
		SubmittedAt: &at,
		UpdatedAt:   at,
		Audit:       domain.AuditEntry{Action: domain.AuditActionStatusChanged, ActorID: "u-1"},
	}
	entry, _ := json.Marshal([]domain.AuditEntry{change.Audit})

	mock.ExpectExec(regexp.QuoteMeta("audit_trail = audit_trail || $8::jsonb")).
		WithArgs("r-1", "for_review", &at, nil, nil, "", at, entry).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "r-1", change); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateAppendsAuditEntryInsteadOfReplacingTrail(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t, nil)
	defer done()

	at := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	stale := &domain.Report{
		ID:         "r-1",
		Title:      "edited",
		UpdatedAt:  at,
		AuditTrail: []domain.AuditEntry{{Action: domain.AuditActionCreated}},
	}
	added := domain.AuditEntry{Action: domain.AuditActionAttachmentAdded, ActorID: "u-1", Timestamp: at}
	entry, _ := json.Marshal([]domain.AuditEntry{added})

	anyArg := sqlmock.AnyArg()
	mock.ExpectExec(regexp.QuoteMeta("audit_trail = audit_trail || $12::jsonb")).
		WithArgs("r-1", "", "edited", "", "", anyArg, "", anyArg, anyArg, anyArg, anyArg, entry, "", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(context.Background(), stale, added); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t, nil)
	defer done()

	mock.ExpectExec("UPDATE reports").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusChange{To: domain.ReportStatusDraft})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateValuationAndDeleteReturnNotFound(t *testing.T) {
	repo, mock, done := newReportRepoWithMock(t, nil)
	defer done()

	mock.ExpectExec("UPDATE reports SET valuation_input").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM reports").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateValuation(context.Background(), "missing", domain.ValuationInput{}, domain.ValuationResult{}, time.Now())
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildListQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildListQuery(domain.ReportFilter{
		Status:              domain.ReportStatusDraft,
		AssignedAppraiserID: "u-1",
		DateFrom:            &from,
		Search:              "50%_off",
	})

	want := "WHERE status = $1 AND assigned_appraiser_id = $2 AND created_at >= $3 AND (report_number ILIKE $4"
	if !regexp.MustCompile(regexp.QuoteMeta(want)).MatchString(query) {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 4 || args[3] != `%50\%\_off%` {
		t.Fatalf("unexpected args: %#v", args)
	}

	query, args = buildListQuery(domain.ReportFilter{})
	if regexp.MustCompile("WHERE").MatchString(query) || len(args) != 0 {
		t.Fatalf("empty filter must not add conditions: %s %v", query, args)
	}
}

func TestListRetriesConnectionFailuresAndMarksTemporary(t *testing.T) {
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	repo, mock, done := newReportRepoWithMock(t, executor)
	defer done()

	connErr := &pgconn.PgError{Code: "08006", Message: "connection failure"}
	mock.ExpectQuery("SELECT id, report_number").WillReturnError(connErr)
	mock.ExpectQuery("SELECT id, report_number").WillReturnError(connErr)

	_, err := repo.List(context.Background(), domain.ReportFilter{})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
