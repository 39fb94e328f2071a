package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

// ReportRepository persists report aggregates.
type ReportRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, error)
	Create(ctx context.Context, report *domain.Report) error
	// Update replaces the editable content and attachments and appends entry
	// to the stored audit trail. report.AuditTrail is not written.
	Update(ctx context.Context, report *domain.Report, entry domain.AuditEntry) error
	UpdateStatus(ctx context.Context, id string, change domain.StatusChange) error
	UpdateValuation(ctx context.Context, id string, input domain.ValuationInput, result domain.ValuationResult, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// ReportSequence issues report numbers. Implementations must be atomic
// across processes: two calls never return the same value.
type ReportSequence interface {
	NextReportNumber(ctx context.Context) (int64, error)
}

// UserRepository reads staff accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}

// FileStorage stores attachment and PDF files. Delete is idempotent.
type FileStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher emits committed report changes.
type EventPublisher interface {
	PublishReportEvent(ctx context.Context, event domain.ReportEvent) error
}

// EventSubscriber consumes report changes.
type EventSubscriber interface {
	SubscribeReportEvents(ctx context.Context, handler func(context.Context, domain.ReportEvent) error) error
}

// AuditSink is the append-only audit log.
type AuditSink interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}

// AuditReader reads back the audit log of one report.
type AuditReader interface {
	ListByReport(ctx context.Context, reportID string) ([]domain.AuditRecord, error)
}

// AttachmentInspector reads document metadata such as the page count.
type AttachmentInspector interface {
	PageCount(ctx context.Context, mimeType string, data []byte) (int, error)
}

// RegisterWriter renders a list of reports as a spreadsheet.
type RegisterWriter interface {
	WriteRegister(ctx context.Context, reports []domain.Report, w io.Writer) error
}
