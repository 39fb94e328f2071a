package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/valuation"
)

// ReportService is the inbound contract for report management.
type ReportService interface {
	Create(ctx context.Context, actor domain.Actor, draft domain.ReportDraft) (*domain.Report, error)
	Update(ctx context.Context, actor domain.Actor, id string, draft domain.ReportDraft) (*domain.Report, error)
	Recalculate(ctx context.Context, actor domain.Actor, id string) (*domain.Report, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Report, error)
	List(ctx context.Context, actor domain.Actor, filter domain.ReportFilter) ([]domain.Report, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
	Transition(ctx context.Context, actor domain.Actor, id string, to domain.ReportStatus, reason string) (*domain.Report, error)
	AddAttachment(ctx context.Context, actor domain.Actor, id string, upload domain.AttachmentUpload) (*domain.Attachment, error)
	RemoveAttachment(ctx context.Context, actor domain.Actor, id, attachmentID string) error
	OpenAttachment(ctx context.Context, actor domain.Actor, id, attachmentID string) (*domain.Attachment, io.ReadCloser, error)
}

// ValuationPreview exposes the catalog and the building valuation without a report.
type ValuationPreview interface {
	Standards() []valuation.BuildingStandard
	Standard(code string) (valuation.BuildingStandard, error)
	PreviewBuilding(code string, yearBuilt *int, appraisalDate *time.Time) (valuation.BuildingValuation, error)
}

// RegisterExporter writes the filtered report register.
type RegisterExporter interface {
	ExportRegister(ctx context.Context, actor domain.Actor, filter domain.ReportFilter, w io.Writer) error
}

// UserDirectory lists staff for assignment pickers.
type UserDirectory interface {
	ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error)
}
