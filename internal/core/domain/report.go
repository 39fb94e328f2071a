package domain

import (
	"fmt"
	"strings"
	"time"
)

type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusForReview ReportStatus = "for_review"
	ReportStatusApproved  ReportStatus = "approved"
	ReportStatusRejected  ReportStatus = "rejected"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusDraft, ReportStatusForReview, ReportStatusApproved, ReportStatusRejected:
		return true
	default:
		return false
	}
}

type Attachment struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	StoragePath string    `json:"storage_path"`
	Category    string    `json:"category,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   int       `json:"page_count,omitempty"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Audit actions recorded on a report.
const (
	AuditActionCreated           = "created"
	AuditActionUpdated           = "updated"
	AuditActionStatusChanged     = "status_changed"
	AuditActionAttachmentAdded   = "attachment_added"
	AuditActionAttachmentRemoved = "attachment_removed"
	AuditActionDeleted           = "deleted"
)

type AuditEntry struct {
	Timestamp   time.Time         `json:"timestamp"`
	ActorID     string            `json:"actor_id"`
	ActorRole   Role              `json:"actor_role"`
	Action      string            `json:"action"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func NewAuditEntry(actor Actor, action, description string, at time.Time) AuditEntry {
	return AuditEntry{
		Timestamp:   at.UTC(),
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Action:      action,
		Description: description,
	}
}

type Report struct {
	ID                  string             `json:"id"`
	ReportNumber        string             `json:"report_number"`
	Status              ReportStatus       `json:"status"`
	AssignedAppraiserID string             `json:"assigned_appraiser_id"`
	CreatedBy           string             `json:"created_by"`
	Title               string             `json:"title"`
	DebtorName          string             `json:"debtor_name,omitempty"`
	PropertyAddress     string             `json:"property_address,omitempty"`
	AppraisalDate       *time.Time         `json:"appraisal_date,omitempty"`
	Remarks             string             `json:"remarks,omitempty"`
	ValuationInput      ValuationInput     `json:"valuation_input"`
	ValuationResult     ValuationResult    `json:"valuation_result"`
	Comparables         []MarketComparable `json:"comparables"`
	Attachments         []Attachment       `json:"attachments"`
	AuditTrail          []AuditEntry       `json:"audit_trail"`
	PDFPath             string             `json:"pdf_path,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	SubmittedAt         *time.Time         `json:"submitted_at,omitempty"`
	ApprovedAt          *time.Time         `json:"approved_at,omitempty"`
	RejectedAt          *time.Time         `json:"rejected_at,omitempty"`
	RejectionReason     string             `json:"rejection_reason,omitempty"`
}

// CheckInvariants verifies the rejection metadata rule: a rejected report
// carries a reason, any other status carries none.
func (r *Report) CheckInvariants() error {
	if !r.Status.Valid() {
		return WrapError(ErrInvalidInput, "check report", fmt.Errorf("unknown status %q", r.Status))
	}
	hasReason := strings.TrimSpace(r.RejectionReason) != ""
	if r.Status == ReportStatusRejected && !hasReason {
		return WrapError(ErrInvalidInput, "check report", fmt.Errorf("rejected report %s has no reason", r.ID))
	}
	if r.Status != ReportStatusRejected && (hasReason || r.RejectedAt != nil) {
		return WrapError(ErrInvalidInput, "check report", fmt.Errorf("report %s keeps rejection metadata in status %s", r.ID, r.Status))
	}
	return nil
}

func (r *Report) FindAttachment(id string) (Attachment, int, bool) {
	for i, att := range r.Attachments {
		if att.ID == id {
			return att, i, true
		}
	}
	return Attachment{}, -1, false
}

// FormatReportNumber renders PREFIX-YEAR-NNNN.
func FormatReportNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

type ReportFilter struct {
	Search              string
	Status              ReportStatus
	DateFrom            *time.Time
	DateTo              *time.Time
	AssignedAppraiserID string
}

// Matches applies the filter in memory. Search is a case-insensitive match on
// the report number, title, debtor and address; the date range applies to
// CreatedAt and is inclusive.
func (f ReportFilter) Matches(r *Report) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.AssignedAppraiserID != "" && r.AssignedAppraiserID != f.AssignedAppraiserID {
		return false
	}
	if f.DateFrom != nil && r.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && r.CreatedAt.After(*f.DateTo) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		for _, field := range []string{r.ReportNumber, r.Title, r.DebtorName, r.PropertyAddress} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}
	return true
}

// StatusChange is the persisted outcome of one lifecycle transition.
type StatusChange struct {
	From            ReportStatus
	To              ReportStatus
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string
	UpdatedAt       time.Time
	Audit           AuditEntry
}

// ReportDraft carries the editable content of a report on create and update.
type ReportDraft struct {
	Title               string             `json:"title"`
	DebtorName          string             `json:"debtor_name,omitempty"`
	PropertyAddress     string             `json:"property_address,omitempty"`
	AppraisalDate       *time.Time         `json:"appraisal_date,omitempty"`
	Remarks             string             `json:"remarks,omitempty"`
	AssignedAppraiserID string             `json:"assigned_appraiser_id,omitempty"`
	Valuation           ValuationDraft     `json:"valuation"`
	Comparables         []MarketComparable `json:"comparables,omitempty"`
}

// AttachmentUpload is a file handed to the report service for storage.
type AttachmentUpload struct {
	Filename string
	MimeType string
	Category string
	Data     []byte
}
