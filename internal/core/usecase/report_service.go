package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/lifecycle"
	"github.com/kirillkom/collateral-appraisal/internal/core/ports"
	"github.com/kirillkom/collateral-appraisal/internal/core/valuation"
)

// ReportMetrics receives domain counters. A nil value disables them.
type ReportMetrics interface {
	ObserveTransition(to domain.ReportStatus, outcome string)
	ObserveValuation(operation string)
}

type ReportServiceConfig struct {
	NumberPrefix string
	Defaults     valuation.Defaults
}

type ReportServiceDeps struct {
	Reports    ports.ReportRepository
	Sequence   ports.ReportSequence
	Users      ports.UserRepository
	Files      ports.FileStorage
	Events     ports.EventPublisher
	Inspector  ports.AttachmentInspector
	Calculator *valuation.Calculator
	Metrics    ReportMetrics
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

type ReportService struct {
	reports   ports.ReportRepository
	sequence  ports.ReportSequence
	users     ports.UserRepository
	files     ports.FileStorage
	events    ports.EventPublisher
	inspector ports.AttachmentInspector
	calc      *valuation.Calculator
	metrics   ReportMetrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	cfg       ReportServiceConfig
}

func NewReportService(deps ReportServiceDeps, cfg ReportServiceConfig) *ReportService {
	svc := &ReportService{
		reports:   deps.Reports,
		sequence:  deps.Sequence,
		users:     deps.Users,
		files:     deps.Files,
		events:    deps.Events,
		inspector: deps.Inspector,
		calc:      deps.Calculator,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
		newID:     deps.NewID,
		cfg:       cfg,
	}
	if svc.calc == nil {
		svc.calc = valuation.NewCalculator(nil, nil, deps.Now)
	}
	if svc.metrics == nil {
		svc.metrics = nopMetrics{}
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newID == nil {
		svc.newID = uuid.NewString
	}
	if svc.cfg.NumberPrefix == "" {
		svc.cfg.NumberPrefix = "APR"
	}
	return svc
}

func (s *ReportService) Create(ctx context.Context, actor domain.Actor, draft domain.ReportDraft) (*domain.Report, error) {
	if actor.Role != domain.RoleAppraiser && actor.Role != domain.RoleAdmin {
		return nil, domain.Forbidden("create report")
	}
	assignee, err := s.resolveAssignee(ctx, actor, "", draft.AssignedAppraiserID)
	if err != nil {
		return nil, err
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	input, result, comparables, err := s.appraise(draft)
	if err != nil {
		return nil, err
	}

	seq, err := s.sequence.NextReportNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("next report number: %w", err)
	}
	now := s.now().UTC()
	report := &domain.Report{
		ID:                  s.newID(),
		ReportNumber:        domain.FormatReportNumber(s.cfg.NumberPrefix, now.Year(), seq),
		Status:              domain.ReportStatusDraft,
		AssignedAppraiserID: assignee,
		CreatedBy:           actor.ID,
		ValuationInput:      input,
		ValuationResult:     result,
		Comparables:         comparables,
		Attachments:         []domain.Attachment{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	applyDraft(report, draft)
	entry := domain.NewAuditEntry(actor, domain.AuditActionCreated, "report created", now)
	report.AuditTrail = []domain.AuditEntry{entry}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	s.metrics.ObserveValuation("create")
	s.publish(ctx, domain.ReportEventCreated, report, entry)
	return report, nil
}

// Update replaces the editable content and always recomputes the valuation.
func (s *ReportService) Update(ctx context.Context, actor domain.Actor, id string, draft domain.ReportDraft) (*domain.Report, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanEdit(report, actor); err != nil {
		return nil, err
	}
	assignee, err := s.resolveAssignee(ctx, actor, report.AssignedAppraiserID, draft.AssignedAppraiserID)
	if err != nil {
		return nil, err
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	input, result, comparables, err := s.appraise(draft)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	applyDraft(report, draft)
	report.AssignedAppraiserID = assignee
	report.ValuationInput = input
	report.ValuationResult = result
	report.Comparables = comparables
	report.UpdatedAt = now
	entry := domain.NewAuditEntry(actor, domain.AuditActionUpdated, "report updated", now)
	report.AuditTrail = append(report.AuditTrail, entry)

	if err := s.reports.Update(ctx, report, entry); err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}
	s.metrics.ObserveValuation("update")
	s.publish(ctx, domain.ReportEventUpdated, report, entry)
	return report, nil
}

// Recalculate re-runs the valuation on the stored input and persists only
// the derived rates and the result.
func (s *ReportService) Recalculate(ctx context.Context, actor domain.Actor, id string) (*domain.Report, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanEdit(report, actor); err != nil {
		return nil, err
	}
	input, err := s.calc.ApplyBuildingStandard(report.ValuationInput, report.AppraisalDate)
	if err != nil {
		return nil, err
	}
	result := valuation.Appraise(input, report.Comparables)
	now := s.now().UTC()

	if err := s.reports.UpdateValuation(ctx, report.ID, input, result, now); err != nil {
		return nil, fmt.Errorf("update valuation: %w", err)
	}
	report.ValuationInput = input
	report.ValuationResult = result
	report.UpdatedAt = now
	s.metrics.ObserveValuation("recalculate")
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Report, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanView(report, actor); err != nil {
		return nil, err
	}
	return report, nil
}

// List returns reports matching filter. Appraisers only see their own.
func (s *ReportService) List(ctx context.Context, actor domain.Actor, filter domain.ReportFilter) ([]domain.Report, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list reports", fmt.Errorf("unknown status %q", filter.Status))
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list reports", errors.New("date_to is before date_from"))
	}
	if actor.Role == domain.RoleAppraiser {
		filter.AssignedAppraiserID = actor.ID
	}
	reports, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// Delete removes stored files best-effort, then the report record.
func (s *ReportService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	report, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.CanDelete(report, actor); err != nil {
		return err
	}

	for _, att := range report.Attachments {
		s.deleteFile(ctx, report.ID, att.StoragePath)
	}
	if report.PDFPath != "" {
		s.deleteFile(ctx, report.ID, report.PDFPath)
	}

	if err := s.reports.Delete(ctx, report.ID); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	entry := domain.NewAuditEntry(actor, domain.AuditActionDeleted, "report deleted", s.now())
	s.publish(ctx, domain.ReportEventDeleted, report, entry)
	return nil
}

func (s *ReportService) Transition(ctx context.Context, actor domain.Actor, id string, to domain.ReportStatus, reason string) (*domain.Report, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := lifecycle.Apply(report, to, actor, reason, s.now())
	if err != nil {
		s.metrics.ObserveTransition(to, outcome(err))
		return nil, err
	}
	if err := s.reports.UpdateStatus(ctx, report.ID, change); err != nil {
		s.metrics.ObserveTransition(to, "error")
		return nil, fmt.Errorf("update report status: %w", err)
	}
	s.metrics.ObserveTransition(to, "ok")
	s.publish(ctx, domain.ReportEventStatusChanged, report, change.Audit)
	return report, nil
}

func (s *ReportService) AddAttachment(ctx context.Context, actor domain.Actor, id string, upload domain.AttachmentUpload) (*domain.Attachment, error) {
	filename := strings.TrimSpace(upload.Filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add attachment", errors.New("filename is required"))
	}
	if len(upload.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add attachment", errors.New("file is empty"))
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanEdit(report, actor); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	att := domain.Attachment{
		ID:         s.newID(),
		Filename:   filename,
		MimeType:   upload.MimeType,
		Category:   upload.Category,
		SizeBytes:  int64(len(upload.Data)),
		UploadedBy: actor.ID,
		UploadedAt: now,
	}
	att.StoragePath = fmt.Sprintf("reports/%s/%s_%s", report.ID, att.ID, sanitizeFilename(filename))
	if s.inspector != nil {
		pages, err := s.inspector.PageCount(ctx, upload.MimeType, upload.Data)
		if err != nil {
			s.logger.Warn("attachment_inspect_failed", "report_id", report.ID, "filename", filename, "error", err)
		}
		att.PageCount = pages
	}

	if err := s.files.Save(ctx, att.StoragePath, bytes.NewReader(upload.Data)); err != nil {
		return nil, fmt.Errorf("save attachment file: %w", err)
	}

	report.Attachments = append(report.Attachments, att)
	report.UpdatedAt = now
	entry := domain.NewAuditEntry(actor, domain.AuditActionAttachmentAdded, "attachment added: "+filename, now)
	entry.Metadata = map[string]string{"attachment_id": att.ID}
	report.AuditTrail = append(report.AuditTrail, entry)

	if err := s.reports.Update(ctx, report, entry); err != nil {
		s.deleteFile(ctx, report.ID, att.StoragePath)
		return nil, fmt.Errorf("update report attachments: %w", err)
	}
	s.publish(ctx, domain.ReportEventAttachment, report, entry)
	return &att, nil
}

// RemoveAttachment drops the metadata record first; the file deletion that
// follows is best-effort.
func (s *ReportService) RemoveAttachment(ctx context.Context, actor domain.Actor, id, attachmentID string) error {
	report, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.CanEdit(report, actor); err != nil {
		return err
	}
	att, idx, ok := report.FindAttachment(attachmentID)
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "remove attachment", fmt.Errorf("attachment_id=%s", attachmentID))
	}

	now := s.now().UTC()
	report.Attachments = append(report.Attachments[:idx:idx], report.Attachments[idx+1:]...)
	report.UpdatedAt = now
	entry := domain.NewAuditEntry(actor, domain.AuditActionAttachmentRemoved, "attachment removed: "+att.Filename, now)
	entry.Metadata = map[string]string{"attachment_id": att.ID}
	report.AuditTrail = append(report.AuditTrail, entry)

	if err := s.reports.Update(ctx, report, entry); err != nil {
		return fmt.Errorf("update report attachments: %w", err)
	}
	s.deleteFile(ctx, report.ID, att.StoragePath)
	s.publish(ctx, domain.ReportEventAttachment, report, entry)
	return nil
}

func (s *ReportService) OpenAttachment(ctx context.Context, actor domain.Actor, id, attachmentID string) (*domain.Attachment, io.ReadCloser, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	att, _, ok := report.FindAttachment(attachmentID)
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrNotFound, "open attachment", fmt.Errorf("attachment_id=%s", attachmentID))
	}
	rc, err := s.files.Open(ctx, att.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment file: %w", err)
	}
	return &att, rc, nil
}

func (s *ReportService) load(ctx context.Context, id string) (*domain.Report, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load report", errors.New("report id is required"))
	}
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch report by id: %w", err)
	}
	return report, nil
}

// appraise normalizes the draft and computes the valuation before anything
// is written.
func (s *ReportService) appraise(draft domain.ReportDraft) (domain.ValuationInput, domain.ValuationResult, []domain.MarketComparable, error) {
	input, err := valuation.Normalize(draft.Valuation, s.cfg.Defaults)
	if err != nil {
		return domain.ValuationInput{}, domain.ValuationResult{}, nil, err
	}
	if err := valuation.ValidateComparables(draft.Comparables); err != nil {
		return domain.ValuationInput{}, domain.ValuationResult{}, nil, err
	}
	input, err = s.calc.ApplyBuildingStandard(input, draft.AppraisalDate)
	if err != nil {
		return domain.ValuationInput{}, domain.ValuationResult{}, nil, err
	}

	comparables := make([]domain.MarketComparable, len(draft.Comparables))
	copy(comparables, draft.Comparables)
	for i := range comparables {
		if comparables[i].ID == "" {
			comparables[i].ID = s.newID()
		}
	}
	return input, valuation.Appraise(input, comparables), comparables, nil
}

// resolveAssignee decides the assigned appraiser. Appraisers always work on
// their own reports; only admins may assign or reassign.
func (s *ReportService) resolveAssignee(ctx context.Context, actor domain.Actor, current, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if actor.Role != domain.RoleAdmin {
		if current == "" {
			current = actor.ID
		}
		if requested != "" && requested != current {
			return "", domain.Forbidden("assign report")
		}
		return current, nil
	}
	if requested == "" || requested == current {
		if current == "" {
			return "", domain.WrapError(domain.ErrInvalidInput, "assign report", errors.New("assigned_appraiser_id is required"))
		}
		return current, nil
	}
	user, err := s.users.GetByID(ctx, requested)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return "", domain.WrapError(domain.ErrInvalidInput, "assign report", fmt.Errorf("unknown appraiser %s", requested))
		}
		return "", fmt.Errorf("fetch assignee: %w", err)
	}
	if user.Role != domain.RoleAppraiser {
		return "", domain.WrapError(domain.ErrInvalidInput, "assign report", fmt.Errorf("user %s is not an appraiser", requested))
	}
	return user.ID, nil
}

func (s *ReportService) deleteFile(ctx context.Context, reportID, key string) {
	if key == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("report_file_delete_failed", "report_id", reportID, "key", key, "error", err)
	}
}

// publish feeds the audit sink after commit. A publish failure never undoes
// the committed change.
func (s *ReportService) publish(ctx context.Context, eventType domain.ReportEventType, report *domain.Report, entry domain.AuditEntry) {
	if s.events == nil {
		return
	}
	event := domain.ReportEvent{
		Type:         eventType,
		ReportID:     report.ID,
		ReportNumber: report.ReportNumber,
		Audit:        entry,
		OccurredAt:   s.now().UTC(),
	}
	if err := s.events.PublishReportEvent(ctx, event); err != nil {
		s.logger.Error("report_event_publish_failed", "report_id", report.ID, "event_type", eventType, "error", err)
	}
}

func validateDraft(draft domain.ReportDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate report", errors.New("title is required"))
	}
	return nil
}

func applyDraft(report *domain.Report, draft domain.ReportDraft) {
	report.Title = strings.TrimSpace(draft.Title)
	report.DebtorName = strings.TrimSpace(draft.DebtorName)
	report.PropertyAddress = strings.TrimSpace(draft.PropertyAddress)
	report.AppraisalDate = draft.AppraisalDate
	report.Remarks = draft.Remarks
}

func outcome(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrForbidden):
		return "forbidden"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveTransition(domain.ReportStatus, string) {}
func (nopMetrics) ObserveValuation(string)                       {}
