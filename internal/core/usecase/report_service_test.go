package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/valuation"
)

type reportRepoFake struct {
	reports        map[string]domain.Report
	createCalls    int
	updateCalls    int
	statusCalls    []domain.StatusChange
	valuationCalls int
	deleted        []string
	lastFilter     domain.ReportFilter
	updateErr      error
}

func newReportRepoFake(reports ...domain.Report) *reportRepoFake {
	f := &reportRepoFake{reports: map[string]domain.Report{}}
	for _, r := range reports {
		f.reports[r.ID] = r
	}
	return f
}

func (f *reportRepoFake) GetByID(_ context.Context, id string) (*domain.Report, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get report", fmt.Errorf("id=%s", id))
	}
	r.AuditTrail = append([]domain.AuditEntry(nil), r.AuditTrail...)
	r.Attachments = append([]domain.Attachment(nil), r.Attachments...)
	return &r, nil
}

func (f *reportRepoFake) List(_ context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	f.lastFilter = filter
	out := []domain.Report{}
	for _, r := range f.reports {
		if filter.AssignedAppraiserID != "" && r.AssignedAppraiserID != filter.AssignedAppraiserID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *reportRepoFake) Create(_ context.Context, r *domain.Report) error {
	f.createCalls++
	f.reports[r.ID] = *r
	return nil
}

func (f *reportRepoFake) Update(_ context.Context, r *domain.Report, entry domain.AuditEntry) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	next := *r
	next.AuditTrail = append(append([]domain.AuditEntry(nil), f.reports[r.ID].AuditTrail...), entry)
	f.reports[r.ID] = next
	return nil
}

func (f *reportRepoFake) UpdateStatus(_ context.Context, id string, change domain.StatusChange) error {
	f.statusCalls = append(f.statusCalls, change)
	r := f.reports[id]
	r.Status = change.To
	r.RejectionReason = change.RejectionReason
	r.AuditTrail = append(r.AuditTrail, change.Audit)
	f.reports[id] = r
	return nil
}

func (f *reportRepoFake) UpdateValuation(_ context.Context, id string, in domain.ValuationInput, res domain.ValuationResult, at time.Time) error {
	f.valuationCalls++
	r := f.reports[id]
	r.ValuationInput = in
	r.ValuationResult = res
	r.UpdatedAt = at
	f.reports[id] = r
	return nil
}

func (f *reportRepoFake) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.reports, id)
	return nil
}

type sequenceFake struct {
	next  int64
	calls int
}

func (f *sequenceFake) NextReportNumber(context.Context) (int64, error) {
	f.calls++
	f.next++
	return f.next, nil
}

type userRepoFake struct {
	users map[string]domain.User
}

func (f *userRepoFake) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("id=%s", id))
	}
	return &u, nil
}

func (f *userRepoFake) FindByUsername(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (f *userRepoFake) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *userRepoFake) Create(_ context.Context, u *domain.User) error {
	f.users[u.ID] = *u
	return nil
}

type fileStorageFake struct {
	saved     map[string][]byte
	deleted   []string
	deleteErr error
}

func (f *fileStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = b
	return nil
}

func (f *fileStorageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := f.saved[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fileStorageFake) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.deleteErr
}

type publisherFake struct {
	events []domain.ReportEvent
	err    error
}

func (f *publisherFake) PublishReportEvent(_ context.Context, e domain.ReportEvent) error {
	f.events = append(f.events, e)
	return f.err
}

type inspectorFake struct{ pages int }

func (f inspectorFake) PageCount(_ context.Context, mimeType string, _ []byte) (int, error) {
	if mimeType != "application/pdf" {
		return 0, nil
	}
	return f.pages, nil
}

type metricsFake struct {
	transitions []string
}

func (f *metricsFake) ObserveTransition(to domain.ReportStatus, outcome string) {
	f.transitions = append(f.transitions, string(to)+":"+outcome)
}

func (f *metricsFake) ObserveValuation(string) {}

var (
	owner      = domain.Actor{ID: "appraiser-1", Role: domain.RoleAppraiser}
	stranger   = domain.Actor{ID: "appraiser-2", Role: domain.RoleAppraiser}
	supervisor = domain.Actor{ID: "supervisor-1", Role: domain.RoleSupervisor}
	admin      = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	fixedNow   = time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC)
)

type serviceFixture struct {
	svc     *ReportService
	repo    *reportRepoFake
	seq     *sequenceFake
	files   *fileStorageFake
	events  *publisherFake
	metrics *metricsFake
}

func newFixture(reports ...domain.Report) serviceFixture {
	ids := 0
	fx := serviceFixture{
		repo:    newReportRepoFake(reports...),
		seq:     &sequenceFake{},
		files:   &fileStorageFake{},
		events:  &publisherFake{},
		metrics: &metricsFake{},
	}
	now := func() time.Time { return fixedNow }
	fx.svc = NewReportService(ReportServiceDeps{
		Reports:  fx.repo,
		Sequence: fx.seq,
		Users: &userRepoFake{users: map[string]domain.User{
			owner.ID:      {ID: owner.ID, Role: domain.RoleAppraiser},
			stranger.ID:   {ID: stranger.ID, Role: domain.RoleAppraiser},
			supervisor.ID: {ID: supervisor.ID, Role: domain.RoleSupervisor},
		}},
		Files:      fx.files,
		Events:     fx.events,
		Inspector:  inspectorFake{pages: 3},
		Calculator: valuation.NewCalculator(nil, nil, now),
		Metrics:    fx.metrics,
		Now:        now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	}, ReportServiceConfig{
		NumberPrefix: "APR",
		Defaults:     valuation.Defaults{SafetyMarginPercent: 10, LiquidationFactorPercent: 70},
	})
	return fx
}

func sampleDraft() domain.ReportDraft {
	year := 2023
	return domain.ReportDraft{
		Title:           "House at Jl. Merdeka 1",
		PropertyAddress: "Jl. Merdeka 1",
		Valuation: domain.ValuationDraft{
			LandArea:             200,
			BuildingArea:         120,
			LandRate:             1_500_000,
			BuildingStandardCode: "house_one_story_type_a",
			YearBuilt:            &year,
		},
	}
}

func storedReport(status domain.ReportStatus) domain.Report {
	return domain.Report{
		ID:                  "r-1",
		ReportNumber:        "APR-2026-0007",
		Status:              status,
		AssignedAppraiserID: owner.ID,
		Title:               "stored",
	}
}

func TestCreateByAppraiser(t *testing.T) {
	fx := newFixture()

	report, err := fx.svc.Create(context.Background(), owner, sampleDraft())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if report.ReportNumber != "APR-2026-0001" {
		t.Fatalf("unexpected report number %q", report.ReportNumber)
	}
	if report.Status != domain.ReportStatusDraft || report.AssignedAppraiserID != owner.ID {
		t.Fatalf("unexpected status/assignee: %s/%s", report.Status, report.AssignedAppraiserID)
	}
	if report.ValuationInput.BuildingRate != 2_755_000 {
		t.Fatalf("expected depreciated building rate 2755000, got %d", report.ValuationInput.BuildingRate)
	}
	if report.ValuationResult.LiquidationValue != 397_278_000 {
		t.Fatalf("unexpected liquidation value %d", report.ValuationResult.LiquidationValue)
	}
	if len(report.AuditTrail) != 1 || report.AuditTrail[0].Action != domain.AuditActionCreated {
		t.Fatalf("unexpected audit trail: %+v", report.AuditTrail)
	}
	if len(fx.events.events) != 1 || fx.events.events[0].Type != domain.ReportEventCreated {
		t.Fatalf("expected one created event, got %+v", fx.events.events)
	}
}

func TestCreateNumbersAreSequential(t *testing.T) {
	fx := newFixture()
	first, err := fx.svc.Create(context.Background(), owner, sampleDraft())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := fx.svc.Create(context.Background(), owner, sampleDraft())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.ReportNumber != "APR-2026-0001" || second.ReportNumber != "APR-2026-0002" {
		t.Fatalf("unexpected numbers %s, %s", first.ReportNumber, second.ReportNumber)
	}
}

func TestCreateRejectsWithoutPartialWrites(t *testing.T) {
	invalid := sampleDraft()
	invalid.Valuation.BuildingStandardCode = "invalid"
	badMargin := sampleDraft()
	margin := 150.0
	badMargin.Valuation.SafetyMarginPercent = &margin

	cases := []struct {
		name    string
		actor   domain.Actor
		draft   domain.ReportDraft
		wantErr error
	}{
		{name: "supervisor", actor: supervisor, draft: sampleDraft(), wantErr: domain.ErrForbidden},
		{name: "unknown standard", actor: owner, draft: invalid, wantErr: domain.ErrInvalidStandard},
		{name: "safety margin out of range", actor: owner, draft: badMargin, wantErr: domain.ErrInvalidInput},
		{name: "admin without assignee", actor: admin, draft: sampleDraft(), wantErr: domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture()
			_, err := fx.svc.Create(context.Background(), tc.actor, tc.draft)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if fx.seq.calls != 0 || fx.repo.createCalls != 0 {
				t.Fatalf("expected no writes, got seq=%d create=%d", fx.seq.calls, fx.repo.createCalls)
			}
		})
	}
}

func TestCreateByAdminAssignsAppraiser(t *testing.T) {
	fx := newFixture()
	draft := sampleDraft()
	draft.AssignedAppraiserID = stranger.ID

	report, err := fx.svc.Create(context.Background(), admin, draft)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if report.AssignedAppraiserID != stranger.ID {
		t.Fatalf("expected assignee %s, got %s", stranger.ID, report.AssignedAppraiserID)
	}

	draft.AssignedAppraiserID = supervisor.ID
	if _, err := fx.svc.Create(context.Background(), admin, draft); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for non-appraiser assignee, got %v", err)
	}
}

func TestUpdateRequiresEditPermission(t *testing.T) {
	fx := newFixture(storedReport(domain.ReportStatusApproved))

	_, err := fx.svc.Update(context.Background(), stranger, "r-1", sampleDraft())
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err.Error() != "edit report: not permitted" {
		t.Fatalf("forbidden error leaks detail: %q", err.Error())
	}
	if fx.repo.updateCalls != 0 {
		t.Fatalf("expected no update calls")
	}
}

func TestUpdateRecomputesValuationAndKeepsNumber(t *testing.T) {
	fx := newFixture(storedReport(domain.ReportStatusApproved))

	report, err := fx.svc.Update(context.Background(), owner, "r-1", sampleDraft())
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if report.ReportNumber != "APR-2026-0007" {
		t.Fatalf("report number changed to %s", report.ReportNumber)
	}
	if report.Status != domain.ReportStatusApproved {
		t.Fatalf("status changed to %s", report.Status)
	}
	if report.ValuationResult.MarketValueBeforeSafety != 630_600_000 {
		t.Fatalf("unexpected market value %d", report.ValuationResult.MarketValueBeforeSafety)
	}
	if fx.seq.calls != 0 {
		t.Fatalf("update must not consume a report number")
	}
}

func TestUpdateByAppraiserCannotReassign(t *testing.T) {
	fx := newFixture(storedReport(domain.ReportStatusDraft))
	draft := sampleDraft()
	draft.AssignedAppraiserID = stranger.ID

	if _, err := fx.svc.Update(context.Background(), owner, "r-1", draft); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRecalculatePersistsOnlyValuation(t *testing.T) {
	stored := storedReport(domain.ReportStatusForReview)
	stored.ValuationInput = domain.ValuationInput{
		LandArea:                 200,
		BuildingArea:             120,
		LandRate:                 1_500_000,
		BuildingStandardCode:     "house_one_story_type_a",
		BuildingRate:             1,
		SafetyMarginPercent:      10,
		LiquidationFactorPercent: 70,
	}
	fx := newFixture(stored)

	report, err := fx.svc.Recalculate(context.Background(), admin, "r-1")
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	if report.ValuationInput.BuildingRate != 2_900_000 {
		t.Fatalf("expected catalog rate, got %d", report.ValuationInput.BuildingRate)
	}
	if fx.repo.valuationCalls != 1 || fx.repo.updateCalls != 0 {
		t.Fatalf("expected a single valuation write, got valuation=%d update=%d", fx.repo.valuationCalls, fx.repo.updateCalls)
	}
	if len(fx.events.events) != 0 {
		t.Fatalf("recalculate must not emit events")
	}

	again, err := fx.svc.Recalculate(context.Background(), admin, "r-1")
	if err != nil {
		t.Fatalf("second Recalculate() error = %v", err)
	}
	if again.ValuationResult != report.ValuationResult {
		t.Fatalf("recalculate is not idempotent")
	}
}

func TestTransitionAuthorization(t *testing.T) {
	fx := newFixture(storedReport(domain.ReportStatusDraft))

	if _, err := fx.svc.Transition(context.Background(), stranger, "r-1", domain.ReportStatusForReview, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(fx.repo.statusCalls) != 0 {
		t.Fatalf("forbidden transition must not persist")
	}

	report, err := fx.svc.Transition(context.Background(), owner, "r-1", domain.ReportStatusForReview, "")
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if report.Status != domain.ReportStatusForReview || report.SubmittedAt == nil {
		t.Fatalf("unexpected report after submit: %+v", report)
	}

	if _, err := fx.svc.Transition(context.Background(), supervisor, "r-1", domain.ReportStatusRejected, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing reason, got %v", err)
	}
	report, err = fx.svc.Transition(context.Background(), supervisor, "r-1", domain.ReportStatusRejected, "comparables outdated")
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if report.RejectionReason != "comparables outdated" {
		t.Fatalf("unexpected rejection reason %q", report.RejectionReason)
	}

	want := []string{"for_review:forbidden", "for_review:ok", "rejected:invalid", "rejected:ok"}
	if strings.Join(fx.metrics.transitions, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected transition metrics %v", fx.metrics.transitions)
	}
	if len(fx.events.events) != 2 {
		t.Fatalf("expected 2 status events, got %d", len(fx.events.events))
	}
}

func TestTransitionUnknownReport(t *testing.T) {
	fx := newFixture()
	if _, err := fx.svc.Transition(context.Background(), admin, "missing", domain.ReportStatusDraft, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteCascadesBestEffort(t *testing.T) {
	stored := storedReport(domain.ReportStatusDraft)
	stored.PDFPath = "reports/r-1/report.pdf"
	stored.Attachments = []domain.Attachment{
		{ID: "a-1", StoragePath: "reports/r-1/a-1_photo.jpg"},
		{ID: "a-2", StoragePath: "reports/r-1/a-2_deed.pdf"},
	}
	fx := newFixture(stored)
	fx.files.deleteErr = errors.New("disk unavailable")

	if err := fx.svc.Delete(context.Background(), owner, "r-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(fx.files.deleted) != 3 {
		t.Fatalf("expected 3 file deletions, got %v", fx.files.deleted)
	}
	if len(fx.repo.deleted) != 1 || fx.repo.deleted[0] != "r-1" {
		t.Fatalf("expected report record deletion, got %v", fx.repo.deleted)
	}
	if len(fx.events.events) != 1 || fx.events.events[0].Type != domain.ReportEventDeleted {
		t.Fatalf("expected deleted event, got %+v", fx.events.events)
	}
}

func TestDeleteForbiddenOutsideDraft(t *testing.T) {
	fx := newFixture(storedReport(domain.ReportStatusForReview))
	if err := fx.svc.Delete(context.Background(), owner, "r-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(fx.files.deleted) != 0 || len(fx.repo.deleted) != 0 {
		t.Fatalf("forbidden delete must not touch storage")
	}
}

func TestAddAndRemoveAttachment(t *testing.T) {
	fx := newFixture(storedReport(domain.ReportStatusDraft))

	att, err := fx.svc.AddAttachment(context.Background(), owner, "r-1", domain.AttachmentUpload{
		Filename: "land deed.pdf",
		MimeType: "application/pdf",
		Data:     []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("AddAttachment() error = %v", err)
	}
	if att.PageCount != 3 {
		t.Fatalf("expected page count 3, got %d", att.PageCount)
	}
	if att.StoragePath != "reports/r-1/id-1_land_deed.pdf" {
		t.Fatalf("unexpected storage path %q", att.StoragePath)
	}
	if _, ok := fx.files.saved[att.StoragePath]; !ok {
		t.Fatalf("file was not saved")
	}

	fx.files.deleteErr = errors.New("permission denied")
	if err := fx.svc.RemoveAttachment(context.Background(), owner, "r-1", att.ID); err != nil {
		t.Fatalf("RemoveAttachment() error = %v", err)
	}
	stored := fx.repo.reports["r-1"]
	if len(stored.Attachments) != 0 {
		t.Fatalf("attachment metadata not removed: %+v", stored.Attachments)
	}
	if len(stored.AuditTrail) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(stored.AuditTrail))
	}

	if err := fx.svc.RemoveAttachment(context.Background(), owner, "r-1", att.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for removed attachment, got %v", err)
	}
}

func TestAddAttachmentCleansUpFileWhenMetadataFails(t *testing.T) {
	fx := newFixture(storedReport(domain.ReportStatusDraft))
	fx.repo.updateErr = errors.New("db down")

	_, err := fx.svc.AddAttachment(context.Background(), owner, "r-1", domain.AttachmentUpload{
		Filename: "photo.jpg",
		MimeType: "image/jpeg",
		Data:     []byte{0xff, 0xd8},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(fx.files.deleted) != 1 {
		t.Fatalf("expected orphaned file cleanup, got %v", fx.files.deleted)
	}
}

func TestListScopesAppraisers(t *testing.T) {
	other := storedReport(domain.ReportStatusDraft)
	other.ID = "r-2"
	other.AssignedAppraiserID = stranger.ID
	fx := newFixture(storedReport(domain.ReportStatusDraft), other)

	reports, err := fx.svc.List(context.Background(), owner, domain.ReportFilter{AssignedAppraiserID: stranger.ID})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 1 || reports[0].ID != "r-1" {
		t.Fatalf("appraiser saw reports outside scope: %+v", reports)
	}

	reports, err = fx.svc.List(context.Background(), supervisor, domain.ReportFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("supervisor expected 2 reports, got %d", len(reports))
	}

	if _, err := fx.svc.List(context.Background(), supervisor, domain.ReportFilter{Status: "archived"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}

func TestGetHidesOtherAppraisersReports(t *testing.T) {
	fx := newFixture(storedReport(domain.ReportStatusDraft))
	if _, err := fx.svc.Get(context.Background(), stranger, "r-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := fx.svc.Get(context.Background(), supervisor, "r-1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestPublishFailureDoesNotFailCommittedChange(t *testing.T) {
	fx := newFixture()
	fx.events.err = errors.New("nats down")

	if _, err := fx.svc.Create(context.Background(), owner, sampleDraft()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if fx.repo.createCalls != 1 {
		t.Fatalf("expected report to be persisted")
	}
}
