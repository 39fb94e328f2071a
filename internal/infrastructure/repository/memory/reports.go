// Package memory is a process-local backend for development and tests. It
// implements the same ports as the postgres repositories.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

// ReportRepository keeps reports in a map and numbers them from an atomic
// counter.
type ReportRepository struct {
	mu      sync.RWMutex
	reports map[string]domain.Report
	counter atomic.Int64
}

func NewReportRepository() *ReportRepository {
	return &ReportRepository{reports: map[string]domain.Report{}}
}

func (s *ReportRepository) NextReportNumber(context.Context) (int64, error) {
	return s.counter.Add(1), nil
}

func (s *ReportRepository) GetByID(_ context.Context, id string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get report", fmt.Errorf("report_id=%s", id))
	}
	out := cloneReport(r)
	return &out, nil
}

// List returns matching reports, newest first.
func (s *ReportRepository) List(_ context.Context, filter domain.ReportFilter) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Report, 0)
	for _, r := range s.reports {
		if filter.Matches(&r) {
			out = append(out, cloneReport(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ReportNumber > out[j].ReportNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *ReportRepository) Create(_ context.Context, report *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[report.ID]; exists {
		return domain.WrapError(domain.ErrConflict, "create report", fmt.Errorf("report_id=%s", report.ID))
	}
	for _, r := range s.reports {
		if r.ReportNumber == report.ReportNumber {
			return domain.WrapError(domain.ErrConflict, "create report", fmt.Errorf("report_number=%s", report.ReportNumber))
		}
	}
	s.reports[report.ID] = cloneReport(*report)
	return nil
}

func (s *ReportRepository) Update(_ context.Context, report *domain.Report, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.reports[report.ID]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update report", fmt.Errorf("report_id=%s", report.ID))
	}
	next := cloneReport(*report)
	// Status fields and identity only change through their own operations.
	next.ReportNumber = current.ReportNumber
	next.Status = current.Status
	next.CreatedAt = current.CreatedAt
	next.CreatedBy = current.CreatedBy
	next.SubmittedAt = current.SubmittedAt
	next.ApprovedAt = current.ApprovedAt
	next.RejectedAt = current.RejectedAt
	next.RejectionReason = current.RejectionReason
	next.AuditTrail = append(append([]domain.AuditEntry(nil), current.AuditTrail...), cloneAudit(entry))
	s.reports[report.ID] = next
	return nil
}

func (s *ReportRepository) UpdateStatus(_ context.Context, id string, change domain.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update report status", fmt.Errorf("report_id=%s", id))
	}
	r.Status = change.To
	r.SubmittedAt = cloneTime(change.SubmittedAt)
	r.ApprovedAt = cloneTime(change.ApprovedAt)
	r.RejectedAt = cloneTime(change.RejectedAt)
	r.RejectionReason = change.RejectionReason
	r.UpdatedAt = change.UpdatedAt
	r.AuditTrail = append(append([]domain.AuditEntry(nil), r.AuditTrail...), cloneAudit(change.Audit))
	s.reports[id] = r
	return nil
}

func (s *ReportRepository) UpdateValuation(_ context.Context, id string, input domain.ValuationInput, result domain.ValuationResult, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update report valuation", fmt.Errorf("report_id=%s", id))
	}
	r.ValuationInput = cloneInput(input)
	r.ValuationResult = cloneResult(result)
	r.UpdatedAt = updatedAt
	s.reports[id] = r
	return nil
}

func (s *ReportRepository) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete report", fmt.Errorf("report_id=%s", id))
	}
	delete(s.reports, id)
	return nil
}
