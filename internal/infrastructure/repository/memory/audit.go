package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

// AuditLog is an append-only in-memory audit sink.
type AuditLog struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) Append(_ context.Context, record domain.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

// Records returns a copy of the appended records in order.
func (l *AuditLog) Records() []domain.AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.AuditRecord(nil), l.records...)
}

func (l *AuditLog) ListByReport(_ context.Context, reportID string) ([]domain.AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AuditRecord, 0)
	for _, rec := range l.records {
		if rec.ReportID == reportID {
			out = append(out, rec)
		}
	}
	return out, nil
}
