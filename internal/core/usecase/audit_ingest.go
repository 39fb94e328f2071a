package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/ports"
)

// IngestMetrics receives per-event outcomes. A nil value disables them.
type IngestMetrics interface {
	StartEvent()
	FinishEvent(eventType string, duration time.Duration, err error)
	ObserveLag(lag time.Duration)
}

// AuditIngestUseCase appends consumed report events to the audit sink.
type AuditIngestUseCase struct {
	sink    ports.AuditSink
	metrics IngestMetrics
	now     func() time.Time
}

func NewAuditIngestUseCase(sink ports.AuditSink, metrics IngestMetrics, now func() time.Time) *AuditIngestUseCase {
	if now == nil {
		now = time.Now
	}
	return &AuditIngestUseCase{sink: sink, metrics: metrics, now: now}
}

func (uc *AuditIngestUseCase) Handle(ctx context.Context, event domain.ReportEvent) (err error) {
	started := uc.now()
	if uc.metrics != nil {
		uc.metrics.StartEvent()
		if !event.OccurredAt.IsZero() {
			uc.metrics.ObserveLag(started.Sub(event.OccurredAt))
		}
		defer func() {
			uc.metrics.FinishEvent(string(event.Type), uc.now().Sub(started), err)
		}()
	}

	record := event.AuditRecord()
	if record.Timestamp.IsZero() {
		record.Timestamp = event.OccurredAt
	}
	if err := uc.sink.Append(ctx, record); err != nil {
		return fmt.Errorf("append audit record report=%s: %w", event.ReportID, err)
	}
	return nil
}
