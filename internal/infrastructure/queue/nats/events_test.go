package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "no servers", err: fmt.Errorf("nats publish: %w", nats.ErrNoServers), retryable: true, record: true},
		{name: "timeout", err: nats.ErrTimeout, retryable: true, record: true},
		{name: "closed", err: nats.ErrConnectionClosed, retryable: true, record: true},
		{name: "canceled", err: context.Canceled},
		{name: "bad subject", err: nats.ErrBadSubject, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyNATSError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("classifyNATSError() = %+v", got)
			}
		})
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nats.ErrNoServers); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	permanent := errors.New("payload too large")
	if err := wrapTemporaryIfNeeded(permanent); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent error must not be temporary: %v", err)
	}
}

func TestEventSubject(t *testing.T) {
	if got := eventSubject(normalizePrefix(""), domain.ReportEventCreated); got != "appraisal.report.created" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := eventSubject(normalizePrefix(" bank.audit. "), domain.ReportEventDeleted); got != "bank.audit.report.deleted" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent([]byte(`{"type":"report.status_changed","report_id":"r1","report_number":"APR-2026-0001","audit":{"action":"status_changed","actor_id":"u1","actor_role":"supervisor","timestamp":"2026-05-20T10:00:00Z","metadata":{"from":"pending_review","to":"approved"}},"occurred_at":"2026-05-20T10:00:00Z"}`))
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if event.ReportID != "r1" || event.Type != domain.ReportEventStatusChanged {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Audit.Metadata["to"] != "approved" {
		t.Fatalf("unexpected metadata %+v", event.Audit.Metadata)
	}
	if !event.OccurredAt.Equal(time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected occurred_at %v", event.OccurredAt)
	}

	if _, err := decodeEvent([]byte(`{"type":"report.created"}`)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := decodeEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
