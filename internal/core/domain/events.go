package domain

import "time"

type ReportEventType string

const (
	ReportEventCreated       ReportEventType = "report.created"
	ReportEventUpdated       ReportEventType = "report.updated"
	ReportEventStatusChanged ReportEventType = "report.status_changed"
	ReportEventAttachment    ReportEventType = "report.attachment_changed"
	ReportEventDeleted       ReportEventType = "report.deleted"
)

// ReportEvent is emitted after a report change has been committed.
type ReportEvent struct {
	Type         ReportEventType `json:"type"`
	ReportID     string          `json:"report_id"`
	ReportNumber string          `json:"report_number"`
	Audit        AuditEntry      `json:"audit"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// AuditRecord is one row of the append-only audit sink.
type AuditRecord struct {
	ReportID     string            `json:"report_id"`
	ReportNumber string            `json:"report_number"`
	EventType    ReportEventType   `json:"event_type"`
	Timestamp    time.Time         `json:"timestamp"`
	ActorID      string            `json:"actor_id"`
	ActorRole    Role              `json:"actor_role"`
	Action       string            `json:"action"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (e ReportEvent) AuditRecord() AuditRecord {
	return AuditRecord{
		ReportID:     e.ReportID,
		ReportNumber: e.ReportNumber,
		EventType:    e.Type,
		Timestamp:    e.Audit.Timestamp,
		ActorID:      e.Audit.ActorID,
		ActorRole:    e.Audit.ActorRole,
		Action:       e.Audit.Action,
		Description:  e.Audit.Description,
		Metadata:     e.Audit.Metadata,
	}
}
