// Package lifecycle implements report status transitions and the edit and
// delete authorization rules.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

// allowedRoles lists who may request each target status.
var allowedRoles = map[domain.ReportStatus][]domain.Role{
	domain.ReportStatusForReview: {domain.RoleAppraiser, domain.RoleSupervisor, domain.RoleAdmin},
	domain.ReportStatusApproved:  {domain.RoleSupervisor, domain.RoleAdmin},
	domain.ReportStatusRejected:  {domain.RoleSupervisor, domain.RoleAdmin},
	domain.ReportStatusDraft:     {domain.RoleAdmin},
}

// Authorize checks whether actor may move report to the requested status.
// Role and ownership failures are reported as domain.ErrForbidden without
// detail; a rejection without a reason is domain.ErrInvalidInput.
func Authorize(report *domain.Report, to domain.ReportStatus, actor domain.Actor, reason string) error {
	if !to.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "transition report", fmt.Errorf("unknown status %q", to))
	}
	if !hasRole(allowedRoles[to], actor.Role) {
		return domain.Forbidden("transition report")
	}
	if to == domain.ReportStatusForReview && actor.Role == domain.RoleAppraiser && report.AssignedAppraiserID != actor.ID {
		return domain.Forbidden("transition report")
	}
	if to == domain.ReportStatusRejected && strings.TrimSpace(reason) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "transition report", fmt.Errorf("rejection reason is required"))
	}
	return nil
}

// Apply authorizes the transition, then updates the status timestamps and
// rejection metadata on report and appends exactly one audit entry.
func Apply(report *domain.Report, to domain.ReportStatus, actor domain.Actor, reason string, at time.Time) (domain.StatusChange, error) {
	if err := Authorize(report, to, actor, reason); err != nil {
		return domain.StatusChange{}, err
	}

	at = at.UTC()
	from := report.Status
	report.Status = to
	report.UpdatedAt = at
	report.RejectedAt = nil
	report.RejectionReason = ""

	switch to {
	case domain.ReportStatusForReview:
		report.SubmittedAt = &at
	case domain.ReportStatusApproved:
		report.ApprovedAt = &at
	case domain.ReportStatusRejected:
		report.RejectedAt = &at
		report.RejectionReason = strings.TrimSpace(reason)
	}

	entry := domain.NewAuditEntry(actor, domain.AuditActionStatusChanged,
		fmt.Sprintf("status changed from %s to %s", from, to), at)
	entry.Metadata = map[string]string{
		"from": string(from),
		"to":   string(to),
	}
	if to == domain.ReportStatusRejected {
		entry.Metadata["reason"] = report.RejectionReason
	}
	report.AuditTrail = append(report.AuditTrail, entry)

	return domain.StatusChange{
		From:            from,
		To:              to,
		SubmittedAt:     report.SubmittedAt,
		ApprovedAt:      report.ApprovedAt,
		RejectedAt:      report.RejectedAt,
		RejectionReason: report.RejectionReason,
		UpdatedAt:       at,
		Audit:           entry,
	}, nil
}

// CanEdit reports whether actor may change the report's content. Approved
// and unapproved reports follow the same rule: the assigned appraiser or an
// admin.
func CanEdit(report *domain.Report, actor domain.Actor) error {
	if actor.Role == domain.RoleAdmin || isAssigned(report, actor) {
		return nil
	}
	return domain.Forbidden("edit report")
}

// CanDelete allows admins, and the assigned appraiser while the report is
// still a draft.
func CanDelete(report *domain.Report, actor domain.Actor) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if isAssigned(report, actor) && report.Status == domain.ReportStatusDraft {
		return nil
	}
	return domain.Forbidden("delete report")
}

// CanView scopes reads: appraisers see only reports assigned to them.
func CanView(report *domain.Report, actor domain.Actor) error {
	if actor.Role != domain.RoleAppraiser || isAssigned(report, actor) {
		return nil
	}
	return domain.Forbidden("view report")
}

func isAssigned(report *domain.Report, actor domain.Actor) bool {
	return actor.ID != "" && report.AssignedAppraiserID == actor.ID
}

func hasRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
