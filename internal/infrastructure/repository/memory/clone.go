package memory

import (
	"maps"
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

// Stored reports never share slices, maps or pointers with callers.

func cloneReport(r domain.Report) domain.Report {
	out := r
	out.AppraisalDate = cloneTime(r.AppraisalDate)
	out.SubmittedAt = cloneTime(r.SubmittedAt)
	out.ApprovedAt = cloneTime(r.ApprovedAt)
	out.RejectedAt = cloneTime(r.RejectedAt)
	out.ValuationInput = cloneInput(r.ValuationInput)
	out.ValuationResult = cloneResult(r.ValuationResult)

	out.Comparables = make([]domain.MarketComparable, len(r.Comparables))
	for i, c := range r.Comparables {
		out.Comparables[i] = cloneComparable(c)
	}
	out.Attachments = append(make([]domain.Attachment, 0, len(r.Attachments)), r.Attachments...)
	out.AuditTrail = make([]domain.AuditEntry, len(r.AuditTrail))
	for i, e := range r.AuditTrail {
		out.AuditTrail[i] = cloneAudit(e)
	}
	return out
}

func cloneInput(in domain.ValuationInput) domain.ValuationInput {
	out := in
	if in.YearBuilt != nil {
		y := *in.YearBuilt
		out.YearBuilt = &y
	}
	return out
}

func cloneResult(res domain.ValuationResult) domain.ValuationResult {
	out := res
	if res.Comparables != nil {
		c := *res.Comparables
		c.WeightedAveragePrice = clonePtr(res.Comparables.WeightedAveragePrice)
		c.WeightedAveragePricePerSquare = clonePtr(res.Comparables.WeightedAveragePricePerSquare)
		c.Notes = append([]string(nil), res.Comparables.Notes...)
		out.Comparables = &c
	}
	return out
}

func cloneComparable(c domain.MarketComparable) domain.MarketComparable {
	out := c
	out.TransactionDate = cloneTime(c.TransactionDate)
	out.Weight = clonePtr(c.Weight)
	out.AdjustedPrice = clonePtr(c.AdjustedPrice)
	out.FinalPricePerSquare = clonePtr(c.FinalPricePerSquare)
	return out
}

func cloneAudit(e domain.AuditEntry) domain.AuditEntry {
	out := e
	if e.Metadata != nil {
		out.Metadata = maps.Clone(e.Metadata)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	return clonePtr(t)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
