package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

const (
	dateLayout   = "2006-01-02"
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// reportRequest is the create/update body. Dates accept YYYY-MM-DD or RFC 3339.
type reportRequest struct {
	Title               string                    `json:"title"`
	DebtorName          string                    `json:"debtor_name"`
	PropertyAddress     string                    `json:"property_address"`
	AppraisalDate       string                    `json:"appraisal_date"`
	Remarks             string                    `json:"remarks"`
	AssignedAppraiserID string                    `json:"assigned_appraiser_id"`
	Valuation           domain.ValuationDraft     `json:"valuation"`
	Comparables         []domain.MarketComparable `json:"comparables"`
}

func (req reportRequest) draft() (domain.ReportDraft, error) {
	appraisalDate, err := parseDate("appraisal_date", req.AppraisalDate, false)
	if err != nil {
		return domain.ReportDraft{}, err
	}
	return domain.ReportDraft{
		Title:               req.Title,
		DebtorName:          req.DebtorName,
		PropertyAddress:     req.PropertyAddress,
		AppraisalDate:       appraisalDate,
		Remarks:             req.Remarks,
		AssignedAppraiserID: req.AssignedAppraiserID,
		Valuation:           req.Valuation,
		Comparables:         req.Comparables,
	}, nil
}

type transitionRequest struct {
	Status domain.ReportStatus `json:"status"`
	Reason string              `json:"reason"`
}

func (rt *Router) listReports(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reports, err := rt.reports.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(reports))
}

func (rt *Router) createReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := req.draft()
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := rt.reports.Create(r.Context(), mustActor(r), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/reports/"+report.ID)
	writeJSON(w, http.StatusCreated, report)
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := rt.reports.Get(r.Context(), mustActor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) updateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := req.draft()
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := rt.reports.Update(r.Context(), mustActor(r), chi.URLParam(r, "id"), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) deleteReport(w http.ResponseWriter, r *http.Request) {
	if err := rt.reports.Delete(r.Context(), mustActor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) recalculateReport(w http.ResponseWriter, r *http.Request) {
	report, err := rt.reports.Recalculate(r.Context(), mustActor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) transitionReport(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "change status", fmt.Errorf("unknown status %q", req.Status)))
		return
	}
	report, err := rt.reports.Transition(r.Context(), mustActor(r), chi.URLParam(r, "id"), req.Status, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// exportRegister renders into memory first so a failure still yields a
// JSON error instead of a truncated workbook.
func (rt *Router) exportRegister(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := rt.register.ExportRegister(r.Context(), mustActor(r), filter, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("appraisal-register-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxMimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func parseFilter(r *http.Request) (domain.ReportFilter, error) {
	q := r.URL.Query()
	from, err := parseDate("date_from", q.Get("date_from"), false)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	to, err := parseDate("date_to", q.Get("date_to"), true)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	return domain.ReportFilter{
		Search:              strings.TrimSpace(q.Get("search")),
		Status:              domain.ReportStatus(strings.TrimSpace(q.Get("status"))),
		DateFrom:            from,
		DateTo:              to,
		AssignedAppraiserID: strings.TrimSpace(q.Get("assigned_appraiser_id")),
	}, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. A bare date used as an upper
// bound covers the whole day.
func parseDate(field, raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse "+field, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw))
	}
	t = t.UTC()
	return &t, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("body too large"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json"))
	}
	return nil
}

// mustActor reads the actor installed by authMiddleware. Routes under /v1
// never run without it.
func mustActor(r *http.Request) domain.Actor {
	actor, _ := actorFromContext(r.Context())
	return actor
}
