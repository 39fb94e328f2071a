package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/valuation"
)

type buildingValuationRequest struct {
	BuildingStandardCode string `json:"building_standard_code"`
	YearBuilt            *int   `json:"year_built"`
	AppraisalDate        string `json:"appraisal_date"`
}

func (rt *Router) listStandards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newListResponse[valuation.BuildingStandard](rt.preview.Standards()))
}

func (rt *Router) getStandard(w http.ResponseWriter, r *http.Request) {
	std, err := rt.preview.Standard(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, std)
}

func (rt *Router) previewBuilding(w http.ResponseWriter, r *http.Request) {
	var req buildingValuationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	appraisalDate, err := parseDate("appraisal_date", req.AppraisalDate, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := rt.preview.PreviewBuilding(req.BuildingStandardCode, req.YearBuilt, appraisalDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rt.users.ListUsers(r.Context(), domain.Role(r.URL.Query().Get("role")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(users))
}
