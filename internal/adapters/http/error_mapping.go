package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage never reveals which authorization rule failed or internal
// failure details.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusForbidden:
		return domain.ErrForbidden.Error()
	case http.StatusUnauthorized:
		return domain.ErrUnauthenticated.Error()
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	case http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	requestID := requestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed", "request_id", requestID, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: publicMessage(status, err), RequestID: requestID})
}
