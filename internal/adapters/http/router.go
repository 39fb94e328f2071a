package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/collateral-appraisal/internal/core/ports"
	"github.com/kirillkom/collateral-appraisal/internal/observability/metrics"
)

const maxJSONBodyBytes = 1 << 20

type RouterDeps struct {
	Reports  ports.ReportService
	Preview  ports.ValuationPreview
	Register ports.RegisterExporter
	Users    ports.UserDirectory
	Tokens   TokenVerifier
	// Metrics is optional; when set the router serves /metrics.
	Metrics *metrics.HTTPServerMetrics
}

type RouterConfig struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	MaxUploadBytes   int64
}

type Router struct {
	reports  ports.ReportService
	preview  ports.ValuationPreview
	register ports.RegisterExporter
	users    ports.UserDirectory
	tokens   TokenVerifier
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(deps RouterDeps, cfg RouterConfig) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	return &Router{
		reports:  deps.Reports,
		preview:  deps.Preview,
		register: deps.Register,
		users:    deps.Users,
		tokens:   deps.Tokens,
		metrics:  deps.Metrics,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	r.Get("/healthz", rt.healthz)

	r.Route("/v1", func(v chi.Router) {
		v.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
		})
		v.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
		})
		v.Use(func(next http.Handler) http.Handler {
			return authMiddleware(next, rt.tokens)
		})

		v.Get("/building-standards", rt.listStandards)
		v.Get("/building-standards/{code}", rt.getStandard)
		v.Post("/building-valuations", rt.previewBuilding)

		v.Get("/users", rt.listUsers)

		v.Route("/reports", func(rr chi.Router) {
			rr.Get("/", rt.listReports)
			rr.Post("/", rt.createReport)
			rr.Get("/export.xlsx", rt.exportRegister)

			rr.Route("/{id}", func(one chi.Router) {
				one.Get("/", rt.getReport)
				one.Put("/", rt.updateReport)
				one.Delete("/", rt.deleteReport)
				one.Post("/recalculate", rt.recalculateReport)
				one.Post("/status", rt.transitionReport)
				one.Post("/attachments", rt.uploadAttachment)
				one.Get("/attachments/{attachmentID}", rt.downloadAttachment)
				one.Delete("/attachments/{attachmentID}", rt.deleteAttachment)
			})
		})
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newListResponse[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
