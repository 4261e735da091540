package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	appai "github.com/bryanwahyu/cloudsec/internal/application/ai"
	appremediation "github.com/bryanwahyu/cloudsec/internal/application/remediation"
	apprisks "github.com/bryanwahyu/cloudsec/internal/application/risks"
	domai "github.com/bryanwahyu/cloudsec/internal/domain/ai"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
	"github.com/bryanwahyu/cloudsec/internal/middleware"
)

// Deps is everything the router serves. AI, HTTPMetrics, Gatherer and
// RateLimiter are optional.
type Deps struct {
	Risks       *apprisks.Service
	Remediation *appremediation.Service
	AI          *appai.Service

	Health         map[string]middleware.HealthChecker
	Gatherer       prometheus.Gatherer
	HTTPMetrics    *middleware.HTTPMetrics
	RateLimiter    *middleware.RateLimiter
	APIKeys        map[string]string
	AllowedOrigins []string
	Logger         zerolog.Logger
}

type Router struct {
	risksSvc       *apprisks.Service
	remediationSvc *appremediation.Service
	aiSvc          *appai.Service
}

func NewRouter(d Deps) http.Handler {
	r := &Router{risksSvc: d.Risks, remediationSvc: d.Remediation, aiSvc: d.AI}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(middleware.RequestLogger(d.Logger))
	mux.Use(chimw.Recoverer)
	if d.HTTPMetrics != nil {
		mux.Use(d.HTTPMetrics.Middleware)
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	health := middleware.HealthHandler(d.Health)
	mux.Get("/health", health)
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	if d.Gatherer != nil {
		mux.Handle("/metrics", middleware.MetricsHandler(d.Gatherer))
	}

	protected := func(rt chi.Router) chi.Router {
		g := rt.With(middleware.APIKeyAuth(d.APIKeys))
		if d.RateLimiter != nil {
			g = g.With(d.RateLimiter.Middleware)
		}
		return g
	}

	mux.Route("/api", func(rt chi.Router) {
		rt.Get("/health", health)

		rt.Get("/scan", r.handleScan)
		protected(rt).Post("/scan", r.handleScan)

		rt.Get("/risks", r.wrap(r.handleListRisks))
		rt.Get("/risks/{id}", r.wrap(r.handleGetRisk))
		protected(rt).Post("/risks/{id}/explain", r.wrap(r.handleExplain))

		rt.Get("/resources", r.wrap(r.handleListResources))
		rt.Get("/stats", r.wrap(r.handleStats))

		protected(rt).Post("/remediation/{riskId}", r.handleRemediate)
		rt.Get("/remediation/{riskId}/status", r.wrap(r.handleRemediationStatus))
		rt.Get("/remediation/{riskId}/history", r.wrap(r.handleRemediationHistory))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, risks.ErrNotFound), errors.Is(err, resources.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, risks.ErrInvalidSeverity),
				errors.Is(err, resources.ErrInvalidType),
				errors.Is(err, middleware.ErrInvalidID):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domai.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case errors.Is(err, domai.ErrNotConfigured):
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
			default:
				zerolog.Ctx(req.Context()).Error().Err(err).Msg("request failed")
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

type scanResponse struct {
	Status        string        `json:"status"`
	ScanID        string        `json:"scanId,omitempty"`
	RisksDetected int           `json:"risksDetected"`
	DurationMS    int64         `json:"durationMs"`
	Risks         []*risks.Risk `json:"risks"`
	ReportURL     string        `json:"reportUrl,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// GET|POST /api/scan
func (r *Router) handleScan(w http.ResponseWriter, req *http.Request) {
	res, err := r.risksSvc.PerformScan(req.Context())
	if err != nil {
		zerolog.Ctx(req.Context()).Error().Err(err).Msg("error during scan")
		_ = writeJSON(w, http.StatusInternalServerError, scanResponse{
			Status:  "error",
			ScanID:  res.ID,
			Message: err.Error(),
		})
		return
	}
	found := res.Risks
	if found == nil {
		found = []*risks.Risk{}
	}
	_ = writeJSON(w, http.StatusOK, scanResponse{
		Status:        "success",
		ScanID:        res.ID,
		RisksDetected: len(found),
		DurationMS:    res.DurationMS,
		Risks:         found,
		ReportURL:     res.ReportURL,
	})
}

// GET /api/risks?severity=&page=&pageSize=
// Without page or pageSize the full list is returned as a plain array.
func (r *Router) handleListRisks(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	severity := middleware.SanitizeString(q.Get("severity"))

	if q.Has("page") || q.Has("pageSize") {
		page, _ := strconv.Atoi(q.Get("page"))
		size, _ := strconv.Atoi(q.Get("pageSize"))
		res, err := r.risksSvc.Page(req.Context(), severity, middleware.ValidatePage(page), middleware.ValidateLimit(size))
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, res)
	}

	list, err := r.risksSvc.List(req.Context(), severity)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /api/risks/{id}
func (r *Router) handleGetRisk(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID(chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	k, err := r.risksSvc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, k)
}

// POST /api/risks/{id}/explain
func (r *Router) handleExplain(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return domai.ErrNotConfigured
	}
	id, err := middleware.ParseID(chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	out, err := r.aiSvc.Explain(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, out)
}

// GET /api/resources?type=
func (r *Router) handleListResources(w http.ResponseWriter, req *http.Request) error {
	list, err := r.risksSvc.Resources(req.Context(), middleware.SanitizeString(req.URL.Query().Get("type")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /api/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	st, err := r.risksSvc.Stats(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

type remediationResponse struct {
	Status  string `json:"status"`
	RiskID  int64  `json:"riskId"`
	Message string `json:"message"`
}

// POST /api/remediation/{riskId}
func (r *Router) handleRemediate(w http.ResponseWriter, req *http.Request) {
	id, err := middleware.ParseID(chi.URLParam(req, "riskId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log := zerolog.Ctx(req.Context())
	log.Info().Int64("risk_id", id).Msg("remediation endpoint called")

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Int64("risk_id", id).Msg("error remediating risk")
			_ = writeJSON(w, http.StatusInternalServerError, remediationResponse{
				Status: "error", RiskID: id, Message: fmt.Sprint(p),
			})
		}
	}()

	if r.remediationSvc.Remediate(req.Context(), id) {
		_ = writeJSON(w, http.StatusOK, remediationResponse{
			Status: "success", RiskID: id, Message: "Remediation completed successfully",
		})
		return
	}
	_ = writeJSON(w, http.StatusInternalServerError, remediationResponse{
		Status: "failed", RiskID: id, Message: "Remediation failed",
	})
}

// GET /api/remediation/{riskId}/status
func (r *Router) handleRemediationStatus(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID(chi.URLParam(req, "riskId"))
	if err != nil {
		return err
	}
	st, err := r.remediationSvc.Status(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// GET /api/remediation/{riskId}/history
func (r *Router) handleRemediationHistory(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID(chi.URLParam(req, "riskId"))
	if err != nil {
		return err
	}
	list, err := r.remediationSvc.History(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}
