// Package handler exposes framework management and assessments over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"attest/internal/compliance/models"
	"attest/internal/compliance/registry"
	"attest/internal/platform/middleware"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/httputil"
)

// Assessor is the slice of the engine the transport needs.
type Assessor interface {
	Assess(ctx context.Context, companyID id.CompanyID, frameworkName string, period models.Period, assessedBy string) (models.Report, error)
	Submit(ctx context.Context, reportID id.ReportID) (models.Report, error)
	GetReport(ctx context.Context, reportID id.ReportID) (models.Report, error)
	ListReports(ctx context.Context, companyID id.CompanyID, limit int) ([]models.Report, error)
}

// Handler wires compliance endpoints to the registry and engine.
type Handler struct {
	registry *registry.Registry
	assessor Assessor
	logger   *slog.Logger
}

func New(reg *registry.Registry, assessor Assessor, logger *slog.Logger) *Handler {
	return &Handler{registry: reg, assessor: assessor, logger: logger}
}

// Register mounts compliance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/frameworks", h.HandleRegisterFramework)
	r.Get("/compliance/frameworks", h.HandleListFrameworks)
	r.Post("/compliance/assessments", h.HandleAssess)
	r.Get("/compliance/reports", h.HandleListReports)
	r.Get("/compliance/reports/{reportID}", h.HandleGetReport)
	r.Post("/compliance/reports/{reportID}/submit", h.HandleSubmit)
}

// HandleRegisterFramework handles POST /compliance/frameworks.
func (h *Handler) HandleRegisterFramework(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	framework, ok := httputil.Decode[models.Framework](w, r)
	if !ok {
		return
	}
	if err := h.registry.Register(ctx, framework); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "framework registered",
		"request_id", middleware.GetRequestID(ctx),
		"framework", framework.Name,
		"requirements", len(framework.Requirements),
	)
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"name": framework.Name})
}

// HandleListFrameworks handles GET /compliance/frameworks.
func (h *Handler) HandleListFrameworks(w http.ResponseWriter, r *http.Request) {
	frameworks, err := h.registry.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"frameworks": frameworks})
}

// AssessRequest is the wire form of an assessment call.
type AssessRequest struct {
	Framework string    `json:"framework"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// HandleAssess handles POST /compliance/assessments.
func (h *Handler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[AssessRequest](w, r)
	if !ok {
		return
	}

	report, err := h.assessor.Assess(ctx, companyID, req.Framework, models.Period{Start: req.Start, End: req.End}, middleware.GetSubject(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "assessment failed",
			"request_id", middleware.GetRequestID(ctx),
			"company_id", companyID,
			"framework", req.Framework,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}

// HandleListReports handles GET /compliance/reports?limit=.
func (h *Handler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	reports, err := h.assessor.ListReports(ctx, companyID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

// HandleGetReport handles GET /compliance/reports/{reportID}.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	report, ok := h.loadTenantReport(w, r, companyID)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleSubmit handles POST /compliance/reports/{reportID}/submit.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	report, ok := h.loadTenantReport(w, r, companyID)
	if !ok {
		return
	}

	submitted, err := h.assessor.Submit(ctx, report.ReportID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, submitted)
}

func (h *Handler) loadTenantReport(w http.ResponseWriter, r *http.Request, companyID id.CompanyID) (models.Report, bool) {
	reportID, err := id.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid report id"))
		return models.Report{}, false
	}
	report, err := h.assessor.GetReport(r.Context(), reportID)
	if err != nil {
		httputil.WriteError(w, err)
		return models.Report{}, false
	}
	if report.CompanyID != companyID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "report not found"))
		return models.Report{}, false
	}
	return report, true
}

func authedCompany(w http.ResponseWriter, ctx context.Context) (id.CompanyID, bool) {
	raw := middleware.GetCompanyID(ctx)
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.CompanyID{}, false
	}
	companyID, err := id.ParseCompanyID(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token carries an invalid tenant"))
		return id.CompanyID{}, false
	}
	return companyID, true
}
