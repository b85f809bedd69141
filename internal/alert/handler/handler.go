// Package handler exposes the alert lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"attest/internal/alert/models"
	"attest/internal/platform/middleware"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/httputil"
)

// Service is the slice of the alert service the transport needs.
type Service interface {
	Get(ctx context.Context, alertID id.AlertID) (models.Alert, error)
	List(ctx context.Context, companyID id.CompanyID, status models.Status, limit int) ([]models.Alert, error)
	Acknowledge(ctx context.Context, alertID id.AlertID, actor string) (models.Alert, error)
	Resolve(ctx context.Context, alertID id.AlertID, actor, resolution string) (models.Alert, error)
}

// Handler wires alert endpoints to the alert service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts alert endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/alerts", h.HandleList)
	r.Get("/alerts/{alertID}", h.HandleGet)
	r.Post("/alerts/{alertID}/acknowledge", h.HandleAcknowledge)
	r.Post("/alerts/{alertID}/resolve", h.HandleResolve)
}

// HandleList handles GET /alerts?status=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}

	status := models.Status(r.URL.Query().Get("status"))
	switch status {
	case "", models.StatusOpen, models.StatusAcknowledged, models.StatusResolved:
	default:
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", status))
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	alerts, err := h.service.List(ctx, companyID, status, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

// HandleGet handles GET /alerts/{alertID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	alert, ok := h.loadTenantAlert(w, r, companyID)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

// HandleAcknowledge handles POST /alerts/{alertID}/acknowledge.
func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	alert, ok := h.loadTenantAlert(w, r, companyID)
	if !ok {
		return
	}

	updated, err := h.service.Acknowledge(ctx, alert.AlertID, middleware.GetSubject(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleResolve handles POST /alerts/{alertID}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	alert, ok := h.loadTenantAlert(w, r, companyID)
	if !ok {
		return
	}

	req, ok := httputil.Decode[struct {
		Resolution string `json:"resolution"`
	}](w, r)
	if !ok {
		return
	}

	updated, err := h.service.Resolve(ctx, alert.AlertID, middleware.GetSubject(ctx), req.Resolution)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) loadTenantAlert(w http.ResponseWriter, r *http.Request, companyID id.CompanyID) (models.Alert, bool) {
	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid alert id"))
		return models.Alert{}, false
	}
	alert, err := h.service.Get(r.Context(), alertID)
	if err != nil {
		httputil.WriteError(w, err)
		return models.Alert{}, false
	}
	if alert.CompanyID != companyID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "alert not found"))
		return models.Alert{}, false
	}
	return alert, true
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
