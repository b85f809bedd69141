// Package handler exposes integrity verification over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attest/internal/integrity"
	"attest/internal/platform/middleware"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/httputil"
)

// Service is the slice of the verifier the transport needs.
type Service interface {
	VerifyEvent(ctx context.Context, eventID id.EventID) (bool, error)
	VerifyReport(ctx context.Context, reportID id.ReportID) (bool, error)
	DetectTampering(ctx context.Context, entity integrity.EntityKind, entityID string) (*integrity.TamperReport, error)
}

// Handler wires integrity endpoints to the verifier.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts integrity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/integrity/events/{eventID}/verify", h.HandleVerifyEvent)
	r.Post("/integrity/reports/{reportID}/verify", h.HandleVerifyReport)
	r.Post("/integrity/tamper-check", h.HandleDetectTampering)
}

// HandleVerifyEvent handles POST /integrity/events/{eventID}/verify.
func (h *Handler) HandleVerifyEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid event id"))
		return
	}

	valid, err := h.service.VerifyEvent(ctx, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logVerification(ctx, "event", eventID.String(), valid)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// HandleVerifyReport handles POST /integrity/reports/{reportID}/verify.
func (h *Handler) HandleVerifyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid report id"))
		return
	}

	valid, err := h.service.VerifyReport(ctx, reportID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logVerification(ctx, "report", reportID.String(), valid)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// HandleDetectTampering handles POST /integrity/tamper-check.
func (h *Handler) HandleDetectTampering(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[struct {
		Entity   string `json:"entity"`
		EntityID string `json:"entityId"`
	}](w, r)
	if !ok {
		return
	}

	tamper, err := h.service.DetectTampering(ctx, integrity.EntityKind(req.Entity), req.EntityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if tamper == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"tampered": false})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tampered": true, "report": tamper})
}

func (h *Handler) logVerification(ctx context.Context, entity, entityID string, valid bool) {
	if valid {
		return
	}
	h.logger.WarnContext(ctx, "verification failed",
		"request_id", middleware.GetRequestID(ctx),
		"entity", entity,
		"entity_id", entityID,
	)
}
