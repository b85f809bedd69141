// Package handler exposes the audit trail over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"attest/internal/audit/models"
	"attest/internal/platform/middleware"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/httputil"
)

// Service is the slice of the recorder the transport needs.
type Service interface {
	Record(ctx context.Context, in models.RecordInput) (id.EventID, error)
	GetEvent(ctx context.Context, eventID id.EventID) (models.AuditEvent, error)
	ListEvents(ctx context.Context, companyID id.CompanyID, from, to time.Time, limit int) ([]models.AuditEvent, error)
	PurgeBefore(ctx context.Context, companyID id.CompanyID, cutoff time.Time, purgedBy string) (int64, error)
}

// Handler wires audit endpoints to the recorder.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/audit/events", h.HandleRecord)
	r.Get("/audit/events", h.HandleList)
	r.Get("/audit/events/{eventID}", h.HandleGet)
	r.Post("/audit/retention/purge", h.HandlePurge)
}

// RecordRequest is the wire form of a record call. Tenant identity comes
// from the bearer token, never the body.
type RecordRequest struct {
	Timestamp     time.Time        `json:"timestamp,omitzero"`
	UserID        string           `json:"userId,omitempty"`
	UserEmail     string           `json:"userEmail,omitempty"`
	EventType     models.EventType `json:"eventType"`
	Category      string           `json:"category"`
	Severity      models.Severity  `json:"severity,omitempty"`
	Outcome       models.Outcome   `json:"outcome,omitempty"`
	Action        string           `json:"action"`
	Description   string           `json:"description"`
	ResourceType  string           `json:"resourceType,omitempty"`
	ResourceID    string           `json:"resourceId,omitempty"`
	OldValues     map[string]any   `json:"oldValues,omitempty"`
	NewValues     map[string]any   `json:"newValues,omitempty"`
	ChangedFields []string         `json:"changedFields,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}

// HandleRecord handles POST /audit/events.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[RecordRequest](w, r)
	if !ok {
		return
	}

	var userID id.UserID
	if req.UserID != "" {
		parsed, err := id.ParseUserID(req.UserID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "userId is not a valid uuid"))
			return
		}
		userID = parsed
	}

	in := models.RecordInput{
		Timestamp:     req.Timestamp,
		CompanyID:     companyID,
		UserID:        userID,
		UserEmail:     req.UserEmail,
		EventType:     req.EventType,
		Category:      req.Category,
		Severity:      req.Severity,
		Outcome:       req.Outcome,
		Action:        req.Action,
		Description:   req.Description,
		ResourceType:  req.ResourceType,
		ResourceID:    req.ResourceID,
		OldValues:     req.OldValues,
		NewValues:     req.NewValues,
		ChangedFields: req.ChangedFields,
		Tags:          req.Tags,
		Metadata:      req.Metadata,
	}
	if in.EventType == models.EventTypeAccess {
		in.Metadata = enrichAccessMetadata(in.Metadata, r)
	}

	eventID, err := h.service.Record(ctx, in)
	if err != nil {
		h.logger.ErrorContext(ctx, "record event failed",
			"request_id", middleware.GetRequestID(ctx),
			"company_id", companyID,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"eventId": eventID.String()})
}

// HandleGet handles GET /audit/events/{eventID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid event id"))
		return
	}

	event, err := h.service.GetEvent(ctx, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if event.CompanyID != companyID {
		// Cross-tenant reads look identical to missing records.
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "audit event not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

// HandleList handles GET /audit/events?from=&to=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
	}

	events, err := h.service.ListEvents(ctx, companyID, from, to, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// HandlePurge handles POST /audit/retention/purge.
func (h *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.Decode[struct {
		Cutoff time.Time `json:"cutoff"`
	}](w, r)
	if !ok {
		return
	}
	if req.Cutoff.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "cutoff is required"))
		return
	}

	purged, err := h.service.PurgeBefore(ctx, companyID, req.Cutoff, middleware.GetSubject(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "retention purge failed",
			"request_id", middleware.GetRequestID(ctx),
			"company_id", companyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"purged": purged})
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

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now()
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, dErrors.New(dErrors.CodeInvalidInput, "from must be RFC3339")
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, dErrors.New(dErrors.CodeInvalidInput, "to must be RFC3339")
		}
		to = parsed
	}
	return from, to, nil
}

// enrichAccessMetadata stamps access events with the caller's client
// context so investigations can pivot on device and origin.
func enrichAccessMetadata(metadata map[string]any, r *http.Request) map[string]any {
	if metadata == nil {
		metadata = make(map[string]any, 4)
	}
	if _, set := metadata["clientIp"]; !set {
		metadata["clientIp"] = clientIP(r)
	}
	if raw := r.UserAgent(); raw != "" {
		if _, set := metadata["userAgent"]; !set {
			metadata["userAgent"] = raw
		}
		ua := useragent.New(raw)
		browser, version := ua.Browser()
		if _, set := metadata["browser"]; !set && browser != "" {
			metadata["browser"] = browser + " " + version
		}
		if _, set := metadata["os"]; !set && ua.OS() != "" {
			metadata["os"] = ua.OS()
		}
		if _, set := metadata["mobile"]; !set {
			metadata["mobile"] = ua.Mobile()
		}
	}
	return metadata
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
