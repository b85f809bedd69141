// Package handler exposes audit search over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	auditmodels "attest/internal/audit/models"
	"attest/internal/platform/middleware"
	"attest/internal/search"
	"attest/internal/search/metrics"
	id "attest/pkg/domain"
	dErrors "attest/pkg/domain-errors"
	"attest/pkg/platform/httputil"
)

// Handler wires the search endpoint to an Indexer.
type Handler struct {
	searcher search.Searcher
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(searcher search.Searcher, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{searcher: searcher, logger: logger, metrics: m}
}

// Register mounts search endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/search/events", h.HandleSearch)
}

// SearchRequest is the wire form of a query. The tenant filter comes from
// the bearer token.
type SearchRequest struct {
	Period       search.Period               `json:"period,omitzero"`
	EventTypes   []auditmodels.EventType     `json:"eventTypes,omitempty"`
	Categories   []string                    `json:"categories,omitempty"`
	Severities   []auditmodels.Severity      `json:"severities,omitempty"`
	UserID       string                      `json:"userId,omitempty"`
	ResourceType string                      `json:"resourceType,omitempty"`
	FreeText     string                      `json:"freeText,omitempty"`
	Aggregations []search.AggregationRequest `json:"aggregations,omitempty"`
	Size         int                         `json:"size,omitempty"`
	From         int                         `json:"from,omitempty"`
}

// HandleSearch handles POST /search/events.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := time.Now()

	companyID, ok := authedCompany(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.Decode[SearchRequest](w, r)
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

	result, err := h.searcher.Search(ctx, search.Criteria{
		CompanyID:    companyID,
		Period:       req.Period,
		EventTypes:   req.EventTypes,
		Categories:   req.Categories,
		Severities:   req.Severities,
		UserID:       userID,
		ResourceType: req.ResourceType,
		FreeText:     req.FreeText,
		Aggregations: req.Aggregations,
		Size:         req.Size,
		From:         req.From,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "search failed",
			"request_id", middleware.GetRequestID(ctx),
			"company_id", companyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.metrics.ObserveSearch(time.Since(started))
	httputil.WriteJSON(w, http.StatusOK, result)
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
