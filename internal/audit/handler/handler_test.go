package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/audit/models"
	"attest/internal/audit/service"
	"attest/internal/audit/store/event"
	"attest/internal/platform/middleware"
	"attest/internal/signing"
	id "attest/pkg/domain"
)

type fixture struct {
	handler  http.Handler
	recorder *service.Recorder
	store    *event.InMemoryStore
	company  id.CompanyID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keyring, err := signing.NewKeyring(map[string]string{"v1": strings.Repeat("ab", 32)}, "v1")
	require.NoError(t, err)
	store := event.NewInMemoryStore()
	recorder, err := service.New(store, signing.NewSigner(keyring))
	require.NoError(t, err)

	r := chi.NewRouter()
	New(recorder, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return &fixture{handler: r, recorder: recorder, store: store, company: id.CompanyID(uuid.New())}
}

func (f *fixture) do(t *testing.T, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		ctx := context.WithValue(req.Context(), middleware.ContextKeyCompanyID, f.company.String())
		ctx = context.WithValue(ctx, middleware.ContextKeySubject, "auditor@example.com")
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRecordEndpointPersistsAndReturnsID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/audit/events", `{
		"eventType": "DATA_CHANGE",
		"category": "DATA_CHANGE",
		"action": "UPDATE",
		"description": "changed retention policy"
	}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		EventID string `json:"eventId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	eventID, err := id.ParseEventID(resp.EventID)
	require.NoError(t, err)

	stored, err := f.store.GetByID(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, f.company, stored.CompanyID)
	assert.NotEmpty(t, stored.Checksum)
	assert.NotEmpty(t, stored.DigitalSignature)
}

func TestRecordEnrichesAccessEventsWithClientContext(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/audit/events", strings.NewReader(`{
		"eventType": "ACCESS_EVENT",
		"category": "DATA_ACCESS",
		"action": "DOWNLOAD",
		"description": "downloaded report"
	}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	ctx := context.WithValue(req.Context(), middleware.ContextKeyCompanyID, f.company.String())
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		EventID string `json:"eventId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	eventID, err := id.ParseEventID(resp.EventID)
	require.NoError(t, err)

	stored, err := f.store.GetByID(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", stored.Metadata["clientIp"])
	assert.Contains(t, stored.Metadata["browser"], "Chrome")
	assert.Equal(t, "Windows 10", stored.Metadata["os"])
	assert.Equal(t, false, stored.Metadata["mobile"])
}

func TestRecordRequiresAuthenticatedTenant(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/audit/events", `{"eventType":"ACCESS_EVENT","category":"DATA_ACCESS","action":"VIEW","description":"x"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecordRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/audit/events", `{"eventType":"ACCESS_EVENT","category":"DATA_ACCESS","action":"VIEW","description":"x","companyId":"spoofed"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEventHidesOtherTenants(t *testing.T) {
	f := newFixture(t)

	other := id.CompanyID(uuid.New())
	eventID, err := f.recorder.Record(context.Background(), models.RecordInput{
		CompanyID:   other,
		EventType:   models.EventTypeAccess,
		Category:    "DATA_ACCESS",
		Action:      "VIEW",
		Description: "someone else's event",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/audit/events/"+eventID.String(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListValidatesRange(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/audit/events?from=yesterday", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/audit/events?limit=-5", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurgeRequiresCutoff(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/audit/retention/purge", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
