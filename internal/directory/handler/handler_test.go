package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulbound/internal/directory/service"
	"soulbound/internal/directory/store"
	"soulbound/pkg/platform/middleware/admin"
)

const adminToken = "governance-token"

func newGovernanceRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(store.NewMemory(), service.WithLogger(logger))
	require.NoError(t, err)

	h := New(svc, logger)
	r := chi.NewRouter()
	r.Use(admin.RequireAdminToken(adminToken, logger))
	h.Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGovernanceRequiresAdminToken(t *testing.T) {
	router := newGovernanceRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/governance/issuers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterIssuer(t *testing.T) {
	router := newGovernanceRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/governance/issuers", map[string]any{
		"issuer_id": "gov.university",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		IssuerID string `json:"issuer_id"`
		Created  bool   `json:"created"`
		APIKey   string `json:"api_key"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "gov.university", resp.IssuerID)
	assert.True(t, resp.Created)
	assert.NotEmpty(t, resp.APIKey)

	// Re-registering reports created=false without a fresh key.
	rec = doJSON(t, router, http.MethodPost, "/governance/issuers", map[string]any{
		"issuer_id": "gov.university",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Created)
	assert.Empty(t, resp.APIKey)
}

func TestRegisterIssuerValidation(t *testing.T) {
	router := newGovernanceRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/governance/issuers", map[string]any{
		"issuer_id": "Bad Issuer!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGrantLifecycle(t *testing.T) {
	router := newGovernanceRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/governance/issuers", map[string]any{
		"issuer_id": "gov.university",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/governance/issuers/gov.university/grants", map[string]any{
		"class_id": "degree",
		"quota":    5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/governance/issuers/gov.university", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var issuer struct {
		IssuerID string `json:"issuer_id"`
		Banned   bool   `json:"banned"`
		Grants   []struct {
			ClassID   string `json:"class_id"`
			Quota     int64  `json:"quota"`
			Remaining int64  `json:"remaining"`
		} `json:"grants"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&issuer))
	require.Len(t, issuer.Grants, 1)
	assert.Equal(t, "degree", issuer.Grants[0].ClassID)
	assert.EqualValues(t, 5, issuer.Grants[0].Quota)
	assert.EqualValues(t, 5, issuer.Grants[0].Remaining)

	rec = doJSON(t, router, http.MethodDelete, "/governance/issuers/gov.university/grants/degree", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/governance/issuers/gov.university/grants/degree", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBanUnban(t *testing.T) {
	router := newGovernanceRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/governance/issuers", map[string]any{
		"issuer_id": "gov.university",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/governance/issuers/gov.university/ban", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/governance/issuers/gov.university", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var issuer struct {
		Banned bool `json:"banned"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&issuer))
	assert.True(t, issuer.Banned)

	rec = doJSON(t, router, http.MethodPost, "/governance/issuers/gov.university/unban", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/governance/issuers/nobody/ban", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListIssuers(t *testing.T) {
	router := newGovernanceRouter(t)
	for _, issuerID := range []string{"alpha.issuer", "beta.issuer"} {
		rec := doJSON(t, router, http.MethodPost, "/governance/issuers", map[string]any{
			"issuer_id": issuerID,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/governance/issuers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Issuers []struct {
			IssuerID string `json:"issuer_id"`
		} `json:"issuers"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Issuers, 2)
	assert.Equal(t, "alpha.issuer", resp.Issuers[0].IssuerID)
	assert.Equal(t, "beta.issuer", resp.Issuers[1].IssuerID)
}
