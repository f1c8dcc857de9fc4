package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathTenant(t *testing.T) {
	assert.Equal(t, "acme", pathTenant("/v1/acme/code"))
	assert.Equal(t, "acme", pathTenant("/v1/acme"))
	assert.Equal(t, "-", pathTenant("/health"))
	assert.Equal(t, "-", pathTenant("/v1/"))
}

func TestRequireValidTenant(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireValidTenant(next)

	do := func(path, authTenant string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authTenant != "" {
			req = req.WithContext(context.WithValue(req.Context(), TenantKey, authTenant))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do("/v1/acme/summary", "acme"))
	// unauthenticated requests only get format validation
	assert.Equal(t, http.StatusNoContent, do("/v1/acme/summary", ""))
	assert.Equal(t, http.StatusForbidden, do("/v1/other/summary", "acme"))
	assert.Equal(t, http.StatusBadRequest, do("/v1/-bad-/summary", "acme"))
	// monitoring endpoints bypass the check
	assert.Equal(t, http.StatusNoContent, do("/metrics", ""))
}

func TestAPIKeyAuth(t *testing.T) {
	keys := map[string]string{"acme": "secret-key"}
	var seenTenant string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTenant = GetTenantFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := APIKeyAuth(keys)(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/acme/summary", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "acme", seenTenant)

	req = httptest.NewRequest(http.MethodGet, "/v1/acme/summary", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
