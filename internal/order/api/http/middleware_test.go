package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	api "comandero/internal/order/api/http"
	"comandero/internal/order/adapter/identity"
	"comandero/internal/order/api/http/handle"
	"comandero/internal/order/app/core"
	"comandero/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireBearerToken(t *testing.T) {
	mylog, err := logger.New("ERROR")
	require.NoError(t, err)

	var seen *core.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := r.Context().Value(handle.ClaimsKey).(core.Claims); ok {
			seen = &claims
		}
		w.WriteHeader(http.StatusNoContent)
	})
	protected := api.NewAuthMiddleware(identity.NewVerifier(), mylog).Require(next)

	// No Authorization header.
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)

	// Wrong scheme.
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Undecodable token.
	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer %%%")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token reaches the handler with claims attached.
	claims := core.Claims{Role: core.RoleRider, TenantID: 2, ActorID: 5}
	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+identity.Encode(claims))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, claims, *seen)
}
