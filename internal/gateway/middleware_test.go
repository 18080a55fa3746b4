package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/config"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

type stubValidator struct {
	claims *types.UserClaims
	err    error
}

func (v *stubValidator) ValidateJWT(token string) (*types.UserClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func testServer(validator *stubValidator) *Server {
	return &Server{
		config:         &config.Config{},
		logger:         logger.New("debug"),
		tokenValidator: validator,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func receptionClaims() *types.UserClaims {
	return &types.UserClaims{
		UserID:      "user-1",
		Role:        types.RoleReception,
		SiteID:      types.SiteCentro,
		Permissions: []string{"agenda:*", "patients:read"},
	}
}

func withClaims(r *http.Request, claims *types.UserClaims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), types.ClaimsContextKey, claims))
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	server := testServer(&stubValidator{claims: receptionClaims()})

	req := httptest.NewRequest("GET", "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()

	server.authMiddleware(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	server := testServer(&stubValidator{claims: receptionClaims()})

	for _, header := range []string{"token-without-scheme", "Basic dXNlcg=="} {
		req := httptest.NewRequest("GET", "/api/v1/appointments", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		server.authMiddleware(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	server := testServer(&stubValidator{err: types.NewAuthenticationError(types.ErrCodeUnauthorized, "expired")})

	req := httptest.NewRequest("GET", "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()

	server.authMiddleware(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_InjectsClaims(t *testing.T) {
	claims := receptionClaims()
	server := testServer(&stubValidator{claims: claims})

	var seen *types.UserClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(types.ClaimsContextKey).(*types.UserClaims)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	server.authMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, claims.UserID, seen.UserID)
}

func TestRequireModule_WildcardGrantsAllActions(t *testing.T) {
	server := testServer(nil)
	handler := server.requireModule("agenda")(okHandler())

	for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
		req := withClaims(httptest.NewRequest(method, "/api/v1/appointments", nil), receptionClaims())
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "method %s", method)
	}
}

func TestRequireModule_DeniesOutsideModule(t *testing.T) {
	server := testServer(nil)
	handler := server.requireModule("billing")(okHandler())

	req := withClaims(httptest.NewRequest("GET", "/api/v1/invoices", nil), receptionClaims())
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireModule_ActionSubPathCountsAsUpdate(t *testing.T) {
	server := testServer(nil)
	handler := server.requireModule("agenda")(okHandler())

	claims := &types.UserClaims{
		UserID:      "dentist-1",
		Role:        types.RoleDentist,
		Permissions: []string{"agenda:read", "agenda:update"},
	}

	// Check-in is an update of an existing appointment, not a creation.
	req := withClaims(httptest.NewRequest("POST", "/api/v1/appointments/apt-1/checkin", nil), claims)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Booking a new appointment needs agenda:create, which a dentist lacks.
	req = withClaims(httptest.NewRequest("POST", "/api/v1/appointments", nil), claims)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireModule_OwnerBypassesChecks(t *testing.T) {
	server := testServer(nil)
	handler := server.requireModule("billing")(okHandler())

	claims := &types.UserClaims{UserID: "owner-1", Role: types.RoleOwner}
	req := withClaims(httptest.NewRequest("DELETE", "/api/v1/invoices/inv-1", nil), claims)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireModule_NoClaims(t *testing.T) {
	server := testServer(nil)
	handler := server.requireModule("agenda")(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	server := testServer(nil)
	handler := server.requireRole(types.RoleOwner, types.RoleSiteManager)(okHandler())

	req := withClaims(httptest.NewRequest("GET", "/api/v1/users", nil),
		&types.UserClaims{UserID: "mgr-1", Role: types.RoleSiteManager})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = withClaims(httptest.NewRequest("GET", "/api/v1/users", nil), receptionClaims())
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitMiddleware_RejectsWhenExhausted(t *testing.T) {
	server := testServer(nil)
	server.limiter = NewBucketLimiter(&config.RateLimitConfig{RequestsPerMin: 60, BurstSize: 2})

	handler := server.rateLimitMiddleware(okHandler())
	claims := receptionClaims()

	for i := 0; i < 2; i++ {
		req := withClaims(httptest.NewRequest("GET", "/api/v1/appointments", nil), claims)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req := withClaims(httptest.NewRequest("GET", "/api/v1/appointments", nil), claims)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitMiddleware_DisabledLimiterPassesThrough(t *testing.T) {
	server := testServer(nil)

	req := httptest.NewRequest("GET", "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()

	server.rateLimitMiddleware(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActionForRequest(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"GET", "/api/v1/appointments", "read"},
		{"POST", "/api/v1/appointments", "create"},
		{"POST", "/api/v1/appointments/apt-1/reschedule", "update"},
		{"POST", "/api/v1/appointments/apt-1/no-show", "update"},
		{"POST", "/api/v1/users/u-1/mfa/verify", "update"},
		{"PUT", "/api/v1/appointments/apt-1", "update"},
		{"DELETE", "/api/v1/appointments/apt-1", "delete"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		assert.Equal(t, tt.want, actionForRequest(req), "%s %s", tt.method, tt.path)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	server := testServer(nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	server.securityHeadersMiddleware(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	server := testServer(nil)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest("OPTIONS", "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()

	server.corsMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
