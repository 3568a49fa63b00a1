package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/storefront/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-that-is-long-enough-123", time.Hour)
}

func tokenFor(t *testing.T, svc *auth.JWTService, role string) string {
	t.Helper()
	token, _, err := svc.GenerateToken("user-1", "taro@example.com", role)
	require.NoError(t, err)
	return token
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

// ============================================
// ExtractToken Tests
// ============================================

func TestExtractToken_FromCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})

	assert.Equal(t, "cookie-token", ExtractToken(r))
}

func TestExtractToken_FromBearerHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer header-token")

	assert.Equal(t, "header-token", ExtractToken(r))
}

func TestExtractToken_CookieWinsOverHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})
	r.Header.Set("Authorization", "Bearer header-token")

	assert.Equal(t, "cookie-token", ExtractToken(r))
}

func TestExtractToken_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Empty(t, ExtractToken(r))
}

// ============================================
// Auth Middleware Tests
// ============================================

func TestAuth_ValidToken(t *testing.T) {
	svc := testJWTService()
	next, called := okHandler()
	handler := Auth(svc)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, "customer"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, *called)
}

func TestAuth_AddsClaimsToContext(t *testing.T) {
	svc := testJWTService()
	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
	})
	handler := Auth(svc)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, "customer"))

	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "user-1", gotUserID)
}

func TestAuth_MissingToken(t *testing.T) {
	next, called := okHandler()
	handler := Auth(testJWTService())(next)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, *called)
}

func TestAuth_InvalidToken(t *testing.T) {
	next, called := okHandler()
	handler := Auth(testJWTService())(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, *called)
}

// ============================================
// OptionalAuth Middleware Tests
// ============================================

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	next, called := okHandler()
	handler := OptionalAuth(testJWTService())(next)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, *called)
}

func TestOptionalAuth_ValidTokenAddsClaims(t *testing.T) {
	svc := testJWTService()
	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
	})
	handler := OptionalAuth(svc)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, "customer"))

	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "user-1", gotUserID)
}

func TestOptionalAuth_InvalidTokenStillPassesThrough(t *testing.T) {
	next, called := okHandler()
	handler := OptionalAuth(testJWTService())(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, *called)
}

// ============================================
// RequireRole Middleware Tests
// ============================================

func TestRequireRole_Allowed(t *testing.T) {
	svc := testJWTService()
	next, called := okHandler()
	handler := Auth(svc)(RequireRole("admin")(next))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, "admin"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, *called)
}

func TestRequireRole_Forbidden(t *testing.T) {
	svc := testJWTService()
	next, called := okHandler()
	handler := Auth(svc)(RequireRole("admin")(next))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tokenFor(t, svc, "customer"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, *called)
}

func TestRequireRole_NoClaims(t *testing.T) {
	next, called := okHandler()
	handler := RequireRole("admin")(next)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, *called)
}
