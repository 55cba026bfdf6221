package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "unit-test-secret-0123456789-abcdef"
	testIssuer   = "arcbank-cbs"
	testAudience = "arcbank-api"
)

func mintToken(t *testing.T, secret string, mutate func(*authClaims)) string {
	t.Helper()
	claims := &authClaims{
		UserID: "user-42",
		Role:   "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protected(t *testing.T) (http.Handler, *string) {
	var gotUser string
	a := NewAuthenticator(testSecret, testIssuer, testAudience)
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &gotUser
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	h, gotUser := protected(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-42", *gotUser)
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	h, _ := protected(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestAuthMiddlewareWrongSecret(t *testing.T) {
	h, _ := protected(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "another-secret-that-is-long-enough", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareWrongIssuer(t *testing.T) {
	h, _ := protected(t)

	token := mintToken(t, testSecret, func(c *authClaims) { c.Issuer = "someone-else" })
	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareSubjectMismatch(t *testing.T) {
	h, _ := protected(t)

	token := mintToken(t, testSecret, func(c *authClaims) { c.Subject = "user-99" })
	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	h, _ := protected(t)

	token := mintToken(t, testSecret, func(c *authClaims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
