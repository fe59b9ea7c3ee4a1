package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendingstore/internal/service"
)

func newTestServer(t *testing.T, tokens *service.TokenService, mw ...echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	e := echo.New()
	handlers := append([]echo.MiddlewareFunc{BearerAuth(tokens)}, mw...)
	e.GET("/protected", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, echo.Map{
			"user_id":  id.UserID,
			"username": id.Username,
			"role":     id.Role,
		})
	}, handlers...)
	return e
}

func issueToken(t *testing.T, tokens *service.TokenService, userID uint64, username, role string) string {
	t.Helper()
	raw, err := tokens.GenerateToken(userID, username, role)
	require.NoError(t, err)
	return raw
}

func TestBearerAuthAcceptsValidToken(t *testing.T) {
	tokens := service.NewTokenService("secret", "vendingstore", time.Hour, time.Hour, nil)
	e := newTestServer(t, tokens)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, tokens, 42, "alice", "user"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":42`)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
}

func TestBearerAuthRejectsBadRequests(t *testing.T) {
	tokens := service.NewTokenService("secret", "vendingstore", time.Hour, time.Hour, nil)
	other := service.NewTokenService("other-secret", "vendingstore", time.Hour, time.Hour, nil)
	e := newTestServer(t, tokens)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + issueToken(t, other, 42, "alice", "user")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "unauthorized")
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := service.NewTokenService("secret", "vendingstore", time.Hour, time.Hour, nil)
	e := newTestServer(t, tokens, RequireRole("admin"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, tokens, 1, "root", "admin"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, tokens, 2, "alice", "user"))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
