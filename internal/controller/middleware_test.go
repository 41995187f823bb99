package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/bookings", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "unauthorized", resp.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestAuthRejectsForeignSignature(t *testing.T) {
	api := newTestAPI(t)

	tok, err := IssueToken("other-secret", student, time.Hour, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := api.serve(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	api := newTestAPI(t)

	tok, err := IssueToken(testSecret, student, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := api.serve(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/wallet/balance", &student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Code)

	rec = api.do(t, http.MethodPost, "/refunds/student", &teacher, refundRequest{ConfirmationID: 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := api.serve(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = api.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestParseToken(t *testing.T) {
	tok, err := IssueToken(testSecret, teacher, time.Hour, time.Now())
	require.NoError(t, err)

	actor, err := ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, teacher, actor)

	t.Run("unknown role", func(t *testing.T) {
		claims := Claims{
			Role: "superuser",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "10",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = ParseToken(testSecret, raw)
		assert.Error(t, err)
	})

	t.Run("non numeric subject", func(t *testing.T) {
		claims := Claims{
			Role: string(model.RoleStudent),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "abc",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = ParseToken(testSecret, raw)
		assert.Error(t, err)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := Claims{
			Role:             string(model.RoleStudent),
			RegisteredClaims: jwt.RegisteredClaims{Subject: "20"},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = ParseToken(testSecret, raw)
		assert.Error(t, err)
	})
}
