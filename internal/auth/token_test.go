package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := NewServiceToken(secret, "admin-ui", time.Minute)
	require.NoError(t, err)

	subject, err := VerifyServiceToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "admin-ui", subject)
}

func TestVerifyServiceTokenWrongSecret(t *testing.T) {
	token, err := NewServiceToken([]byte("right"), "admin-ui", time.Minute)
	require.NoError(t, err)

	_, err = VerifyServiceToken([]byte("wrong"), token)
	assert.Error(t, err)
}

func TestVerifyServiceTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := NewServiceToken(secret, "admin-ui", -time.Minute)
	require.NoError(t, err)

	_, err = VerifyServiceToken(secret, token)
	assert.Error(t, err)
}

func TestVerifyServiceTokenGarbage(t *testing.T) {
	_, err := VerifyServiceToken([]byte("secret"), "not.a.token")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	logger := zerolog.New(io.Discard)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := Middleware(secret, logger)(next)

	t.Run("valid token passes", func(t *testing.T) {
		token, err := NewServiceToken(secret, "admin-ui", time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/questions", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/questions", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("forged token rejected", func(t *testing.T) {
		forged, err := NewServiceToken([]byte("other-secret"), "admin-ui", time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/questions", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("empty secret disables the check", func(t *testing.T) {
		open := Middleware(nil, logger)(next)
		rr := httptest.NewRecorder()
		open.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/questions", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
