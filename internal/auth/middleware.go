package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	httperrors "github.com/PluxCo/testing-platform-old/pkg/http/errors"
)

// Middleware requires a valid Bearer service token. With an empty secret
// the check is disabled, which is only acceptable for local development;
// the caller logs a warning in that case.
func Middleware(secret []byte, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthorized, "missing bearer token")
				return
			}
			if _, err := VerifyServiceToken(secret, raw); err != nil {
				logger.Warn().Err(err).Msg("service token rejected")
				httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "invalid service token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
