// ABOUTME: HTTP middleware for JWT authentication at connection handshake
// ABOUTME: Extracts the token from the Authorization header or token query parameter

package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// ErrMissingToken is returned when a request carries no credential.
var ErrMissingToken = errors.New("missing token")

// TokenQueryParam is the query parameter browsers use to pass a token to a
// websocket endpoint, since they cannot set headers on the upgrade request.
const TokenQueryParam = "token"

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// TokenFromRequest returns the credential presented by r. An Authorization
// header takes precedence over the query parameter.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, errMsg := extractBearerToken(header)
		if errMsg != "" {
			return "", errors.New(errMsg)
		}
		return token, nil
	}
	if token := r.URL.Query().Get(TokenQueryParam); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// HTTPAuthMiddleware creates an HTTP middleware that validates the request's
// token and adds the identity to the request context. Requests without a
// valid token are refused with 401 before reaching next.
func HTTPAuthMiddleware(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r)
			if err != nil {
				logger.Debug("rejected request without token", "remote", r.RemoteAddr, "error", err)
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusUnauthorized)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected request with bad token", "remote", r.RemoteAddr, "error", err)
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "token expired"
				}
				http.Error(w, `{"error":"`+msg+`"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
