// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers header and query token extraction and 401 responses

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		query   string
		want    string
		wantErr bool
	}{
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "query param", query: "?token=xyz", want: "xyz"},
		{name: "header wins over query", header: "Bearer abc", query: "?token=xyz", want: "abc"},
		{name: "missing", wantErr: true},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "empty bearer", header: "Bearer ", wantErr: true},
		{name: "empty query", query: "?token=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			got, err := TokenFromRequest(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPAuthMiddleware(t *testing.T) {
	verifier := newTestVerifier(t)
	valid, err := verifier.Generate("alice@example.com", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Generate("alice@example.com", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name         string
		target       string
		header       string
		wantStatus   int
		wantIdentity string
		wantBody     string
	}{
		{name: "valid header", target: "/ws", header: "Bearer " + valid, wantStatus: http.StatusOK, wantIdentity: "alice@example.com"},
		{name: "valid query", target: "/ws?token=" + valid, wantStatus: http.StatusOK, wantIdentity: "alice@example.com"},
		{name: "missing", target: "/ws", wantStatus: http.StatusUnauthorized, wantBody: "missing token"},
		{name: "malformed", target: "/ws?token=garbage", wantStatus: http.StatusUnauthorized, wantBody: "invalid token"},
		{name: "expired", target: "/ws?token=" + expired, wantStatus: http.StatusUnauthorized, wantBody: "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			var gotIdentity string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				gotIdentity, _ = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			HTTPAuthMiddleware(verifier, nil)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, called)
				assert.Equal(t, tt.wantIdentity, gotIdentity)
			} else {
				assert.False(t, called, "handler must not run on auth failure")
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
