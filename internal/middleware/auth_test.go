package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		secret     string
		header     string
		value      string
		wantStatus int
	}{
		{name: "disabled passes through", secret: "", wantStatus: http.StatusOK},
		{name: "missing secret", secret: "s3cret", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", secret: "s3cret", header: WebhookSecretHeader, value: "nope", wantStatus: http.StatusUnauthorized},
		{name: "secret header", secret: "s3cret", header: WebhookSecretHeader, value: "s3cret", wantStatus: http.StatusOK},
		{name: "bearer token", secret: "s3cret", header: "Authorization", value: "Bearer s3cret", wantStatus: http.StatusOK},
		{name: "bearer token case insensitive", secret: "s3cret", header: "Authorization", value: "bearer s3cret", wantStatus: http.StatusOK},
		{name: "basic auth is not accepted", secret: "s3cret", header: "Authorization", value: "Basic s3cret", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			mw := NewWebhookAuthMiddleware(tt.secret, logger)
			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/n8n-callback", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()

			mw.Handler(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}
