// Package middleware contains HTTP middleware for the BWG compliance API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// WebhookSecretHeader carries the shared secret on detection callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

// =============================================================================
// Webhook Authentication
// =============================================================================

// WebhookAuthMiddleware authenticates detection workflow callbacks with a
// shared secret. The secret may also be sent as a bearer token.
type WebhookAuthMiddleware struct {
	secret  string
	enabled bool
	logger  *slog.Logger
}

// NewWebhookAuthMiddleware creates a new webhook auth middleware.
// An empty secret disables authentication.
func NewWebhookAuthMiddleware(secret string, logger *slog.Logger) *WebhookAuthMiddleware {
	return &WebhookAuthMiddleware{
		secret:  secret,
		enabled: secret != "",
		logger:  logger,
	}
}

// Handler returns middleware that rejects callbacks without the secret.
func (m *WebhookAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		presented := r.Header.Get(WebhookSecretHeader)
		if presented == "" {
			presented = bearerToken(r)
		}

		// Use constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(presented), []byte(m.secret)) != 1 {
			m.logger.Warn("webhook authentication failed",
				"ip", getClientIP(r),
				"path", r.URL.Path,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "unauthorized",
				"message": "Invalid webhook secret",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken returns the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
