package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func serveLogged(t *testing.T, status int, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	rec := httptest.NewRecorder()
	NewRequestLoggingMiddleware(logger).Handler(handler).ServeHTTP(rec, req)
	return buf.String(), rec
}

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/reports", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	logOutput, _ := serveLogged(t, http.StatusOK, req)

	for _, want := range []string{"GET", "/api/reports", "200", "duration", "192.168.1.1", "request_id"} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("log should contain %q, got: %s", want, logOutput)
		}
	}
}

func TestRequestLoggingMiddleware_LogsClientIPFromProxy(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/leaderboard", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.195")

	logOutput, _ := serveLogged(t, http.StatusOK, req)

	if !strings.Contains(logOutput, "203.0.113.195") {
		t.Errorf("log should contain client IP from X-Forwarded-For, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_ServerErrorsLogAtWarn(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/reports", nil)

	logOutput, _ := serveLogged(t, http.StatusInternalServerError, req)

	if !strings.Contains(logOutput, "level=WARN") {
		t.Errorf("5xx should log at WARN, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "500") {
		t.Errorf("log should contain status 500, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_RequestID(t *testing.T) {
	t.Run("generated when absent", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/reports", nil)
		_, rec := serveLogged(t, http.StatusOK, req)

		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected a generated request id header")
		}
	})

	t.Run("incoming id is kept", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/reports", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		logOutput, rec := serveLogged(t, http.StatusOK, req)

		if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("expected request id abc-123, got %q", got)
		}
		if !strings.Contains(logOutput, "abc-123") {
			t.Errorf("log should contain request id, got: %s", logOutput)
		}
	})
}

func TestRequestLoggingMiddleware_DoesNotLogSensitiveQueryParams(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/webhooks/n8n-callback?secret=hunter2&status=COMPLETED", nil)

	logOutput, _ := serveLogged(t, http.StatusOK, req)

	if strings.Contains(logOutput, "hunter2") {
		t.Errorf("log should not contain secret value, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "[REDACTED]") {
		t.Errorf("log should contain redaction marker, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "status=COMPLETED") {
		t.Errorf("log should keep non-sensitive params, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_ExcludesProbes(t *testing.T) {
	for _, path := range []string{"/health", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			logOutput, rec := serveLogged(t, http.StatusOK, req)

			if logOutput != "" {
				t.Errorf("%s should not be logged, got: %s", path, logOutput)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("expected request to pass through, got %d", rec.Code)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{name: "no query", path: "/api/reports", want: "/api/reports"},
		{name: "safe params", path: "/api/reports", rawQuery: "status=PENDING&limit=10", want: "/api/reports?status=PENDING&limit=10"},
		{name: "token redacted", path: "/x", rawQuery: "token=abc", want: "/x?token=[REDACTED]"},
		{name: "case insensitive", path: "/x", rawQuery: "API_KEY=abc", want: "/x?API_KEY=[REDACTED]"},
		{name: "malformed params dropped", path: "/x", rawQuery: "flag", want: "/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizePath(tt.path, tt.rawQuery); got != tt.want {
				t.Errorf("sanitizePath() = %q, want %q", got, tt.want)
			}
		})
	}
}
