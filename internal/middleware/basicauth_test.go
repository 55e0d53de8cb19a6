package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBasicAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		password   string
		setAuth    func(r *http.Request)
		wantStatus int
	}{
		{
			name:     "valid credentials",
			username: "prom", password: "scrape",
			setAuth:    func(r *http.Request) { r.SetBasicAuth("prom", "scrape") },
			wantStatus: http.StatusOK,
		},
		{
			name:     "no credentials",
			username: "prom", password: "scrape",
			setAuth:    func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:     "wrong username",
			username: "prom", password: "scrape",
			setAuth:    func(r *http.Request) { r.SetBasicAuth("admin", "scrape") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:     "wrong password",
			username: "prom", password: "scrape",
			setAuth:    func(r *http.Request) { r.SetBasicAuth("prom", "wrong") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:     "malformed header",
			username: "prom", password: "scrape",
			setAuth:    func(r *http.Request) { r.Header.Set("Authorization", "Basic !!!notbase64") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "disabled without credentials",
			setAuth:    func(r *http.Request) {},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			mw := NewBasicAuthMiddleware("metrics", tt.username, tt.password)

			req := httptest.NewRequest("GET", "/metrics", nil)
			tt.setAuth(req)
			rec := httptest.NewRecorder()

			mw.Handler(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="metrics"` {
					t.Errorf("unexpected WWW-Authenticate header %q", got)
				}
			}
		})
	}
}
