package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestClerkAuthRejectsMissingHeader(t *testing.T) {
	for _, header := range []string{"", "Token abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		ClerkAuthMiddleware(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestAdminOnly(t *testing.T) {
	guard := AdminOnly(func(id string) bool { return id == "user_admin" })(okHandler)

	tests := []struct {
		name    string
		clerkID string
		want    int
	}{
		{name: "admin", clerkID: "user_admin", want: http.StatusNoContent},
		{name: "regular user", clerkID: "user_regular", want: http.StatusForbidden},
		{name: "anonymous", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/submission/1", nil)
			if tt.clerkID != "" {
				req = req.WithContext(WithClerkID(req.Context(), tt.clerkID))
			}
			rec := httptest.NewRecorder()
			guard.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	h := limiter.Middleware(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	limiter.evictIdle(time.Now().Add(time.Hour))
	assert.Empty(t, limiter.visitors)
}

func TestBasicAuthMiddleware(t *testing.T) {
	h := BasicAuthMiddleware("prom", "secret")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.SetBasicAuth("prom", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	locked := BasicAuthMiddleware("", "")(okHandler)
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("", "")
	rec = httptest.NewRecorder()
	locked.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMonitorMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MonitorMiddleware)
	var seen string
	r.HandleFunc("/api/v1/submission/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = routePath(r)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/submission/abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "/api/v1/submission/{id}", seen)
}
