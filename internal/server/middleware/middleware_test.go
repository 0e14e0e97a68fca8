package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestAuth(t *testing.T) {
	h := Auth("secret", "/api/health")(okHandler)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing token", "/api/markets", nil, http.StatusUnauthorized},
		{"wrong token", "/api/markets", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"bearer", "/api/markets", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"api key header", "/api/markets", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"public path", "/api/health", nil, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, serve(h, r).Code)
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	assert.Equal(t, http.StatusOK, serve(Auth("")(okHandler), r).Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(okHandler)

	r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	rec := serve(h, r)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	r.Header.Set("Origin", "http://evil.example")
	rec = serve(h, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/api/markets", nil)
	assert.Equal(t, http.StatusNoContent, serve(h, r).Code)
}

func TestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	serve(h, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/x"`)
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	denied := &stubLimiter{allow: false}
	r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	rec := serve(RateLimit(denied, 1, 2*time.Second, logger)(okHandler), r)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Len(t, denied.keys, 1)
	assert.Equal(t, "api:10.0.0.1", denied.keys[0])

	broken := &stubLimiter{err: errors.New("redis down")}
	r = httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	assert.Equal(t, http.StatusOK, serve(RateLimit(broken, 1, time.Second, logger)(okHandler), r).Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(r))
}
