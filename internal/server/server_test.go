package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/donatemarket/internal/market"
	"github.com/alanyoungcy/donatemarket/internal/service"
)

type countingLimiter struct {
	remaining int
}

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	if l.remaining <= 0 {
		return false, nil
	}
	l.remaining--
	return true, nil
}

func newTestHandler(cfg Config, limiter *countingLimiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewMarketService(market.NewRegistry(), logger)
	if limiter == nil {
		return NewHandler(cfg, svc, nil, nil, logger)
	}
	return NewHandler(cfg, svc, nil, limiter, logger)
}

func request(h http.Handler, method, path, body string, header map[string]string) int {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func TestRoutesRequireAPIKey(t *testing.T) {
	h := newTestHandler(Config{Mode: "server", APIKey: "k"}, nil)

	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/api/health", "", nil))
	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/", "", nil))
	assert.Equal(t, http.StatusUnauthorized, request(h, http.MethodGet, "/api/markets", "", nil))
	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/api/markets", "", map[string]string{"X-API-Key": "k"}))
}

func TestWebsocketRouteAbsentWithoutHub(t *testing.T) {
	h := newTestHandler(Config{Mode: "server"}, nil)
	assert.Equal(t, http.StatusNotFound, request(h, http.MethodGet, "/ws", "", nil))
}

func TestUnknownMethodRejected(t *testing.T) {
	h := newTestHandler(Config{Mode: "server"}, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, request(h, http.MethodDelete, "/api/markets", "", nil))
}

func TestRateLimitApplied(t *testing.T) {
	h := newTestHandler(Config{Mode: "full", RateLimit: 1, RateLimitWindow: time.Second}, &countingLimiter{remaining: 1})

	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/api/status", "", nil))
	assert.Equal(t, http.StatusTooManyRequests, request(h, http.MethodGet, "/api/status", "", nil))
}

func TestHistoryRoutesEmptyInServerMode(t *testing.T) {
	h := newTestHandler(Config{Mode: "server"}, nil)

	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/api/audit", "", nil))
	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/api/events", "", nil))
	assert.Equal(t, http.StatusOK, request(h, http.MethodGet, "/api/settlements", "", nil))
}
