// Package server assembles the HTTP API: routes, middleware and the optional
// websocket stream.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/donatemarket/internal/domain"
	"github.com/alanyoungcy/donatemarket/internal/server/handler"
	"github.com/alanyoungcy/donatemarket/internal/server/middleware"
	"github.com/alanyoungcy/donatemarket/internal/server/ws"
	"github.com/alanyoungcy/donatemarket/internal/service"
)

// Config holds the HTTP-facing settings.
type Config struct {
	Mode        string
	CORSOrigins []string
	// APIKey enables authentication when set. /api/health and / stay open.
	APIKey string
	// RateLimit is requests per RateLimitWindow per client IP. It only
	// applies when a limiter is passed to NewHandler.
	RateLimit       int
	RateLimitWindow time.Duration
	StartedAt       time.Time
}

// NewHandler registers every route and wraps the mux in CORS, logging,
// optional rate limiting and auth. hub and limiter may be nil.
func NewHandler(cfg Config, markets *service.MarketService, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	health := handler.NewHealthHandler()
	mux.HandleFunc("GET /{$}", health.Root)
	mux.HandleFunc("GET /api/health", health.HealthCheck)

	status := handler.NewStatusHandler(cfg.Mode, markets, cfg.StartedAt)
	mux.HandleFunc("GET /api/status", status.GetStatus)

	mh := handler.NewMarketHandler(markets, logger)
	mux.HandleFunc("GET /api/markets", mh.ListMarkets)
	mux.HandleFunc("POST /api/markets", mh.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", mh.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/stakes", mh.PlaceStake)
	mux.HandleFunc("POST /api/markets/{id}/resolve", mh.ResolveMarket)
	mux.HandleFunc("POST /api/markets/{id}/distribute", mh.Distribute)
	mux.HandleFunc("POST /contract/create", mh.CreateContract)

	hh := handler.NewHistoryHandler(markets, logger)
	mux.HandleFunc("GET /api/markets/{id}/settlement", hh.GetSettlement)
	mux.HandleFunc("GET /api/settlements", hh.ListSettlements)
	mux.HandleFunc("GET /api/audit", hh.ListAudit)
	mux.HandleFunc("GET /api/events", hh.ListEvents)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/", "/api/health")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}
