package handler

import (
	"net/http"
	"time"
)

// MarketCounter reports how many markets are registered.
type MarketCounter interface {
	MarketCount() int
}

// StatusHandler reports the running mode and engine size.
type StatusHandler struct {
	mode      string
	markets   MarketCounter
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, markets MarketCounter, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, markets: markets, startedAt: startedAt}
}

// GetStatus returns mode, market count and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"markets":        h.markets.MarketCount(),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
