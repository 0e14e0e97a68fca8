package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

// HistoryService exposes the recorded side of the engine: stored
// settlements, the audit trail and the event stream.
type HistoryService interface {
	GetSettlement(ctx context.Context, id string) (domain.Settlement, error)
	RecentSettlements(ctx context.Context, limit int) ([]domain.Settlement, error)
	AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
	RecentEvents(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error)
}

// HistoryHandler serves read-only history endpoints.
type HistoryHandler struct {
	history HistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(history HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger.With(slog.String("handler", "history")),
	}
}

// GetSettlement returns the stored settlement of one market.
// GET /api/markets/{id}/settlement
func (h *HistoryHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := h.history.GetSettlement(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "get settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListSettlements returns recent settlements, newest first.
// GET /api/settlements?limit=50
func (h *HistoryHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	limit := parseCount(r, "limit", 50, 500)
	out, err := h.history.RecentSettlements(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list settlements", err)
		return
	}
	if out == nil {
		out = []domain.Settlement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": out, "limit": limit})
}

type auditEntryResponse struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	MarketID  string         `json:"market_id"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// ListAudit returns audit entries, newest first.
// GET /api/audit?limit=50&offset=0&since=...&until=...
func (h *HistoryHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	entries, err := h.history.AuditLog(r.Context(), opts)
	if err != nil {
		h.fail(w, r, "list audit", err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:        e.ID,
			Event:     e.Event,
			MarketID:  e.MarketID,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

type streamEvent struct {
	StreamID string          `json:"stream_id"`
	Event    json.RawMessage `json:"event"`
}

// ListEvents replays market events from the durable stream after the given
// stream id. Clients page by passing back the last stream_id they saw.
// GET /api/events?after=0&count=100
func (h *HistoryHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	msgs, err := h.history.RecentEvents(r.Context(), after, parseCount(r, "count", 100, 1000))
	if err != nil {
		h.fail(w, r, "list events", err)
		return
	}

	out := make([]streamEvent, 0, len(msgs))
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			continue
		}
		out = append(out, streamEvent{StreamID: m.ID, Event: m.Payload})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (h *HistoryHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.String("error", err.Error()))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
