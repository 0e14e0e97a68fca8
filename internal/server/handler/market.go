package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

// MarketService is what the market endpoints need from the service layer.
type MarketService interface {
	CreateMarket(ctx context.Context, id string, expiry time.Time, question string) (domain.MarketSnapshot, error)
	PlaceStake(ctx context.Context, id, participant string, side domain.Side, amount decimal.Decimal) error
	ResolveMarket(ctx context.Context, id string) (domain.Side, error)
	Distribute(ctx context.Context, id string) (domain.Settlement, error)
	GetMarket(ctx context.Context, id string) (domain.MarketSnapshot, error)
	ListMarkets(ctx context.Context) []domain.MarketSnapshot
}

// MarketHandler serves the market lifecycle endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger.With(slog.String("handler", "market")),
	}
}

type createMarketRequest struct {
	ID       string `json:"id"`
	Expiry   int64  `json:"expiry"`
	Question string `json:"question"`
}

type stakeRequest struct {
	Participant string          `json:"participant"`
	Side        domain.Side     `json:"side"`
	Amount      decimal.Decimal `json:"amount"`
}

type listMarketsResponse struct {
	Markets []domain.MarketSnapshot `json:"markets"`
	Total   int                     `json:"total"`
}

// ListMarkets returns every market ordered by id.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets := h.markets.ListMarkets(r.Context())
	if markets == nil {
		markets = []domain.MarketSnapshot{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: markets, Total: len(markets)})
}

// CreateMarket registers a market. Expiry is in unix seconds.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.create(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create market", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// GetMarket returns one market snapshot.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	snap, err := h.markets.GetMarket(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PlaceStake adds to a participant's stake.
// POST /api/markets/{id}/stakes
func (h *MarketHandler) PlaceStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.markets.PlaceStake(r.Context(), r.PathValue("id"), req.Participant, req.Side, req.Amount); err != nil {
		h.fail(w, r, "place stake", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveMarket resolves an expired market.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := h.markets.ResolveMarket(r.Context(), id)
	if err != nil {
		h.fail(w, r, "resolve market", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market_id": id, "result": result})
}

// Distribute returns payouts and transfers of a resolved market.
// POST /api/markets/{id}/distribute
func (h *MarketHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	st, err := h.markets.Distribute(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "distribute", err)
		return
	}
	if st.Transfers == nil {
		st.Transfers = []domain.Transfer{}
	}
	writeJSON(w, http.StatusOK, st)
}

type legacyCreateRequest struct {
	ContractID string `json:"contract_id"`
	Expiry     int64  `json:"expiry"`
	Question   string `json:"question"`
}

// CreateContract is the create route used by the original donation frontend.
// POST /contract/create
func (h *MarketHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req legacyCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.create(r.Context(), createMarketRequest{
		ID:       req.ContractID,
		Expiry:   req.Expiry,
		Question: req.Question,
	})
	if err != nil {
		h.fail(w, r, "create contract", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "created", "contract_id": snap.ID})
}

func (h *MarketHandler) create(ctx context.Context, req createMarketRequest) (domain.MarketSnapshot, error) {
	var expiry time.Time
	if req.Expiry > 0 {
		expiry = time.Unix(req.Expiry, 0).UTC()
	}
	return h.markets.CreateMarket(ctx, req.ID, expiry, req.Question)
}

// fail writes the mapped status for err. Unexpected errors are logged and
// hidden from the client.
func (h *MarketHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed",
			slog.String("market_id", r.PathValue("id")),
			slog.String("error", err.Error()),
		)
		writeError(w, status, "internal error")
		return
	}
	h.logger.DebugContext(r.Context(), op+" rejected",
		slog.String("market_id", r.PathValue("id")),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	writeError(w, status, err.Error())
}
