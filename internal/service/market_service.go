// Package service wraps the in-memory market engine with the side effects a
// hosted deployment needs: event publishing, audit logging, settlement
// persistence and archiving, and operator notifications.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/donatemarket/internal/domain"
	"github.com/alanyoungcy/donatemarket/internal/market"
	"github.com/alanyoungcy/donatemarket/internal/notify"
)

const (
	defaultSettleLockTTL = 30 * time.Second
	// notifyTimeout bounds one background notification across all senders.
	notifyTimeout = 30 * time.Second
)

// Option configures a MarketService.
type Option func(*MarketService)

// WithBus publishes market events on bus.
func WithBus(bus domain.SignalBus) Option {
	return func(s *MarketService) { s.bus = bus }
}

// WithAudit records every successful mutation in store.
func WithAudit(store domain.AuditStore) Option {
	return func(s *MarketService) { s.audit = store }
}

// WithSettlements persists settlements to store and, when archiver is
// non-nil, copies them to object storage.
func WithSettlements(store domain.SettlementStore, archiver domain.SettlementArchiver) Option {
	return func(s *MarketService) {
		s.settlements = store
		s.archiver = archiver
	}
}

// WithLocks guards settlement recording with a distributed lock held for at
// most ttl.
func WithLocks(locks domain.LockManager, ttl time.Duration) Option {
	return func(s *MarketService) {
		s.locks = locks
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithNotifier sends resolution and settlement alerts through n.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *MarketService) { s.notifier = n }
}

// WithMaxQuestionLen caps the length of a market question in runes.
func WithMaxQuestionLen(n int) Option {
	return func(s *MarketService) { s.maxQuestionLen = n }
}

// WithIDGenerator replaces the generator used for market ids that callers
// leave empty.
func WithIDGenerator(gen func() string) Option {
	return func(s *MarketService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// MarketService is the application-facing API over a market.Registry. The
// registry result is authoritative: once the engine accepts an operation,
// failures in publishing, auditing or persistence are logged and never undo
// or fail it.
type MarketService struct {
	registry *market.Registry

	bus         domain.SignalBus
	audit       domain.AuditStore
	settlements domain.SettlementStore
	archiver    domain.SettlementArchiver
	locks       domain.LockManager
	notifier    *notify.Notifier

	lockTTL        time.Duration
	maxQuestionLen int
	newID          func() string
	now            func() time.Time
	logger         *slog.Logger

	notifying sync.WaitGroup
}

// NewMarketService creates a MarketService over registry. Every backend is
// optional.
func NewMarketService(registry *market.Registry, logger *slog.Logger, opts ...Option) *MarketService {
	s := &MarketService{
		registry: registry,
		lockTTL:  defaultSettleLockTTL,
		newID:    uuid.NewString,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "market_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateMarket registers a new market. An empty id is replaced with a
// generated one.
func (s *MarketService) CreateMarket(ctx context.Context, id string, expiry time.Time, question string) (domain.MarketSnapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = s.newID()
	}
	question = strings.TrimSpace(question)
	if s.maxQuestionLen > 0 && len([]rune(question)) > s.maxQuestionLen {
		return domain.MarketSnapshot{}, fmt.Errorf("market_service: question longer than %d characters: %w",
			s.maxQuestionLen, domain.ErrInvalidMarket)
	}

	snap, err := s.registry.Create(id, expiry, question)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("market_service: create %q: %w", id, err)
	}

	s.logger.InfoContext(ctx, "market created",
		slog.String("market_id", id),
		slog.Time("expiry", expiry),
	)
	s.record(ctx, domain.EventMarketCreated, id, map[string]any{
		"question": question,
		"expiry":   expiry.UTC().Format(time.RFC3339),
	})
	return snap, nil
}

// PlaceStake adds amount to participant's stake on side.
func (s *MarketService) PlaceStake(ctx context.Context, id, participant string, side domain.Side, amount decimal.Decimal) error {
	if err := s.registry.Stake(id, participant, side, amount); err != nil {
		return fmt.Errorf("market_service: stake on %q: %w", id, err)
	}

	s.logger.DebugContext(ctx, "stake placed",
		slog.String("market_id", id),
		slog.String("participant", participant),
		slog.String("side", string(side)),
		slog.String("amount", amount.String()),
	)
	s.record(ctx, domain.EventStakePlaced, id, map[string]any{
		"participant": participant,
		"side":        side,
		"amount":      amount.String(),
	})
	return nil
}

// ResolveMarket fixes the market's result by the majority-stake rule.
func (s *MarketService) ResolveMarket(ctx context.Context, id string) (domain.Side, error) {
	result, err := s.registry.Resolve(id)
	if err != nil {
		return "", fmt.Errorf("market_service: resolve %q: %w", id, err)
	}

	snap, err := s.registry.Get(id)
	if err != nil {
		return "", fmt.Errorf("market_service: resolve %q: %w", id, err)
	}

	s.logger.InfoContext(ctx, "market resolved",
		slog.String("market_id", id),
		slog.String("result", string(result)),
		slog.String("yes_total", snap.YesTotal.String()),
		slog.String("no_total", snap.NoTotal.String()),
	)
	s.record(ctx, domain.EventMarketResolved, id, map[string]any{
		"result":    result,
		"yes_total": snap.YesTotal.String(),
		"no_total":  snap.NoTotal.String(),
	})
	s.notify(ctx, domain.EventMarketResolved, "Market resolved",
		fmt.Sprintf("%s\n%s\nresult: %s (yes %s / no %s)",
			id, snap.Question, result, snap.YesTotal, snap.NoTotal))
	return result, nil
}

// Distribute computes the settlement of a resolved market. Repeated calls
// return the same payouts; each call re-records the settlement.
func (s *MarketService) Distribute(ctx context.Context, id string) (domain.Settlement, error) {
	st, err := s.registry.Settle(id)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market_service: distribute %q: %w", id, err)
	}

	s.logger.InfoContext(ctx, "market settled",
		slog.String("market_id", id),
		slog.String("result", string(st.Result)),
		slog.String("losing_pool", st.LosingPool.String()),
		slog.Int("transfers", len(st.Transfers)),
	)

	archivePath := s.recordSettlement(ctx, st)

	detail := map[string]any{
		"result":       st.Result,
		"losing_pool":  st.LosingPool.String(),
		"winning_pool": st.WinningPool.String(),
		"transfers":    len(st.Transfers),
	}
	if archivePath != "" {
		detail["archive_path"] = archivePath
	}
	s.record(ctx, domain.EventMarketSettled, id, detail)
	s.notify(ctx, domain.EventMarketSettled, "Market settled",
		fmt.Sprintf("%s\nresult: %s\nlosing pool %s split across %d transfer(s)",
			id, st.Result, st.LosingPool, len(st.Transfers)))
	return st, nil
}

// GetMarket returns a snapshot of one market.
func (s *MarketService) GetMarket(_ context.Context, id string) (domain.MarketSnapshot, error) {
	snap, err := s.registry.Get(id)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}
	return snap, nil
}

// ListMarkets returns snapshots of all markets ordered by id.
func (s *MarketService) ListMarkets(_ context.Context) []domain.MarketSnapshot {
	return s.registry.List()
}

// MarketCount returns the number of registered markets.
func (s *MarketService) MarketCount() int {
	return s.registry.Len()
}

// GetSettlement returns the stored settlement of a market.
func (s *MarketService) GetSettlement(ctx context.Context, id string) (domain.Settlement, error) {
	if s.settlements == nil {
		return domain.Settlement{}, fmt.Errorf("market_service: settlement store not configured: %w", domain.ErrNotFound)
	}
	st, err := s.settlements.GetByMarket(ctx, id)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market_service: get settlement %q: %w", id, err)
	}
	return st, nil
}

// RecentSettlements returns up to limit stored settlements, newest first.
// Without a settlement store the result is empty.
func (s *MarketService) RecentSettlements(ctx context.Context, limit int) ([]domain.Settlement, error) {
	if s.settlements == nil {
		return nil, nil
	}
	out, err := s.settlements.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: list settlements: %w", err)
	}
	return out, nil
}

// AuditLog returns audit entries, newest first. Without an audit store the
// result is empty.
func (s *MarketService) AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	out, err := s.audit.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list audit: %w", err)
	}
	return out, nil
}

// RecentEvents replays market events from the durable stream after lastID.
func (s *MarketService) RecentEvents(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	if s.bus == nil {
		return nil, nil
	}
	msgs, err := s.bus.StreamRead(ctx, domain.MarketEventsStream, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("market_service: read events: %w", err)
	}
	return msgs, nil
}

// recordSettlement persists and archives st under the settle lock and returns
// the archive path, or "" when nothing was archived.
func (s *MarketService) recordSettlement(ctx context.Context, st domain.Settlement) string {
	if s.settlements == nil && s.archiver == nil {
		return ""
	}
	log := s.logger.With(slog.String("market_id", st.MarketID))

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "settle:"+st.MarketID, s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				log.InfoContext(ctx, "settlement already being recorded elsewhere")
				return ""
			}
			log.WarnContext(ctx, "settle lock failed", slog.String("error", err.Error()))
			return ""
		}
		defer unlock()
	}

	if s.settlements != nil {
		if err := s.settlements.Save(ctx, st); err != nil {
			log.ErrorContext(ctx, "save settlement failed", slog.String("error", err.Error()))
		}
	}

	if s.archiver == nil {
		return ""
	}
	path, err := s.archiver.ArchiveSettlement(ctx, st)
	if err != nil {
		log.ErrorContext(ctx, "archive settlement failed", slog.String("error", err.Error()))
		return ""
	}
	log.DebugContext(ctx, "settlement archived", slog.String("path", path))
	return path
}

// record writes the audit row and publishes the event for one mutation.
func (s *MarketService) record(ctx context.Context, typ domain.EventType, marketID string, detail map[string]any) {
	if s.audit != nil {
		if err := s.audit.Log(ctx, string(typ), marketID, detail); err != nil {
			s.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", string(typ)),
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.publish(ctx, typ, marketID, detail)
}

func (s *MarketService) publish(ctx context.Context, typ domain.EventType, marketID string, detail map[string]any) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(detail)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal event payload failed", slog.String("error", err.Error()))
		return
	}
	data, err := json.Marshal(domain.MarketEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		MarketID:   marketID,
		Payload:    payload,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "marshal event failed", slog.String("error", err.Error()))
		return
	}

	if err := s.bus.Publish(ctx, domain.MarketChannel(marketID), data); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", string(typ)),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.MarketEventsStream, data); err != nil {
		s.logger.WarnContext(ctx, "append event failed",
			slog.String("event", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}

// notify sends an alert in the background so slow chat APIs never hold up
// the request that triggered it. The send outlives ctx's cancellation but not
// notifyTimeout.
func (s *MarketService) notify(ctx context.Context, typ domain.EventType, title, message string) {
	if !s.notifier.Enabled() {
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.notifying.Add(1)
	go func() {
		defer s.notifying.Done()
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, string(typ), title, message); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				slog.String("event", string(typ)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Drain waits for in-flight notifications to finish or for ctx to end.
func (s *MarketService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifying.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("market_service: drain notifications: %w", ctx.Err())
	}
}
