package market

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry is the catalog of markets keyed by identifier. Markets live for the
// lifetime of the Registry; there is no removal. The hosting application owns
// the Registry and hands it to whichever component needs it.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market
	now     func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		markets: make(map[string]*Market),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new open market. It fails with domain.ErrMarketExists if
// the identifier is taken.
func (r *Registry) Create(id string, expiry time.Time, question string) (domain.MarketSnapshot, error) {
	if id == "" {
		return domain.MarketSnapshot{}, fmt.Errorf("registry: empty market id: %w", domain.ErrInvalidMarket)
	}
	if expiry.IsZero() {
		return domain.MarketSnapshot{}, fmt.Errorf("registry: market %s: zero expiry: %w", id, domain.ErrInvalidMarket)
	}

	r.mu.Lock()
	if _, ok := r.markets[id]; ok {
		r.mu.Unlock()
		return domain.MarketSnapshot{}, fmt.Errorf("registry: market %s: %w", id, domain.ErrMarketExists)
	}
	m := newMarket(id, expiry, question, r.now)
	r.markets[id] = m
	r.mu.Unlock()

	return m.Snapshot(), nil
}

// Stake places a stake on the identified market.
func (r *Registry) Stake(id, participant string, side domain.Side, amount decimal.Decimal) error {
	m, err := r.lookup(id)
	if err != nil {
		return err
	}
	return m.Stake(participant, side, amount)
}

// Resolve resolves the identified market and returns the winning side.
func (r *Registry) Resolve(id string) (domain.Side, error) {
	m, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return m.Resolve()
}

// Distribute returns the payouts of the identified, resolved market.
func (r *Registry) Distribute(id string) (domain.Payouts, error) {
	m, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.Distribute()
}

// Settle returns the full settlement of the identified, resolved market.
func (r *Registry) Settle(id string) (domain.Settlement, error) {
	m, err := r.lookup(id)
	if err != nil {
		return domain.Settlement{}, err
	}
	return m.Settle()
}

// Get returns a snapshot of the identified market.
func (r *Registry) Get(id string) (domain.MarketSnapshot, error) {
	m, err := r.lookup(id)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	return m.Snapshot(), nil
}

// List returns snapshots of every market ordered by identifier.
func (r *Registry) List() []domain.MarketSnapshot {
	r.mu.RLock()
	markets := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		markets = append(markets, m)
	}
	r.mu.RUnlock()

	sort.Slice(markets, func(i, j int) bool {
		return markets[i].id < markets[j].id
	})

	out := make([]domain.MarketSnapshot, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.Snapshot())
	}
	return out
}

// Len returns the number of registered markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

func (r *Registry) lookup(id string) (*Market, error) {
	r.mu.RLock()
	m, ok := r.markets[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: market %s: %w", id, domain.ErrMarketNotFound)
	}
	return m, nil
}
