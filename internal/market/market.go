package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

// Market is a single binary-outcome staking event. Its zero value is not
// usable; construct it through a Registry.
type Market struct {
	id        string
	question  string
	expiry    time.Time
	createdAt time.Time
	now       func() time.Time

	mu         sync.Mutex
	ledger     *Ledger
	resolved   bool
	result     domain.Side
	resolvedAt time.Time
}

func newMarket(id string, expiry time.Time, question string, now func() time.Time) *Market {
	return &Market{
		id:        id,
		question:  question,
		expiry:    expiry,
		createdAt: now(),
		now:       now,
		ledger:    NewLedger(),
	}
}

// Stake adds amount to the participant's stake on side. Staking is allowed
// while the market is unresolved and the current time is not after expiry.
func (m *Market) Stake(participant string, side domain.Side, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resolved || m.now().After(m.expiry) {
		return fmt.Errorf("market %s: %w", m.id, domain.ErrStakingClosed)
	}
	if !side.Valid() {
		return fmt.Errorf("market %s: side %q: %w", m.id, side, domain.ErrInvalidSide)
	}
	if participant == "" {
		return fmt.Errorf("market %s: empty participant: %w", m.id, domain.ErrInvalidParticipant)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("market %s: amount %s: %w", m.id, amount, domain.ErrInvalidAmount)
	}

	m.ledger.Add(side, participant, amount)
	return nil
}

// Resolve closes the market by comparing side totals. "yes" wins only with a
// strictly greater total; ties, including the no-stakes case, go to "no".
// A market resolves exactly once; later calls fail.
func (m *Market) Resolve() (domain.Side, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.resolved || !now.After(m.expiry) {
		return "", fmt.Errorf("market %s: %w", m.id, domain.ErrResolutionNotReady)
	}

	yesTotal := m.ledger.Total(domain.SideYes)
	noTotal := m.ledger.Total(domain.SideNo)

	m.result = domain.SideNo
	if yesTotal.GreaterThan(noTotal) {
		m.result = domain.SideYes
	}
	m.resolved = true
	m.resolvedAt = now
	return m.result, nil
}

// Distribute computes the payout owed to every participant on the winning
// side. Losers are absent from the result.
func (m *Market) Distribute() (domain.Payouts, error) {
	s, err := m.Settle()
	if err != nil {
		return nil, err
	}
	return s.Payouts, nil
}

// Settle is Distribute plus the pool totals and ordered transfers.
func (m *Market) Settle() (domain.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.resolved {
		return domain.Settlement{}, fmt.Errorf("market %s: %w", m.id, domain.ErrNotResolved)
	}

	winners := m.ledger.Stakes(m.result)
	losingPool := m.ledger.Total(m.result.Opposite())
	payouts := splitPool(winners, losingPool)

	return domain.Settlement{
		MarketID:    m.id,
		Result:      m.result,
		LosingPool:  losingPool,
		WinningPool: m.ledger.Total(m.result),
		Payouts:     payouts,
		Transfers:   Transfers(payouts),
		SettledAt:   m.now(),
	}, nil
}

// Snapshot returns a copy of the market's current state.
func (m *Market) Snapshot() domain.MarketSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := domain.MarketSnapshot{
		ID:       m.id,
		Question: m.question,
		Expiry:   m.expiry,
		State:    m.stateLocked(),
		Resolved: m.resolved,
		Result:   m.result,
		YesTotal: m.ledger.Total(domain.SideYes),
		NoTotal:  m.ledger.Total(domain.SideNo),
		Stakes: map[domain.Side]map[string]decimal.Decimal{
			domain.SideYes: m.ledger.Stakes(domain.SideYes),
			domain.SideNo:  m.ledger.Stakes(domain.SideNo),
		},
		CreatedAt: m.createdAt,
	}
	if m.resolved {
		at := m.resolvedAt
		snap.ResolvedAt = &at
	}
	return snap
}

func (m *Market) stateLocked() domain.MarketState {
	switch {
	case m.resolved:
		return domain.MarketStateResolved
	case m.now().After(m.expiry):
		return domain.MarketStateClosed
	default:
		return domain.MarketStateOpen
	}
}
