package market

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

// Ledger holds the accumulated stake of every participant on each side. The
// two sides are disjoint: a participant may appear on both, with independent
// balances. Ledger is not safe for concurrent use; Market guards it.
type Ledger struct {
	sides map[domain.Side]map[string]decimal.Decimal
}

// NewLedger returns an empty ledger with both sides initialised.
func NewLedger() *Ledger {
	return &Ledger{
		sides: map[domain.Side]map[string]decimal.Decimal{
			domain.SideYes: {},
			domain.SideNo:  {},
		},
	}
}

// Add increments the participant's stake on side by amount.
func (l *Ledger) Add(side domain.Side, participant string, amount decimal.Decimal) {
	book := l.sides[side]
	book[participant] = book[participant].Add(amount)
}

// Stake returns the participant's accumulated stake on side.
func (l *Ledger) Stake(side domain.Side, participant string) decimal.Decimal {
	return l.sides[side][participant]
}

// Total returns the sum of all stakes on side.
func (l *Ledger) Total(side domain.Side) decimal.Decimal {
	total := decimal.Zero
	for _, amt := range l.sides[side] {
		total = total.Add(amt)
	}
	return total
}

// Stakes returns a copy of the participant balances on side.
func (l *Ledger) Stakes(side domain.Side) map[string]decimal.Decimal {
	book := l.sides[side]
	out := make(map[string]decimal.Decimal, len(book))
	for p, amt := range book {
		out[p] = amt
	}
	return out
}

// Participants returns the number of participants with a balance on side.
func (l *Ledger) Participants(side domain.Side) int {
	return len(l.sides[side])
}
