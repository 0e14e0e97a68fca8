package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is one of the two mutually exclusive outcomes participants stake on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is "yes" or "no".
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// MarketState is the lifecycle state of a market, derived from its resolved
// flag and the current time relative to its expiry.
type MarketState string

const (
	MarketStateOpen     MarketState = "open"
	MarketStateClosed   MarketState = "closed"
	MarketStateResolved MarketState = "resolved"
)

// MarketSnapshot is a point-in-time, read-only copy of a market.
type MarketSnapshot struct {
	ID         string                              `json:"id"`
	Question   string                              `json:"question"`
	Expiry     time.Time                           `json:"expiry"`
	State      MarketState                         `json:"state"`
	Resolved   bool                                `json:"resolved"`
	Result     Side                                `json:"result,omitempty"`
	YesTotal   decimal.Decimal                     `json:"yes_total"`
	NoTotal    decimal.Decimal                     `json:"no_total"`
	Stakes     map[Side]map[string]decimal.Decimal `json:"stakes"`
	CreatedAt  time.Time                           `json:"created_at"`
	ResolvedAt *time.Time                          `json:"resolved_at,omitempty"`
}

// Payouts maps each winning participant to the amount they are entitled to.
type Payouts map[string]decimal.Decimal

// Transfer is a single (recipient, amount) instruction handed to the payment
// platform.
type Transfer struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// Settlement is the result of distributing a resolved market.
type Settlement struct {
	MarketID    string          `json:"market_id"`
	Result      Side            `json:"result"`
	LosingPool  decimal.Decimal `json:"losing_pool"`
	WinningPool decimal.Decimal `json:"winning_pool"`
	Payouts     Payouts         `json:"payouts"`
	Transfers   []Transfer      `json:"transfers"`
	SettledAt   time.Time       `json:"settled_at"`
}
