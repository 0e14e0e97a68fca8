package market

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

// payoutPrecision is the number of decimal places a payout share carries.
const payoutPrecision = 16

// splitPool divides losingPool among winners in proportion to their stakes.
// Every winner appears in the result; when the winners staked nothing in
// total, every share is zero.
//
// Shares are truncated to payoutPrecision places. Whatever truncation leaves
// over goes to the winner with the largest stake, ties broken by the smallest
// participant id, so the shares always sum to losingPool exactly.
func splitPool(winners map[string]decimal.Decimal, losingPool decimal.Decimal) domain.Payouts {
	payouts := make(domain.Payouts, len(winners))

	totalWinning := decimal.Zero
	for _, amt := range winners {
		totalWinning = totalWinning.Add(amt)
	}
	if !totalWinning.IsPositive() {
		for participant := range winners {
			payouts[participant] = decimal.Zero
		}
		return payouts
	}

	distributed := decimal.Zero
	for participant, amt := range winners {
		// Multiply before dividing so exact ratios stay exact.
		share, _ := losingPool.Mul(amt).QuoRem(totalWinning, payoutPrecision)
		payouts[participant] = share
		distributed = distributed.Add(share)
	}

	if remainder := losingPool.Sub(distributed); !remainder.IsZero() {
		top := remainderRecipient(winners)
		payouts[top] = payouts[top].Add(remainder)
	}
	return payouts
}

func remainderRecipient(winners map[string]decimal.Decimal) string {
	var top string
	var topStake decimal.Decimal
	for participant, amt := range winners {
		switch {
		case top == "",
			amt.GreaterThan(topStake),
			amt.Equal(topStake) && participant < top:
			top, topStake = participant, amt
		}
	}
	return top
}

// Transfers renders payouts as transfer instructions ordered by recipient.
// Zero amounts are dropped since there is nothing to move.
func Transfers(payouts domain.Payouts) []domain.Transfer {
	out := make([]domain.Transfer, 0, len(payouts))
	for recipient, amt := range payouts {
		if amt.IsZero() {
			continue
		}
		out = append(out, domain.Transfer{Recipient: recipient, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Recipient < out[j].Recipient
	})
	return out
}
