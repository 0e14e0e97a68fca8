package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

func TestSplitPoolThirds(t *testing.T) {
	winners := map[string]decimal.Decimal{
		"a": dec(1),
		"b": dec(1),
		"c": dec(1),
	}
	payouts := splitPool(winners, dec(100))

	require.Len(t, payouts, 3)
	sum := decimal.Zero
	for _, p := range payouts {
		sum = sum.Add(p)
	}
	assert.True(t, sum.Equal(dec(100)), "sum=%s", sum)

	third := decimal.RequireFromString("33.3333333333333333")
	assert.True(t, payouts["a"].Equal(third.Add(decimal.New(1, -payoutPrecision))), "a=%s", payouts["a"])
	assert.True(t, payouts["b"].Equal(third), "b=%s", payouts["b"])
	assert.True(t, payouts["c"].Equal(third), "c=%s", payouts["c"])

	transfers := Transfers(payouts)
	total := decimal.Zero
	for _, tr := range transfers {
		total = total.Add(tr.Amount)
	}
	assert.True(t, total.Equal(dec(100)), "total=%s", total)
}

func TestSplitPoolRemainderGoesToLargestStake(t *testing.T) {
	winners := map[string]decimal.Decimal{
		"a": dec(1),
		"b": dec(1),
		"z": dec(4),
	}
	payouts := splitPool(winners, dec(1))

	sum := decimal.Zero
	for _, p := range payouts {
		sum = sum.Add(p)
	}
	require.True(t, sum.Equal(dec(1)), "sum=%s", sum)
	assert.True(t, payouts["a"].Equal(payouts["b"]))
	assert.True(t, payouts["z"].GreaterThan(payouts["a"].Mul(dec(4))), "z=%s a=%s", payouts["z"], payouts["a"])
}

func TestSplitPoolExactRatiosUntouched(t *testing.T) {
	payouts := splitPool(map[string]decimal.Decimal{"A": dec(30), "B": dec(70)}, dec(60))

	assert.True(t, payouts["A"].Equal(dec(18)), "A=%s", payouts["A"])
	assert.True(t, payouts["B"].Equal(dec(42)), "B=%s", payouts["B"])
}

func TestSplitPoolZeroWinningStake(t *testing.T) {
	payouts := splitPool(map[string]decimal.Decimal{"a": decimal.Zero}, dec(100))
	require.Len(t, payouts, 1)
	assert.True(t, payouts["a"].IsZero())
}

func TestSplitPoolNoWinners(t *testing.T) {
	assert.Empty(t, splitPool(nil, dec(100)))
}

func TestTransfersSortedAndZeroFree(t *testing.T) {
	got := Transfers(domain.Payouts{
		"zed":   dec(3),
		"amy":   dec(1),
		"empty": decimal.Zero,
	})

	require.Len(t, got, 2)
	assert.Equal(t, "amy", got[0].Recipient)
	assert.Equal(t, "zed", got[1].Recipient)
}
