package market

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	return NewRegistry(WithClock(clk.Now)), clk
}

func TestRegistryCreate(t *testing.T) {
	reg, clk := newTestRegistry(t)
	expiry := clk.Now().Add(time.Hour)

	snap, err := reg.Create("m1", expiry, "Fund the shelter?")
	require.NoError(t, err)
	assert.Equal(t, "m1", snap.ID)
	assert.Equal(t, "Fund the shelter?", snap.Question)
	assert.Equal(t, expiry, snap.Expiry)
	assert.Equal(t, domain.MarketStateOpen, snap.State)
	assert.False(t, snap.Resolved)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryCreateDuplicate(t *testing.T) {
	reg, clk := newTestRegistry(t)
	_, err := reg.Create("m1", clk.Now().Add(time.Hour), "first")
	require.NoError(t, err)
	require.NoError(t, reg.Stake("m1", "alice", domain.SideYes, dec(5)))

	_, err = reg.Create("m1", clk.Now().Add(2*time.Hour), "second")
	require.ErrorIs(t, err, domain.ErrMarketExists)

	snap, err := reg.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, "first", snap.Question)
	assert.True(t, snap.YesTotal.Equal(dec(5)))
}

func TestRegistryCreateInvalid(t *testing.T) {
	reg, clk := newTestRegistry(t)

	_, err := reg.Create("", clk.Now().Add(time.Hour), "q")
	require.ErrorIs(t, err, domain.ErrInvalidMarket)

	_, err = reg.Create("m1", time.Time{}, "q")
	require.ErrorIs(t, err, domain.ErrInvalidMarket)
}

func TestRegistryUnknownMarket(t *testing.T) {
	reg, _ := newTestRegistry(t)

	require.ErrorIs(t, reg.Stake("nope", "a", domain.SideYes, dec(1)), domain.ErrMarketNotFound)
	_, err := reg.Resolve("nope")
	require.ErrorIs(t, err, domain.ErrMarketNotFound)
	_, err = reg.Distribute("nope")
	require.ErrorIs(t, err, domain.ErrMarketNotFound)
	_, err = reg.Settle("nope")
	require.ErrorIs(t, err, domain.ErrMarketNotFound)
	_, err = reg.Get("nope")
	require.ErrorIs(t, err, domain.ErrMarketNotFound)
}

func TestRegistryLifecycle(t *testing.T) {
	reg, clk := newTestRegistry(t)
	_, err := reg.Create("m1", clk.Now().Add(time.Hour), "q")
	require.NoError(t, err)

	require.NoError(t, reg.Stake("m1", "A", domain.SideYes, dec(30)))
	require.NoError(t, reg.Stake("m1", "B", domain.SideYes, dec(70)))
	require.NoError(t, reg.Stake("m1", "C", domain.SideNo, dec(60)))

	_, err = reg.Resolve("m1")
	require.ErrorIs(t, err, domain.ErrResolutionNotReady)
	_, err = reg.Distribute("m1")
	require.ErrorIs(t, err, domain.ErrNotResolved)

	clk.Advance(time.Hour + time.Second)
	require.ErrorIs(t, reg.Stake("m1", "D", domain.SideNo, dec(1)), domain.ErrStakingClosed)

	result, err := reg.Resolve("m1")
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, result)

	payouts, err := reg.Distribute("m1")
	require.NoError(t, err)
	require.Len(t, payouts, 2)
	assert.True(t, payouts["A"].Equal(dec(18)), "A=%s", payouts["A"])
	assert.True(t, payouts["B"].Equal(dec(42)), "B=%s", payouts["B"])
}

func TestRegistryListSorted(t *testing.T) {
	reg, clk := newTestRegistry(t)
	for _, id := range []string{"c", "a", "b"} {
		_, err := reg.Create(id, clk.Now().Add(time.Hour), id)
		require.NoError(t, err)
	}

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestRegistryConcurrentStakes(t *testing.T) {
	reg, clk := newTestRegistry(t)
	_, err := reg.Create("m1", clk.Now().Add(time.Hour), "q")
	require.NoError(t, err)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = reg.Stake("m1", fmt.Sprintf("p%d", w), domain.SideYes, dec(1))
			}
		}(w)
	}
	wg.Wait()

	clk.Advance(2 * time.Hour)
	_, err = reg.Resolve("m1")
	require.NoError(t, err)

	snap, err := reg.Get("m1")
	require.NoError(t, err)
	assert.True(t, snap.YesTotal.Equal(dec(workers*perWorker)))
	assert.Equal(t, domain.SideYes, snap.Result)
}
