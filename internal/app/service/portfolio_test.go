package service

import (
	"context"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/contracts/contractstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPortfolio(f *fixture) *PortfolioService {
	return NewPortfolioService(f.deps, f.balances(), NewStakingService(f.deps), NewFarmsService(f.deps, f.prices, 2), f.prices)
}

func TestPortfolioRefresh(t *testing.T) {
	f := newFixture(t)
	f.seedFarms()
	f.world.Staking.SetStaked(f.account(), contractstest.Ether(100))
	f.world.Staking.SetPending(f.account(), contractstest.Ether(2))
	svc := newPortfolio(f)

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.account().Hex(), snap.Account)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.UpdatedAt.IsZero())

	// KAIA 850 + KUSD 1000 held, 85 staked, 20 farmed; WKAIA has no price
	assert.InDelta(t, 1955.0, snap.TotalValueUSD, 1e-9)
	// 2 KAIA staking rewards and 3 KAIA farm rewards at 0.85
	assert.InDelta(t, 4.25, snap.TotalEarnings, 1e-9)

	var types []entity.PositionType
	for _, p := range snap.Positions {
		types = append(types, p.Type)
	}
	assert.Equal(t, []entity.PositionType{
		entity.PositionStaking,
		entity.PositionHoldings, entity.PositionHoldings, entity.PositionHoldings,
		entity.PositionFarming,
	}, types)
	assert.Equal(t, "12", snap.Positions[0].APY)
	assert.Equal(t, "KAIA-KUSD", snap.Positions[4].Asset)
	assert.Equal(t, snap.TotalValueUSD, svc.Snapshot().TotalValueUSD)
}

func TestPortfolioRefreshDisconnected(t *testing.T) {
	f := newFixture(t)
	f.disconnect()
	snap, err := newPortfolio(f).Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Positions)
	assert.Zero(t, snap.TotalValueUSD)
	assert.Empty(t, f.world.Backend.Sent())
}

func TestPortfolioKeepsPartialResults(t *testing.T) {
	f := newFixture(t)
	f.world.Staking.Reverts("getTotalStaked", "paused")
	svc := newPortfolio(f)

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Contains(t, snap.Error, "staking")
	assert.InDelta(t, 1850.0, snap.TotalValueUSD, 1e-9)
}
