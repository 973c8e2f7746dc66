package service

import (
	"context"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/contracts/contractstest"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedFarms adds a priced KUSD farm with a position, a broken farm and an
// inactive farm on an unregistered LP token.
func (f *fixture) seedFarms() *contractstest.Token {
	lp := f.world.Backend.DeployToken(common.HexToAddress("0x00000000000000000000000000000000000001f0"), "KAIA-KUSD LP", "KLP", 18)
	f.world.Farms.AddPool(&contractstest.FarmPool{
		LPToken:        f.token("KUSD"),
		RewardToken:    f.token("KAIA"),
		AllocPoint:     1000,
		Name:           "KAIA-KUSD",
		Active:         true,
		APYBasisPoints: 4550,
	})
	f.world.Farms.AddPool(&contractstest.FarmPool{LPToken: lp, RewardToken: f.token("KAIA"), Broken: true})
	f.world.Farms.AddPool(&contractstest.FarmPool{
		LPToken:        lp,
		RewardToken:    f.token("KAIA"),
		AllocPoint:     700,
		APYBasisPoints: 1200,
	})
	f.world.Farms.SetUser(0, f.account(), contractstest.Ether(20), contractstest.Ether(3))
	return lp
}

func TestRiskAndMultiplier(t *testing.T) {
	assert.Equal(t, entity.RiskHigh, RiskFor(801))
	assert.Equal(t, entity.RiskMedium, RiskFor(800))
	assert.Equal(t, entity.RiskMedium, RiskFor(601))
	assert.Equal(t, entity.RiskLow, RiskFor(600))
	assert.Equal(t, "10x", Multiplier(1000))
	assert.Equal(t, "1.5x", Multiplier(150))
	assert.Equal(t, "0x", Multiplier(0))
}

func TestFarmsLoad(t *testing.T) {
	f := newFixture(t)
	f.seedFarms()
	svc := NewFarmsService(f.deps, f.prices, 2)

	st, err := svc.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Farms, 3)

	farm := st.Farms[0]
	assert.Equal(t, "KAIA-KUSD", farm.Pair)
	assert.Equal(t, "45.50", farm.APY)
	assert.Equal(t, "20.00", farm.TVL)
	assert.Equal(t, "20", farm.Staked)
	assert.Equal(t, "3", farm.Earned)
	assert.Equal(t, "10x", farm.Multiplier)
	assert.Equal(t, entity.RiskHigh, farm.Risk)
	assert.Equal(t, "KAIA", farm.RewardToken)
	assert.True(t, farm.Active)
	assert.Empty(t, farm.Error)

	broken := st.Farms[1]
	assert.Equal(t, uint64(1), broken.ID)
	assert.Equal(t, "Farm #1", broken.Pair)
	assert.Equal(t, "pool unavailable", broken.Error)

	inactive := st.Farms[2]
	assert.Equal(t, "Farm #2", inactive.Pair)
	assert.Equal(t, "12.00", inactive.APY)
	assert.Equal(t, "0", inactive.TVL)
	assert.Equal(t, entity.RiskMedium, inactive.Risk)
	assert.False(t, inactive.Active)

	assert.Equal(t, entity.FarmStats{TotalTVL: "20.00", MaxAPY: "45.50", ActiveFarms: 1, ActivePositions: 1}, st.Stats)
}

func TestFarmsLoadDisconnected(t *testing.T) {
	f := newFixture(t)
	f.seedFarms()
	f.disconnect()
	st, err := NewFarmsService(f.deps, f.prices, 2).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Farms)
	assert.Equal(t, "0.00", st.Stats.TotalTVL)
	assert.Zero(t, f.world.Backend.CallCount("poolLength"))
}

func TestFarmActions(t *testing.T) {
	f := newFixture(t)
	lp := f.seedFarms()
	lp.SetBalance(f.account(), contractstest.Ether(50))
	svc := NewFarmsService(f.deps, f.prices, 2)
	ctx := context.Background()

	_, err := svc.Stake(ctx, 2, "30")
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "deposit"}, f.world.Backend.SentMethods())
	assert.Equal(t, "30", svc.State().Farms[2].Staked)
	assert.Equal(t, "30", svc.State().Farms[2].TVL)

	_, err = svc.Stake(ctx, 2, "21")
	assert.ErrorIs(t, err, entity.ErrInsufficientBalance)

	_, err = svc.Unstake(ctx, 2, "40")
	assert.ErrorIs(t, err, entity.ErrInsufficientBalance)
	_, err = svc.Unstake(ctx, 2, "10")
	require.NoError(t, err)
	assert.Equal(t, contractstest.Ether(30), lp.BalanceOf(f.account()))

	_, err = svc.Harvest(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, contractstest.Ether(1003), f.token("KAIA").BalanceOf(f.account()))
	assert.Equal(t, "0", svc.State().Farms[0].Earned)

	assert.Equal(t, []string{"approve", "deposit", "withdraw", "harvest"}, f.world.Backend.SentMethods())
}

func TestFarmActionsRejectUnknownPool(t *testing.T) {
	f := newFixture(t)
	f.seedFarms()
	svc := NewFarmsService(f.deps, f.prices, 2)
	ctx := context.Background()

	_, err := svc.Stake(ctx, 3, "1")
	assert.ErrorIs(t, err, entity.ErrUnknownFarm)
	_, err = svc.Harvest(ctx, 9)
	assert.ErrorIs(t, err, entity.ErrUnknownFarm)
	_, err = svc.Unstake(ctx, 0, "0")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)
	assert.Empty(t, f.world.Backend.Sent())
}

func TestFarmActionsCheckSessionBeforeAmount(t *testing.T) {
	f := newFixture(t)
	f.seedFarms()
	svc := NewFarmsService(f.deps, f.prices, 2)
	ctx := context.Background()

	_, err := svc.Stake(ctx, 0, "0.0000000000000000001")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)

	f.disconnect()
	_, err = svc.Stake(ctx, 0, "0")
	assert.ErrorIs(t, err, entity.ErrWalletNotConnected)
	_, err = svc.Unstake(ctx, 0, "")
	assert.ErrorIs(t, err, entity.ErrWalletNotConnected)
	assert.Empty(t, f.world.Backend.Sent())
}
