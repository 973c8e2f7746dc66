package service

import (
	"context"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/contracts/contractstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStakingLoadDisconnected(t *testing.T) {
	f := newFixture(t)
	f.disconnect()
	st, err := NewStakingService(f.deps).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", st.Staked)
	assert.Equal(t, "0", st.APY)
	assert.Zero(t, f.world.Backend.CallCount("getStakerInfo"))
}

func TestStakeAndUnstake(t *testing.T) {
	f := newFixture(t)
	svc := NewStakingService(f.deps)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "stake"}, f.world.Backend.SentMethods())

	st := svc.State()
	assert.Equal(t, "10", st.Staked)
	assert.Equal(t, "10", st.TotalStaked)
	assert.Equal(t, "12", st.APY)
	assert.Empty(t, st.Error)

	_, err = svc.Unstake(ctx, "20")
	var insufficient *entity.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "10", insufficient.Available)
	assert.Len(t, f.world.Backend.Sent(), 2)
	assert.Contains(t, svc.State().Error, "staked KAIA")

	_, err = svc.Unstake(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, "6", svc.State().Staked)
	assert.Equal(t, contractstest.Ether(994), f.token("KAIA").BalanceOf(f.account()))
}

func TestStakeValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewStakingService(f.deps)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "0")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)
	// Below one wei the submitted value would be zero.
	_, err = svc.Stake(ctx, "0.0000000000000000001")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)
	_, err = svc.Unstake(ctx, "0.0000000000000000001")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)
	_, err = svc.Stake(ctx, "1000.5")
	assert.ErrorIs(t, err, entity.ErrInsufficientBalance)
	assert.Empty(t, f.world.Backend.Sent())

	f.connect(1)
	_, err = svc.Stake(ctx, "1")
	assert.ErrorIs(t, err, entity.ErrWrongNetwork)
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t)
	f.world.Staking.SetStaked(f.account(), contractstest.Ether(100))
	f.world.Staking.SetPending(f.account(), contractstest.Ether(2))
	svc := NewStakingService(f.deps)
	ctx := context.Background()

	st, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", st.PendingRewards)

	_, err = svc.ClaimRewards(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"claimRewards"}, f.world.Backend.SentMethods())
	assert.Equal(t, "0", svc.State().PendingRewards)
	assert.Equal(t, contractstest.Ether(1002), f.token("KAIA").BalanceOf(f.account()))

	// nothing pending still sends the claim
	_, err = svc.ClaimRewards(ctx)
	require.NoError(t, err)
	assert.Len(t, f.world.Backend.Sent(), 2)
}
