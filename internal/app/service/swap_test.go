package service

import (
	"context"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/contracts/contractstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSwap(f *fixture) *SwapService {
	return NewSwapService(f.deps, f.balances(), SwapConfig{
		DefaultFrom:     "KAIA",
		DefaultTo:       "KUSD",
		DefaultSlippage: 0.5,
		GasLimit:        250000,
	})
}

func (f *fixture) seedKAIAKUSD() {
	f.world.DEX.SetPool(f.token("KAIA").Address, f.token("KUSD").Address, contractstest.Ether(1000), contractstest.Ether(1000))
}

func TestSwapDefaults(t *testing.T) {
	f := newFixture(t)
	st := newSwap(f).State()
	assert.Equal(t, "KAIA", st.FromToken)
	assert.Equal(t, "KUSD", st.ToToken)
	assert.Equal(t, 0.5, st.Slippage)
	assert.Empty(t, st.ToAmount)
}

func TestSwapQuoteDerivations(t *testing.T) {
	f := newFixture(t)
	f.seedKAIAKUSD()
	svc := newSwap(f)

	st, err := svc.SetFromAmount(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, "9.90099009900990099", st.ToAmount)
	assert.Equal(t, "1.00", st.PriceImpact)
	assert.Equal(t, "0.990099", st.ExchangeRate)
	assert.Equal(t, "9.851485", st.MinimumReceived)
	assert.Equal(t, "0.00625", st.GasEstimate)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)

	q, err := svc.Quote()
	require.NoError(t, err)
	assert.Equal(t, "9.851485", q.MinimumReceived)
	assert.Equal(t, "10", q.FromAmount)
}

func TestSwapQuoteWithoutPool(t *testing.T) {
	f := newFixture(t)
	svc := newSwap(f)

	st, err := svc.SetFromAmount(context.Background(), "10")
	require.ErrorIs(t, err, entity.ErrNoLiquidity)
	assert.Empty(t, st.ToAmount)
	assert.NotEmpty(t, st.Error)

	_, err = svc.Quote()
	assert.ErrorIs(t, err, entity.ErrNoLiquidity)
}

func TestSwapQuoteChecksBalanceBeforeQuoting(t *testing.T) {
	f := newFixture(t)
	f.seedKAIAKUSD()
	svc := newSwap(f)

	st, err := svc.SetFromAmount(context.Background(), "5000")
	require.ErrorIs(t, err, entity.ErrInsufficientBalance)
	assert.Empty(t, st.ToAmount)
	assert.Zero(t, f.world.Backend.CallCount("getAmountOut"))
}

func TestSwapInputsClearQuote(t *testing.T) {
	f := newFixture(t)
	f.seedKAIAKUSD()
	svc := newSwap(f)
	ctx := context.Background()

	_, err := svc.SetFromAmount(ctx, "10")
	require.NoError(t, err)

	st, err := svc.SetToToken(ctx, "KAIA")
	require.ErrorIs(t, err, entity.ErrInvalidAmount)
	assert.Empty(t, st.ToAmount)

	_, err = svc.SetToToken(ctx, "KUSD")
	require.NoError(t, err)
	st, err = svc.SetFromAmount(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, st.ToAmount)
	assert.Empty(t, st.MinimumReceived)
	assert.Empty(t, st.Error)
}

func TestSwitchTokens(t *testing.T) {
	f := newFixture(t)
	f.seedKAIAKUSD()
	svc := newSwap(f)
	ctx := context.Background()

	_, err := svc.SetFromAmount(ctx, "10")
	require.NoError(t, err)
	st, err := svc.SwitchTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "KUSD", st.FromToken)
	assert.Equal(t, "KAIA", st.ToToken)
	assert.Equal(t, "9.90099009900990099", st.FromAmount)
	assert.NotEmpty(t, st.ToAmount)
}

func TestSetSlippage(t *testing.T) {
	f := newFixture(t)
	f.seedKAIAKUSD()
	svc := newSwap(f)

	_, err := svc.SetSlippage(0)
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)
	_, err = svc.SetSlippage(50.5)
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)

	_, err = svc.SetFromAmount(context.Background(), "10")
	require.NoError(t, err)
	st, err := svc.SetSlippage(50)
	require.NoError(t, err)
	assert.Equal(t, "4.950495", st.MinimumReceived)
}

func TestStaleQuoteIsDropped(t *testing.T) {
	f := newFixture(t)
	svc := newSwap(f)

	gen := svc.nextGeneration()
	svc.nextGeneration()
	st, ok := svc.updateIf(gen, func(st *entity.SwapQuoteState) { st.ToAmount = "1" })
	assert.False(t, ok)
	assert.Empty(t, st.ToAmount)

	_, err := svc.quoteFailed(gen, entity.ErrNoLiquidity)
	assert.ErrorIs(t, err, entity.ErrStaleResult)
	assert.Empty(t, svc.State().Error)
}

func TestSwapExecute(t *testing.T) {
	f := newFixture(t)
	f.seedKAIAKUSD()
	svc := newSwap(f)
	ctx := context.Background()

	_, err := svc.SetFromAmount(ctx, "10")
	require.NoError(t, err)
	res, err := svc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.TxSuccess, res.Status)
	assert.Equal(t, []string{"approve", "swapExactTokensForTokens"}, f.world.Backend.SentMethods())

	st := svc.State()
	assert.Empty(t, st.FromAmount)
	assert.Empty(t, st.ToAmount)
	assert.Equal(t, "KAIA", st.FromToken)
	assert.Equal(t, "1009.90099009900990099", f.balancesAfter(t).Balance("KUSD"))
}

func (f *fixture) balancesAfter(t *testing.T) entity.BalancesState {
	t.Helper()
	st, err := f.balances().Load(context.Background())
	require.NoError(t, err)
	return st
}

func TestSwapExecuteRejectsBeforeTouchingExchange(t *testing.T) {
	f := newFixture(t)
	f.seedKAIAKUSD()
	svc := newSwap(f)
	ctx := context.Background()

	_, err := svc.Execute(ctx)
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)

	_, _ = svc.SetFromAmount(ctx, "5000")
	_, err = svc.Execute(ctx)
	assert.ErrorIs(t, err, entity.ErrInsufficientBalance)
	assert.Empty(t, f.world.Backend.Sent())
	assert.Zero(t, f.world.Backend.CallCount("getAmountOut"))

	f.disconnect()
	_, err = svc.Execute(ctx)
	assert.ErrorIs(t, err, entity.ErrWalletNotConnected)
}

func TestCreatePoolAndAddLiquidity(t *testing.T) {
	f := newFixture(t)
	svc := newSwap(f)
	ctx := context.Background()

	_, err := svc.CreatePool(ctx, "KUSD", "WKAIA")
	require.NoError(t, err)
	_, err = svc.AddLiquidity(ctx, "KUSD", "WKAIA", "100", "50")
	require.NoError(t, err)
	assert.Equal(t, []string{"createPool", "approve", "approve", "addLiquidity"}, f.world.Backend.SentMethods())
	assert.Equal(t, contractstest.Ether(900), f.token("KUSD").BalanceOf(f.account()))

	_, err = svc.AddLiquidity(ctx, "KUSD", "WKAIA", "100", "0")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)
	_, err = svc.CreatePool(ctx, "KUSD", "KUSD")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)
}

func TestPoolAndRemoveLiquidity(t *testing.T) {
	f := newFixture(t)
	svc := newSwap(f)
	ctx := context.Background()

	_, err := svc.CreatePool(ctx, "KUSD", "WKAIA")
	require.NoError(t, err)
	_, err = svc.AddLiquidity(ctx, "KUSD", "WKAIA", "100", "50")
	require.NoError(t, err)

	pos, err := svc.Pool(ctx, "KUSD", "WKAIA")
	require.NoError(t, err)
	assert.Equal(t, entity.PoolPosition{
		TokenA:        "KUSD",
		TokenB:        "WKAIA",
		Pool:          entity.PoolInfo{ReserveA: "100", ReserveB: "50", TotalLiquidity: "150"},
		UserLiquidity: "150",
	}, pos)

	_, err = svc.RemoveLiquidity(ctx, "KUSD", "WKAIA", "200")
	var insufficient *entity.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "150", insufficient.Available)

	_, err = svc.RemoveLiquidity(ctx, "KUSD", "WKAIA", "0")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)

	_, err = svc.RemoveLiquidity(ctx, "KUSD", "WKAIA", "75")
	require.NoError(t, err)
	assert.Equal(t, "removeLiquidity", f.world.Backend.SentMethods()[len(f.world.Backend.SentMethods())-1])
	assert.Equal(t, contractstest.Ether(950), f.token("KUSD").BalanceOf(f.account()))

	pos, err = svc.Pool(ctx, "KUSD", "WKAIA")
	require.NoError(t, err)
	assert.Equal(t, "75", pos.UserLiquidity)
	assert.Equal(t, "50", pos.Pool.ReserveA)

	f.disconnect()
	_, err = svc.Pool(ctx, "KUSD", "WKAIA")
	assert.ErrorIs(t, err, entity.ErrWalletNotConnected)
}
