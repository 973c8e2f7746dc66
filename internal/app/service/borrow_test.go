package service

import (
	"context"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/contracts/contractstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBorrow(f *fixture) *BorrowService {
	return NewBorrowService(f.deps, f.balances(), BorrowConfig{
		DefaultCollateral:     "KAIA",
		DefaultBorrow:         "KUSD",
		DefaultLiquidationLTV: 90,
		BorrowAPR:             3.2,
		CollateralTokens:      []string{"KAIA", "WKAIA"},
		MaxConcurrentRoutines: 4,
	})
}

func TestHealthFor(t *testing.T) {
	tests := []struct {
		ltv  float64
		want entity.Health
	}{
		{0, entity.HealthNone},
		{50, entity.HealthHealthy},
		{71.9, entity.HealthHealthy},
		{72.5, entity.HealthWarning},
		{89.99, entity.HealthWarning},
		{90, entity.HealthLiquidatable},
		{120, entity.HealthLiquidatable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HealthFor(tt.ltv, 90), "ltv %.2f", tt.ltv)
	}
}

func TestLTV(t *testing.T) {
	assert.Equal(t, 50.0, LTV("100", "50"))
	assert.Equal(t, 33.33, LTV("300", "100"))
	assert.Zero(t, LTV("0", "50"))
	assert.Zero(t, LTV("", "50"))
	assert.Zero(t, LTV("100", ""))

	// Display rounds up to the threshold while the exact ratio stays below it.
	assert.Equal(t, 90.0, LTV("3", "2.6999"))
	assert.Equal(t, entity.HealthWarning, healthFor(exactLTV("3", "2.6999"), 90))
	assert.Equal(t, entity.HealthLiquidatable, healthFor(exactLTV("3", "2.7"), 90))
}

func TestBorrowDefaults(t *testing.T) {
	f := newFixture(t)
	st := newBorrow(f).State()
	assert.Equal(t, "KAIA", st.Position.CollateralToken)
	assert.Equal(t, "KUSD", st.Position.BorrowToken)
	assert.Equal(t, 90.0, st.Position.LiquidationLTV)
	assert.Equal(t, entity.HealthNone, st.Position.Health)
	assert.Equal(t, 3.2, st.BorrowAPR)
	assert.Equal(t, []string{"KAIA", "WKAIA"}, st.CollateralTypes)
}

func TestBorrowForm(t *testing.T) {
	f := newFixture(t)
	svc := newBorrow(f)
	ctx := context.Background()

	st, err := svc.SetCollateral(ctx, "KAIA", "100")
	require.NoError(t, err)
	assert.Equal(t, "75", st.MaxBorrow)

	st, err = svc.SetBorrow(ctx, "KUSD", "80")
	require.NoError(t, err)
	assert.Equal(t, 80.0, st.Position.LTV)
	assert.Equal(t, entity.HealthWarning, st.Position.Health)

	_, err = svc.SetCollateral(ctx, "KUSD", "100")
	assert.ErrorIs(t, err, entity.ErrUnknownToken)
	_, err = svc.SetBorrow(ctx, "DOGE", "1")
	assert.ErrorIs(t, err, entity.ErrUnknownToken)
	assert.Equal(t, "KUSD", svc.State().Position.BorrowToken)
}

func TestBorrowRejectsLiquidatablePosition(t *testing.T) {
	f := newFixture(t)
	f.world.Lending.Seed(f.token("KUSD").Address, contractstest.Ether(1000))
	svc := newBorrow(f)
	ctx := context.Background()

	_, err := svc.SetCollateral(ctx, "KAIA", "100")
	require.NoError(t, err)
	st, err := svc.SetBorrow(ctx, "KUSD", "95")
	require.NoError(t, err)
	assert.Equal(t, entity.HealthLiquidatable, st.Position.Health)

	_, err = svc.Execute(ctx)
	assert.ErrorIs(t, err, entity.ErrLTVTooHigh)
	assert.Empty(t, f.world.Backend.Sent())
	assert.NotEmpty(t, svc.State().Error)
}

func TestBorrowAllowsPositionJustBelowThreshold(t *testing.T) {
	f := newFixture(t)
	f.world.Lending.Seed(f.token("KUSD").Address, contractstest.Ether(1000))
	f.world.Lending.MaxLTVPercent = 95
	svc := newBorrow(f)
	ctx := context.Background()

	_, err := svc.SetCollateral(ctx, "KAIA", "3")
	require.NoError(t, err)
	st, err := svc.SetBorrow(ctx, "KUSD", "2.6999")
	require.NoError(t, err)
	assert.Equal(t, 90.0, st.Position.LTV)
	assert.Equal(t, entity.HealthWarning, st.Position.Health)

	_, err = svc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "borrow"}, f.world.Backend.SentMethods())
}

func TestBorrowLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := newBorrow(f)
	ctx := context.Background()

	_, err := svc.SetCollateral(ctx, "KAIA", "100")
	require.NoError(t, err)
	_, err = svc.SetBorrow(ctx, "KUSD", "50")
	require.NoError(t, err)

	_, err = svc.Execute(ctx)
	require.ErrorIs(t, err, entity.ErrNoLiquidity)
	assert.Empty(t, f.world.Backend.Sent())

	f.world.Lending.Seed(f.token("KUSD").Address, contractstest.Ether(1000))
	_, err = svc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "borrow"}, f.world.Backend.SentMethods())

	st := svc.State()
	assert.Empty(t, st.Position.CollateralAmount)
	assert.Equal(t, entity.HealthNone, st.Position.Health)
	require.Len(t, st.Loans, 1)
	assert.Equal(t, entity.LoanView{
		ID:               0,
		CollateralToken:  "KAIA",
		BorrowToken:      "KUSD",
		CollateralAmount: "100",
		BorrowAmount:     "50",
		TotalOwed:        "50",
		Active:           true,
	}, st.Loans[0])
	require.NotNil(t, st.Pool)
	assert.Equal(t, "950", st.Pool.AvailableLiquidity)
	assert.Equal(t, contractstest.Ether(1050), f.token("KUSD").BalanceOf(f.account()))

	_, err = svc.Repay(ctx, 0, "50")
	require.NoError(t, err)
	st = svc.State()
	require.Len(t, st.Loans, 1)
	assert.False(t, st.Loans[0].Active)
	assert.Equal(t, "0", st.Loans[0].TotalOwed)

	_, err = svc.Repay(ctx, 0, "1")
	assert.ErrorIs(t, err, entity.ErrInvalidAmount)
}

func TestBorrowLoadThreshold(t *testing.T) {
	f := newFixture(t)
	svc := newBorrow(f)

	st, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90.0, st.Position.LiquidationLTV)
	assert.Empty(t, st.Loans)
	assert.Equal(t, "0", st.Supplied)

	f.world.Lending.SetThreshold(85)
	st, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 85.0, st.Position.LiquidationLTV)
}

func TestSupply(t *testing.T) {
	f := newFixture(t)
	svc := newBorrow(f)
	ctx := context.Background()

	_, err := svc.Supply(ctx, "KUSD", "200")
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "supply"}, f.world.Backend.SentMethods())
	st := svc.State()
	assert.Equal(t, "200", st.Supplied)
	require.NotNil(t, st.Pool)
	assert.Equal(t, "200", st.Pool.TotalSupplied)
}
