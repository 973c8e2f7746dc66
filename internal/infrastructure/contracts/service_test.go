package contracts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/contracts"
	"kaia_defi/internal/infrastructure/contracts/contractstest"
	networkdefinition "kaia_defi/internal/infrastructure/network/definition"
	"kaia_defi/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kairos = uint64(1001)

type fixture struct {
	world    *contractstest.World
	signer   *contractstest.Signer
	registry *networkdefinition.NetworkDefinitionProvider
	svc      *contracts.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := networkdefinition.NewNetworkDefinitionProvider(logger.Nop{}, nil, nil)
	world := contractstest.NewWorld(registry, kairos)
	signer := contractstest.NewSigner()
	world.Fund(signer.Address(), 1000)
	svc := contracts.NewService(world.Backend, signer, registry, kairos, contracts.Options{ReceiptPollInterval: time.Millisecond}, logger.Nop{})
	return &fixture{world: world, signer: signer, registry: registry, svc: svc}
}

func (f *fixture) token(symbol string) common.Address {
	return f.world.Tokens[symbol].Address
}

func TestApproveThenAllowance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spender := f.world.DEX.Address

	res, err := f.svc.Approve(ctx, f.token("KUSD"), spender, "12.5")
	require.NoError(t, err)
	assert.Equal(t, entity.TxSuccess, res.Status)
	assert.NotEmpty(t, res.Hash)

	allowance, err := f.svc.Allowance(ctx, f.token("KUSD"), f.signer.Address(), spender)
	require.NoError(t, err)
	assert.Equal(t, "12.5", allowance)
}

func TestTokenBalanceNativeAndERC20(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.signer.Address()
	f.world.Backend.SetNative(account, contractstest.Ether(3))
	f.world.Tokens["KUSD"].SetBalance(account, contractstest.Ether(7))

	kaia, err := f.svc.TokenBalance(ctx, "KAIA", account)
	require.NoError(t, err)
	assert.Equal(t, "3", kaia)

	kusd, err := f.svc.TokenBalance(ctx, "KUSD", account)
	require.NoError(t, err)
	assert.Equal(t, "7", kusd)

	_, err = f.svc.TokenBalance(ctx, "stKAIA", account)
	assert.ErrorIs(t, err, entity.ErrNotDeployed)
	_, err = f.svc.TokenBalance(ctx, "DOGE", account)
	assert.ErrorIs(t, err, entity.ErrUnknownToken)
}

func TestBalancesReportsPerItemErrors(t *testing.T) {
	f := newFixture(t)
	items, err := f.svc.Balances(context.Background(), f.signer.Address(), []string{"KAIA", "stKAIA", "KUSD"})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "1000", items[0].FormattedBalance)
	assert.True(t, items[0].IsNative)
	assert.ErrorIs(t, items[1].Error, entity.ErrNotDeployed)
	assert.Equal(t, "1000", items[2].FormattedBalance)
}

func TestSwapQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SwapQuote(ctx, f.token("KAIA"), f.token("KUSD"), "1")
	assert.ErrorIs(t, err, entity.ErrNoLiquidity)

	f.world.DEX.SetPool(f.token("KAIA"), f.token("KUSD"), contractstest.Ether(1000), contractstest.Ether(1000))
	out, err := f.svc.SwapQuote(ctx, f.token("KAIA"), f.token("KUSD"), "10")
	require.NoError(t, err)
	assert.Equal(t, "9.90099009900990099", out)

	info, err := f.svc.PoolInfo(ctx, f.token("KAIA"), f.token("KUSD"))
	require.NoError(t, err)
	assert.Equal(t, "1000", info.ReserveA)
}

func TestSwapWithoutApprovalReverts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.world.DEX.SetPool(f.token("KAIA"), f.token("KUSD"), contractstest.Ether(1000), contractstest.Ether(1000))

	_, err := f.svc.Swap(ctx, f.token("KAIA"), f.token("KUSD"), "10", "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrContractReverted)

	var contractErr *entity.ContractError
	require.True(t, errors.As(err, &contractErr))
	assert.Contains(t, contractErr.Reason, "insufficient allowance")
	assert.Empty(t, f.world.Backend.SentMethods())

	_, err = f.svc.Approve(ctx, f.token("KAIA"), f.world.DEX.Address, "10")
	require.NoError(t, err)
	_, err = f.svc.Swap(ctx, f.token("KAIA"), f.token("KUSD"), "10", "9")
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "swapExactTokensForTokens"}, f.world.Backend.SentMethods())
}

func TestMutationsRequireSigner(t *testing.T) {
	f := newFixture(t)
	readOnly := contracts.NewService(f.world.Backend, nil, f.registry, kairos, contracts.Options{}, logger.Nop{})

	_, err := readOnly.Stake(context.Background(), "1")
	assert.ErrorIs(t, err, entity.ErrWalletNotConnected)
}

func TestLiquidationThresholdDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	threshold, err := f.svc.LiquidationThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90.0, threshold)

	f.world.Lending.SetThreshold(85)
	threshold, err = f.svc.LiquidationThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 85.0, threshold)
}

func TestFarmReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.world.Farms.AddPool(&contractstest.FarmPool{
		LPToken:        f.world.Tokens["WKAIA"],
		RewardToken:    f.world.Tokens["KAIA"],
		AllocPoint:     1000,
		Name:           "KAIA-KUSD LP",
		Active:         true,
		APYBasisPoints: 4550,
	})
	f.world.Farms.SetUser(pid, f.signer.Address(), contractstest.Ether(5), contractstest.Ether(1))

	n, err := f.svc.FarmPoolLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	info, err := f.svc.FarmInfo(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), info.AllocPoint)
	assert.Equal(t, "KAIA-KUSD LP", info.Name)
	assert.Equal(t, "5", info.TotalStaked)

	apy, err := f.svc.FarmAPY(ctx, pid)
	require.NoError(t, err)
	assert.InDelta(t, 45.5, apy, 1e-9)

	user, err := f.svc.FarmUserInfo(ctx, pid, f.signer.Address())
	require.NoError(t, err)
	assert.Equal(t, "5", user.Amount)
	assert.Equal(t, "1", user.PendingRewards)

	_, err = f.svc.FarmInfo(ctx, 7)
	assert.ErrorIs(t, err, entity.ErrContractReverted)
}

func TestWrapAndUnwrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.signer.Address()

	_, err := f.svc.WrapNative(ctx, "50")
	require.NoError(t, err)
	assert.Equal(t, contractstest.Ether(950), f.world.Backend.NativeBalance(account))
	assert.Equal(t, contractstest.Ether(1050), f.world.Tokens["WKAIA"].BalanceOf(account))

	_, err = f.svc.UnwrapNative(ctx, "1050")
	require.NoError(t, err)
	assert.Equal(t, 0, f.world.Tokens["WKAIA"].BalanceOf(account).Sign())
}

func TestAccountHistoryMostRecentFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, f.token("KAIA"), f.world.Staking.Address, "5")
	require.NoError(t, err)
	_, err = f.svc.Stake(ctx, "5")
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.token("KUSD"), f.world.Lending.Address, "20")
	require.NoError(t, err)
	_, err = f.svc.Supply(ctx, f.token("KUSD"), "20")
	require.NoError(t, err)

	txs, err := f.svc.AccountHistory(ctx, f.signer.Address())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, entity.TxTypeSupply, txs[0].Type)
	assert.Equal(t, "KUSD", txs[0].Asset)
	assert.Equal(t, "20", txs[0].Amount)
	assert.Equal(t, entity.TxTypePoolStake, txs[1].Type)
	assert.True(t, txs[0].Timestamp.After(txs[1].Timestamp))
}

func TestAccountHistorySkipsFailingSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Approve(ctx, f.token("KAIA"), f.world.Staking.Address, "5")
	require.NoError(t, err)
	_, err = f.svc.Stake(ctx, "5")
	require.NoError(t, err)
	f.world.Backend.FilterErr[f.world.Staking.Address] = errors.New("boom")

	txs, err := f.svc.AccountHistory(ctx, f.signer.Address())
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSortTransactionsTieBreaks(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	txs := []entity.Transaction{
		{Hash: "a", BlockNumber: 10, LogIndex: 0, Timestamp: ts},
		{Hash: "b", BlockNumber: 10, LogIndex: 2, Timestamp: ts},
		{Hash: "c", BlockNumber: 11, LogIndex: 0, Timestamp: ts},
		{Hash: "d", BlockNumber: 9, LogIndex: 0, Timestamp: ts.Add(time.Minute)},
	}
	contracts.SortTransactions(txs)
	var order []string
	for _, tx := range txs {
		order = append(order, tx.Hash)
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, order)
}

func TestTransactionStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.svc.TransactionStatus(ctx, common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Equal(t, entity.TxPending, pending.Status)

	res, err := f.svc.Transfer(ctx, f.token("KUSD"), common.HexToAddress("0x02"), "1")
	require.NoError(t, err)
	status, err := f.svc.TransactionStatus(ctx, common.HexToHash(res.Hash))
	require.NoError(t, err)
	assert.Equal(t, entity.TxSuccess, status.Status)
	assert.Equal(t, res.BlockNumber, status.BlockNumber)
}

func TestNetworkInfo(t *testing.T) {
	f := newFixture(t)
	info, err := f.svc.NetworkInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, kairos, info.ChainID)
	assert.Equal(t, "Kairos Testnet", info.Name)
	assert.Equal(t, "25", info.GasPriceGwei)
	assert.Equal(t, uint64(100), info.BlockNumber)
}

func TestFactory(t *testing.T) {
	f := newFixture(t)
	factory := contracts.NewFactory(f.registry, contracts.Options{}, logger.Nop{})

	_, err := factory.For(port.Session{})
	assert.ErrorIs(t, err, entity.ErrWalletNotConnected)

	session := port.Session{Backend: f.world.Backend, Signer: f.signer}
	session.ChainID = 99999
	_, err = factory.For(session)
	assert.ErrorIs(t, err, entity.ErrWrongNetwork)

	session.ChainID = kairos
	svc, err := factory.For(session)
	require.NoError(t, err)
	assert.Equal(t, kairos, svc.ChainID())
}
