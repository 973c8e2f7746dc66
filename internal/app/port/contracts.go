package port

import (
	"context"
	"math/big"

	"kaia_defi/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

// ContractService is the typed surface over the deployed protocol
// contracts of one chain. Amounts cross it as decimal strings; every
// mutating call returns once the transaction receipt is available.
type ContractService interface {
	ChainID() uint64

	TokenBalance(ctx context.Context, symbol string, account common.Address) (string, error)
	Balances(ctx context.Context, account common.Address, symbols []string) ([]entity.BalanceResultItem, error)
	ERC20Balance(ctx context.Context, token, account common.Address) (string, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (string, error)
	Approve(ctx context.Context, token, spender common.Address, amount string) (entity.TxResult, error)
	Transfer(ctx context.Context, token, to common.Address, amount string) (entity.TxResult, error)
	Mint(ctx context.Context, token, to common.Address, amount string) (entity.TxResult, error)
	TokenMetadata(ctx context.Context, token common.Address) (entity.TokenMetadata, error)
	WrapNative(ctx context.Context, amount string) (entity.TxResult, error)
	UnwrapNative(ctx context.Context, amount string) (entity.TxResult, error)

	SwapQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn string) (string, error)
	PoolInfo(ctx context.Context, tokenA, tokenB common.Address) (entity.PoolInfo, error)
	Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minAmountOut string) (entity.TxResult, error)
	CreatePool(ctx context.Context, tokenA, tokenB common.Address) (entity.TxResult, error)
	AddLiquidity(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB, minA, minB string) (entity.TxResult, error)
	RemoveLiquidity(ctx context.Context, tokenA, tokenB common.Address, liquidity string) (entity.TxResult, error)
	UserLiquidity(ctx context.Context, tokenA, tokenB, user common.Address) (string, error)

	FarmPoolLength(ctx context.Context) (uint64, error)
	FarmInfo(ctx context.Context, pid uint64) (entity.FarmPoolInfo, error)
	FarmUserInfo(ctx context.Context, pid uint64, user common.Address) (entity.FarmUserInfo, error)
	FarmPendingReward(ctx context.Context, pid uint64, user common.Address) (string, error)
	FarmAPY(ctx context.Context, pid uint64) (float64, error)
	FarmDeposit(ctx context.Context, pid uint64, amount string) (entity.TxResult, error)
	FarmWithdraw(ctx context.Context, pid uint64, amount string) (entity.TxResult, error)
	FarmHarvest(ctx context.Context, pid uint64) (entity.TxResult, error)

	StakerInfo(ctx context.Context, user common.Address) (entity.StakerInfo, error)
	TotalStaked(ctx context.Context) (string, error)
	StakingAPY(ctx context.Context) (string, error)
	Stake(ctx context.Context, amount string) (entity.TxResult, error)
	Unstake(ctx context.Context, amount string) (entity.TxResult, error)
	ClaimRewards(ctx context.Context) (entity.TxResult, error)

	Supply(ctx context.Context, token common.Address, amount string) (entity.TxResult, error)
	Borrow(ctx context.Context, collateralToken, borrowToken common.Address, collateralAmount, borrowAmount string) (entity.TxResult, error)
	Repay(ctx context.Context, loanID uint64, amount string) (entity.TxResult, error)
	MaxBorrowAmount(ctx context.Context, collateralToken, borrowToken common.Address, collateralAmount string) (string, error)
	UserBorrowCount(ctx context.Context, user common.Address) (uint64, error)
	UserBorrow(ctx context.Context, user common.Address, loanID uint64) (entity.LoanView, error)
	UserSupplied(ctx context.Context, user, token common.Address) (string, error)
	LendingPoolInfo(ctx context.Context, token common.Address) (entity.LendingPoolInfo, error)
	LiquidationThreshold(ctx context.Context) (float64, error)

	AccountHistory(ctx context.Context, user common.Address) ([]entity.Transaction, error)
	TransactionStatus(ctx context.Context, hash common.Hash) (entity.TxResult, error)
	NetworkInfo(ctx context.Context) (entity.NetworkInfo, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// ContractServiceFactory binds a ContractService to a session's backend
// and signer.
type ContractServiceFactory interface {
	For(session Session) (ContractService, error)
}
