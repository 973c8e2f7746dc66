package port

import (
	"context"

	"kaia_defi/internal/domain/entity"
)

// SessionManager is the wallet connection surface exposed to the API.
type SessionManager interface {
	SessionSource
	Connect(ctx context.Context) (entity.SessionView, error)
	Disconnect() entity.SessionView
	SwitchNetwork(ctx context.Context, chainID uint64) (entity.SessionView, error)
}

type BalancesService interface {
	State() entity.BalancesState
	Load(ctx context.Context) (entity.BalancesState, error)
	MintTestTokens(ctx context.Context) ([]entity.TxResult, error)
	Wrap(ctx context.Context, amount string) (entity.TxResult, error)
	Unwrap(ctx context.Context, amount string) (entity.TxResult, error)
	Transfer(ctx context.Context, symbol, to, amount string) (entity.TxResult, error)
}

type SwapService interface {
	State() entity.SwapQuoteState
	SetFromAmount(ctx context.Context, amount string) (entity.SwapQuoteState, error)
	SetFromToken(ctx context.Context, symbol string) (entity.SwapQuoteState, error)
	SetToToken(ctx context.Context, symbol string) (entity.SwapQuoteState, error)
	SwitchTokens(ctx context.Context) (entity.SwapQuoteState, error)
	SetSlippage(percent float64) (entity.SwapQuoteState, error)
	Quote() (entity.SwapQuote, error)
	Execute(ctx context.Context) (entity.TxResult, error)
	CreatePool(ctx context.Context, tokenA, tokenB string) (entity.TxResult, error)
	AddLiquidity(ctx context.Context, tokenA, tokenB, amountA, amountB string) (entity.TxResult, error)
	Pool(ctx context.Context, tokenA, tokenB string) (entity.PoolPosition, error)
	RemoveLiquidity(ctx context.Context, tokenA, tokenB, liquidity string) (entity.TxResult, error)
}

type StakingService interface {
	State() entity.StakingState
	Load(ctx context.Context) (entity.StakingState, error)
	Stake(ctx context.Context, amount string) (entity.TxResult, error)
	Unstake(ctx context.Context, amount string) (entity.TxResult, error)
	ClaimRewards(ctx context.Context) (entity.TxResult, error)
}

type BorrowService interface {
	State() entity.BorrowState
	Load(ctx context.Context) (entity.BorrowState, error)
	SetCollateral(ctx context.Context, symbol, amount string) (entity.BorrowState, error)
	SetBorrow(ctx context.Context, symbol, amount string) (entity.BorrowState, error)
	Execute(ctx context.Context) (entity.TxResult, error)
	Supply(ctx context.Context, symbol, amount string) (entity.TxResult, error)
	Repay(ctx context.Context, loanID uint64, amount string) (entity.TxResult, error)
}

type FarmsService interface {
	State() entity.FarmsState
	Load(ctx context.Context) (entity.FarmsState, error)
	Stake(ctx context.Context, pid uint64, amount string) (entity.TxResult, error)
	Unstake(ctx context.Context, pid uint64, amount string) (entity.TxResult, error)
	Harvest(ctx context.Context, pid uint64) (entity.TxResult, error)
}

// PortfolioService is read-only.
type PortfolioService interface {
	Snapshot() entity.PortfolioSnapshot
	Refresh(ctx context.Context) (entity.PortfolioSnapshot, error)
}

// NetworkService answers chain status questions for the connected session.
type NetworkService interface {
	NetworkInfo(ctx context.Context) (entity.NetworkInfo, error)
	TransactionStatus(ctx context.Context, hash string) (entity.TxResult, error)
}
