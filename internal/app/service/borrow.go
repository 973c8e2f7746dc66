package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// healthyShare of the liquidation threshold separates healthy from warning.
const healthyShare = 0.8

// BorrowConfig holds the borrow form defaults.
type BorrowConfig struct {
	DefaultCollateral     string
	DefaultBorrow         string
	DefaultLiquidationLTV float64
	BorrowAPR             float64
	CollateralTokens      []string
	MaxConcurrentRoutines int
}

// BorrowService holds the borrow form, derives its LTV and health and
// lists the account's loans.
type BorrowService struct {
	feature
	balances port.BalancesService
	cfg      BorrowConfig

	mu    sync.Mutex
	state entity.BorrowState
}

func NewBorrowService(deps Deps, balances port.BalancesService, cfg BorrowConfig) *BorrowService {
	s := &BorrowService{feature: feature{Deps: deps}, balances: balances, cfg: cfg}
	s.state = s.initialState()
	return s
}

func (s *BorrowService) initialState() entity.BorrowState {
	return entity.BorrowState{
		Position: entity.BorrowPosition{
			CollateralToken: s.cfg.DefaultCollateral,
			BorrowToken:     s.cfg.DefaultBorrow,
			LiquidationLTV:  s.cfg.DefaultLiquidationLTV,
			Health:          entity.HealthNone,
		},
		MaxBorrow:       "0",
		BorrowAPR:       s.cfg.BorrowAPR,
		Loans:           []entity.LoanView{},
		Supplied:        "0",
		CollateralTypes: append([]string(nil), s.cfg.CollateralTokens...),
	}
}

func copyBorrow(st entity.BorrowState) entity.BorrowState {
	st.Loans = append([]entity.LoanView(nil), st.Loans...)
	st.CollateralTypes = append([]string(nil), st.CollateralTypes...)
	if st.Pool != nil {
		pool := *st.Pool
		st.Pool = &pool
	}
	return st
}

func (s *BorrowService) State() entity.BorrowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyBorrow(s.state)
}

func (s *BorrowService) update(fn func(st *entity.BorrowState)) entity.BorrowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyBorrow(s.state)
	fn(&next)
	s.state = next
	return copyBorrow(next)
}

func (s *BorrowService) fail(err error) error {
	s.update(func(st *entity.BorrowState) {
		st.Loading = false
		st.Error = errorText(err)
	})
	return err
}

// LTV returns borrow over collateral in percent, rounded for display and
// zero without collateral.
func LTV(collateralAmount, borrowAmount string) float64 {
	return exactLTV(collateralAmount, borrowAmount).Round(2).InexactFloat64()
}

// exactLTV is the unrounded ratio that gates borrowing and health.
func exactLTV(collateralAmount, borrowAmount string) decimal.Decimal {
	collateral, err := utils.ParseDecimal(collateralAmount)
	if err != nil || !collateral.IsPositive() {
		return decimal.Zero
	}
	borrowed, err := utils.ParseDecimal(borrowAmount)
	if err != nil || !borrowed.IsPositive() {
		return decimal.Zero
	}
	return borrowed.Div(collateral).Mul(hundred)
}

// HealthFor classifies an LTV against the liquidation threshold.
func HealthFor(ltv, threshold float64) entity.Health {
	return healthFor(decimal.NewFromFloat(ltv), threshold)
}

func healthFor(ltv decimal.Decimal, threshold float64) entity.Health {
	limit := decimal.NewFromFloat(threshold)
	switch {
	case ltv.IsZero():
		return entity.HealthNone
	case ltv.LessThan(limit.Mul(decimal.NewFromFloat(healthyShare))):
		return entity.HealthHealthy
	case ltv.LessThan(limit):
		return entity.HealthWarning
	default:
		return entity.HealthLiquidatable
	}
}

func derivePosition(p *entity.BorrowPosition) {
	p.LTV = LTV(p.CollateralAmount, p.BorrowAmount)
	p.Health = healthFor(exactLTV(p.CollateralAmount, p.BorrowAmount), p.LiquidationLTV)
}

// Load refreshes the liquidation threshold, the account's loans, its
// supplied amount and the borrow token's pool.
func (s *BorrowService) Load(ctx context.Context) (entity.BorrowState, error) {
	gen := s.nextGeneration()
	if !s.ready() {
		return s.update(func(st *entity.BorrowState) {
			st.Loans = []entity.LoanView{}
			st.Supplied = "0"
			st.Pool = nil
			st.Loading = false
			st.Error = ""
		}), nil
	}
	session, c, err := s.bind()
	if err != nil {
		return s.State(), s.fail(err)
	}
	form := s.update(func(st *entity.BorrowState) { st.Loading = true })
	_, borrowToken, err := s.token(session.ChainID, form.Position.BorrowToken)
	if err != nil {
		return s.State(), s.fail(err)
	}
	account := session.Account()

	threshold, err := c.LiquidationThreshold(ctx)
	if err != nil {
		s.Logger.Warn("Liquidation threshold read failed, keeping previous value", "error", err)
		threshold = form.Position.LiquidationLTV
	}
	loans, err := s.loans(ctx, c, account)
	if err != nil {
		if !s.isCurrent(gen) {
			return s.State(), entity.ErrStaleResult
		}
		return s.State(), s.fail(err)
	}
	supplied, err := c.UserSupplied(ctx, account, borrowToken)
	if err != nil {
		s.Logger.Warn("Supplied amount read failed", "token", form.Position.BorrowToken, "error", err)
		supplied = "0"
	}
	var pool *entity.LendingPoolInfo
	if info, err := c.LendingPoolInfo(ctx, borrowToken); err != nil {
		s.Logger.Warn("Lending pool read failed", "token", form.Position.BorrowToken, "error", err)
	} else {
		pool = &info
	}

	if !s.isCurrent(gen) {
		return s.State(), entity.ErrStaleResult
	}
	return s.update(func(st *entity.BorrowState) {
		st.Position.LiquidationLTV = threshold
		derivePosition(&st.Position)
		st.Loans = loans
		st.Supplied = supplied
		st.Pool = pool
		st.Loading = false
		st.Error = ""
	}), nil
}

func (s *BorrowService) loans(ctx context.Context, c port.ContractService, account common.Address) ([]entity.LoanView, error) {
	count, err := c.UserBorrowCount(ctx, account)
	if err != nil {
		return nil, err
	}
	loans := make([]entity.LoanView, count)
	g, gCtx := errgroup.WithContext(ctx)
	if s.cfg.MaxConcurrentRoutines > 0 {
		g.SetLimit(s.cfg.MaxConcurrentRoutines)
	}
	for i := uint64(0); i < count; i++ {
		i := i
		g.Go(func() error {
			loan, err := c.UserBorrow(gCtx, account, i)
			if err != nil {
				return err
			}
			loans[i] = loan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loans, nil
}

// SetCollateral updates the collateral side and asks the module how much
// could be borrowed against it.
func (s *BorrowService) SetCollateral(ctx context.Context, symbol, amount string) (entity.BorrowState, error) {
	if !slices.Contains(s.cfg.CollateralTokens, symbol) {
		return s.State(), s.fail(fmt.Errorf("%w: %s is not accepted as collateral", entity.ErrUnknownToken, symbol))
	}
	gen := s.nextGeneration()
	st := s.update(func(st *entity.BorrowState) {
		st.Position.CollateralToken = symbol
		st.Position.CollateralAmount = amount
		st.MaxBorrow = "0"
		st.Error = ""
		derivePosition(&st.Position)
	})
	if !utils.IsPositive(amount) || !s.ready() {
		return st, nil
	}
	session, c, err := s.bind()
	if err != nil {
		return s.State(), s.fail(err)
	}
	_, collateral, err := s.token(session.ChainID, symbol)
	if err != nil {
		return s.State(), s.fail(err)
	}
	_, borrow, err := s.token(session.ChainID, st.Position.BorrowToken)
	if err != nil {
		return s.State(), s.fail(err)
	}
	maxBorrow, err := c.MaxBorrowAmount(ctx, collateral, borrow, amount)
	if !s.isCurrent(gen) {
		return s.State(), entity.ErrStaleResult
	}
	if err != nil {
		return s.State(), s.fail(err)
	}
	return s.update(func(st *entity.BorrowState) { st.MaxBorrow = maxBorrow }), nil
}

// SetBorrow updates the borrow side and re-derives LTV and health.
func (s *BorrowService) SetBorrow(_ context.Context, symbol, amount string) (entity.BorrowState, error) {
	if s.ready() {
		if _, err := s.Registry.Token(s.Sessions.Current().ChainID, symbol); err != nil {
			return s.State(), s.fail(err)
		}
	}
	return s.update(func(st *entity.BorrowState) {
		st.Position.BorrowToken = symbol
		st.Position.BorrowAmount = amount
		st.Error = ""
		derivePosition(&st.Position)
	}), nil
}

// Execute opens a loan for the current form. Positions at or above the
// liquidation threshold are rejected before any lending call.
func (s *BorrowService) Execute(ctx context.Context) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	p := s.State().Position
	if err := s.requireTokenAmount(session.ChainID, p.CollateralToken, "collateral amount", p.CollateralAmount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := s.requireTokenAmount(session.ChainID, p.BorrowToken, "borrow amount", p.BorrowAmount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if exactLTV(p.CollateralAmount, p.BorrowAmount).GreaterThanOrEqual(decimal.NewFromFloat(p.LiquidationLTV)) {
		return entity.TxResult{}, s.fail(fmt.Errorf("%w: %.2f%% >= %.2f%%", entity.ErrLTVTooHigh, p.LTV, p.LiquidationLTV))
	}
	_, collateral, err := s.token(session.ChainID, p.CollateralToken)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, borrow, err := s.token(session.ChainID, p.BorrowToken)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	lending, err := s.protocol(session.ChainID, entity.ProtocolLending)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireBalance(ctx, c, p.CollateralToken, session.Account(), p.CollateralAmount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	pool, err := c.LendingPoolInfo(ctx, borrow)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if utils.GreaterThan(p.BorrowAmount, pool.AvailableLiquidity) {
		return entity.TxResult{}, s.fail(fmt.Errorf("%w: only %s %s available to borrow", entity.ErrNoLiquidity, pool.AvailableLiquidity, p.BorrowToken))
	}

	s.update(func(st *entity.BorrowState) {
		st.Loading = true
		st.Error = ""
	})
	if _, err := c.Approve(ctx, collateral, lending, p.CollateralAmount); err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("approval failed: %w", err))
	}
	res, err := c.Borrow(ctx, collateral, borrow, p.CollateralAmount, p.BorrowAmount)
	if err != nil {
		return res, s.fail(err)
	}
	s.Logger.Info("Loan opened", "collateral", p.CollateralToken, "borrow", p.BorrowToken, "amount", p.BorrowAmount, "tx", res.Hash)

	s.update(func(st *entity.BorrowState) {
		st.Position.CollateralAmount = ""
		st.Position.BorrowAmount = ""
		st.MaxBorrow = "0"
		derivePosition(&st.Position)
	})
	s.reload(ctx)
	return res, nil
}

// Supply deposits liquidity into the lending pool.
func (s *BorrowService) Supply(ctx context.Context, symbol, amount string) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := s.requireTokenAmount(session.ChainID, symbol, "amount", amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, token, err := s.token(session.ChainID, symbol)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	lending, err := s.protocol(session.ChainID, entity.ProtocolLending)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireBalance(ctx, c, symbol, session.Account(), amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if _, err := c.Approve(ctx, token, lending, amount); err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("approval failed: %w", err))
	}
	res, err := c.Supply(ctx, token, amount)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

// Repay pays back part or all of a loan in its borrow token.
func (s *BorrowService) Repay(ctx context.Context, loanID uint64, amount string) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requirePositive("amount", amount, utils.DefaultDecimals); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	lending, err := s.protocol(session.ChainID, entity.ProtocolLending)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	loan, err := c.UserBorrow(ctx, session.Account(), loanID)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if !loan.Active {
		return entity.TxResult{}, s.fail(fmt.Errorf("%w: loan %d is not active", entity.ErrInvalidAmount, loanID))
	}
	symbol, token, err := s.loanToken(session.ChainID, loan.BorrowToken)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := s.requireTokenAmount(session.ChainID, symbol, "amount", amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireBalance(ctx, c, symbol, session.Account(), amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if _, err := c.Approve(ctx, token, lending, amount); err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("approval failed: %w", err))
	}
	res, err := c.Repay(ctx, loanID, amount)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

// loanToken resolves the borrow token of a loan, which is reported by
// symbol when registered and by address otherwise.
func (s *BorrowService) loanToken(chainID uint64, ref string) (string, common.Address, error) {
	if info, addr, err := s.token(chainID, ref); err == nil {
		return info.Symbol, addr, nil
	}
	if common.IsHexAddress(ref) {
		if info, ok := s.Registry.TokenByAddress(chainID, common.HexToAddress(ref)); ok {
			return info.Symbol, common.HexToAddress(info.Address), nil
		}
	}
	return "", common.Address{}, fmt.Errorf("%w: loan token %s", entity.ErrUnknownToken, ref)
}

func (s *BorrowService) reload(ctx context.Context) {
	if _, err := s.Load(ctx); err != nil && !errors.Is(err, entity.ErrStaleResult) {
		s.Logger.Warn("Borrow reload failed", "error", err)
	}
	if s.balances != nil {
		if _, err := s.balances.Load(ctx); err != nil && !errors.Is(err, entity.ErrStaleResult) {
			s.Logger.Warn("Balance reload after lending action failed", "error", err)
		}
	}
}

var _ port.BorrowService = (*BorrowService)(nil)
