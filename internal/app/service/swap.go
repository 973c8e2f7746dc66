package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/metrics"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const maxSlippage = 50.0

var (
	hundred          = decimal.NewFromInt(100)
	impactHighAmount = decimal.NewFromInt(1000)
	impactMidAmount  = decimal.NewFromInt(100)
)

// SwapConfig holds the swap form defaults.
type SwapConfig struct {
	DefaultFrom     string
	DefaultTo       string
	DefaultSlippage float64
	GasLimit        uint64
}

// SwapService holds the swap form and derives quotes for it.
type SwapService struct {
	feature
	balances port.BalancesService
	cfg      SwapConfig

	mu    sync.Mutex
	state entity.SwapQuoteState
}

func NewSwapService(deps Deps, balances port.BalancesService, cfg SwapConfig) *SwapService {
	return &SwapService{
		feature:  feature{Deps: deps},
		balances: balances,
		cfg:      cfg,
		state:    initialSwapState(cfg),
	}
}

func initialSwapState(cfg SwapConfig) entity.SwapQuoteState {
	return entity.SwapQuoteState{
		FromToken: cfg.DefaultFrom,
		ToToken:   cfg.DefaultTo,
		Slippage:  cfg.DefaultSlippage,
	}
}

func (s *SwapService) State() entity.SwapQuoteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SwapService) update(fn func(st *entity.SwapQuoteState)) entity.SwapQuoteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	fn(&next)
	s.state = next
	return next
}

// updateIf applies fn only while gen is the latest generation.
func (s *SwapService) updateIf(gen uint64, fn func(st *entity.SwapQuoteState)) (entity.SwapQuoteState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrent(gen) {
		return s.state, false
	}
	next := s.state
	fn(&next)
	s.state = next
	return next, true
}

func clearQuote(st *entity.SwapQuoteState) {
	st.ToAmount = ""
	st.PriceImpact = ""
	st.ExchangeRate = ""
	st.GasEstimate = ""
	st.MinimumReceived = ""
	st.Error = ""
}

func (s *SwapService) SetFromAmount(ctx context.Context, amount string) (entity.SwapQuoteState, error) {
	s.update(func(st *entity.SwapQuoteState) { st.FromAmount = amount })
	return s.recompute(ctx)
}

func (s *SwapService) SetFromToken(ctx context.Context, symbol string) (entity.SwapQuoteState, error) {
	s.update(func(st *entity.SwapQuoteState) { st.FromToken = symbol })
	return s.recompute(ctx)
}

func (s *SwapService) SetToToken(ctx context.Context, symbol string) (entity.SwapQuoteState, error) {
	s.update(func(st *entity.SwapQuoteState) { st.ToToken = symbol })
	return s.recompute(ctx)
}

// SwitchTokens exchanges both sides. The previous output becomes the new input.
func (s *SwapService) SwitchTokens(ctx context.Context) (entity.SwapQuoteState, error) {
	s.update(func(st *entity.SwapQuoteState) {
		st.FromToken, st.ToToken = st.ToToken, st.FromToken
		if st.ToAmount != "" {
			st.FromAmount = st.ToAmount
		}
	})
	return s.recompute(ctx)
}

// SetSlippage accepts tolerances in (0, 50] percent and re-derives the
// minimum received without a new quote.
func (s *SwapService) SetSlippage(percent float64) (entity.SwapQuoteState, error) {
	if percent <= 0 || percent > maxSlippage {
		return s.State(), fmt.Errorf("%w: slippage must be in (0, %.0f]", entity.ErrInvalidAmount, maxSlippage)
	}
	return s.update(func(st *entity.SwapQuoteState) {
		st.Slippage = percent
		if st.ToAmount != "" {
			st.MinimumReceived = minimumReceived(st.ToAmount, percent)
		}
	}), nil
}

func minimumReceived(amount string, slippage float64) string {
	d, err := utils.ParseDecimal(amount)
	if err != nil {
		return ""
	}
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(slippage).Div(hundred))
	return d.Mul(factor).StringFixed(6)
}

// recompute clears the previous quote and, when the inputs allow it,
// derives a new one. Results of superseded requests are dropped.
func (s *SwapService) recompute(ctx context.Context) (entity.SwapQuoteState, error) {
	gen := s.nextGeneration()
	st := s.update(func(st *entity.SwapQuoteState) {
		clearQuote(st)
		st.Generation = gen
		st.Loading = false
	})
	if !utils.IsPositive(st.FromAmount) {
		return st, nil
	}
	if st.FromToken == st.ToToken {
		return s.quoteFailed(gen, fmt.Errorf("%w: select two different tokens", entity.ErrInvalidAmount))
	}
	session, c, err := s.bind()
	if err != nil {
		return s.quoteFailed(gen, err)
	}
	_, tokenIn, err := s.token(session.ChainID, st.FromToken)
	if err != nil {
		return s.quoteFailed(gen, err)
	}
	_, tokenOut, err := s.token(session.ChainID, st.ToToken)
	if err != nil {
		return s.quoteFailed(gen, err)
	}
	s.updateIf(gen, func(st *entity.SwapQuoteState) { st.Loading = true })

	if err := requireBalance(ctx, c, st.FromToken, session.Account(), st.FromAmount); err != nil {
		return s.quoteFailed(gen, err)
	}
	out, err := c.SwapQuote(ctx, tokenIn, tokenOut, st.FromAmount)
	if err != nil {
		return s.quoteFailed(gen, err)
	}
	impact := s.priceImpact(ctx, c, tokenIn, tokenOut, st.FromAmount)
	gas := s.gasEstimate(ctx, c)

	rate := ""
	if in, err := utils.ParseDecimal(st.FromAmount); err == nil && !in.IsZero() {
		outDec, _ := utils.ParseDecimal(out)
		rate = outDec.Div(in).StringFixed(6)
	}

	next, ok := s.updateIf(gen, func(st *entity.SwapQuoteState) {
		st.ToAmount = out
		st.PriceImpact = impact
		st.ExchangeRate = rate
		st.GasEstimate = gas
		st.MinimumReceived = minimumReceived(out, st.Slippage)
		st.Loading = false
	})
	if !ok {
		metrics.Quotes.WithLabelValues("stale").Inc()
		return next, entity.ErrStaleResult
	}
	metrics.Quotes.WithLabelValues("ok").Inc()
	return next, nil
}

func (s *SwapService) quoteFailed(gen uint64, err error) (entity.SwapQuoteState, error) {
	next, ok := s.updateIf(gen, func(st *entity.SwapQuoteState) {
		st.Loading = false
		st.Error = errorText(err)
	})
	if !ok {
		metrics.Quotes.WithLabelValues("stale").Inc()
		return next, entity.ErrStaleResult
	}
	switch {
	case errors.Is(err, entity.ErrNoLiquidity):
		metrics.Quotes.WithLabelValues("no_liquidity").Inc()
	case errors.Is(err, entity.ErrInsufficientBalance):
		metrics.Quotes.WithLabelValues("insufficient_balance").Inc()
	default:
		metrics.Quotes.WithLabelValues("error").Inc()
	}
	return next, err
}

// priceImpact is amountIn over the input reserve, in percent. Without
// reserves it falls back to a bucket by trade size.
func (s *SwapService) priceImpact(ctx context.Context, c port.ContractService, tokenIn, tokenOut common.Address, amountIn string) string {
	in, _ := utils.ParseDecimal(amountIn)
	pool, err := c.PoolInfo(ctx, tokenIn, tokenOut)
	if err == nil {
		if reserve, perr := utils.ParseDecimal(pool.ReserveA); perr == nil && reserve.IsPositive() {
			return in.Div(reserve).Mul(hundred).StringFixed(2)
		}
	} else {
		s.Logger.Debug("Pool reserves unavailable, using coarse price impact", "error", err)
	}
	switch {
	case in.GreaterThan(impactHighAmount):
		return "2.00"
	case in.GreaterThan(impactMidAmount):
		return "0.50"
	default:
		return "0.10"
	}
}

// gasEstimate is gas price times the configured swap gas limit, in KAIA.
func (s *SwapService) gasEstimate(ctx context.Context, c port.ContractService) string {
	price, err := c.GasPrice(ctx)
	if err != nil {
		s.Logger.Debug("Gas price unavailable, omitting gas estimate", "error", err)
		return ""
	}
	wei := new(big.Int).Mul(price, new(big.Int).SetUint64(s.cfg.GasLimit))
	return utils.FormatUnits(wei, utils.DefaultDecimals)
}

// Quote summarises the current form for confirmation.
func (s *SwapService) Quote() (entity.SwapQuote, error) {
	st := s.State()
	if st.ToAmount == "" {
		return entity.SwapQuote{}, fmt.Errorf("%w: no quote for the current inputs", entity.ErrNoLiquidity)
	}
	return entity.SwapQuote{
		FromToken:       st.FromToken,
		ToToken:         st.ToToken,
		FromAmount:      st.FromAmount,
		ToAmount:        st.ToAmount,
		ExchangeRate:    st.ExchangeRate,
		PriceImpact:     st.PriceImpact,
		MinimumReceived: st.MinimumReceived,
		Slippage:        st.Slippage,
		GasEstimate:     st.GasEstimate,
	}, nil
}

func (s *SwapService) fail(err error) error {
	s.update(func(st *entity.SwapQuoteState) {
		st.Loading = false
		st.Error = errorText(err)
	})
	return err
}

// Execute swaps the current form: balance check, approve the exchange,
// swap with the slippage-derived minimum, then reset the form.
func (s *SwapService) Execute(ctx context.Context) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	st := s.State()
	if err := s.requireTokenAmount(session.ChainID, st.FromToken, "amount", st.FromAmount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if st.FromToken == st.ToToken {
		return entity.TxResult{}, s.fail(fmt.Errorf("%w: select two different tokens", entity.ErrInvalidAmount))
	}
	_, tokenIn, err := s.token(session.ChainID, st.FromToken)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, tokenOut, err := s.token(session.ChainID, st.ToToken)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	dex, err := s.protocol(session.ChainID, entity.ProtocolSwap)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireBalance(ctx, c, st.FromToken, session.Account(), st.FromAmount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}

	s.update(func(st *entity.SwapQuoteState) {
		st.Loading = true
		st.Error = ""
	})
	out, err := c.SwapQuote(ctx, tokenIn, tokenOut, st.FromAmount)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	minOut := minimumReceived(out, st.Slippage)

	if _, err := c.Approve(ctx, tokenIn, dex, st.FromAmount); err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("approval failed: %w", err))
	}
	res, err := c.Swap(ctx, tokenIn, tokenOut, st.FromAmount, minOut)
	if err != nil {
		return res, s.fail(err)
	}
	s.Logger.Info("Swap executed", "from", st.FromToken, "to", st.ToToken, "amount", st.FromAmount, "tx", res.Hash)

	s.nextGeneration()
	s.update(func(st *entity.SwapQuoteState) {
		clearQuote(st)
		st.FromAmount = ""
		st.Loading = false
	})
	s.reloadBalances(ctx)
	return res, nil
}

// CreatePool registers a new pair on the exchange.
func (s *SwapService) CreatePool(ctx context.Context, tokenA, tokenB string) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if tokenA == tokenB {
		return entity.TxResult{}, s.fail(fmt.Errorf("%w: select two different tokens", entity.ErrInvalidAmount))
	}
	_, a, err := s.token(session.ChainID, tokenA)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, b, err := s.token(session.ChainID, tokenB)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	res, err := c.CreatePool(ctx, a, b)
	if err != nil {
		return res, s.fail(err)
	}
	return res, nil
}

// AddLiquidity approves both tokens one after the other, then deposits
// them with minimums derived from the form's slippage.
func (s *SwapService) AddLiquidity(ctx context.Context, tokenA, tokenB, amountA, amountB string) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := s.requireTokenAmount(session.ChainID, tokenA, "amountA", amountA); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := s.requireTokenAmount(session.ChainID, tokenB, "amountB", amountB); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, a, err := s.token(session.ChainID, tokenA)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, b, err := s.token(session.ChainID, tokenB)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	dex, err := s.protocol(session.ChainID, entity.ProtocolSwap)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireBalance(ctx, c, tokenA, session.Account(), amountA); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireBalance(ctx, c, tokenB, session.Account(), amountB); err != nil {
		return entity.TxResult{}, s.fail(err)
	}

	if _, err := c.Approve(ctx, a, dex, amountA); err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("approval of %s failed: %w", tokenA, err))
	}
	if _, err := c.Approve(ctx, b, dex, amountB); err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("approval of %s failed: %w", tokenB, err))
	}
	slippage := s.State().Slippage
	res, err := c.AddLiquidity(ctx, a, b, amountA, amountB, minimumReceived(amountA, slippage), minimumReceived(amountB, slippage))
	if err != nil {
		return res, s.fail(err)
	}
	s.reloadBalances(ctx)
	return res, nil
}

// Pool reads the reserves of a pair and the account's liquidity in it.
func (s *SwapService) Pool(ctx context.Context, tokenA, tokenB string) (entity.PoolPosition, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.PoolPosition{}, err
	}
	_, a, err := s.token(session.ChainID, tokenA)
	if err != nil {
		return entity.PoolPosition{}, err
	}
	_, b, err := s.token(session.ChainID, tokenB)
	if err != nil {
		return entity.PoolPosition{}, err
	}
	info, err := c.PoolInfo(ctx, a, b)
	if err != nil {
		return entity.PoolPosition{}, err
	}
	liquidity, err := c.UserLiquidity(ctx, a, b, session.Account())
	if err != nil {
		return entity.PoolPosition{}, err
	}
	return entity.PoolPosition{TokenA: tokenA, TokenB: tokenB, Pool: info, UserLiquidity: liquidity}, nil
}

// RemoveLiquidity burns liquidity of a pair against the freshly read
// position and returns both tokens to the account.
func (s *SwapService) RemoveLiquidity(ctx context.Context, tokenA, tokenB, liquidity string) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requirePositive("liquidity", liquidity, utils.DefaultDecimals); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, a, err := s.token(session.ChainID, tokenA)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, b, err := s.token(session.ChainID, tokenB)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	held, err := c.UserLiquidity(ctx, a, b, session.Account())
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireAvailable(tokenA+"-"+tokenB+" LP", held, liquidity); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	res, err := c.RemoveLiquidity(ctx, a, b, liquidity)
	if err != nil {
		return res, s.fail(err)
	}
	s.reloadBalances(ctx)
	return res, nil
}

func (s *SwapService) reloadBalances(ctx context.Context) {
	if s.balances == nil {
		return
	}
	if _, err := s.balances.Load(ctx); err != nil && !errors.Is(err, entity.ErrStaleResult) {
		s.Logger.Warn("Balance reload after swap failed", "error", err)
	}
}

var _ port.SwapService = (*SwapService)(nil)
