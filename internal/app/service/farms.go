package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	highRiskAllocPoint   = 800
	mediumRiskAllocPoint = 600
)

// FarmsService lists the farm pools with the account's positions.
type FarmsService struct {
	feature
	prices      port.PriceProvider
	concurrency int

	mu    sync.Mutex
	state entity.FarmsState
}

func NewFarmsService(deps Deps, prices port.PriceProvider, maxConcurrentRoutines int) *FarmsService {
	return &FarmsService{
		feature:     feature{Deps: deps},
		prices:      prices,
		concurrency: maxConcurrentRoutines,
		state:       emptyFarms(),
	}
}

func emptyFarms() entity.FarmsState {
	return entity.FarmsState{Farms: []entity.FarmView{}, Stats: entity.FarmStats{TotalTVL: "0.00", MaxAPY: "0.00"}}
}

func copyFarms(st entity.FarmsState) entity.FarmsState {
	st.Farms = append([]entity.FarmView(nil), st.Farms...)
	return st
}

func (s *FarmsService) State() entity.FarmsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFarms(s.state)
}

func (s *FarmsService) update(fn func(st *entity.FarmsState)) entity.FarmsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyFarms(s.state)
	fn(&next)
	s.state = next
	return copyFarms(next)
}

func (s *FarmsService) fail(err error) error {
	s.update(func(st *entity.FarmsState) {
		st.Loading = false
		st.Error = errorText(err)
	})
	return err
}

// RiskFor derives the risk tier from a pool's allocation points.
func RiskFor(allocPoint uint64) entity.RiskTier {
	switch {
	case allocPoint > highRiskAllocPoint:
		return entity.RiskHigh
	case allocPoint > mediumRiskAllocPoint:
		return entity.RiskMedium
	default:
		return entity.RiskLow
	}
}

// Multiplier renders allocation points as a reward multiplier, e.g. "1.5x".
func Multiplier(allocPoint uint64) string {
	return decimal.NewFromInt(int64(allocPoint)).Div(hundred).String() + "x"
}

// Load reads every farm index independently. An index that fails to read
// is listed with its Error set.
func (s *FarmsService) Load(ctx context.Context) (entity.FarmsState, error) {
	gen := s.nextGeneration()
	if !s.ready() {
		return s.update(func(st *entity.FarmsState) { *st = emptyFarms() }), nil
	}
	session, c, err := s.bind()
	if err != nil {
		return s.State(), s.fail(err)
	}
	s.update(func(st *entity.FarmsState) { st.Loading = true })

	n, err := c.FarmPoolLength(ctx)
	if err != nil {
		if !s.isCurrent(gen) {
			return s.State(), entity.ErrStaleResult
		}
		return s.State(), s.fail(err)
	}

	farms := make([]entity.FarmView, n)
	g, gCtx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for pid := uint64(0); pid < n; pid++ {
		pid := pid
		g.Go(func() error {
			view, err := s.farmView(gCtx, c, session, pid)
			if err != nil {
				s.Logger.Warn("Farm read failed", "pid", pid, "error", err)
				view = entity.FarmView{ID: pid, Pair: fmt.Sprintf("Farm #%d", pid), Error: errorText(err)}
			}
			farms[pid] = view
			return nil
		})
	}
	_ = g.Wait()

	if !s.isCurrent(gen) {
		return s.State(), entity.ErrStaleResult
	}
	return s.update(func(st *entity.FarmsState) {
		*st = entity.FarmsState{Farms: farms, Stats: farmStats(farms)}
	}), nil
}

func (s *FarmsService) farmView(ctx context.Context, c port.ContractService, session port.Session, pid uint64) (entity.FarmView, error) {
	info, err := c.FarmInfo(ctx, pid)
	if err != nil {
		return entity.FarmView{}, err
	}
	apy, err := c.FarmAPY(ctx, pid)
	if err != nil {
		return entity.FarmView{}, err
	}
	user, err := c.FarmUserInfo(ctx, pid, session.Account())
	if err != nil {
		return entity.FarmView{}, err
	}
	earned, err := c.FarmPendingReward(ctx, pid, session.Account())
	if err != nil {
		return entity.FarmView{}, err
	}

	pair := info.Name
	if pair == "" {
		pair = fmt.Sprintf("Farm #%d", pid)
	}
	return entity.FarmView{
		ID:          pid,
		Pair:        pair,
		APY:         fmt.Sprintf("%.2f", apy),
		TVL:         s.tvl(session.ChainID, info),
		Earned:      earned,
		Staked:      user.Amount,
		Multiplier:  Multiplier(info.AllocPoint),
		Risk:        RiskFor(info.AllocPoint),
		LPToken:     info.LPToken,
		RewardToken: s.tokenLabel(session.ChainID, info.RewardToken),
		Active:      info.Active,
	}, nil
}

// tvl values the staked LP amount in USD when the LP token is registered
// and priced, and reports the raw staked amount otherwise.
func (s *FarmsService) tvl(chainID uint64, info entity.FarmPoolInfo) string {
	if tok, ok := s.Registry.TokenByAddress(chainID, common.HexToAddress(info.LPToken)); ok {
		if price, ok := s.prices.PriceUSD(tok.Symbol); ok {
			staked, _ := utils.ParseDecimal(info.TotalStaked)
			return staked.Mul(decimal.NewFromFloat(price)).StringFixed(2)
		}
	}
	return info.TotalStaked
}

func (s *FarmsService) tokenLabel(chainID uint64, address string) string {
	if tok, ok := s.Registry.TokenByAddress(chainID, common.HexToAddress(address)); ok {
		return tok.Symbol
	}
	return address
}

func farmStats(farms []entity.FarmView) entity.FarmStats {
	total, maxAPY := decimal.Zero, decimal.Zero
	var stats entity.FarmStats
	for _, f := range farms {
		if f.Error != "" {
			continue
		}
		if tvl, err := utils.ParseDecimal(f.TVL); err == nil {
			total = total.Add(tvl)
		}
		if apy, err := utils.ParseDecimal(f.APY); err == nil && apy.GreaterThan(maxAPY) {
			maxAPY = apy
		}
		if f.Active {
			stats.ActiveFarms++
		}
		if utils.IsPositive(f.Staked) {
			stats.ActivePositions++
		}
	}
	stats.TotalTVL = total.StringFixed(2)
	stats.MaxAPY = maxAPY.StringFixed(2)
	return stats
}

// farmAction runs the checks shared by every farm action: a bound session,
// then the caller's input checks, then a pool id within range.
func (s *FarmsService) farmAction(ctx context.Context, pid uint64, checks ...func() error) (port.Session, port.ContractService, error) {
	session, c, err := s.bind()
	if err != nil {
		return session, nil, err
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return session, nil, err
		}
	}
	n, err := c.FarmPoolLength(ctx)
	if err != nil {
		return session, nil, err
	}
	if pid >= n {
		return session, nil, fmt.Errorf("%w: %d", entity.ErrUnknownFarm, pid)
	}
	return session, c, nil
}

// Stake checks the LP token balance, approves the farm and deposits.
func (s *FarmsService) Stake(ctx context.Context, pid uint64, amount string) (entity.TxResult, error) {
	session, c, err := s.farmAction(ctx, pid, func() error {
		return requirePositive("amount", amount, utils.DefaultDecimals)
	})
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	farm, err := s.protocol(session.ChainID, entity.ProtocolFarms)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	info, err := c.FarmInfo(ctx, pid)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	lp := common.HexToAddress(info.LPToken)
	available, err := c.ERC20Balance(ctx, lp, session.Account())
	if err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("failed to read LP token balance: %w", err))
	}
	if err := requireAvailable("LP", available, amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if _, err := c.Approve(ctx, lp, farm, amount); err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("approval failed: %w", err))
	}
	res, err := c.FarmDeposit(ctx, pid, amount)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

// Unstake withdraws up to the freshly read stake.
func (s *FarmsService) Unstake(ctx context.Context, pid uint64, amount string) (entity.TxResult, error) {
	session, c, err := s.farmAction(ctx, pid, func() error {
		return requirePositive("amount", amount, utils.DefaultDecimals)
	})
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	user, err := c.FarmUserInfo(ctx, pid, session.Account())
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireAvailable("staked LP", user.Amount, amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	res, err := c.FarmWithdraw(ctx, pid, amount)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

// Harvest claims the pool's pending reward without checking it first.
func (s *FarmsService) Harvest(ctx context.Context, pid uint64) (entity.TxResult, error) {
	_, c, err := s.farmAction(ctx, pid)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	res, err := c.FarmHarvest(ctx, pid)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

func (s *FarmsService) reload(ctx context.Context) {
	if _, err := s.Load(ctx); err != nil && !errors.Is(err, entity.ErrStaleResult) {
		s.Logger.Warn("Farms reload failed", "error", err)
	}
}

var _ port.FarmsService = (*FarmsService)(nil)
