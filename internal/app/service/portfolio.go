package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

// PortfolioService aggregates the balances, staking and farms states with
// the account history. It never submits transactions.
type PortfolioService struct {
	feature
	balances port.BalancesService
	staking  port.StakingService
	farms    port.FarmsService
	prices   port.PriceProvider

	mu       sync.Mutex
	snapshot entity.PortfolioSnapshot
}

func NewPortfolioService(deps Deps, balances port.BalancesService, staking port.StakingService, farms port.FarmsService, prices port.PriceProvider) *PortfolioService {
	return &PortfolioService{
		feature:  feature{Deps: deps},
		balances: balances,
		staking:  staking,
		farms:    farms,
		prices:   prices,
		snapshot: emptySnapshot(),
	}
}

func emptySnapshot() entity.PortfolioSnapshot {
	return entity.PortfolioSnapshot{
		Balances:     []entity.TokenBalance{},
		Staking:      emptyStaking(),
		Farms:        []entity.FarmView{},
		Positions:    []entity.Position{},
		Transactions: []entity.Transaction{},
	}
}

func copySnapshot(p entity.PortfolioSnapshot) entity.PortfolioSnapshot {
	p.Balances = append([]entity.TokenBalance(nil), p.Balances...)
	p.Farms = append([]entity.FarmView(nil), p.Farms...)
	p.Positions = append([]entity.Position(nil), p.Positions...)
	p.Transactions = append([]entity.Transaction(nil), p.Transactions...)
	return p
}

func (s *PortfolioService) Snapshot() entity.PortfolioSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(s.snapshot)
}

func (s *PortfolioService) set(p entity.PortfolioSnapshot) entity.PortfolioSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = p
	return copySnapshot(p)
}

// Refresh reloads every source concurrently and recomputes the snapshot.
// A failing source contributes its last known state.
func (s *PortfolioService) Refresh(ctx context.Context) (entity.PortfolioSnapshot, error) {
	gen := s.nextGeneration()
	if !s.ready() {
		return s.set(emptySnapshot()), nil
	}
	session, c, err := s.bind()
	if err != nil {
		return s.Snapshot(), err
	}

	var (
		balances entity.BalancesState
		staking  entity.StakingState
		farms    entity.FarmsState
		history  []entity.Transaction
		mu       sync.Mutex
		failures []error
	)
	record := func(source string, err error) {
		if err == nil || errors.Is(err, entity.ErrStaleResult) {
			return
		}
		s.Logger.Warn("Portfolio source failed, using last known state", "source", source, "error", err)
		mu.Lock()
		failures = append(failures, fmt.Errorf("%s: %w", source, err))
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := s.balances.Load(ctx)
		record("balances", err)
		balances = s.balances.State()
		return nil
	})
	g.Go(func() error {
		_, err := s.staking.Load(ctx)
		record("staking", err)
		staking = s.staking.State()
		return nil
	})
	g.Go(func() error {
		_, err := s.farms.Load(ctx)
		record("farms", err)
		farms = s.farms.State()
		return nil
	})
	g.Go(func() error {
		txs, err := c.AccountHistory(ctx, session.Account())
		if err != nil {
			s.Logger.Warn("Transaction history unavailable", "error", err)
			txs = []entity.Transaction{}
		}
		history = txs
		return nil
	})
	_ = g.Wait()

	snap := entity.PortfolioSnapshot{
		Account:      session.Address,
		Balances:     balances.Balances,
		Staking:      staking,
		Farms:        farms.Farms,
		Transactions: history,
		UpdatedAt:    time.Now().UTC(),
	}
	snap.Positions = s.positions(session.ChainID, balances, staking, farms)
	for _, p := range snap.Positions {
		snap.TotalValueUSD += p.ValueUSD
	}
	snap.TotalEarnings = s.earnings(staking, farms)
	if len(failures) > 0 {
		snap.Error = errors.Join(failures...).Error()
	}

	if !s.isCurrent(gen) {
		return s.Snapshot(), entity.ErrStaleResult
	}
	if len(failures) == 3 {
		s.set(snap)
		return snap, errors.Join(failures...)
	}
	return s.set(snap), nil
}

func (s *PortfolioService) valueOf(symbol, amount string) float64 {
	price, ok := s.prices.PriceUSD(symbol)
	if !ok {
		return 0
	}
	return utils.ToFloat(amount) * price
}

func (s *PortfolioService) positions(chainID uint64, balances entity.BalancesState, staking entity.StakingState, farms entity.FarmsState) []entity.Position {
	positions := []entity.Position{}
	if utils.IsPositive(staking.Staked) {
		positions = append(positions, entity.Position{
			Asset:    stakingToken,
			Type:     entity.PositionStaking,
			Amount:   staking.Staked,
			ValueUSD: s.valueOf(stakingToken, staking.Staked),
			APY:      staking.APY,
		})
	}
	for _, b := range balances.Balances {
		if !utils.IsPositive(b.Balance) {
			continue
		}
		p := entity.Position{Asset: b.Symbol, Type: entity.PositionHoldings, Amount: b.Balance}
		if b.ValueUSD != nil {
			p.ValueUSD = *b.ValueUSD
		}
		positions = append(positions, p)
	}
	for _, f := range farms.Farms {
		if f.Error != "" || !utils.IsPositive(f.Staked) {
			continue
		}
		p := entity.Position{Asset: f.Pair, Type: entity.PositionFarming, Amount: f.Staked, APY: f.APY}
		if tok, ok := s.Registry.TokenByAddress(chainID, common.HexToAddress(f.LPToken)); ok {
			p.ValueUSD = s.valueOf(tok.Symbol, f.Staked)
		}
		positions = append(positions, p)
	}
	return positions
}

// earnings values pending staking and farm rewards in USD.
func (s *PortfolioService) earnings(staking entity.StakingState, farms entity.FarmsState) float64 {
	total := s.valueOf(stakingToken, staking.PendingRewards)
	for _, f := range farms.Farms {
		if f.Error == "" {
			total += s.valueOf(f.RewardToken, f.Earned)
		}
	}
	return total
}

var _ port.PortfolioService = (*PortfolioService)(nil)
