package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"

	"golang.org/x/sync/errgroup"
)

const stakingToken = "KAIA"

// StakingService tracks the account's position in the staking pool.
type StakingService struct {
	feature

	mu    sync.Mutex
	state entity.StakingState
}

func NewStakingService(deps Deps) *StakingService {
	return &StakingService{feature: feature{Deps: deps}, state: emptyStaking()}
}

func emptyStaking() entity.StakingState {
	return entity.StakingState{Staked: "0", PendingRewards: "0", TotalStaked: "0", APY: "0"}
}

func (s *StakingService) State() entity.StakingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StakingService) update(fn func(st *entity.StakingState)) entity.StakingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state
	fn(&next)
	s.state = next
	return next
}

func (s *StakingService) fail(err error) error {
	s.update(func(st *entity.StakingState) {
		st.Loading = false
		st.Error = errorText(err)
	})
	return err
}

func (s *StakingService) Load(ctx context.Context) (entity.StakingState, error) {
	gen := s.nextGeneration()
	if !s.ready() {
		return s.update(func(st *entity.StakingState) { *st = emptyStaking() }), nil
	}
	session, c, err := s.bind()
	if err != nil {
		return s.State(), s.fail(err)
	}
	s.update(func(st *entity.StakingState) { st.Loading = true })

	var (
		info  entity.StakerInfo
		total string
		apy   string
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		info, err = c.StakerInfo(gCtx, session.Account())
		return err
	})
	g.Go(func() (err error) {
		total, err = c.TotalStaked(gCtx)
		return err
	})
	g.Go(func() (err error) {
		apy, err = c.StakingAPY(gCtx)
		return err
	})
	err = g.Wait()
	if !s.isCurrent(gen) {
		return s.State(), entity.ErrStaleResult
	}
	if err != nil {
		return s.State(), s.fail(fmt.Errorf("failed to load staking data: %w", err))
	}
	return s.update(func(st *entity.StakingState) {
		*st = entity.StakingState{
			Staked:         info.StakedAmount,
			PendingRewards: info.PendingRewards,
			LastUpdate:     info.LastUpdate,
			TotalStaked:    total,
			APY:            apy,
		}
	}), nil
}

// Stake checks the KAIA balance, approves the staking pool and stakes.
func (s *StakingService) Stake(ctx context.Context, amount string) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := s.requireTokenAmount(session.ChainID, stakingToken, "amount", amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, token, err := s.token(session.ChainID, stakingToken)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	pool, err := s.protocol(session.ChainID, entity.ProtocolStaking)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireBalance(ctx, c, stakingToken, session.Account(), amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	s.update(func(st *entity.StakingState) {
		st.Loading = true
		st.Error = ""
	})
	if _, err := c.Approve(ctx, token, pool, amount); err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("approval failed: %w", err))
	}
	res, err := c.Stake(ctx, amount)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

// Unstake withdraws up to the freshly read staked amount.
func (s *StakingService) Unstake(ctx context.Context, amount string) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := s.requireTokenAmount(session.ChainID, stakingToken, "amount", amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	info, err := c.StakerInfo(ctx, session.Account())
	if err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("failed to read staked amount: %w", err))
	}
	if err := requireAvailable("staked "+stakingToken, info.StakedAmount, amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	res, err := c.Unstake(ctx, amount)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

// ClaimRewards claims whatever is pending, even when that reads as zero.
func (s *StakingService) ClaimRewards(ctx context.Context) (entity.TxResult, error) {
	_, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	res, err := c.ClaimRewards(ctx)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

func (s *StakingService) reload(ctx context.Context) {
	if _, err := s.Load(ctx); err != nil && !errors.Is(err, entity.ErrStaleResult) {
		s.Logger.Warn("Staking reload failed", "error", err)
	}
}

var _ port.StakingService = (*StakingService)(nil)
