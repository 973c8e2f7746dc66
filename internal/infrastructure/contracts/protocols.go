package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
)

func pidArg(pid uint64) *big.Int { return new(big.Int).SetUint64(pid) }

func (s *Service) FarmPoolLength(ctx context.Context) (uint64, error) {
	farm, err := s.protocol(entity.ProtocolFarms)
	if err != nil {
		return 0, err
	}
	n, err := s.callBigInt(ctx, farmABI, farm, "poolLength")
	if err != nil {
		return 0, fmt.Errorf("failed to read farm pool length: %w", err)
	}
	return n.Uint64(), nil
}

func (s *Service) FarmInfo(ctx context.Context, pid uint64) (entity.FarmPoolInfo, error) {
	farm, err := s.protocol(entity.ProtocolFarms)
	if err != nil {
		return entity.FarmPoolInfo{}, err
	}
	values, err := s.call(ctx, farmABI, farm, "getPoolInfo", pidArg(pid))
	if err != nil {
		return entity.FarmPoolInfo{}, fmt.Errorf("failed to read farm %d: %w", pid, err)
	}
	if len(values) < 7 {
		return entity.FarmPoolInfo{}, fmt.Errorf("getPoolInfo: expected 7 values, got %d", len(values))
	}
	lpToken, err := addressAt(values, 0, "getPoolInfo")
	if err != nil {
		return entity.FarmPoolInfo{}, err
	}
	rewardToken, err := addressAt(values, 1, "getPoolInfo")
	if err != nil {
		return entity.FarmPoolInfo{}, err
	}
	allocPoint, err := bigAt(values, 2, "getPoolInfo")
	if err != nil {
		return entity.FarmPoolInfo{}, err
	}
	totalStaked, err := bigAt(values, 3, "getPoolInfo")
	if err != nil {
		return entity.FarmPoolInfo{}, err
	}
	rewardPerBlock, err := bigAt(values, 4, "getPoolInfo")
	if err != nil {
		return entity.FarmPoolInfo{}, err
	}
	name, _ := values[5].(string)
	active, _ := values[6].(bool)

	return entity.FarmPoolInfo{
		LPToken:        lpToken.Hex(),
		RewardToken:    rewardToken.Hex(),
		AllocPoint:     allocPoint.Uint64(),
		TotalStaked:    utils.FormatUnits(totalStaked, utils.DefaultDecimals),
		RewardPerBlock: utils.FormatUnits(rewardPerBlock, utils.DefaultDecimals),
		Name:           name,
		Active:         active,
	}, nil
}

func (s *Service) FarmUserInfo(ctx context.Context, pid uint64, user common.Address) (entity.FarmUserInfo, error) {
	farm, err := s.protocol(entity.ProtocolFarms)
	if err != nil {
		return entity.FarmUserInfo{}, err
	}
	values, err := s.call(ctx, farmABI, farm, "getUserInfo", pidArg(pid), user)
	if err != nil {
		return entity.FarmUserInfo{}, fmt.Errorf("failed to read farm %d user info: %w", pid, err)
	}
	var amounts [3]string
	for i := range amounts {
		v, err := bigAt(values, i, "getUserInfo")
		if err != nil {
			return entity.FarmUserInfo{}, err
		}
		amounts[i] = utils.FormatUnits(v, utils.DefaultDecimals)
	}
	return entity.FarmUserInfo{Amount: amounts[0], RewardDebt: amounts[1], PendingRewards: amounts[2]}, nil
}

func (s *Service) FarmPendingReward(ctx context.Context, pid uint64, user common.Address) (string, error) {
	farm, err := s.protocol(entity.ProtocolFarms)
	if err != nil {
		return "", err
	}
	raw, err := s.callBigInt(ctx, farmABI, farm, "pendingReward", pidArg(pid), user)
	if err != nil {
		return "", fmt.Errorf("failed to read farm %d pending reward: %w", pid, err)
	}
	return utils.FormatUnits(raw, utils.DefaultDecimals), nil
}

// FarmAPY converts the farm's basis-point APY to a percentage.
func (s *Service) FarmAPY(ctx context.Context, pid uint64) (float64, error) {
	farm, err := s.protocol(entity.ProtocolFarms)
	if err != nil {
		return 0, err
	}
	bps, err := s.callBigInt(ctx, farmABI, farm, "calculateAPY", pidArg(pid))
	if err != nil {
		return 0, fmt.Errorf("failed to read farm %d APY: %w", pid, err)
	}
	return basisPointsToPercent(bps), nil
}

func basisPointsToPercent(bps *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(bps), big.NewFloat(100)).Float64()
	return f
}

func (s *Service) FarmDeposit(ctx context.Context, pid uint64, amount string) (entity.TxResult, error) {
	farm, err := s.protocol(entity.ProtocolFarms)
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := parseUnits(amount, utils.DefaultDecimals)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "farmDeposit", farmABI, farm, nil, "deposit", pidArg(pid), wei)
}

func (s *Service) FarmWithdraw(ctx context.Context, pid uint64, amount string) (entity.TxResult, error) {
	farm, err := s.protocol(entity.ProtocolFarms)
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := parseUnits(amount, utils.DefaultDecimals)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "farmWithdraw", farmABI, farm, nil, "withdraw", pidArg(pid), wei)
}

func (s *Service) FarmHarvest(ctx context.Context, pid uint64) (entity.TxResult, error) {
	farm, err := s.protocol(entity.ProtocolFarms)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "farmHarvest", farmABI, farm, nil, "harvest", pidArg(pid))
}

func (s *Service) StakerInfo(ctx context.Context, user common.Address) (entity.StakerInfo, error) {
	staking, err := s.protocol(entity.ProtocolStaking)
	if err != nil {
		return entity.StakerInfo{}, err
	}
	values, err := s.call(ctx, stakingABI, staking, "getStakerInfo", user)
	if err != nil {
		return entity.StakerInfo{}, fmt.Errorf("failed to read staker info: %w", err)
	}
	staked, err := bigAt(values, 0, "getStakerInfo")
	if err != nil {
		return entity.StakerInfo{}, err
	}
	pending, err := bigAt(values, 1, "getStakerInfo")
	if err != nil {
		return entity.StakerInfo{}, err
	}
	lastUpdate, err := bigAt(values, 2, "getStakerInfo")
	if err != nil {
		return entity.StakerInfo{}, err
	}
	return entity.StakerInfo{
		StakedAmount:   utils.FormatUnits(staked, utils.DefaultDecimals),
		PendingRewards: utils.FormatUnits(pending, utils.DefaultDecimals),
		LastUpdate:     lastUpdate.Uint64(),
	}, nil
}

func (s *Service) TotalStaked(ctx context.Context) (string, error) {
	staking, err := s.protocol(entity.ProtocolStaking)
	if err != nil {
		return "", err
	}
	raw, err := s.callBigInt(ctx, stakingABI, staking, "getTotalStaked")
	if err != nil {
		return "", fmt.Errorf("failed to read total staked: %w", err)
	}
	return utils.FormatUnits(raw, utils.DefaultDecimals), nil
}

// StakingAPY returns the module's APY figure unscaled.
func (s *Service) StakingAPY(ctx context.Context) (string, error) {
	staking, err := s.protocol(entity.ProtocolStaking)
	if err != nil {
		return "", err
	}
	raw, err := s.callBigInt(ctx, stakingABI, staking, "getAPY")
	if err != nil {
		return "", fmt.Errorf("failed to read staking APY: %w", err)
	}
	return raw.String(), nil
}

func (s *Service) Stake(ctx context.Context, amount string) (entity.TxResult, error) {
	staking, err := s.protocol(entity.ProtocolStaking)
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := parseUnits(amount, utils.DefaultDecimals)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "stake", stakingABI, staking, nil, "stake", wei)
}

func (s *Service) Unstake(ctx context.Context, amount string) (entity.TxResult, error) {
	staking, err := s.protocol(entity.ProtocolStaking)
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := parseUnits(amount, utils.DefaultDecimals)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "unstake", stakingABI, staking, nil, "unstake", wei)
}

func (s *Service) ClaimRewards(ctx context.Context) (entity.TxResult, error) {
	staking, err := s.protocol(entity.ProtocolStaking)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "claimRewards", stakingABI, staking, nil, "claimRewards")
}

func (s *Service) Supply(ctx context.Context, token common.Address, amount string) (entity.TxResult, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := s.parseAmount(ctx, token, amount)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "supply", lendingABI, lending, nil, "supply", token, wei)
}

func (s *Service) Borrow(ctx context.Context, collateralToken, borrowToken common.Address, collateralAmount, borrowAmount string) (entity.TxResult, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return entity.TxResult{}, err
	}
	collateral, err := s.parseAmount(ctx, collateralToken, collateralAmount)
	if err != nil {
		return entity.TxResult{}, err
	}
	borrowed, err := s.parseAmount(ctx, borrowToken, borrowAmount)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "borrow", lendingABI, lending, nil, "borrow", collateralToken, borrowToken, collateral, borrowed)
}

func (s *Service) Repay(ctx context.Context, loanID uint64, amount string) (entity.TxResult, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := parseUnits(amount, utils.DefaultDecimals)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "repay", lendingABI, lending, nil, "repay", new(big.Int).SetUint64(loanID), wei)
}

func (s *Service) MaxBorrowAmount(ctx context.Context, collateralToken, borrowToken common.Address, collateralAmount string) (string, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return "", err
	}
	collateral, err := s.parseAmount(ctx, collateralToken, collateralAmount)
	if err != nil {
		return "", err
	}
	raw, err := s.callBigInt(ctx, lendingABI, lending, "getMaxBorrowAmount", collateralToken, borrowToken, collateral)
	if err != nil {
		return "", fmt.Errorf("failed to read max borrow amount: %w", err)
	}
	return utils.FormatUnits(raw, s.decimals(ctx, borrowToken)), nil
}

func (s *Service) UserBorrowCount(ctx context.Context, user common.Address) (uint64, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return 0, err
	}
	n, err := s.callBigInt(ctx, lendingABI, lending, "getUserBorrowCount", user)
	if err != nil {
		return 0, fmt.Errorf("failed to read borrow count: %w", err)
	}
	return n.Uint64(), nil
}

func (s *Service) UserBorrow(ctx context.Context, user common.Address, loanID uint64) (entity.LoanView, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return entity.LoanView{}, err
	}
	values, err := s.call(ctx, lendingABI, lending, "getUserBorrow", user, new(big.Int).SetUint64(loanID))
	if err != nil {
		return entity.LoanView{}, fmt.Errorf("failed to read loan %d: %w", loanID, err)
	}
	if len(values) < 6 {
		return entity.LoanView{}, fmt.Errorf("getUserBorrow: expected 6 values, got %d", len(values))
	}
	collateral, err := bigAt(values, 0, "getUserBorrow")
	if err != nil {
		return entity.LoanView{}, err
	}
	borrowed, err := bigAt(values, 1, "getUserBorrow")
	if err != nil {
		return entity.LoanView{}, err
	}
	collateralToken, err := addressAt(values, 2, "getUserBorrow")
	if err != nil {
		return entity.LoanView{}, err
	}
	borrowToken, err := addressAt(values, 3, "getUserBorrow")
	if err != nil {
		return entity.LoanView{}, err
	}
	owed, err := bigAt(values, 4, "getUserBorrow")
	if err != nil {
		return entity.LoanView{}, err
	}
	active, _ := values[5].(bool)

	borrowDecimals := s.decimals(ctx, borrowToken)
	return entity.LoanView{
		ID:               loanID,
		CollateralToken:  s.symbolOf(collateralToken),
		BorrowToken:      s.symbolOf(borrowToken),
		CollateralAmount: utils.FormatUnits(collateral, s.decimals(ctx, collateralToken)),
		BorrowAmount:     utils.FormatUnits(borrowed, borrowDecimals),
		TotalOwed:        utils.FormatUnits(owed, borrowDecimals),
		Active:           active,
	}, nil
}

func (s *Service) UserSupplied(ctx context.Context, user, token common.Address) (string, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return "", err
	}
	raw, err := s.callBigInt(ctx, lendingABI, lending, "getUserSupplied", user, token)
	if err != nil {
		return "", fmt.Errorf("failed to read supplied amount: %w", err)
	}
	return utils.FormatUnits(raw, s.decimals(ctx, token)), nil
}

// LendingPoolInfo reads the per-token pool; utilization arrives in basis points.
func (s *Service) LendingPoolInfo(ctx context.Context, token common.Address) (entity.LendingPoolInfo, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return entity.LendingPoolInfo{}, err
	}
	values, err := s.call(ctx, lendingABI, lending, "getPoolInfo", token)
	if err != nil {
		return entity.LendingPoolInfo{}, fmt.Errorf("failed to read lending pool info: %w", err)
	}
	var raw [4]*big.Int
	for i := range raw {
		v, err := bigAt(values, i, "getPoolInfo")
		if err != nil {
			return entity.LendingPoolInfo{}, err
		}
		raw[i] = v
	}
	dec := s.decimals(ctx, token)
	return entity.LendingPoolInfo{
		TotalSupplied:      utils.FormatUnits(raw[0], dec),
		TotalBorrowed:      utils.FormatUnits(raw[1], dec),
		AvailableLiquidity: utils.FormatUnits(raw[2], dec),
		Utilization:        basisPointsToPercent(raw[3]),
	}, nil
}

// LiquidationThreshold returns the module's threshold in percent. Modules
// that do not expose one, or revert on the read, get the default of 90.
func (s *Service) LiquidationThreshold(ctx context.Context) (float64, error) {
	lending, err := s.protocol(entity.ProtocolLending)
	if err != nil {
		return 0, err
	}
	raw, err := s.callBigInt(ctx, lendingABI, lending, "liquidationThreshold")
	if err != nil {
		var contractErr *entity.ContractError
		if errors.As(err, &contractErr) {
			s.logger.Debug("Liquidation threshold not reported, using default", "chainId", s.chainID, "error", err)
			return defaultLiquidationThreshold, nil
		}
		return 0, fmt.Errorf("failed to read liquidation threshold: %w", err)
	}
	f, _ := new(big.Float).SetInt(raw).Float64()
	if f <= 0 || f > 100 {
		return defaultLiquidationThreshold, nil
	}
	return f, nil
}
