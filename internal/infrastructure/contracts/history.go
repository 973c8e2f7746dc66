package contracts

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

type historySource struct {
	protocol entity.Protocol
	contract abi.ABI
	events   map[string]entity.TxType
}

func historySources() []historySource {
	return []historySource{
		{entity.ProtocolFarms, FarmABI(), map[string]entity.TxType{
			"Deposit":  entity.TxTypeStake,
			"Withdraw": entity.TxTypeUnstake,
			"Harvest":  entity.TxTypeHarvest,
		}},
		{entity.ProtocolSwap, ExchangeABI(), map[string]entity.TxType{
			"Swap": entity.TxTypeSwap,
		}},
		{entity.ProtocolStaking, StakingABI(), map[string]entity.TxType{
			"Staked":         entity.TxTypePoolStake,
			"Unstaked":       entity.TxTypePoolUnstake,
			"RewardsClaimed": entity.TxTypeClaimRewards,
		}},
		{entity.ProtocolLending, LendingABI(), map[string]entity.TxType{
			"TokenSupplied":  entity.TxTypeSupply,
			"TokensBorrowed": entity.TxTypeBorrow,
			"LoanRepaid":     entity.TxTypeRepay,
		}},
	}
}

// AccountHistory rebuilds the user's recent protocol activity from event
// logs over the configured block range, most recent first. Modules that
// are not deployed or cannot be queried are skipped.
func (s *Service) AccountHistory(ctx context.Context, user common.Address) ([]entity.Transaction, error) {
	head, err := s.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read block number: %w", err)
	}
	var fromBlock uint64
	if head > s.opts.HistoryBlockRange {
		fromBlock = head - s.opts.HistoryBlockRange
	}
	userTopic := common.BytesToHash(user.Bytes())

	var (
		mu  sync.Mutex
		txs []entity.Transaction
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrentRoutines)

	for _, src := range historySources() {
		src := src
		addr, err := s.protocol(src.protocol)
		if err != nil {
			s.logger.Debug("Skipping history source", "protocol", src.protocol, "error", err)
			continue
		}
		g.Go(func() error {
			ids := make([]common.Hash, 0, len(src.events))
			for name := range src.events {
				ids = append(ids, src.contract.Events[name].ID)
			}
			logs, err := s.backend.FilterLogs(gCtx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(fromBlock),
				ToBlock:   new(big.Int).SetUint64(head),
				Addresses: []common.Address{addr},
				Topics:    [][]common.Hash{ids, {userTopic}},
			})
			if err != nil {
				s.logger.Warn("History query failed", "protocol", src.protocol, "error", err)
				return nil
			}
			for _, lg := range logs {
				tx, ok := s.decodeHistoryLog(gCtx, src, lg)
				if !ok {
					continue
				}
				mu.Lock()
				txs = append(txs, tx)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range txs {
		ts, err := s.blockTime(ctx, txs[i].BlockNumber)
		if err != nil {
			s.logger.Debug("Block timestamp unavailable", "block", txs[i].BlockNumber, "error", err)
			continue
		}
		txs[i].Timestamp = ts
	}
	SortTransactions(txs)
	return txs, nil
}

// SortTransactions orders by timestamp, block number and log index, newest first.
func SortTransactions(txs []entity.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber > b.BlockNumber
		}
		return a.LogIndex > b.LogIndex
	})
}

func (s *Service) decodeHistoryLog(ctx context.Context, src historySource, lg types.Log) (entity.Transaction, bool) {
	if len(lg.Topics) == 0 || lg.Removed {
		return entity.Transaction{}, false
	}
	event, err := src.contract.EventByID(lg.Topics[0])
	if err != nil {
		return entity.Transaction{}, false
	}
	txType, ok := src.events[event.Name]
	if !ok {
		return entity.Transaction{}, false
	}
	fields := map[string]interface{}{}
	if err := src.contract.UnpackIntoMap(fields, event.Name, lg.Data); err != nil {
		s.logger.Debug("Failed to decode event", "event", event.Name, "tx", lg.TxHash.Hex(), "error", err)
		return entity.Transaction{}, false
	}

	amountField, asset, decimals := "amount", "KAIA", utils.DefaultDecimals
	switch event.Name {
	case "Deposit", "Withdraw":
		asset = "LP Token"
	case "Swap":
		amountField, asset = "amountIn", "Token Swap"
		if token, ok := fields["tokenIn"].(common.Address); ok {
			asset = s.symbolOf(token)
			decimals = s.decimals(ctx, token)
		}
	case "TokenSupplied":
		if token, ok := fields["token"].(common.Address); ok {
			asset = s.symbolOf(token)
			decimals = s.decimals(ctx, token)
		}
	case "TokensBorrowed":
		amountField = "borrowAmount"
		if token, ok := fields["borrowToken"].(common.Address); ok {
			asset = s.symbolOf(token)
			decimals = s.decimals(ctx, token)
		}
	case "LoanRepaid":
		amountField, asset = "repayAmount", "Loan"
		if id, ok := fields["borrowId"].(*big.Int); ok {
			asset = "Loan #" + id.String()
		}
	}

	amount := "0"
	if v, ok := fields[amountField].(*big.Int); ok {
		amount = utils.FormatUnits(v, decimals)
	}
	return entity.Transaction{
		Type:        txType,
		Amount:      amount,
		Asset:       asset,
		Hash:        lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
		Status:      entity.TxSuccess,
	}, true
}

func (s *Service) blockTime(ctx context.Context, number uint64) (time.Time, error) {
	key := strconv.FormatUint(s.chainID, 10) + ":" + strconv.FormatUint(number, 10)
	if cached, ok := s.timestamps.Get(key); ok {
		return cached.(time.Time), nil
	}
	header, err := s.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, err
	}
	ts := time.Unix(int64(header.Time), 0).UTC()
	s.timestamps.Set(key, ts, cache.DefaultExpiration)
	return ts, nil
}
