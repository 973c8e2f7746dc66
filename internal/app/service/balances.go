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
)

const (
	mintAmount = "1000"
	wrapAmount = "50"
)

// BalancesService keeps the display token balances of the session account.
type BalancesService struct {
	feature
	prices  port.PriceProvider
	symbols []string

	mu    sync.Mutex
	state entity.BalancesState
}

func NewBalancesService(deps Deps, prices port.PriceProvider, displayTokens []string) *BalancesService {
	return &BalancesService{
		feature: feature{Deps: deps},
		prices:  prices,
		symbols: displayTokens,
		state:   entity.BalancesState{Balances: []entity.TokenBalance{}},
	}
}

func (s *BalancesService) State() entity.BalancesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyBalances(s.state)
}

func copyBalances(st entity.BalancesState) entity.BalancesState {
	st.Balances = append([]entity.TokenBalance(nil), st.Balances...)
	return st
}

func (s *BalancesService) update(fn func(st *entity.BalancesState)) entity.BalancesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyBalances(s.state)
	fn(&next)
	s.state = next
	return copyBalances(next)
}

func (s *BalancesService) fail(err error) error {
	s.update(func(st *entity.BalancesState) {
		st.Loading = false
		st.Error = errorText(err)
	})
	return err
}

// Load reads every display token. A token that cannot be read shows "0".
func (s *BalancesService) Load(ctx context.Context) (entity.BalancesState, error) {
	gen := s.nextGeneration()
	if !s.ready() {
		return s.update(func(st *entity.BalancesState) {
			*st = entity.BalancesState{Balances: []entity.TokenBalance{}}
		}), nil
	}
	session, c, err := s.bind()
	if err != nil {
		return s.State(), s.fail(err)
	}
	s.update(func(st *entity.BalancesState) { st.Loading = true })

	items, err := c.Balances(ctx, session.Account(), s.symbols)
	if err != nil {
		if !s.isCurrent(gen) {
			return s.State(), entity.ErrStaleResult
		}
		return s.State(), s.fail(fmt.Errorf("failed to load balances: %w", err))
	}

	balances := make([]entity.TokenBalance, 0, len(items))
	for _, item := range items {
		tb := entity.TokenBalance{Symbol: item.TokenSymbol, Balance: "0"}
		if item.Error != nil {
			s.Logger.Warn("Balance read failed, showing zero", "symbol", item.TokenSymbol, "chainId", session.ChainID, "error", item.Error)
		} else if item.FormattedBalance != "" {
			tb.Balance = item.FormattedBalance
		}
		if price, ok := s.prices.PriceUSD(tb.Symbol); ok {
			v := utils.ToFloat(tb.Balance) * price
			tb.ValueUSD = &v
		}
		balances = append(balances, tb)
	}

	if !s.isCurrent(gen) {
		return s.State(), entity.ErrStaleResult
	}
	return s.update(func(st *entity.BalancesState) {
		*st = entity.BalancesState{
			Account:  session.Address,
			ChainID:  session.ChainID,
			Balances: balances,
		}
	}), nil
}

// MintTestTokens funds the account on a testnet: KUSD and KAIA are minted
// and part of the KAIA is wrapped. Steps are independent; the call fails
// only when every step failed.
func (s *BalancesService) MintTestTokens(ctx context.Context) ([]entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return nil, s.fail(err)
	}
	if def, ok := s.Registry.GetNetworkDefinitionByChainID(session.ChainID); !ok || !def.Testnet {
		return nil, s.fail(fmt.Errorf("%w: test tokens are only available on testnets", entity.ErrWrongNetwork))
	}

	var (
		results []entity.TxResult
		errs    []error
	)
	for _, symbol := range []string{"KUSD", "KAIA"} {
		_, addr, err := s.token(session.ChainID, symbol)
		if err == nil {
			var res entity.TxResult
			if res, err = c.Mint(ctx, addr, session.Account(), mintAmount); err == nil {
				results = append(results, res)
				continue
			}
		}
		s.Logger.Warn("Test token mint failed", "symbol", symbol, "error", err)
		errs = append(errs, fmt.Errorf("mint %s: %w", symbol, err))
	}
	if res, err := c.WrapNative(ctx, wrapAmount); err != nil {
		s.Logger.Warn("Test token wrap failed", "error", err)
		errs = append(errs, fmt.Errorf("wrap KAIA: %w", err))
	} else {
		results = append(results, res)
	}

	s.reload(ctx)
	if len(results) == 0 {
		return nil, s.fail(errors.Join(errs...))
	}
	return results, nil
}

// Wrap converts native KAIA into WKAIA.
func (s *BalancesService) Wrap(ctx context.Context, amount string) (entity.TxResult, error) {
	return s.act(ctx, amount, "KAIA", func(c port.ContractService) (entity.TxResult, error) {
		return c.WrapNative(ctx, amount)
	})
}

// Unwrap converts WKAIA back into native KAIA.
func (s *BalancesService) Unwrap(ctx context.Context, amount string) (entity.TxResult, error) {
	return s.act(ctx, amount, "WKAIA", func(c port.ContractService) (entity.TxResult, error) {
		return c.UnwrapNative(ctx, amount)
	})
}

// Transfer moves amount of a token contract to another account.
func (s *BalancesService) Transfer(ctx context.Context, symbol, to, amount string) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if !common.IsHexAddress(to) {
		return entity.TxResult{}, s.fail(fmt.Errorf("%w: recipient %q", entity.ErrInvalidAddress, to))
	}
	if err := s.requireTokenAmount(session.ChainID, symbol, "amount", amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	_, token, err := s.token(session.ChainID, symbol)
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	available, err := c.ERC20Balance(ctx, token, session.Account())
	if err != nil {
		return entity.TxResult{}, s.fail(fmt.Errorf("failed to read %s balance: %w", symbol, err))
	}
	if err := requireAvailable(symbol, available, amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	res, err := c.Transfer(ctx, token, common.HexToAddress(to), amount)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

func (s *BalancesService) act(ctx context.Context, amount, symbol string, do func(port.ContractService) (entity.TxResult, error)) (entity.TxResult, error) {
	session, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := s.requireTokenAmount(session.ChainID, symbol, "amount", amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	if err := requireBalance(ctx, c, symbol, session.Account(), amount); err != nil {
		return entity.TxResult{}, s.fail(err)
	}
	res, err := do(c)
	if err != nil {
		return res, s.fail(err)
	}
	s.reload(ctx)
	return res, nil
}

func (s *BalancesService) reload(ctx context.Context) {
	if _, err := s.Load(ctx); err != nil && !errors.Is(err, entity.ErrStaleResult) {
		s.Logger.Warn("Balance reload failed", "error", err)
	}
}

var _ port.BalancesService = (*BalancesService)(nil)
