package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
)

// Deps are the collaborators every feature service shares.
type Deps struct {
	Sessions  port.SessionSource
	Contracts port.ContractServiceFactory
	Registry  port.NetworkRegistry
	Logger    port.Logger
}

// feature carries the session checks and the read generation counter of
// one feature service.
type feature struct {
	Deps
	generation atomic.Uint64
}

// bind returns the session and a contract service for it, failing with
// ErrWalletNotConnected or ErrWrongNetwork before any network call.
func (f *feature) bind() (port.Session, port.ContractService, error) {
	s := f.Sessions.Current()
	if !s.IsConnected() {
		return s, nil, entity.ErrWalletNotConnected
	}
	if !f.Registry.IsSupported(s.ChainID) {
		return s, nil, fmt.Errorf("%w: chain %d", entity.ErrWrongNetwork, s.ChainID)
	}
	c, err := f.Contracts.For(s)
	if err != nil {
		return s, nil, err
	}
	return s, c, nil
}

// ready reports whether reads can be attempted for the current session.
func (f *feature) ready() bool {
	s := f.Sessions.Current()
	return s.IsConnected() && f.Registry.IsSupported(s.ChainID)
}

func (f *feature) nextGeneration() uint64 { return f.generation.Add(1) }

func (f *feature) isCurrent(gen uint64) bool { return f.generation.Load() == gen }

func (f *feature) token(chainID uint64, symbol string) (entity.TokenInfo, common.Address, error) {
	info, err := f.Registry.Token(chainID, symbol)
	if err != nil {
		return entity.TokenInfo{}, common.Address{}, err
	}
	return info, common.HexToAddress(info.Address), nil
}

func (f *feature) protocol(chainID uint64, p entity.Protocol) (common.Address, error) {
	return f.Registry.ProtocolAddress(chainID, p)
}

// requirePositive rejects amounts that round to zero base units at decimals.
func requirePositive(field, amount string, decimals uint8) error {
	if !utils.IsPositiveUnits(amount, decimals) {
		return fmt.Errorf("%w: %s must be greater than 0", entity.ErrInvalidAmount, field)
	}
	return nil
}

// requireTokenAmount is requirePositive at the registered decimals of
// symbol. Unknown symbols fall back to the default scale and fail later on
// the token lookup.
func (f *feature) requireTokenAmount(chainID uint64, symbol, field, amount string) error {
	decimals := utils.DefaultDecimals
	if info, err := f.Registry.Token(chainID, symbol); err == nil {
		decimals = info.Decimals
	}
	return requirePositive(field, amount, decimals)
}

// requireBalance fetches the balance fresh and rejects amounts above it.
func requireBalance(ctx context.Context, c port.ContractService, symbol string, account common.Address, amount string) error {
	available, err := c.TokenBalance(ctx, symbol, account)
	if err != nil {
		return fmt.Errorf("failed to read %s balance: %w", symbol, err)
	}
	return requireAvailable(symbol, available, amount)
}

func requireAvailable(symbol, available, amount string) error {
	if utils.GreaterThan(amount, available) {
		return &entity.InsufficientBalanceError{Symbol: symbol, Available: available}
	}
	return nil
}

// errorText is what lands in a state's Error field.
func errorText(err error) string {
	var ce *entity.ContractError
	if errors.As(err, &ce) && ce.Reason != "" {
		return ce.Reason
	}
	return err.Error()
}
