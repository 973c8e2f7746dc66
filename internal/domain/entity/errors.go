package entity

import (
	"errors"
	"fmt"
)

var (
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrWrongNetwork        = errors.New("unsupported network")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidHash         = errors.New("invalid transaction hash")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrContractReverted    = errors.New("contract reverted")
	ErrNoLiquidity         = errors.New("no liquidity available for this trading pair")
	ErrStaleResult         = errors.New("result superseded by a newer request")
	ErrNotDeployed         = errors.New("not deployed on this network")
	ErrLTVTooHigh          = errors.New("loan-to-value at or above liquidation threshold")
	ErrUnknownToken        = errors.New("unknown token")
	ErrUnknownFarm         = errors.New("unknown farm")
)

// ContractError carries the failing operation and, when the chain
// reported one, the revert reason.
type ContractError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ContractError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// InsufficientBalanceError reports the balance that was available.
type InsufficientBalanceError struct {
	Symbol    string
	Available string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance. Available: %s %s", e.Symbol, e.Available, e.Symbol)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// NotDeployedError names the token or module missing on a chain.
type NotDeployedError struct {
	Name    string
	ChainID uint64
}

func (e *NotDeployedError) Error() string {
	return fmt.Sprintf("%s not deployed on network (chainId: %d)", e.Name, e.ChainID)
}

func (e *NotDeployedError) Unwrap() error { return ErrNotDeployed }
