package port

import (
	"context"
	"math/big"

	"kaia_defi/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// WalletProvider is the wallet the session manager talks to. It mirrors
// the request/notify surface browser wallets expose.
type WalletProvider interface {
	// RequestAccounts asks for account access and may prompt.
	RequestAccounts(ctx context.Context) ([]string, error)
	// Accounts returns already authorized accounts without prompting.
	Accounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (uint64, error)
	// SwitchChain adds the network if needed and makes it current.
	SwitchChain(ctx context.Context, network entity.NetworkDefinition) error
	Signer(account string) (Signer, error)
	// Subscribe delivers account and chain notifications until cancel is called.
	Subscribe() (events <-chan entity.WalletEvent, cancel func())
}
