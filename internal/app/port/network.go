package port

import (
	"context"
	"math/big"

	"kaia_defi/internal/domain/entity"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainBackend is the slice of an ethclient.Client the contract layer needs.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// BatchBalanceReader is implemented by backends that can fetch several
// balances in one JSON-RPC batch.
type BatchBalanceReader interface {
	GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) ([]entity.BalanceResultItem, error)
}

// NetworkRegistry resolves networks, tokens and protocol deployments.
type NetworkRegistry interface {
	GetAllNetworkDefinitions() []entity.NetworkDefinition
	GetNetworkDefinitionByName(nameOrIdentifier string) (entity.NetworkDefinition, bool)
	GetNetworkDefinitionByChainID(chainID uint64) (entity.NetworkDefinition, bool)
	IsSupported(chainID uint64) bool
	// Token returns the registered token; ErrUnknownToken or ErrNotDeployed otherwise.
	Token(chainID uint64, symbol string) (entity.TokenInfo, error)
	TokenByAddress(chainID uint64, address common.Address) (entity.TokenInfo, bool)
	Tokens(chainID uint64) []entity.TokenInfo
	ProtocolAddress(chainID uint64, protocol entity.Protocol) (common.Address, error)
}

// BlockchainClientProvider hands out one backend per chain.
type BlockchainClientProvider interface {
	GetClient(ctx context.Context, chainID uint64) (ChainBackend, error)
}
