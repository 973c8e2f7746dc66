package entity

import "strconv"

// NetworkDefinition holds the configuration for a specific blockchain network.
type NetworkDefinition struct {
	ChainID            uint64   `json:"chainId" yaml:"chainId"`
	Name               string   `json:"name" yaml:"name"`
	Identifier         string   `json:"identifier" yaml:"identifier"` // "kaia", "kairos"
	NativeSymbol       string   `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals           int32    `json:"decimals" yaml:"decimals"`
	PrimaryRPCURL      string   `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs    []string `json:"fallbackRpcUrls" yaml:"fallbackRpcUrls"`
	BlockExplorerURL   string   `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	DEXScreenerChainID string   `json:"dexScreenerChainId,omitempty" yaml:"dexScreenerChainId,omitempty"`
	Testnet            bool     `json:"testnet" yaml:"testnet"`
}

// ChainIDHex returns the chain id in the 0x-prefixed form wallets use.
func (n NetworkDefinition) ChainIDHex() string {
	return "0x" + strconv.FormatUint(n.ChainID, 16)
}

// Protocol names a deployed protocol module.
type Protocol string

const (
	ProtocolStaking Protocol = "staking"
	ProtocolLending Protocol = "lending"
	ProtocolSwap    Protocol = "swap"
	ProtocolFarms   Protocol = "farms"
)

// NetworkInfo is a point-in-time view of the connected chain.
type NetworkInfo struct {
	ChainID      uint64 `json:"chainId"`
	Name         string `json:"name"`
	GasPriceGwei string `json:"gasPriceGwei"`
	BlockNumber  uint64 `json:"blockNumber"`
	ExplorerURL  string `json:"explorerUrl,omitempty"`
}

// Deployment is the address table of one network: its tokens and
// protocol modules. An empty or zero address means not deployed.
type Deployment struct {
	ChainID   uint64              `json:"chainId"`
	Tokens    []TokenInfo         `json:"tokens"`
	Protocols map[Protocol]string `json:"protocols"`
}
