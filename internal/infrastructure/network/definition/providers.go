package networkdefinition

import (
	"fmt"
	"sort"
	"strings"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"

	"github.com/ethereum/go-ethereum/common"
)

// NetworkDefinitionProvider is the static network, token and protocol registry.
type NetworkDefinitionProvider struct {
	logger    port.Logger
	networks  map[uint64]entity.NetworkDefinition
	tokens    map[uint64]map[string]entity.TokenInfo
	protocols map[uint64]map[entity.Protocol]string
}

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Kaia = entity.NetworkDefinition{
		ChainID:            8217,
		Name:               "Kaia",
		Identifier:         "kaia",
		NativeSymbol:       "KAIA",
		Decimals:           18,
		PrimaryRPCURL:      "https://public-en.node.kaia.io",
		FallbackRPCURLs:    []string{"https://kaia.blockpi.network/v1/rpc/public"},
		BlockExplorerURL:   "https://kaiascan.io",
		DEXScreenerChainID: "kaia",
	}
	Kairos = entity.NetworkDefinition{
		ChainID:          1001,
		Name:             "Kairos Testnet",
		Identifier:       "kairos",
		NativeSymbol:     "KAIA",
		Decimals:         18,
		PrimaryRPCURL:    "https://public-en-kairos.node.kaia.io",
		FallbackRPCURLs:  []string{"https://kaia-kairos.blockpi.network/v1/rpc/public"},
		BlockExplorerURL: "https://kairos.kaiascan.io",
		Testnet:          true,
	}
)

// The same mock deployments serve both networks until mainnet contracts exist.
var defaultTokens = []entity.TokenInfo{
	{Symbol: "KAIA", Name: "Kaia", Decimals: 18, Native: true, Address: "0xb9563C346537427aa41876aa4720902268dCdB40", Description: "Native Kaia token"},
	{Symbol: "KUSD", Name: "Kaia USD", Decimals: 18, Address: "0xD404E8AA4C73238CCFe5F1E61128015525DB4f4E", Description: "Kaia network stablecoin"},
	{Symbol: "WKAIA", Name: "Wrapped Kaia", Decimals: 18, Address: "0x45A6c5faf002f1844E6Ef17dC11fA3FE76Adf773", Description: "Wrapped Kaia token for DeFi"},
	{Symbol: "stKAIA", Name: "Staked Kaia", Decimals: 18, Address: entity.ZeroAddress, Description: "Liquid staking receipt"},
}

var defaultProtocols = map[entity.Protocol]string{
	entity.ProtocolStaking: "0x311E5D3aFd3DA55Eea05258754bD48606d8cfd7f",
	entity.ProtocolLending: "0x98534Ec8Ad5aE171920Bfb32B12F0486Bf13075a",
	entity.ProtocolSwap:    "0x0D797f37aC13B410ADa04743B5CFf34C4dDD7Fbb",
	entity.ProtocolFarms:   "0xff04F73911ed0270f0B91A1e5d51f5DcF9d5C489",
}

// NewNetworkDefinitionProvider builds the registry from the built-in
// networks, applying RPC overrides and deployment address overrides.
func NewNetworkDefinitionProvider(log port.Logger, overrides []configloader.NetworkNodeConfig, deployments []entity.Deployment) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger:    log,
		networks:  make(map[uint64]entity.NetworkDefinition),
		tokens:    make(map[uint64]map[string]entity.TokenInfo),
		protocols: make(map[uint64]map[entity.Protocol]string),
	}

	for _, def := range []entity.NetworkDefinition{Kaia, Kairos} {
		p.networks[def.ChainID] = def
		p.tokens[def.ChainID] = make(map[string]entity.TokenInfo, len(defaultTokens))
		for _, tok := range defaultTokens {
			tok.ChainID = def.ChainID
			// Mainnet KAIA is read through its token contract.
			tok.Native = tok.Native && def.Testnet
			p.tokens[def.ChainID][tok.Symbol] = tok
		}
		p.protocols[def.ChainID] = make(map[entity.Protocol]string, len(defaultProtocols))
		for k, v := range defaultProtocols {
			p.protocols[def.ChainID][k] = v
		}
	}

	for _, o := range overrides {
		def, ok := p.GetNetworkDefinitionByName(o.Identifier)
		if !ok {
			p.logger.Warn("RPC override for unknown network ignored", "identifier", o.Identifier)
			continue
		}
		if o.RPCURL != "" {
			def.PrimaryRPCURL = o.RPCURL
		}
		if len(o.FallbackRPCURLs) > 0 {
			def.FallbackRPCURLs = o.FallbackRPCURLs
		}
		p.networks[def.ChainID] = def
		p.logger.Debug("Applied RPC override", "network", def.Identifier, "rpc_primary", def.PrimaryRPCURL)
	}

	for _, d := range deployments {
		if _, ok := p.networks[d.ChainID]; !ok {
			p.logger.Warn("Deployment for unsupported chain ignored", "chain_id", d.ChainID)
			continue
		}
		for _, tok := range d.Tokens {
			tok.ChainID = d.ChainID
			if tok.Decimals == 0 {
				tok.Decimals = 18
			}
			p.tokens[d.ChainID][tok.Symbol] = tok
		}
		for name, addr := range d.Protocols {
			p.protocols[d.ChainID][name] = addr
		}
		p.logger.Info("Applied deployment overrides", "chain_id", d.ChainID, "tokens", len(d.Tokens), "protocols", len(d.Protocols))
	}

	return p
}

func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	defs := make([]entity.NetworkDefinition, 0, len(p.networks))
	for _, def := range p.networks {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ChainID < defs[j].ChainID })
	return defs
}

func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(identifier string) (entity.NetworkDefinition, bool) {
	for _, def := range p.networks {
		if strings.EqualFold(def.Identifier, identifier) || strings.EqualFold(def.Name, identifier) {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}

func (p *NetworkDefinitionProvider) GetNetworkDefinitionByChainID(chainID uint64) (entity.NetworkDefinition, bool) {
	def, ok := p.networks[chainID]
	return def, ok
}

// IsSupported reports whether chainID is one of the registered networks.
func (p *NetworkDefinitionProvider) IsSupported(chainID uint64) bool {
	_, ok := p.networks[chainID]
	return ok
}

func (p *NetworkDefinitionProvider) Token(chainID uint64, symbol string) (entity.TokenInfo, error) {
	if !p.IsSupported(chainID) {
		return entity.TokenInfo{}, fmt.Errorf("%w: chain %d", entity.ErrWrongNetwork, chainID)
	}
	tok, ok := p.tokens[chainID][symbol]
	if !ok {
		return entity.TokenInfo{}, fmt.Errorf("%w: %s", entity.ErrUnknownToken, symbol)
	}
	if isUnset(tok.Address) {
		return entity.TokenInfo{}, &entity.NotDeployedError{Name: "Token " + symbol, ChainID: chainID}
	}
	return tok, nil
}

func (p *NetworkDefinitionProvider) TokenByAddress(chainID uint64, address common.Address) (entity.TokenInfo, bool) {
	for _, tok := range p.tokens[chainID] {
		if !isUnset(tok.Address) && common.HexToAddress(tok.Address) == address {
			return tok, true
		}
	}
	return entity.TokenInfo{}, false
}

// Tokens lists the registered tokens of a chain, deployed or not, by symbol.
func (p *NetworkDefinitionProvider) Tokens(chainID uint64) []entity.TokenInfo {
	out := make([]entity.TokenInfo, 0, len(p.tokens[chainID]))
	for _, tok := range p.tokens[chainID] {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ProtocolAddress fails with ErrNotDeployed when the module has no address
// on the chain.
func (p *NetworkDefinitionProvider) ProtocolAddress(chainID uint64, protocol entity.Protocol) (common.Address, error) {
	if !p.IsSupported(chainID) {
		return common.Address{}, fmt.Errorf("%w: chain %d", entity.ErrWrongNetwork, chainID)
	}
	addr := p.protocols[chainID][protocol]
	if isUnset(addr) {
		return common.Address{}, &entity.NotDeployedError{Name: "Protocol " + string(protocol), ChainID: chainID}
	}
	return common.HexToAddress(addr), nil
}

func isUnset(addr string) bool {
	return addr == "" || common.HexToAddress(addr) == (common.Address{})
}
