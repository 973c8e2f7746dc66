package networkdefinition

import (
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"
	"kaia_defi/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookups(t *testing.T) {
	p := NewNetworkDefinitionProvider(logger.Nop{}, nil, nil)

	assert.True(t, p.IsSupported(1001))
	assert.True(t, p.IsSupported(8217))
	assert.False(t, p.IsSupported(99999))

	def, ok := p.GetNetworkDefinitionByName("kairos")
	require.True(t, ok)
	assert.Equal(t, uint64(1001), def.ChainID)
	assert.Equal(t, "0x3e9", def.ChainIDHex())

	all := p.GetAllNetworkDefinitions()
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1001), all[0].ChainID)

	kusd, err := p.Token(1001, "KUSD")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xD404E8AA4C73238CCFe5F1E61128015525DB4f4E"), common.HexToAddress(kusd.Address))

	kaia, err := p.Token(1001, "KAIA")
	require.NoError(t, err)
	assert.True(t, kaia.Native)
	kaia, err = p.Token(8217, "KAIA")
	require.NoError(t, err)
	assert.False(t, kaia.Native)

	byAddr, ok := p.TokenByAddress(1001, common.HexToAddress(kusd.Address))
	require.True(t, ok)
	assert.Equal(t, "KUSD", byAddr.Symbol)

	swap, err := p.ProtocolAddress(8217, entity.ProtocolSwap)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x0D797f37aC13B410ADa04743B5CFf34C4dDD7Fbb"), swap)
}

func TestRegistryNotDeployed(t *testing.T) {
	p := NewNetworkDefinitionProvider(logger.Nop{}, nil, []entity.Deployment{{
		ChainID:   8217,
		Protocols: map[entity.Protocol]string{entity.ProtocolFarms: entity.ZeroAddress},
	}})

	_, err := p.ProtocolAddress(8217, entity.ProtocolFarms)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrNotDeployed)
	assert.Contains(t, err.Error(), "not deployed on network (chainId: 8217)")

	_, err = p.ProtocolAddress(1001, entity.ProtocolFarms)
	assert.NoError(t, err, "override is scoped to its chain")

	_, err = p.Token(1001, "stKAIA")
	assert.ErrorIs(t, err, entity.ErrNotDeployed)

	_, err = p.Token(1001, "DOGE")
	assert.ErrorIs(t, err, entity.ErrUnknownToken)

	_, err = p.Token(99999, "KUSD")
	assert.ErrorIs(t, err, entity.ErrWrongNetwork)
}

func TestRegistryOverrides(t *testing.T) {
	p := NewNetworkDefinitionProvider(logger.Nop{},
		[]configloader.NetworkNodeConfig{{Identifier: "kairos", RPCURL: "http://localhost:8551"}},
		[]entity.Deployment{{
			ChainID: 1001,
			Tokens:  []entity.TokenInfo{{Symbol: "USDT", Address: "0x0000000000000000000000000000000000000abc"}},
		}},
	)

	def, ok := p.GetNetworkDefinitionByChainID(1001)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8551", def.PrimaryRPCURL)

	usdt, err := p.Token(1001, "USDT")
	require.NoError(t, err)
	assert.Equal(t, uint8(18), usdt.Decimals)

	_, err = p.Token(8217, "USDT")
	assert.ErrorIs(t, err, entity.ErrUnknownToken)
}
