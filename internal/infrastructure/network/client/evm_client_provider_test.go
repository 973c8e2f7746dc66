package client

import (
	"context"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"
	networkdefinition "kaia_defi/internal/infrastructure/network/definition"
	"kaia_defi/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientRejectsUnknownChain(t *testing.T) {
	cfg := &configloader.Config{}
	cfg.RPC.ConnectTimeoutSeconds = 1
	cfg.Performance.RPCCallTimeoutSeconds = 1
	cfg.RPC.RateLimit = 1
	cfg.RPC.BurstLimit = 1

	registry := networkdefinition.NewNetworkDefinitionProvider(logger.Nop{}, nil, nil)
	provider := NewEVMClientProvider(cfg, registry, logger.Nop{})

	_, err := provider.GetClient(context.Background(), 99999)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrWrongNetwork)
}

func TestGetBalancesEmpty(t *testing.T) {
	c := &EVMClient{}
	res, err := c.GetBalances(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}
