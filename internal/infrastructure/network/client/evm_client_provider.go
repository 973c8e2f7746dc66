package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"

	"golang.org/x/time/rate"
)

// EVMClientProvider implements the port.BlockchainClientProvider interface.
type EVMClientProvider struct {
	registry          port.NetworkRegistry
	clients           map[uint64]*EVMClient
	mu                sync.Mutex
	logger            port.Logger
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration
	rateLimit         rate.Limit
	burst             int
}

// NewEVMClientProvider creates a new EVMClientProvider.
func NewEVMClientProvider(cfg *configloader.Config, registry port.NetworkRegistry, log port.Logger) *EVMClientProvider {
	return &EVMClientProvider{
		registry:          registry,
		clients:           make(map[uint64]*EVMClient),
		logger:            log,
		connectionTimeout: time.Duration(cfg.RPC.ConnectTimeoutSeconds) * time.Second,
		rpcCallTimeout:    time.Duration(cfg.Performance.RPCCallTimeoutSeconds) * time.Second,
		rateLimit:         rate.Limit(cfg.RPC.RateLimit),
		burst:             cfg.RPC.BurstLimit,
	}
}

// GetClient returns the cached client for chainID, dialing it on first use.
func (p *EVMClientProvider) GetClient(ctx context.Context, chainID uint64) (port.ChainBackend, error) {
	netDef, ok := p.registry.GetNetworkDefinitionByChainID(chainID)
	if !ok {
		return nil, fmt.Errorf("%w: chain %d", entity.ErrWrongNetwork, chainID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[chainID]; exists {
		return client, nil
	}

	p.logger.Info("Creating new EVM client", "network", netDef.Name, "rpc_primary", netDef.PrimaryRPCURL)
	limiter := rate.NewLimiter(p.rateLimit, p.burst)
	newClient, err := NewEVMClient(ctx, netDef, limiter, p.connectionTimeout, p.rpcCallTimeout)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", netDef.Name, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", netDef.Name, err)
	}

	p.clients[chainID] = newClient
	p.logger.Info("Successfully created and cached new EVM client", "network", netDef.Name)
	return newClient, nil
}

// Close drops every cached connection.
func (p *EVMClientProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}
