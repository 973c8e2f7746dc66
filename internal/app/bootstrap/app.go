// Package bootstrap assembles the application from its configuration.
// Both binaries under cmd/ build on it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/app/service"
	"kaia_defi/internal/app/session"
	dexclient "kaia_defi/internal/client"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"
	"kaia_defi/internal/infrastructure/contracts"
	clientprovider "kaia_defi/internal/infrastructure/network/client"
	networkdefinition "kaia_defi/internal/infrastructure/network/definition"
	"kaia_defi/internal/infrastructure/restapi"
	"kaia_defi/internal/infrastructure/tokenloader"
	"kaia_defi/internal/infrastructure/wallet"

	"go.uber.org/zap"
)

// App holds every long-lived component.
type App struct {
	Config   *configloader.Config
	Logger   port.Logger
	Registry *networkdefinition.NetworkDefinitionProvider
	Clients  *clientprovider.EVMClientProvider
	Wallet   *wallet.KeyWallet
	Sessions *session.Manager
	Prices   *service.PriceService

	Balances  *service.BalancesService
	Swap      *service.SwapService
	Staking   *service.StakingService
	Borrow    *service.BorrowService
	Farms     *service.FarmsService
	Portfolio *service.PortfolioService
	Network   *service.NetworkService
}

// New wires the application. Nothing touches the network until Start.
func New(cfg *configloader.Config, zapLogger *zap.Logger, log port.Logger) (*App, error) {
	deployments, err := tokenloader.NewDeploymentLoader(cfg.Deployments.Dir, log.Info, log.Warn).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load deployments: %w", err)
	}
	registry := networkdefinition.NewNetworkDefinitionProvider(log, cfg.Networks, deployments)
	clients := clientprovider.NewEVMClientProvider(cfg, registry, log)

	keys, err := wallet.NewKeyLoader(cfg.Wallet.KeyFile, cfg.Wallet.KeystoreDir, cfg.Wallet.PassphraseEnv, cfg.Wallet.PrivateKeys, log).Load()
	if err != nil {
		clients.Close()
		return nil, fmt.Errorf("failed to load wallet keys: %w", err)
	}
	keyWallet := wallet.NewKeyWallet(keys, cfg.Wallet.DefaultChainID, cfg.Wallet.PreAuthorized, log)

	sessions, err := session.NewManager(keyWallet, clients, registry, cfg.Wallet.DefaultChainID, log)
	if err != nil {
		clients.Close()
		return nil, err
	}

	var dex port.DEXScreenerClient
	if cfg.DEXScreener.Enabled {
		dex = dexclient.NewDEXScreenerClient(
			cfg.DEXScreener.BaseURL,
			time.Duration(cfg.DEXScreener.RequestTimeoutMillis)*time.Millisecond,
			zapLogger.Named("DEXScreenerAPIClient"),
			cfg.TokenPriceSvc.MaxTokensPerBatchRequest,
		)
	}
	prices := service.NewPriceService(dex, cfg, log)

	deps := service.Deps{
		Sessions:  sessions,
		Contracts: contracts.NewFactory(registry, contracts.OptionsFromConfig(cfg), log),
		Registry:  registry,
		Logger:    log,
	}
	balances := service.NewBalancesService(deps, prices, cfg.DisplayTokens)
	staking := service.NewStakingService(deps)
	farms := service.NewFarmsService(deps, prices, cfg.Performance.MaxConcurrentRoutines)

	return &App{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Clients:  clients,
		Wallet:   keyWallet,
		Sessions: sessions,
		Prices:   prices,

		Balances: balances,
		Swap: service.NewSwapService(deps, balances, service.SwapConfig{
			DefaultFrom:     cfg.Swap.DefaultFrom,
			DefaultTo:       cfg.Swap.DefaultTo,
			DefaultSlippage: cfg.Swap.DefaultSlippage,
			GasLimit:        cfg.Swap.GasLimit,
		}),
		Staking: staking,
		Borrow: service.NewBorrowService(deps, balances, service.BorrowConfig{
			DefaultCollateral:     cfg.Lending.DefaultCollateral,
			DefaultBorrow:         cfg.Lending.DefaultBorrow,
			DefaultLiquidationLTV: cfg.Lending.DefaultLiquidationLTV,
			BorrowAPR:             cfg.Lending.BorrowAPR,
			CollateralTokens:      cfg.Lending.CollateralTokens,
			MaxConcurrentRoutines: cfg.Performance.MaxConcurrentRoutines,
		}),
		Farms:     farms,
		Portfolio: service.NewPortfolioService(deps, balances, staking, farms, prices),
		Network:   service.NewNetworkService(deps),
	}, nil
}

// Start restores an authorized session, begins consuming wallet events
// and, unless prices is false, starts the price refresher.
func (a *App) Start(ctx context.Context, prices bool) {
	if view, err := a.Sessions.Restore(ctx); err != nil {
		a.Logger.Warn("Session restore failed", "error", err)
	} else if view.State == entity.StateConnected {
		a.Logger.Info("Session restored", "state", view.State, "address", view.Address, "chainId", view.ChainID)
	}
	a.Sessions.Start(ctx)
	if prices {
		go a.Prices.Run(ctx)
	}
}

// Handlers exposes the services to the REST layer.
func (a *App) Handlers() *restapi.Handlers {
	return &restapi.Handlers{
		Sessions:  a.Sessions,
		Events:    a.Sessions,
		Balances:  a.Balances,
		Swap:      a.Swap,
		Staking:   a.Staking,
		Borrow:    a.Borrow,
		Farms:     a.Farms,
		Portfolio: a.Portfolio,
		Network:   a.Network,
	}
}

// Close ends session subscriptions and the RPC connections.
func (a *App) Close() {
	a.Sessions.Close()
	a.Clients.Close()
}
