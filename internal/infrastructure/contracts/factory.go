package contracts

import (
	"fmt"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"

	"github.com/patrickmn/go-cache"
)

// Factory binds contract services to sessions. Metadata and block
// timestamp caches are shared across the services it creates.
type Factory struct {
	registry   port.NetworkRegistry
	opts       Options
	logger     port.Logger
	metadata   *cache.Cache
	timestamps *cache.Cache
}

// OptionsFromConfig maps the tx, history and performance sections.
func OptionsFromConfig(cfg *configloader.Config) Options {
	return Options{
		GasHeadroomPercent:    cfg.Tx.GasHeadroomPercent,
		ReceiptPollInterval:   time.Duration(cfg.Tx.ReceiptPollMillis) * time.Millisecond,
		ConfirmTimeout:        time.Duration(cfg.Tx.ConfirmTimeoutSeconds) * time.Second,
		HistoryBlockRange:     cfg.History.BlockRange,
		MaxConcurrentRoutines: cfg.Performance.MaxConcurrentRoutines,
	}
}

func NewFactory(registry port.NetworkRegistry, opts Options, log port.Logger) *Factory {
	return &Factory{
		registry:   registry,
		opts:       opts,
		logger:     log,
		metadata:   cache.New(cache.NoExpiration, 0),
		timestamps: cache.New(time.Hour, 10*time.Minute),
	}
}

// For returns a contract service for the session's chain. The session must
// carry a backend on a supported chain.
func (f *Factory) For(session port.Session) (port.ContractService, error) {
	if session.Backend == nil {
		return nil, entity.ErrWalletNotConnected
	}
	if !f.registry.IsSupported(session.ChainID) {
		return nil, fmt.Errorf("%w: chain %d", entity.ErrWrongNetwork, session.ChainID)
	}
	return newService(session.Backend, session.Signer, f.registry, session.ChainID, f.opts, f.logger, f.metadata, f.timestamps), nil
}
