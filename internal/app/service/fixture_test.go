package service

import (
	"sync"
	"testing"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/contracts"
	"kaia_defi/internal/infrastructure/contracts/contractstest"
	networkdefinition "kaia_defi/internal/infrastructure/network/definition"
	"kaia_defi/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

const kairosID = uint64(1001)

type sessionStub struct {
	mu sync.Mutex
	s  port.Session
}

func (f *sessionStub) Current() port.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *sessionStub) set(s port.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.s = s
}

type pricesStub map[string]float64

func (p pricesStub) PriceUSD(symbol string) (float64, bool) {
	v, ok := p[symbol]
	return v, ok
}

type fixture struct {
	world    *contractstest.World
	signer   *contractstest.Signer
	registry *networkdefinition.NetworkDefinitionProvider
	sessions *sessionStub
	prices   pricesStub
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := networkdefinition.NewNetworkDefinitionProvider(logger.Nop{}, nil, nil)
	world := contractstest.NewWorld(registry, kairosID)
	signer := contractstest.NewSigner()
	world.Fund(signer.Address(), 1000)

	f := &fixture{
		world:    world,
		signer:   signer,
		registry: registry,
		sessions: &sessionStub{},
		prices:   pricesStub{"KAIA": 0.85, "KUSD": 1},
	}
	f.connect(kairosID)
	f.deps = Deps{
		Sessions:  f.sessions,
		Contracts: contracts.NewFactory(registry, contracts.Options{ReceiptPollInterval: time.Millisecond}, logger.Nop{}),
		Registry:  registry,
		Logger:    logger.Nop{},
	}
	return f
}

func (f *fixture) connect(chainID uint64) {
	f.sessions.set(port.Session{
		SessionView: entity.SessionView{
			Address:          f.signer.Address().Hex(),
			ChainID:          chainID,
			State:            entity.StateConnected,
			SupportedNetwork: f.registry.IsSupported(chainID),
		},
		Backend: f.world.Backend,
		Signer:  f.signer,
	})
}

func (f *fixture) disconnect() {
	f.sessions.set(port.Session{SessionView: entity.SessionView{State: entity.StateDisconnected}})
}

func (f *fixture) account() common.Address { return f.signer.Address() }

func (f *fixture) token(symbol string) *contractstest.Token { return f.world.Tokens[symbol] }

func (f *fixture) balances() *BalancesService {
	return NewBalancesService(f.deps, f.prices, []string{"KAIA", "KUSD", "WKAIA"})
}
