package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/metrics"
)

const eventBuffer = 32

// Event is a typed session transition delivered to subscribers.
type Event struct {
	Kind    entity.SessionEventKind
	Session entity.SessionView
}

// Manager owns the wallet session. Transitions are serialized; readers get
// immutable snapshots through Current.
type Manager struct {
	provider port.WalletProvider
	clients  port.BlockchainClientProvider
	registry port.NetworkRegistry
	target   entity.NetworkDefinition
	logger   port.Logger

	opMu    sync.Mutex
	mu      sync.RWMutex
	session port.Session

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int

	stop func()
	done chan struct{}
}

// NewManager creates a disconnected manager. Unsupported chains are
// switched to defaultChainID on connect.
func NewManager(provider port.WalletProvider, clients port.BlockchainClientProvider, registry port.NetworkRegistry, defaultChainID uint64, log port.Logger) (*Manager, error) {
	target, ok := registry.GetNetworkDefinitionByChainID(defaultChainID)
	if !ok {
		return nil, fmt.Errorf("%w: default chain %d", entity.ErrWrongNetwork, defaultChainID)
	}
	return &Manager{
		provider: provider,
		clients:  clients,
		registry: registry,
		target:   target,
		logger:   log,
		session:  disconnected(),
		subs:     make(map[int]chan Event),
	}, nil
}

func disconnected() port.Session {
	return port.Session{SessionView: entity.SessionView{State: entity.StateDisconnected}}
}

// Current returns the session snapshot.
func (m *Manager) Current() port.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) replace(s port.Session, kind entity.SessionEventKind) entity.SessionView {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	m.emit(Event{Kind: kind, Session: s.SessionView})
	return s.SessionView
}

// Subscribe delivers session events until cancel is called. Slow
// subscribers lose events rather than block transitions.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) emit(ev Event) {
	metrics.SessionEvents.WithLabelValues(string(ev.Kind)).Inc()
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn("Dropping session event for slow subscriber", "subscriber", id, "kind", ev.Kind)
		}
	}
}

// derive builds a connected session for address on chainID. The backend is
// only dialed for supported chains.
func (m *Manager) derive(ctx context.Context, address string, chainID uint64) (port.Session, error) {
	s := port.Session{SessionView: entity.SessionView{
		Address:          address,
		ChainID:          chainID,
		State:            entity.StateConnected,
		SupportedNetwork: m.registry.IsSupported(chainID),
	}}
	signer, err := m.provider.Signer(address)
	if err != nil {
		return port.Session{}, fmt.Errorf("failed to derive signer: %w", err)
	}
	s.Signer = signer
	if s.SupportedNetwork {
		backend, err := m.clients.GetClient(ctx, chainID)
		if err != nil {
			return port.Session{}, fmt.Errorf("failed to connect to chain %d: %w", chainID, err)
		}
		s.Backend = backend
	}
	return s, nil
}

func (m *Manager) manualPrompt(def entity.NetworkDefinition) string {
	return fmt.Sprintf("Please switch to %s (chain ID %d) manually", def.Name, def.ChainID)
}

// Connect requests account access and establishes a session. A wallet on
// an unsupported chain is asked to switch to the default network; if it
// refuses, the session is still connected and carries a manual prompt.
func (m *Manager) Connect(ctx context.Context) (entity.SessionView, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.replace(port.Session{SessionView: entity.SessionView{State: entity.StateConnecting}}, entity.SessionConnecting)

	accounts, err := m.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = entity.ErrWalletNotConnected
	}
	if err != nil {
		return m.fail(fmt.Errorf("failed to connect wallet: %w", err))
	}
	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("failed to read wallet chain: %w", err))
	}

	var prompt string
	if !m.registry.IsSupported(chainID) {
		// No address until the signer is derived.
		m.replace(port.Session{SessionView: entity.SessionView{
			ChainID:          chainID,
			State:            entity.StateConnecting,
			SwitchingNetwork: true,
		}}, entity.SessionSwitching)

		if err := m.provider.SwitchChain(ctx, m.target); err != nil {
			m.logger.Warn("Automatic network switch failed", "from", chainID, "to", m.target.ChainID, "error", err)
			prompt = m.manualPrompt(m.target)
		} else if switched, err := m.provider.ChainID(ctx); err == nil {
			chainID = switched
		}
	}

	s, err := m.derive(ctx, accounts[0], chainID)
	if err != nil {
		return m.fail(err)
	}
	s.NetworkPrompt = prompt
	if prompt != "" {
		m.emit(Event{Kind: entity.SessionNetworkPrompt, Session: s.SessionView})
	}
	m.logger.Info("Wallet connected", "address", s.Address, "chainId", s.ChainID, "supported", s.SupportedNetwork)
	return m.replace(s, entity.SessionConnected), nil
}

func (m *Manager) fail(err error) (entity.SessionView, error) {
	m.logger.Warn("Wallet connection failed", "error", err)
	return m.replace(disconnected(), entity.SessionDisconnected), err
}

// Restore re-establishes a session for an already authorized wallet
// without prompting. It leaves the session disconnected when no account
// is authorized.
func (m *Manager) Restore(ctx context.Context) (entity.SessionView, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	accounts, err := m.provider.Accounts(ctx)
	if err != nil {
		return m.Current().SessionView, fmt.Errorf("failed to read authorized accounts: %w", err)
	}
	if len(accounts) == 0 {
		return m.Current().SessionView, nil
	}
	chainID, err := m.provider.ChainID(ctx)
	if err != nil {
		return m.Current().SessionView, fmt.Errorf("failed to read wallet chain: %w", err)
	}
	s, err := m.derive(ctx, accounts[0], chainID)
	if err != nil {
		return m.Current().SessionView, err
	}
	return m.replace(s, entity.SessionConnected), nil
}

// Disconnect forgets the session. Wallet authorization is left in place.
func (m *Manager) Disconnect() entity.SessionView {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.replace(disconnected(), entity.SessionDisconnected)
}

// SwitchNetwork asks the wallet to move to chainID and rebinds the session.
func (m *Manager) SwitchNetwork(ctx context.Context, chainID uint64) (entity.SessionView, error) {
	def, ok := m.registry.GetNetworkDefinitionByChainID(chainID)
	if !ok {
		return m.Current().SessionView, fmt.Errorf("%w: chain %d", entity.ErrWrongNetwork, chainID)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur := m.Current()
	switching := cur
	switching.SwitchingNetwork = true
	m.replace(switching, entity.SessionSwitching)

	if err := m.provider.SwitchChain(ctx, def); err != nil {
		cur.SwitchingNetwork = false
		cur.NetworkPrompt = m.manualPrompt(def)
		m.replace(cur, entity.SessionNetworkPrompt)
		return cur.SessionView, fmt.Errorf("failed to switch network: %w", err)
	}

	if cur.State != entity.StateConnected {
		cur.SwitchingNetwork = false
		cur.ChainID = chainID
		cur.SupportedNetwork = true
		return m.replace(cur, entity.SessionChainChanged), nil
	}
	s, err := m.derive(ctx, cur.Address, chainID)
	if err != nil {
		cur.SwitchingNetwork = false
		m.replace(cur, entity.SessionChainChanged)
		return cur.SessionView, err
	}
	return m.replace(s, entity.SessionChainChanged), nil
}

// Start consumes wallet notifications on one goroutine until Close.
func (m *Manager) Start(ctx context.Context) {
	ctx, stop := context.WithCancel(ctx)
	events, cancel := m.provider.Subscribe()
	m.stop = func() {
		stop()
		cancel()
	}
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				m.handle(ctx, ev)
			}
		}
	}()
}

// Close releases the wallet subscription and ends every session
// subscription.
func (m *Manager) Close() {
	if m.stop != nil {
		m.stop()
		<-m.done
		m.stop = nil
	}
	m.subMu.Lock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.subMu.Unlock()
}

func (m *Manager) handle(ctx context.Context, ev entity.WalletEvent) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	switch ev.Kind {
	case entity.AccountsChanged:
		m.onAccountsChanged(ctx, ev.Accounts)
	case entity.ChainChanged:
		m.onChainChanged(ctx, ev.ChainID)
	}
}

func (m *Manager) onAccountsChanged(ctx context.Context, accounts []string) {
	if len(accounts) == 0 {
		m.logger.Info("Wallet accounts cleared, disconnecting")
		m.replace(disconnected(), entity.SessionDisconnected)
		return
	}
	cur := m.Current()
	chainID := cur.ChainID
	if chainID == 0 {
		id, err := m.provider.ChainID(ctx)
		if err != nil {
			m.logger.Warn("Failed to read chain after account change", "error", err)
			return
		}
		chainID = id
	}
	s, err := m.derive(ctx, accounts[0], chainID)
	if err != nil {
		m.logger.Warn("Failed to rebind session to new account", "account", accounts[0], "error", err)
		m.replace(disconnected(), entity.SessionDisconnected)
		return
	}
	s.NetworkPrompt = cur.NetworkPrompt
	m.replace(s, entity.SessionAccountChanged)
}

func (m *Manager) onChainChanged(ctx context.Context, rawChainID string) {
	cur := m.Current()
	if cur.State != entity.StateConnected {
		return
	}
	chainID, err := m.provider.ChainID(ctx)
	if err == nil {
		var s port.Session
		if s, err = m.derive(ctx, cur.Address, chainID); err == nil {
			m.replace(s, entity.SessionChainChanged)
			return
		}
	}
	m.logger.Warn("Failed to rebind session after chain change, keeping handles", "raw_chain_id", rawChainID, "error", err)

	parsed, perr := ParseChainID(rawChainID)
	if perr != nil {
		m.logger.Error("Unparseable chain id from wallet", "raw_chain_id", rawChainID, "error", perr)
		return
	}
	cur.ChainID = parsed
	cur.SupportedNetwork = m.registry.IsSupported(parsed)
	cur.SwitchingNetwork = false
	if cur.SupportedNetwork {
		cur.NetworkPrompt = ""
	}
	m.replace(cur, entity.SessionChainChanged)
}

// ParseChainID parses a 0x-prefixed hex or a decimal chain id.
func ParseChainID(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty chain id")
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		return strconv.ParseUint(raw[2:], 16, 64)
	}
	return strconv.ParseUint(raw, 10, 64)
}

var _ port.SessionManager = (*Manager)(nil)
