package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoAccounts     = errors.New("wallet has no accounts")
	ErrUnknownAccount = errors.New("account not managed by this wallet")
	ErrUnauthorized   = errors.New("account access not authorized")
)

const subscriberBuffer = 16

// KeyWallet is a local, key-backed wallet with the request/notify
// behaviour of a browser wallet: accounts must be requested before they
// are visible, the active chain can be switched, and account or chain
// changes are pushed to subscribers.
type KeyWallet struct {
	mu          sync.Mutex
	keys        map[common.Address]*ecdsa.PrivateKey
	order       []common.Address
	authorized  bool
	chainID     uint64
	subscribers map[int]chan entity.WalletEvent
	nextSubID   int
	logger      port.Logger
}

// NewKeyWallet creates a wallet on chainID holding keys. With
// preAuthorized set, Accounts returns the keys without a prior request.
func NewKeyWallet(keys []*ecdsa.PrivateKey, chainID uint64, preAuthorized bool, log port.Logger) *KeyWallet {
	w := &KeyWallet{
		keys:        make(map[common.Address]*ecdsa.PrivateKey, len(keys)),
		authorized:  preAuthorized,
		chainID:     chainID,
		subscribers: make(map[int]chan entity.WalletEvent),
		logger:      log,
	}
	for _, k := range keys {
		addr := crypto.PubkeyToAddress(k.PublicKey)
		if _, ok := w.keys[addr]; ok {
			continue
		}
		w.keys[addr] = k
		w.order = append(w.order, addr)
	}
	return w
}

func (w *KeyWallet) addressesLocked() []string {
	out := make([]string, len(w.order))
	for i, a := range w.order {
		out[i] = a.Hex()
	}
	return out
}

// RequestAccounts authorizes access and returns the accounts, active first.
func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return nil, ErrNoAccounts
	}
	w.authorized = true
	return w.addressesLocked(), nil
}

// Accounts returns the authorized accounts, or none before authorization.
func (w *KeyWallet) Accounts(context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.authorized {
		return []string{}, nil
	}
	return w.addressesLocked(), nil
}

func (w *KeyWallet) ChainID(context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

// SwitchChain makes network current and notifies subscribers.
func (w *KeyWallet) SwitchChain(ctx context.Context, network entity.NetworkDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if network.ChainID == 0 {
		return fmt.Errorf("invalid chain id for network %q", network.Name)
	}
	w.mu.Lock()
	changed := w.chainID != network.ChainID
	w.chainID = network.ChainID
	w.mu.Unlock()
	if changed {
		w.logger.Info("Wallet switched network", "chainId", network.ChainID, "network", network.Name)
		w.publish(entity.WalletEvent{Kind: entity.ChainChanged, ChainID: network.ChainIDHex()})
	}
	return nil
}

// SetChain changes the chain from outside the session, the way a user
// switching networks in the wallet does.
func (w *KeyWallet) SetChain(chainID uint64) {
	w.mu.Lock()
	changed := w.chainID != chainID
	w.chainID = chainID
	w.mu.Unlock()
	if changed {
		w.publish(entity.WalletEvent{Kind: entity.ChainChanged, ChainID: "0x" + strconv.FormatUint(chainID, 16)})
	}
}

// SelectAccount makes account the active one and notifies subscribers.
func (w *KeyWallet) SelectAccount(account string) error {
	addr := common.HexToAddress(account)
	w.mu.Lock()
	if _, ok := w.keys[addr]; !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	reordered := []common.Address{addr}
	for _, a := range w.order {
		if a != addr {
			reordered = append(reordered, a)
		}
	}
	w.order = reordered
	authorized := w.authorized
	accounts := w.addressesLocked()
	w.mu.Unlock()

	if authorized {
		w.publish(entity.WalletEvent{Kind: entity.AccountsChanged, Accounts: accounts})
	}
	return nil
}

// Revoke withdraws authorization; subscribers see an empty account list.
func (w *KeyWallet) Revoke() {
	w.mu.Lock()
	w.authorized = false
	w.mu.Unlock()
	w.publish(entity.WalletEvent{Kind: entity.AccountsChanged, Accounts: []string{}})
}

// Signer returns a transaction signer for an authorized account.
func (w *KeyWallet) Signer(account string) (port.Signer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.authorized {
		return nil, ErrUnauthorized
	}
	key, ok := w.keys[common.HexToAddress(account)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	return newKeySigner(key), nil
}

// Subscribe registers for wallet events until cancel is called. Events
// that do not fit the subscriber's buffer are dropped.
func (w *KeyWallet) Subscribe() (<-chan entity.WalletEvent, func()) {
	ch := make(chan entity.WalletEvent, subscriberBuffer)
	w.mu.Lock()
	id := w.nextSubID
	w.nextSubID++
	w.subscribers[id] = ch
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subscribers, id)
			w.mu.Unlock()
			close(ch)
		})
	}
}

func (w *KeyWallet) publish(ev entity.WalletEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subscribers {
		select {
		case ch <- ev:
		default:
			w.logger.Warn("Dropping wallet event for slow subscriber", "subscriber", id, "kind", ev.Kind)
		}
	}
}

var _ port.WalletProvider = (*KeyWallet)(nil)
