package contractstest

import (
	"errors"
	"math/big"
	"sync"

	"kaia_defi/internal/infrastructure/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Token is an ERC20 ledger served by a fake contract.
type Token struct {
	*Contract
	Name     string
	Symbol   string
	Decimals uint8

	backend    *Backend
	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
	supply     *big.Int
}

// DeployToken deploys an ERC20 with mint at addr.
func (b *Backend) DeployToken(addr common.Address, name, symbol string, decimals uint8) *Token {
	return b.deployToken(addr, contracts.ERC20ABI(), name, symbol, decimals)
}

// DeployWrappedNative deploys an ERC20 that also accepts deposit/withdraw
// against the native balance.
func (b *Backend) DeployWrappedNative(addr common.Address, name, symbol string) *Token {
	merged := abi.ABI{Methods: map[string]abi.Method{}, Events: map[string]abi.Event{}}
	for _, src := range []abi.ABI{contracts.ERC20ABI(), contracts.WrappedNativeABI()} {
		for k, m := range src.Methods {
			merged.Methods[k] = m
		}
		for k, e := range src.Events {
			merged.Events[k] = e
		}
	}
	t := b.deployToken(addr, merged, name, symbol, 18)
	t.On("deposit", func(c Call) ([]interface{}, error) {
		if !c.DryRun {
			t.Credit(c.From, c.Value)
			_ = b.AddNative(addr, c.Value)
		}
		return nil, nil
	})
	t.On("withdraw", func(c Call) ([]interface{}, error) {
		amount := c.Args[0].(*big.Int)
		if t.BalanceOf(c.From).Cmp(amount) < 0 {
			return nil, Revert("insufficient balance")
		}
		if !c.DryRun {
			t.debit(c.From, amount)
			_ = b.AddNative(c.From, amount)
		}
		return nil, nil
	})
	return t
}

func (b *Backend) deployToken(addr common.Address, contractABI abi.ABI, name, symbol string, decimals uint8) *Token {
	t := &Token{
		Contract:   b.Deploy(addr, contractABI),
		Name:       name,
		Symbol:     symbol,
		Decimals:   decimals,
		backend:    b,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
		supply:     new(big.Int),
	}
	t.Returns("name", name).Returns("symbol", symbol).Returns("decimals", decimals)
	t.On("totalSupply", func(Call) ([]interface{}, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		return []interface{}{new(big.Int).Set(t.supply)}, nil
	})
	t.On("balanceOf", func(c Call) ([]interface{}, error) {
		return []interface{}{t.BalanceOf(c.Args[0].(common.Address))}, nil
	})
	t.On("allowance", func(c Call) ([]interface{}, error) {
		return []interface{}{t.Allowance(c.Args[0].(common.Address), c.Args[1].(common.Address))}, nil
	})
	t.On("approve", func(c Call) ([]interface{}, error) {
		if !c.DryRun {
			t.setAllowance(c.From, c.Args[0].(common.Address), c.Args[1].(*big.Int))
		}
		return []interface{}{true}, nil
	})
	t.On("transfer", func(c Call) ([]interface{}, error) {
		to, amount := c.Args[0].(common.Address), c.Args[1].(*big.Int)
		if t.BalanceOf(c.From).Cmp(amount) < 0 {
			return nil, Revert("ERC20: transfer amount exceeds balance")
		}
		if !c.DryRun {
			t.debit(c.From, amount)
			t.Credit(to, amount)
		}
		return []interface{}{true}, nil
	})
	t.On("transferFrom", func(c Call) ([]interface{}, error) {
		from, to, amount := c.Args[0].(common.Address), c.Args[1].(common.Address), c.Args[2].(*big.Int)
		if err := t.Spend(from, c.From, amount, c.DryRun); err != nil {
			return nil, err
		}
		if !c.DryRun {
			t.debit(from, amount)
			t.Credit(to, amount)
		}
		return []interface{}{true}, nil
	})
	t.On("mint", func(c Call) ([]interface{}, error) {
		if !c.DryRun {
			t.Credit(c.Args[0].(common.Address), c.Args[1].(*big.Int))
		}
		return nil, nil
	})
	return t
}

func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (t *Token) SetBalance(addr common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.balances[addr]
	if prev != nil {
		t.supply.Sub(t.supply, prev)
	}
	t.balances[addr] = new(big.Int).Set(amount)
	t.supply.Add(t.supply, amount)
}

func (t *Token) Credit(addr common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.balances[addr]
	if !ok {
		cur = new(big.Int)
	}
	t.balances[addr] = new(big.Int).Add(cur, amount)
	t.supply.Add(t.supply, amount)
}

func (t *Token) debit(addr common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.balances[addr]
	if !ok {
		cur = new(big.Int)
	}
	t.balances[addr] = new(big.Int).Sub(cur, amount)
	t.supply.Sub(t.supply, amount)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (t *Token) setAllowance(owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
}

// ErrAllowance is returned by Spend when the spender was not approved.
var ErrAllowance = errors.New("ERC20: insufficient allowance")

// Spend moves amount from owner to spender against owner's allowance,
// the way a protocol's transferFrom pull works.
func (t *Token) Spend(owner, spender common.Address, amount *big.Int, dryRun bool) error {
	if t.Allowance(owner, spender).Cmp(amount) < 0 {
		return Revert(ErrAllowance.Error())
	}
	if t.BalanceOf(owner).Cmp(amount) < 0 {
		return Revert("ERC20: transfer amount exceeds balance")
	}
	if dryRun {
		return nil
	}
	t.mu.Lock()
	allowance := t.allowances[owner][spender]
	t.allowances[owner][spender] = new(big.Int).Sub(allowance, amount)
	t.mu.Unlock()
	t.debit(owner, amount)
	t.Credit(spender, amount)
	return nil
}
