package contractstest

import (
	"fmt"
	"math/big"
	"sync"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// World deploys the registered tokens and protocol modules of one chain
// onto a Backend with simple, deterministic behaviour.
type World struct {
	Backend *Backend
	Tokens  map[string]*Token
	DEX     *DEX
	Staking *Staking
	Farms   *Farms
	Lending *Lending
}

// NewWorld deploys everything the registry lists for chainID. Tokens or
// modules without an address are left out.
func NewWorld(registry port.NetworkRegistry, chainID uint64) *World {
	b := New(chainID)
	w := &World{Backend: b, Tokens: make(map[string]*Token)}

	for _, info := range registry.Tokens(chainID) {
		if info.Address == "" || info.Address == entity.ZeroAddress {
			continue
		}
		addr := common.HexToAddress(info.Address)
		if info.Symbol == "WKAIA" {
			w.Tokens[info.Symbol] = b.DeployWrappedNative(addr, info.Name, info.Symbol)
			continue
		}
		w.Tokens[info.Symbol] = b.DeployToken(addr, info.Name, info.Symbol, info.Decimals)
	}

	if addr, err := registry.ProtocolAddress(chainID, entity.ProtocolSwap); err == nil {
		w.DEX = newDEX(w, addr)
	}
	if addr, err := registry.ProtocolAddress(chainID, entity.ProtocolStaking); err == nil {
		w.Staking = newStaking(w, addr)
	}
	if addr, err := registry.ProtocolAddress(chainID, entity.ProtocolFarms); err == nil {
		w.Farms = newFarms(w, addr)
	}
	if addr, err := registry.ProtocolAddress(chainID, entity.ProtocolLending); err == nil {
		w.Lending = newLending(w, addr)
	}
	return w
}

// Fund gives account native currency and an equal balance of every token.
func (w *World) Fund(account common.Address, units int64) {
	w.Backend.SetNative(account, Ether(units))
	for _, t := range w.Tokens {
		t.SetBalance(account, Ether(units))
	}
}

func (w *World) tokenAt(addr common.Address) (*Token, error) {
	for _, t := range w.Tokens {
		if t.Address == addr {
			return t, nil
		}
	}
	return nil, Revert(fmt.Sprintf("unknown token %s", addr.Hex()))
}

type pairKey [2]common.Address

type pool struct {
	reserves  map[common.Address]*big.Int
	liquidity map[common.Address]*big.Int
	total     *big.Int
}

// DEX is a constant-product exchange.
type DEX struct {
	*Contract
	world *World
	mu    sync.Mutex
	pools map[pairKey]*pool
}

func orderPair(a, b common.Address) pairKey {
	if a.Hex() < b.Hex() {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}

func newDEX(w *World, addr common.Address) *DEX {
	d := &DEX{Contract: w.Backend.Deploy(addr, contracts.ExchangeABI()), world: w, pools: make(map[pairKey]*pool)}

	d.On("getAmountOut", func(c Call) ([]interface{}, error) {
		out, err := d.amountOut(c.Args[0].(*big.Int), c.Args[1].(common.Address), c.Args[2].(common.Address))
		if err != nil {
			return nil, err
		}
		return []interface{}{out}, nil
	})
	d.On("getPoolInfo", func(c Call) ([]interface{}, error) {
		a, b := c.Args[0].(common.Address), c.Args[1].(common.Address)
		d.mu.Lock()
		defer d.mu.Unlock()
		p, ok := d.pools[orderPair(a, b)]
		if !ok {
			return []interface{}{new(big.Int), new(big.Int), new(big.Int)}, nil
		}
		return []interface{}{new(big.Int).Set(p.reserves[a]), new(big.Int).Set(p.reserves[b]), new(big.Int).Set(p.total)}, nil
	})
	d.On("getUserLiquidity", func(c Call) ([]interface{}, error) {
		a, b, user := c.Args[0].(common.Address), c.Args[1].(common.Address), c.Args[2].(common.Address)
		d.mu.Lock()
		defer d.mu.Unlock()
		if p, ok := d.pools[orderPair(a, b)]; ok && p.liquidity[user] != nil {
			return []interface{}{new(big.Int).Set(p.liquidity[user])}, nil
		}
		return []interface{}{new(big.Int)}, nil
	})
	d.On("getPoolId", func(c Call) ([]interface{}, error) {
		return []interface{}{poolID(c.Args[0].(common.Address), c.Args[1].(common.Address))}, nil
	})
	d.On("createPool", func(c Call) ([]interface{}, error) {
		a, b := c.Args[0].(common.Address), c.Args[1].(common.Address)
		d.mu.Lock()
		defer d.mu.Unlock()
		key := orderPair(a, b)
		if _, ok := d.pools[key]; ok {
			return nil, Revert("Pool already exists")
		}
		if !c.DryRun {
			d.pools[key] = newPool(a, b)
		}
		return []interface{}{poolID(a, b)}, nil
	})
	d.On("addLiquidity", func(c Call) ([]interface{}, error) {
		a, b := c.Args[0].(common.Address), c.Args[1].(common.Address)
		amountA, amountB := c.Args[2].(*big.Int), c.Args[3].(*big.Int)
		ta, err := w.tokenAt(a)
		if err != nil {
			return nil, err
		}
		tb, err := w.tokenAt(b)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		p, ok := d.pools[orderPair(a, b)]
		d.mu.Unlock()
		if !ok {
			return nil, Revert("Pool does not exist")
		}
		if err := ta.Spend(c.From, d.Address, amountA, true); err != nil {
			return nil, err
		}
		if err := tb.Spend(c.From, d.Address, amountB, true); err != nil {
			return nil, err
		}
		minted := new(big.Int).Add(amountA, amountB)
		if c.DryRun {
			return []interface{}{minted}, nil
		}
		_ = ta.Spend(c.From, d.Address, amountA, false)
		_ = tb.Spend(c.From, d.Address, amountB, false)
		d.mu.Lock()
		p.reserves[a].Add(p.reserves[a], amountA)
		p.reserves[b].Add(p.reserves[b], amountB)
		if p.liquidity[c.From] == nil {
			p.liquidity[c.From] = new(big.Int)
		}
		p.liquidity[c.From].Add(p.liquidity[c.From], minted)
		p.total.Add(p.total, minted)
		d.mu.Unlock()
		c.Emit("LiquidityAdded", []common.Hash{Topic(c.From)}, poolID(a, b), amountA, amountB, minted)
		return []interface{}{minted}, nil
	})
	d.On("removeLiquidity", func(c Call) ([]interface{}, error) {
		a, b := c.Args[0].(common.Address), c.Args[1].(common.Address)
		liquidity := c.Args[2].(*big.Int)
		minA, minB := c.Args[3].(*big.Int), c.Args[4].(*big.Int)
		ta, err := w.tokenAt(a)
		if err != nil {
			return nil, err
		}
		tb, err := w.tokenAt(b)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		p, ok := d.pools[orderPair(a, b)]
		if !ok {
			return nil, Revert("Pool does not exist")
		}
		held := p.liquidity[c.From]
		if liquidity.Sign() == 0 || held == nil || held.Cmp(liquidity) < 0 {
			return nil, Revert("Insufficient liquidity")
		}
		amountA := new(big.Int).Mul(liquidity, p.reserves[a])
		amountA.Quo(amountA, p.total)
		amountB := new(big.Int).Mul(liquidity, p.reserves[b])
		amountB.Quo(amountB, p.total)
		if amountA.Cmp(minA) < 0 || amountB.Cmp(minB) < 0 {
			return nil, Revert("Insufficient output amount")
		}
		if c.DryRun {
			return []interface{}{amountA, amountB}, nil
		}
		held.Sub(held, liquidity)
		p.total.Sub(p.total, liquidity)
		p.reserves[a].Sub(p.reserves[a], amountA)
		p.reserves[b].Sub(p.reserves[b], amountB)
		ta.Credit(c.From, amountA)
		tb.Credit(c.From, amountB)
		c.Emit("LiquidityRemoved", []common.Hash{Topic(c.From)}, poolID(a, b), amountA, amountB, liquidity)
		return []interface{}{amountA, amountB}, nil
	})
	d.On("swapExactTokensForTokens", func(c Call) ([]interface{}, error) {
		amountIn, minOut := c.Args[0].(*big.Int), c.Args[1].(*big.Int)
		in, out := c.Args[2].(common.Address), c.Args[3].(common.Address)
		amountOut, err := d.amountOut(amountIn, in, out)
		if err != nil {
			return nil, err
		}
		if amountOut.Cmp(minOut) < 0 {
			return nil, Revert("Insufficient output amount")
		}
		tin, err := w.tokenAt(in)
		if err != nil {
			return nil, err
		}
		tout, err := w.tokenAt(out)
		if err != nil {
			return nil, err
		}
		if err := tin.Spend(c.From, d.Address, amountIn, c.DryRun); err != nil {
			return nil, err
		}
		if c.DryRun {
			return []interface{}{amountOut}, nil
		}
		tout.Credit(c.From, amountOut)
		d.mu.Lock()
		p := d.pools[orderPair(in, out)]
		p.reserves[in].Add(p.reserves[in], amountIn)
		p.reserves[out].Sub(p.reserves[out], amountOut)
		d.mu.Unlock()
		c.Emit("Swap", []common.Hash{Topic(c.From)}, poolID(in, out), in, out, amountIn, amountOut)
		return []interface{}{amountOut}, nil
	})
	return d
}

func newPool(a, b common.Address) *pool {
	return &pool{
		reserves:  map[common.Address]*big.Int{a: new(big.Int), b: new(big.Int)},
		liquidity: make(map[common.Address]*big.Int),
		total:     new(big.Int),
	}
}

func poolID(a, b common.Address) [32]byte {
	key := orderPair(a, b)
	var id [32]byte
	copy(id[:], crypto.Keccak256(key[0].Bytes(), key[1].Bytes()))
	return id
}

// SetPool seeds reserves for a pair.
func (d *DEX) SetPool(a, b common.Address, reserveA, reserveB *big.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := newPool(a, b)
	p.reserves[a] = new(big.Int).Set(reserveA)
	p.reserves[b] = new(big.Int).Set(reserveB)
	p.total = new(big.Int).Add(reserveA, reserveB)
	d.pools[orderPair(a, b)] = p
}

func (d *DEX) amountOut(amountIn *big.Int, in, out common.Address) (*big.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[orderPair(in, out)]
	if !ok {
		return nil, Revert("Pool does not exist")
	}
	rIn, rOut := p.reserves[in], p.reserves[out]
	if rIn.Sign() == 0 || rOut.Sign() == 0 {
		return new(big.Int), nil
	}
	num := new(big.Int).Mul(amountIn, rOut)
	den := new(big.Int).Add(rIn, amountIn)
	return num.Quo(num, den), nil
}

type stakerRecord struct {
	staked     *big.Int
	pending    *big.Int
	lastUpdate uint64
}

// Staking holds KAIA token stakes.
type Staking struct {
	*Contract
	APY   int64
	world *World
	mu    sync.Mutex
	users map[common.Address]*stakerRecord
	total *big.Int
}

func newStaking(w *World, addr common.Address) *Staking {
	s := &Staking{Contract: w.Backend.Deploy(addr, contracts.StakingABI()), APY: 12, world: w, users: make(map[common.Address]*stakerRecord), total: new(big.Int)}

	s.On("getStakerInfo", func(c Call) ([]interface{}, error) {
		r := s.record(c.Args[0].(common.Address))
		s.mu.Lock()
		defer s.mu.Unlock()
		return []interface{}{new(big.Int).Set(r.staked), new(big.Int).Set(r.pending), new(big.Int).SetUint64(r.lastUpdate)}, nil
	})
	s.On("getTotalStaked", func(Call) ([]interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return []interface{}{new(big.Int).Set(s.total)}, nil
	})
	s.On("getAPY", func(Call) ([]interface{}, error) {
		return []interface{}{big.NewInt(s.APY)}, nil
	})
	s.On("stake", func(c Call) ([]interface{}, error) {
		amount := c.Args[0].(*big.Int)
		if amount.Sign() == 0 {
			return nil, Revert("Cannot stake 0")
		}
		kaia, err := s.kaia()
		if err != nil {
			return nil, err
		}
		if err := kaia.Spend(c.From, s.Address, amount, c.DryRun); err != nil {
			return nil, err
		}
		if c.DryRun {
			return nil, nil
		}
		r := s.record(c.From)
		s.mu.Lock()
		r.staked.Add(r.staked, amount)
		r.lastUpdate = BaseTime + c.Block*BlockInterval
		s.total.Add(s.total, amount)
		s.mu.Unlock()
		c.Emit("Staked", []common.Hash{Topic(c.From)}, amount)
		return nil, nil
	})
	s.On("unstake", func(c Call) ([]interface{}, error) {
		amount := c.Args[0].(*big.Int)
		r := s.record(c.From)
		s.mu.Lock()
		enough := r.staked.Cmp(amount) >= 0
		s.mu.Unlock()
		if !enough {
			return nil, Revert("Insufficient staked amount")
		}
		if c.DryRun {
			return nil, nil
		}
		kaia, err := s.kaia()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		r.staked.Sub(r.staked, amount)
		s.total.Sub(s.total, amount)
		s.mu.Unlock()
		kaia.Credit(c.From, amount)
		c.Emit("Unstaked", []common.Hash{Topic(c.From)}, amount)
		return nil, nil
	})
	s.On("claimRewards", func(c Call) ([]interface{}, error) {
		if c.DryRun {
			return nil, nil
		}
		kaia, err := s.kaia()
		if err != nil {
			return nil, err
		}
		r := s.record(c.From)
		s.mu.Lock()
		reward := new(big.Int).Set(r.pending)
		r.pending.SetInt64(0)
		s.mu.Unlock()
		kaia.Credit(c.From, reward)
		c.Emit("RewardsClaimed", []common.Hash{Topic(c.From)}, reward)
		return nil, nil
	})
	return s
}

func (s *Staking) kaia() (*Token, error) {
	t, ok := s.world.Tokens["KAIA"]
	if !ok {
		return nil, Revert("staking token missing")
	}
	return t, nil
}

func (s *Staking) record(user common.Address) *stakerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.users[user]
	if !ok {
		r = &stakerRecord{staked: new(big.Int), pending: new(big.Int)}
		s.users[user] = r
	}
	return r
}

// SetPending sets a staker's claimable reward.
func (s *Staking) SetPending(user common.Address, amount *big.Int) {
	r := s.record(user)
	s.mu.Lock()
	r.pending = new(big.Int).Set(amount)
	s.mu.Unlock()
}

// SetStaked sets a staker's position directly.
func (s *Staking) SetStaked(user common.Address, amount *big.Int) {
	r := s.record(user)
	s.mu.Lock()
	s.total.Sub(s.total, r.staked)
	r.staked = new(big.Int).Set(amount)
	s.total.Add(s.total, amount)
	s.mu.Unlock()
}

// FarmPool is one farm pool.
type FarmPool struct {
	LPToken        *Token
	RewardToken    *Token
	AllocPoint     int64
	RewardPerBlock *big.Int
	Name           string
	Active         bool
	APYBasisPoints int64
	// Broken makes every read of this pool revert.
	Broken bool

	total   *big.Int
	amounts map[common.Address]*big.Int
	pending map[common.Address]*big.Int
}

// Farms is a MasterChef-style farm.
type Farms struct {
	*Contract
	world *World
	mu    sync.Mutex
	pools []*FarmPool
}

func newFarms(w *World, addr common.Address) *Farms {
	f := &Farms{Contract: w.Backend.Deploy(addr, contracts.FarmABI()), world: w}

	f.On("poolLength", func(Call) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return []interface{}{big.NewInt(int64(len(f.pools)))}, nil
	})
	f.On("getPoolInfo", func(c Call) ([]interface{}, error) {
		p, err := f.pool(c.Args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		return []interface{}{p.LPToken.Address, p.RewardToken.Address, big.NewInt(p.AllocPoint), new(big.Int).Set(p.total), new(big.Int).Set(p.RewardPerBlock), p.Name, p.Active}, nil
	})
	f.On("getUserInfo", func(c Call) ([]interface{}, error) {
		p, err := f.pool(c.Args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		user := c.Args[1].(common.Address)
		f.mu.Lock()
		defer f.mu.Unlock()
		return []interface{}{valueOf(p.amounts[user]), new(big.Int), valueOf(p.pending[user])}, nil
	})
	f.On("pendingReward", func(c Call) ([]interface{}, error) {
		p, err := f.pool(c.Args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		return []interface{}{valueOf(p.pending[c.Args[1].(common.Address)])}, nil
	})
	f.On("calculateAPY", func(c Call) ([]interface{}, error) {
		p, err := f.pool(c.Args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		return []interface{}{big.NewInt(p.APYBasisPoints)}, nil
	})
	f.On("deposit", func(c Call) ([]interface{}, error) {
		pid, amount := c.Args[0].(*big.Int), c.Args[1].(*big.Int)
		p, err := f.pool(pid)
		if err != nil {
			return nil, err
		}
		if err := p.LPToken.Spend(c.From, f.Address, amount, c.DryRun); err != nil {
			return nil, err
		}
		if c.DryRun {
			return nil, nil
		}
		f.mu.Lock()
		p.amounts[c.From] = new(big.Int).Add(valueOf(p.amounts[c.From]), amount)
		p.total.Add(p.total, amount)
		f.mu.Unlock()
		c.Emit("Deposit", []common.Hash{Topic(c.From), common.BigToHash(pid)}, amount)
		return nil, nil
	})
	f.On("withdraw", func(c Call) ([]interface{}, error) {
		pid, amount := c.Args[0].(*big.Int), c.Args[1].(*big.Int)
		p, err := f.pool(pid)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		staked := valueOf(p.amounts[c.From])
		f.mu.Unlock()
		if staked.Cmp(amount) < 0 {
			return nil, Revert("withdraw: not good")
		}
		if c.DryRun {
			return nil, nil
		}
		f.mu.Lock()
		p.amounts[c.From] = staked.Sub(staked, amount)
		p.total.Sub(p.total, amount)
		f.mu.Unlock()
		p.LPToken.Credit(c.From, amount)
		c.Emit("Withdraw", []common.Hash{Topic(c.From), common.BigToHash(pid)}, amount)
		return nil, nil
	})
	f.On("harvest", func(c Call) ([]interface{}, error) {
		pid := c.Args[0].(*big.Int)
		p, err := f.pool(pid)
		if err != nil {
			return nil, err
		}
		if c.DryRun {
			return nil, nil
		}
		f.mu.Lock()
		reward := valueOf(p.pending[c.From])
		delete(p.pending, c.From)
		f.mu.Unlock()
		p.RewardToken.Credit(c.From, reward)
		c.Emit("Harvest", []common.Hash{Topic(c.From), common.BigToHash(pid)}, reward)
		return nil, nil
	})
	return f
}

// AddPool appends a pool and returns its id.
func (f *Farms) AddPool(p *FarmPool) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.total = new(big.Int)
	p.amounts = make(map[common.Address]*big.Int)
	p.pending = make(map[common.Address]*big.Int)
	if p.RewardPerBlock == nil {
		p.RewardPerBlock = new(big.Int)
	}
	f.pools = append(f.pools, p)
	return uint64(len(f.pools) - 1)
}

// SetUser sets a user's stake and pending reward in pool pid.
func (f *Farms) SetUser(pid uint64, user common.Address, staked, pending *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pools[pid]
	p.total.Sub(p.total, valueOf(p.amounts[user]))
	p.amounts[user] = new(big.Int).Set(staked)
	p.total.Add(p.total, staked)
	p.pending[user] = new(big.Int).Set(pending)
}

func (f *Farms) pool(pid *big.Int) (*FarmPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !pid.IsUint64() || pid.Uint64() >= uint64(len(f.pools)) {
		return nil, Revert("Invalid pool ID")
	}
	p := f.pools[pid.Uint64()]
	if p.Broken {
		return nil, Revert("pool unavailable")
	}
	return p, nil
}

type loan struct {
	collateralToken  common.Address
	borrowToken      common.Address
	collateralAmount *big.Int
	borrowAmount     *big.Int
	owed             *big.Int
	active           bool
}

// Lending is a collateralised lending pool.
type Lending struct {
	*Contract
	// MaxLTVPercent bounds getMaxBorrowAmount and borrow.
	MaxLTVPercent int64
	world         *World
	mu            sync.Mutex
	supplied      map[common.Address]map[common.Address]*big.Int
	totalSupplied map[common.Address]*big.Int
	totalBorrowed map[common.Address]*big.Int
	loans         map[common.Address][]*loan
}

func newLending(w *World, addr common.Address) *Lending {
	l := &Lending{
		Contract:      w.Backend.Deploy(addr, contracts.LendingABI()),
		MaxLTVPercent: 75,
		world:         w,
		supplied:      make(map[common.Address]map[common.Address]*big.Int),
		totalSupplied: make(map[common.Address]*big.Int),
		totalBorrowed: make(map[common.Address]*big.Int),
		loans:         make(map[common.Address][]*loan),
	}

	l.On("getMaxBorrowAmount", func(c Call) ([]interface{}, error) {
		return []interface{}{l.maxBorrow(c.Args[2].(*big.Int))}, nil
	})
	l.On("getUserSupplied", func(c Call) ([]interface{}, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		return []interface{}{valueOf(l.supplied[c.Args[0].(common.Address)][c.Args[1].(common.Address)])}, nil
	})
	l.On("getUserBorrowCount", func(c Call) ([]interface{}, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		return []interface{}{big.NewInt(int64(len(l.loans[c.Args[0].(common.Address)])))}, nil
	})
	l.On("getUserBorrow", func(c Call) ([]interface{}, error) {
		user, id := c.Args[0].(common.Address), c.Args[1].(*big.Int)
		l.mu.Lock()
		defer l.mu.Unlock()
		loans := l.loans[user]
		if !id.IsUint64() || id.Uint64() >= uint64(len(loans)) {
			return nil, Revert("Invalid borrow ID")
		}
		ln := loans[id.Uint64()]
		return []interface{}{valueOf(ln.collateralAmount), valueOf(ln.borrowAmount), ln.collateralToken, ln.borrowToken, valueOf(ln.owed), ln.active}, nil
	})
	l.On("getPoolInfo", func(c Call) ([]interface{}, error) {
		token := c.Args[0].(common.Address)
		l.mu.Lock()
		defer l.mu.Unlock()
		supplied, borrowed := valueOf(l.totalSupplied[token]), valueOf(l.totalBorrowed[token])
		available := new(big.Int).Sub(supplied, borrowed)
		utilization := new(big.Int)
		if supplied.Sign() > 0 {
			utilization.Mul(borrowed, big.NewInt(10000))
			utilization.Quo(utilization, supplied)
		}
		return []interface{}{supplied, borrowed, available, utilization}, nil
	})
	l.On("supply", func(c Call) ([]interface{}, error) {
		token, amount := c.Args[0].(common.Address), c.Args[1].(*big.Int)
		t, err := w.tokenAt(token)
		if err != nil {
			return nil, err
		}
		if err := t.Spend(c.From, l.Address, amount, c.DryRun); err != nil {
			return nil, err
		}
		if c.DryRun {
			return nil, nil
		}
		l.mu.Lock()
		if l.supplied[c.From] == nil {
			l.supplied[c.From] = make(map[common.Address]*big.Int)
		}
		l.supplied[c.From][token] = new(big.Int).Add(valueOf(l.supplied[c.From][token]), amount)
		l.totalSupplied[token] = new(big.Int).Add(valueOf(l.totalSupplied[token]), amount)
		l.mu.Unlock()
		c.Emit("TokenSupplied", []common.Hash{Topic(c.From)}, token, amount)
		return nil, nil
	})
	l.On("borrow", func(c Call) ([]interface{}, error) {
		collateralToken, borrowToken := c.Args[0].(common.Address), c.Args[1].(common.Address)
		collateralAmount, borrowAmount := c.Args[2].(*big.Int), c.Args[3].(*big.Int)
		if borrowAmount.Cmp(l.maxBorrow(collateralAmount)) > 0 {
			return nil, Revert("Insufficient collateral")
		}
		l.mu.Lock()
		available := new(big.Int).Sub(valueOf(l.totalSupplied[borrowToken]), valueOf(l.totalBorrowed[borrowToken]))
		l.mu.Unlock()
		if available.Cmp(borrowAmount) < 0 {
			return nil, Revert("Insufficient liquidity")
		}
		ct, err := w.tokenAt(collateralToken)
		if err != nil {
			return nil, err
		}
		bt, err := w.tokenAt(borrowToken)
		if err != nil {
			return nil, err
		}
		if err := ct.Spend(c.From, l.Address, collateralAmount, c.DryRun); err != nil {
			return nil, err
		}
		if c.DryRun {
			return nil, nil
		}
		bt.Credit(c.From, borrowAmount)
		l.mu.Lock()
		l.totalBorrowed[borrowToken] = new(big.Int).Add(valueOf(l.totalBorrowed[borrowToken]), borrowAmount)
		l.loans[c.From] = append(l.loans[c.From], &loan{
			collateralToken:  collateralToken,
			borrowToken:      borrowToken,
			collateralAmount: new(big.Int).Set(collateralAmount),
			borrowAmount:     new(big.Int).Set(borrowAmount),
			owed:             new(big.Int).Set(borrowAmount),
			active:           true,
		})
		l.mu.Unlock()
		c.Emit("TokensBorrowed", []common.Hash{Topic(c.From)}, collateralToken, borrowToken, collateralAmount, borrowAmount)
		return nil, nil
	})
	l.On("repay", func(c Call) ([]interface{}, error) {
		id, amount := c.Args[0].(*big.Int), c.Args[1].(*big.Int)
		l.mu.Lock()
		loans := l.loans[c.From]
		if !id.IsUint64() || id.Uint64() >= uint64(len(loans)) || !loans[id.Uint64()].active {
			l.mu.Unlock()
			return nil, Revert("Invalid borrow ID")
		}
		ln := loans[id.Uint64()]
		l.mu.Unlock()
		bt, err := w.tokenAt(ln.borrowToken)
		if err != nil {
			return nil, err
		}
		if err := bt.Spend(c.From, l.Address, amount, c.DryRun); err != nil {
			return nil, err
		}
		if c.DryRun {
			return nil, nil
		}
		l.mu.Lock()
		ln.owed.Sub(ln.owed, amount)
		if ln.owed.Sign() <= 0 {
			ln.owed.SetInt64(0)
			ln.active = false
		}
		l.mu.Unlock()
		c.Emit("LoanRepaid", []common.Hash{Topic(c.From)}, id, amount)
		return nil, nil
	})
	return l
}

func (l *Lending) maxBorrow(collateral *big.Int) *big.Int {
	v := new(big.Int).Mul(collateral, big.NewInt(l.MaxLTVPercent))
	return v.Quo(v, big.NewInt(100))
}

// Seed adds pool liquidity for token without a supplier position.
func (l *Lending) Seed(token common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalSupplied[token] = new(big.Int).Add(valueOf(l.totalSupplied[token]), amount)
}

// SetThreshold makes the module report a liquidation threshold in percent.
func (l *Lending) SetThreshold(percent int64) {
	l.Returns("liquidationThreshold", big.NewInt(percent))
}
