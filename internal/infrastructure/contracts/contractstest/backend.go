// Package contractstest provides an in-memory chain that answers calls and
// transactions by decoding them against the protocol ABIs.
package contractstest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// BaseTime is the timestamp of block 0; every block adds BlockInterval seconds.
const (
	BaseTime      uint64 = 1_700_000_000
	BlockInterval uint64 = 2
	DefaultGas    uint64 = 100_000
)

// Call is one decoded contract invocation.
type Call struct {
	From   common.Address
	To     common.Address
	Method string
	Args   []interface{}
	Value  *big.Int
	// DryRun is set for eth_call and gas estimation; handlers must not
	// change state when it is true.
	DryRun bool
	Block  uint64
	TxHash common.Hash

	logs *[]types.Log
	abi  abi.ABI
}

// Emit records an event for the current transaction. Topics are the
// indexed arguments; args are the non-indexed ones in ABI order.
func (c Call) Emit(event string, topics []common.Hash, args ...interface{}) {
	if c.DryRun || c.logs == nil {
		return
	}
	ev, ok := c.abi.Events[event]
	if !ok {
		panic(fmt.Sprintf("contractstest: unknown event %s", event))
	}
	data, err := ev.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		panic(fmt.Sprintf("contractstest: pack %s: %v", event, err))
	}
	*c.logs = append(*c.logs, types.Log{
		Address:     c.To,
		Topics:      append([]common.Hash{ev.ID}, topics...),
		Data:        data,
		BlockNumber: c.Block,
		TxHash:      c.TxHash,
	})
}

// Handler answers a call. Returned values are packed with the method's outputs.
type Handler func(call Call) ([]interface{}, error)

// Contract is a deployed fake contract.
type Contract struct {
	Address  common.Address
	ABI      abi.ABI
	mu       sync.RWMutex
	handlers map[string]Handler
}

// On installs the handler for method.
func (c *Contract) On(method string, h Handler) *Contract {
	if _, ok := c.ABI.Methods[method]; !ok {
		panic(fmt.Sprintf("contractstest: %s has no method %s", c.Address.Hex(), method))
	}
	c.mu.Lock()
	c.handlers[method] = h
	c.mu.Unlock()
	return c
}

// Returns makes method answer with fixed values.
func (c *Contract) Returns(method string, values ...interface{}) *Contract {
	return c.On(method, func(Call) ([]interface{}, error) { return values, nil })
}

// Reverts makes method revert with reason.
func (c *Contract) Reverts(method, reason string) *Contract {
	return c.On(method, func(Call) ([]interface{}, error) { return nil, Revert(reason) })
}

// Unset removes the handler so the method returns no data.
func (c *Contract) Unset(method string) *Contract {
	c.mu.Lock()
	delete(c.handlers, method)
	c.mu.Unlock()
	return c
}

func (c *Contract) handler(method string) Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers[method]
}

// RevertError mimics the JSON-RPC error a node returns for a revert.
type RevertError struct {
	Reason string
	data   string
}

// Revert builds an Error(string) revert.
func Revert(reason string) *RevertError {
	stringType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return &RevertError{Reason: reason, data: hexutil.Encode(append(selector, packed...))}
}

func (e *RevertError) Error() string          { return "execution reverted: " + e.Reason }
func (e *RevertError) ErrorCode() int         { return 3 }
func (e *RevertError) ErrorData() interface{} { return e.data }

// Backend is a programmable port.ChainBackend.
type Backend struct {
	mu        sync.Mutex
	chainID   *big.Int
	head      uint64
	gasPrice  *big.Int
	native    map[common.Address]*big.Int
	contracts map[common.Address]*Contract
	nonces    map[common.Address]uint64
	receipts  map[common.Hash]*types.Receipt
	logs      []types.Log
	sent      []Call
	calls     map[string]int

	// SendErr, when set, fails every SendTransaction.
	SendErr error
	// FilterErr fails FilterLogs for the listed contract addresses.
	FilterErr map[common.Address]error
}

// New returns an empty chain at block 100.
func New(chainID uint64) *Backend {
	return &Backend{
		chainID:   new(big.Int).SetUint64(chainID),
		head:      100,
		gasPrice:  big.NewInt(25_000_000_000),
		native:    make(map[common.Address]*big.Int),
		contracts: make(map[common.Address]*Contract),
		nonces:    make(map[common.Address]uint64),
		receipts:  make(map[common.Hash]*types.Receipt),
		calls:     make(map[string]int),
		FilterErr: make(map[common.Address]error),
	}
}

// Deploy registers a contract at addr.
func (b *Backend) Deploy(addr common.Address, contractABI abi.ABI) *Contract {
	c := &Contract{Address: addr, ABI: contractABI, handlers: make(map[string]Handler)}
	b.mu.Lock()
	b.contracts[addr] = c
	b.mu.Unlock()
	return c
}

func (b *Backend) contract(addr common.Address) *Contract {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contracts[addr]
}

func (b *Backend) SetNative(addr common.Address, wei *big.Int) {
	b.mu.Lock()
	b.native[addr] = new(big.Int).Set(wei)
	b.mu.Unlock()
}

func (b *Backend) NativeBalance(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.native[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// AddNative credits (or with a negative delta debits) a native balance.
func (b *Backend) AddNative(addr common.Address, delta *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.native[addr]
	if !ok {
		cur = new(big.Int)
	}
	next := new(big.Int).Add(cur, delta)
	if next.Sign() < 0 {
		return errors.New("insufficient funds for transfer")
	}
	b.native[addr] = next
	return nil
}

func (b *Backend) SetHead(n uint64) {
	b.mu.Lock()
	b.head = n
	b.mu.Unlock()
}

func (b *Backend) SetGasPrice(wei *big.Int) {
	b.mu.Lock()
	b.gasPrice = new(big.Int).Set(wei)
	b.mu.Unlock()
}

// AddLog makes lg visible to FilterLogs.
func (b *Backend) AddLog(lg types.Log) {
	b.mu.Lock()
	b.logs = append(b.logs, lg)
	b.mu.Unlock()
}

// Sent returns the mined transactions in submission order.
func (b *Backend) Sent() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.sent...)
}

// SentMethods returns the method names of Sent.
func (b *Backend) SentMethods() []string {
	sent := b.Sent()
	out := make([]string, len(sent))
	for i, c := range sent {
		out[i] = c.Method
	}
	return out
}

// CallCount returns how often a read-only method was called.
func (b *Backend) CallCount(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

func (b *Backend) decode(to *common.Address, data []byte) (*Contract, *abi.Method, []interface{}, error) {
	if to == nil {
		return nil, nil, nil, errors.New("contract creation is not supported")
	}
	c := b.contract(*to)
	if c == nil || len(data) < 4 {
		return c, nil, nil, nil
	}
	method, err := c.ABI.MethodById(data[:4])
	if err != nil {
		return c, nil, nil, nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return c, nil, nil, fmt.Errorf("invalid calldata for %s: %w", method.Name, err)
	}
	return c, method, args, nil
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) BlockNumber(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head, nil
}

func (b *Backend) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	n := b.head
	b.mu.Unlock()
	if number != nil {
		n = number.Uint64()
	}
	return &types.Header{Number: new(big.Int).SetUint64(n), Time: BaseTime + n*BlockInterval}, nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	return b.NativeBalance(account), nil
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c, method, args, err := b.decode(msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, nil
	}
	b.mu.Lock()
	b.calls[method.Name]++
	b.mu.Unlock()
	h := c.handler(method.Name)
	if h == nil {
		return nil, nil
	}
	values, err := h(Call{From: msg.From, To: c.Address, Method: method.Name, Args: args, Value: valueOf(msg.Value), DryRun: true, abi: c.ABI})
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(values...)
}

func (b *Backend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	c, method, args, err := b.decode(msg.To, msg.Data)
	if err != nil {
		return 0, err
	}
	if msg.Value != nil && msg.Value.Sign() > 0 && b.NativeBalance(msg.From).Cmp(msg.Value) < 0 {
		return 0, errors.New("insufficient funds for gas * price + value")
	}
	if method == nil {
		return DefaultGas, nil
	}
	if h := c.handler(method.Name); h != nil {
		if _, err := h(Call{From: msg.From, To: c.Address, Method: method.Name, Args: args, Value: valueOf(msg.Value), DryRun: true, abi: c.ABI}); err != nil {
			return 0, err
		}
	}
	return DefaultGas, nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.gasPrice), nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

// SendTransaction executes tx immediately and mines it into a new block.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.SendErr != nil {
		return b.SendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	c, method, args, err := b.decode(tx.To(), tx.Data())
	if err != nil {
		return err
	}

	b.mu.Lock()
	if tx.Nonce() != b.nonces[from] {
		b.mu.Unlock()
		return fmt.Errorf("nonce mismatch: have %d, want %d", tx.Nonce(), b.nonces[from])
	}
	b.nonces[from]++
	b.head++
	block := b.head
	b.mu.Unlock()

	status := types.ReceiptStatusSuccessful
	var logs []types.Log
	call := Call{From: from, To: *tx.To(), Value: valueOf(tx.Value()), Block: block, TxHash: tx.Hash(), logs: &logs}
	if c != nil {
		call.abi = c.ABI
	}

	if call.Value.Sign() > 0 {
		if err := b.AddNative(from, new(big.Int).Neg(call.Value)); err != nil {
			status = types.ReceiptStatusFailed
		}
	}
	if status == types.ReceiptStatusSuccessful && method != nil {
		call.Method, call.Args = method.Name, args
		if h := c.handler(method.Name); h != nil {
			if _, err := h(call); err != nil {
				status = types.ReceiptStatusFailed
				logs = nil
				if call.Value.Sign() > 0 {
					_ = b.AddNative(from, call.Value)
				}
			}
		}
	}

	receipt := &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(block),
		GasUsed:     DefaultGas,
	}
	for i := range logs {
		logs[i].Index = uint(i)
		receipt.Logs = append(receipt.Logs, &logs[i])
	}

	b.mu.Lock()
	b.receipts[tx.Hash()] = receipt
	b.logs = append(b.logs, logs...)
	b.sent = append(b.sent, call)
	b.mu.Unlock()
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (b *Backend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, addr := range q.Addresses {
		if err := b.FilterErr[addr]; err != nil {
			return nil, err
		}
	}
	var out []types.Log
	for _, lg := range b.logs {
		if q.FromBlock != nil && lg.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && lg.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, lg.Address) {
			continue
		}
		if !matchTopics(q.Topics, lg.Topics) {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func matchTopics(filter [][]common.Hash, topics []common.Hash) bool {
	for i, alternatives := range filter {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		matched := false
		for _, t := range alternatives {
			if t == topics[i] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func valueOf(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Signer signs with an in-memory key.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner generates a fresh key.
func NewSigner() *Signer {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &Signer{key: key}
}

func (s *Signer) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }

func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// Topic left-pads an address into an indexed topic.
func Topic(addr common.Address) common.Hash { return common.BytesToHash(addr.Bytes()) }

// Ether converts whole units to 18-decimal wei.
func Ether(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}
