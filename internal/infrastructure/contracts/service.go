package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

// ErrMethodNotImplemented is reported when a call returns no data, which
// is what an ABI/deployment mismatch looks like from the client side.
var ErrMethodNotImplemented = errors.New("method not implemented by deployed contract")

const defaultLiquidationThreshold = 90.0

// Options tunes transaction submission and history queries.
type Options struct {
	GasHeadroomPercent    int
	ReceiptPollInterval   time.Duration
	ConfirmTimeout        time.Duration
	HistoryBlockRange     uint64
	MaxConcurrentRoutines int
}

func (o Options) withDefaults() Options {
	if o.GasHeadroomPercent <= 0 {
		o.GasHeadroomPercent = 20
	}
	if o.ReceiptPollInterval <= 0 {
		o.ReceiptPollInterval = time.Second
	}
	if o.HistoryBlockRange == 0 {
		o.HistoryBlockRange = 10000
	}
	if o.MaxConcurrentRoutines <= 0 {
		o.MaxConcurrentRoutines = 10
	}
	return o
}

// Service implements port.ContractService for one chain.
type Service struct {
	backend  port.ChainBackend
	signer   port.Signer
	registry port.NetworkRegistry
	chainID  uint64
	opts     Options
	logger   port.Logger

	metadata   *cache.Cache
	timestamps *cache.Cache
}

// NewService binds the contract layer to a backend. signer may be nil for
// read-only use; mutating calls then fail with ErrWalletNotConnected.
func NewService(backend port.ChainBackend, signer port.Signer, registry port.NetworkRegistry, chainID uint64, opts Options, log port.Logger) *Service {
	return newService(backend, signer, registry, chainID, opts, log,
		cache.New(cache.NoExpiration, 0), cache.New(time.Hour, 10*time.Minute))
}

func newService(backend port.ChainBackend, signer port.Signer, registry port.NetworkRegistry, chainID uint64, opts Options, log port.Logger, metadata, timestamps *cache.Cache) *Service {
	initABIs()
	return &Service{
		backend:    backend,
		signer:     signer,
		registry:   registry,
		chainID:    chainID,
		opts:       opts.withDefaults(),
		logger:     log,
		metadata:   metadata,
		timestamps: timestamps,
	}
}

func (s *Service) ChainID() uint64 { return s.chainID }

func (s *Service) protocol(p entity.Protocol) (common.Address, error) {
	return s.registry.ProtocolAddress(s.chainID, p)
}

func (s *Service) from() common.Address {
	if s.signer == nil {
		return common.Address{}
	}
	return s.signer.Address()
}

// call packs, executes and unpacks a read-only method.
func (s *Service) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := s.backend.CallContract(ctx, ethereum.CallMsg{From: s.from(), To: &to, Data: data}, nil)
	if err != nil {
		return nil, clarify(method, err)
	}
	if len(out) == 0 {
		return nil, &entity.ContractError{Op: method, Reason: ErrMethodNotImplemented.Error(), Err: ErrMethodNotImplemented}
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, &entity.ContractError{Op: method, Reason: "unexpected return data", Err: err}
	}
	return values, nil
}

func (s *Service) callBigInt(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	values, err := s.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	return bigAt(values, 0, method)
}

func bigAt(values []interface{}, i int, method string) (*big.Int, error) {
	if i >= len(values) {
		return nil, fmt.Errorf("%s: missing return value %d", method, i)
	}
	v, ok := values[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected return type %T", method, values[i])
	}
	return v, nil
}

func addressAt(values []interface{}, i int, method string) (common.Address, error) {
	if i >= len(values) {
		return common.Address{}, fmt.Errorf("%s: missing return value %d", method, i)
	}
	v, ok := values[i].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unexpected return type %T", method, values[i])
	}
	return v, nil
}

// decimals resolves a token's decimals: registry first, then the token
// itself, falling back to 18.
func (s *Service) decimals(ctx context.Context, token common.Address) uint8 {
	if info, ok := s.registry.TokenByAddress(s.chainID, token); ok {
		return info.Decimals
	}
	if meta, err := s.TokenMetadata(ctx, token); err == nil {
		return meta.Decimals
	}
	return utils.DefaultDecimals
}

func (s *Service) parseAmount(ctx context.Context, token common.Address, amount string) (*big.Int, error) {
	return parseUnits(amount, s.decimals(ctx, token))
}

func parseUnits(amount string, decimals uint8) (*big.Int, error) {
	v, err := utils.ParseUnits(amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidAmount, amount)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidAmount, amount)
	}
	return v, nil
}

func (s *Service) symbolOf(token common.Address) string {
	if info, ok := s.registry.TokenByAddress(s.chainID, token); ok {
		return info.Symbol
	}
	return token.Hex()
}

// TokenBalance reads a registered token's balance. Native tokens use the
// account balance.
func (s *Service) TokenBalance(ctx context.Context, symbol string, account common.Address) (string, error) {
	token, err := s.registry.Token(s.chainID, symbol)
	if err != nil {
		return "", err
	}
	if token.Native {
		wei, err := s.backend.BalanceAt(ctx, account, nil)
		if err != nil {
			return "", fmt.Errorf("failed to read %s balance: %w", symbol, err)
		}
		return utils.FormatUnits(wei, token.Decimals), nil
	}
	raw, err := s.callBigInt(ctx, erc20ABI, common.HexToAddress(token.Address), "balanceOf", account)
	if err != nil {
		return "", fmt.Errorf("failed to read %s balance: %w", symbol, err)
	}
	return utils.FormatUnits(raw, token.Decimals), nil
}

// Balances reads several registered tokens at once, through a JSON-RPC
// batch when the backend supports one. Failures are reported per item.
func (s *Service) Balances(ctx context.Context, account common.Address, symbols []string) ([]entity.BalanceResultItem, error) {
	results := make([]entity.BalanceResultItem, len(symbols))
	requests := make([]entity.BalanceRequestItem, 0, len(symbols))
	index := make([]int, 0, len(symbols))

	for i, symbol := range symbols {
		results[i] = entity.BalanceResultItem{TokenSymbol: symbol}
		token, err := s.registry.Token(s.chainID, symbol)
		if err != nil {
			results[i].Error = err
			continue
		}
		req := entity.BalanceRequestItem{
			Type:          entity.TokenBalanceRequest,
			Account:       account.Hex(),
			TokenAddress:  token.Address,
			TokenSymbol:   token.Symbol,
			TokenDecimals: token.Decimals,
		}
		if token.Native {
			req.Type = entity.NativeBalanceRequest
		}
		requests = append(requests, req)
		index = append(index, i)
	}

	if batcher, ok := s.backend.(port.BatchBalanceReader); ok && len(requests) > 0 {
		batch, err := batcher.GetBalances(ctx, requests)
		if err == nil {
			for j, item := range batch {
				results[index[j]] = item
			}
			return results, nil
		}
		s.logger.Warn("Batch balance request failed, falling back to single calls", "chainId", s.chainID, "error", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrentRoutines)
	for j, req := range requests {
		j, req := j, req
		g.Go(func() error {
			item := entity.BalanceResultItem{
				TokenSymbol:  req.TokenSymbol,
				TokenAddress: req.TokenAddress,
				Decimals:     req.TokenDecimals,
				IsNative:     req.Type == entity.NativeBalanceRequest,
			}
			var (
				wei *big.Int
				err error
			)
			if item.IsNative {
				wei, err = s.backend.BalanceAt(gCtx, account, nil)
			} else {
				wei, err = s.callBigInt(gCtx, erc20ABI, common.HexToAddress(req.TokenAddress), "balanceOf", account)
			}
			if err != nil {
				item.Error = fmt.Errorf("failed to read %s balance: %w", req.TokenSymbol, err)
			} else {
				item.Balance = wei
				item.FormattedBalance = utils.FormatUnits(wei, req.TokenDecimals)
			}
			results[index[j]] = item
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *Service) ERC20Balance(ctx context.Context, token, account common.Address) (string, error) {
	raw, err := s.callBigInt(ctx, erc20ABI, token, "balanceOf", account)
	if err != nil {
		return "", fmt.Errorf("failed to read balance of %s: %w", token.Hex(), err)
	}
	return utils.FormatUnits(raw, s.decimals(ctx, token)), nil
}

func (s *Service) Allowance(ctx context.Context, token, owner, spender common.Address) (string, error) {
	raw, err := s.callBigInt(ctx, erc20ABI, token, "allowance", owner, spender)
	if err != nil {
		return "", fmt.Errorf("failed to read allowance: %w", err)
	}
	return utils.FormatUnits(raw, s.decimals(ctx, token)), nil
}

// Approve submits approve and returns once it is mined.
func (s *Service) Approve(ctx context.Context, token, spender common.Address, amount string) (entity.TxResult, error) {
	wei, err := s.parseAmount(ctx, token, amount)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "approve", erc20ABI, token, nil, "approve", spender, wei)
}

func (s *Service) Transfer(ctx context.Context, token, to common.Address, amount string) (entity.TxResult, error) {
	wei, err := s.parseAmount(ctx, token, amount)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "transfer", erc20ABI, token, nil, "transfer", to, wei)
}

func (s *Service) Mint(ctx context.Context, token, to common.Address, amount string) (entity.TxResult, error) {
	wei, err := s.parseAmount(ctx, token, amount)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "mint", erc20ABI, token, nil, "mint", to, wei)
}

// TokenMetadata reads name, symbol, decimals and total supply. Results
// are cached per chain and address.
func (s *Service) TokenMetadata(ctx context.Context, token common.Address) (entity.TokenMetadata, error) {
	key := strconv.FormatUint(s.chainID, 10) + ":" + strings.ToLower(token.Hex())
	if cached, ok := s.metadata.Get(key); ok {
		return cached.(entity.TokenMetadata), nil
	}

	meta := entity.TokenMetadata{Address: token.Hex()}
	values, err := s.call(ctx, erc20ABI, token, "decimals")
	if err != nil {
		return entity.TokenMetadata{}, fmt.Errorf("failed to read token metadata for %s: %w", token.Hex(), err)
	}
	dec, ok := values[0].(uint8)
	if !ok {
		return entity.TokenMetadata{}, fmt.Errorf("decimals: unexpected return type %T", values[0])
	}
	meta.Decimals = dec

	if values, err := s.call(ctx, erc20ABI, token, "name"); err == nil {
		meta.Name, _ = values[0].(string)
	}
	if values, err := s.call(ctx, erc20ABI, token, "symbol"); err == nil {
		meta.Symbol, _ = values[0].(string)
	}
	if supply, err := s.callBigInt(ctx, erc20ABI, token, "totalSupply"); err == nil {
		meta.TotalSupply = utils.FormatUnits(supply, dec)
	}

	s.metadata.Set(key, meta, cache.DefaultExpiration)
	return meta, nil
}

func (s *Service) wrappedNative() (common.Address, uint8, error) {
	token, err := s.registry.Token(s.chainID, "WKAIA")
	if err != nil {
		return common.Address{}, 0, err
	}
	return common.HexToAddress(token.Address), token.Decimals, nil
}

// WrapNative deposits native currency into the wrapped token.
func (s *Service) WrapNative(ctx context.Context, amount string) (entity.TxResult, error) {
	addr, dec, err := s.wrappedNative()
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := parseUnits(amount, dec)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "wrap", wrappedNativeABI, addr, wei, "deposit")
}

func (s *Service) UnwrapNative(ctx context.Context, amount string) (entity.TxResult, error) {
	addr, dec, err := s.wrappedNative()
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := parseUnits(amount, dec)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "unwrap", wrappedNativeABI, addr, nil, "withdraw", wei)
}

// SwapQuote asks the exchange for the output of amountIn. A zero output or
// a reverted quote means the pair has no usable liquidity.
func (s *Service) SwapQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn string) (string, error) {
	dex, err := s.protocol(entity.ProtocolSwap)
	if err != nil {
		return "", err
	}
	wei, err := s.parseAmount(ctx, tokenIn, amountIn)
	if err != nil {
		return "", err
	}
	out, err := s.callBigInt(ctx, exchangeABI, dex, "getAmountOut", wei, tokenIn, tokenOut)
	if err != nil {
		var contractErr *entity.ContractError
		if errors.As(err, &contractErr) {
			return "", fmt.Errorf("%w: %v", entity.ErrNoLiquidity, err)
		}
		return "", fmt.Errorf("failed to get swap quote: %w", err)
	}
	if out.Sign() == 0 {
		return "", entity.ErrNoLiquidity
	}
	return utils.FormatUnits(out, s.decimals(ctx, tokenOut)), nil
}

func (s *Service) PoolInfo(ctx context.Context, tokenA, tokenB common.Address) (entity.PoolInfo, error) {
	dex, err := s.protocol(entity.ProtocolSwap)
	if err != nil {
		return entity.PoolInfo{}, err
	}
	values, err := s.call(ctx, exchangeABI, dex, "getPoolInfo", tokenA, tokenB)
	if err != nil {
		return entity.PoolInfo{}, fmt.Errorf("failed to read pool info: %w", err)
	}
	reserveA, err := bigAt(values, 0, "getPoolInfo")
	if err != nil {
		return entity.PoolInfo{}, err
	}
	reserveB, err := bigAt(values, 1, "getPoolInfo")
	if err != nil {
		return entity.PoolInfo{}, err
	}
	liquidity, err := bigAt(values, 2, "getPoolInfo")
	if err != nil {
		return entity.PoolInfo{}, err
	}
	return entity.PoolInfo{
		ReserveA:       utils.FormatUnits(reserveA, s.decimals(ctx, tokenA)),
		ReserveB:       utils.FormatUnits(reserveB, s.decimals(ctx, tokenB)),
		TotalLiquidity: utils.FormatUnits(liquidity, utils.DefaultDecimals),
	}, nil
}

func (s *Service) Swap(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, minAmountOut string) (entity.TxResult, error) {
	dex, err := s.protocol(entity.ProtocolSwap)
	if err != nil {
		return entity.TxResult{}, err
	}
	in, err := s.parseAmount(ctx, tokenIn, amountIn)
	if err != nil {
		return entity.TxResult{}, err
	}
	minOut, err := s.parseAmount(ctx, tokenOut, minAmountOut)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "swap", exchangeABI, dex, nil, "swapExactTokensForTokens", in, minOut, tokenIn, tokenOut)
}

func (s *Service) CreatePool(ctx context.Context, tokenA, tokenB common.Address) (entity.TxResult, error) {
	dex, err := s.protocol(entity.ProtocolSwap)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "createPool", exchangeABI, dex, nil, "createPool", tokenA, tokenB)
}

func (s *Service) AddLiquidity(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB, minA, minB string) (entity.TxResult, error) {
	dex, err := s.protocol(entity.ProtocolSwap)
	if err != nil {
		return entity.TxResult{}, err
	}
	var amounts [4]*big.Int
	for i, pair := range []struct {
		token  common.Address
		amount string
	}{{tokenA, amountA}, {tokenB, amountB}, {tokenA, minA}, {tokenB, minB}} {
		if pair.amount == "" {
			amounts[i] = new(big.Int)
			continue
		}
		v, err := s.parseAmount(ctx, pair.token, pair.amount)
		if err != nil {
			return entity.TxResult{}, err
		}
		amounts[i] = v
	}
	return s.transact(ctx, "addLiquidity", exchangeABI, dex, nil, "addLiquidity", tokenA, tokenB, amounts[0], amounts[1], amounts[2], amounts[3])
}

func (s *Service) RemoveLiquidity(ctx context.Context, tokenA, tokenB common.Address, liquidity string) (entity.TxResult, error) {
	dex, err := s.protocol(entity.ProtocolSwap)
	if err != nil {
		return entity.TxResult{}, err
	}
	wei, err := parseUnits(liquidity, utils.DefaultDecimals)
	if err != nil {
		return entity.TxResult{}, err
	}
	return s.transact(ctx, "removeLiquidity", exchangeABI, dex, nil, "removeLiquidity", tokenA, tokenB, wei, new(big.Int), new(big.Int))
}

func (s *Service) UserLiquidity(ctx context.Context, tokenA, tokenB, user common.Address) (string, error) {
	dex, err := s.protocol(entity.ProtocolSwap)
	if err != nil {
		return "", err
	}
	raw, err := s.callBigInt(ctx, exchangeABI, dex, "getUserLiquidity", tokenA, tokenB, user)
	if err != nil {
		return "", fmt.Errorf("failed to read user liquidity: %w", err)
	}
	return utils.FormatUnits(raw, utils.DefaultDecimals), nil
}

// NetworkInfo reports the chain head and the current gas price in gwei.
func (s *Service) NetworkInfo(ctx context.Context) (entity.NetworkInfo, error) {
	info := entity.NetworkInfo{ChainID: s.chainID}
	if def, ok := s.registry.GetNetworkDefinitionByChainID(s.chainID); ok {
		info.Name = def.Name
		info.ExplorerURL = def.BlockExplorerURL
	}
	gasPrice, err := s.GasPrice(ctx)
	if err != nil {
		return entity.NetworkInfo{}, err
	}
	head, err := s.backend.BlockNumber(ctx)
	if err != nil {
		return entity.NetworkInfo{}, fmt.Errorf("failed to read block number: %w", err)
	}
	info.GasPriceGwei = utils.FormatUnits(gasPrice, 9)
	info.BlockNumber = head
	return info, nil
}

func (s *Service) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas price: %w", err)
	}
	return price, nil
}

var _ port.ContractService = (*Service)(nil)
