package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/metrics"
	"kaia_defi/internal/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// EVMClient is a rate limited, instrumented ethclient for one network.
// It implements port.ChainBackend and port.BatchBalanceReader.
type EVMClient struct {
	ethClient      *ethclient.Client
	netDef         entity.NetworkDefinition
	limiter        *rate.Limiter
	rpcCallTimeout time.Duration
	chainLabel     string
}

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		erc20MethodID = parsedERC20ABI.Methods["balanceOf"].ID
	})
}

// NewEVMClient dials the primary RPC and then each fallback until one
// answers with the expected chain id.
func NewEVMClient(ctx context.Context, netDef entity.NetworkDefinition, limiter *rate.Limiter, connectionTimeout, rpcCallTimeout time.Duration) (*EVMClient, error) {
	initParsedERC20ABI()
	rpcURLs := append([]string{netDef.PrimaryRPCURL}, netDef.FallbackRPCURLs...)
	var lastErr error

	for _, rpcURL := range rpcURLs {
		dialCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		c, err := ethclient.DialContext(dialCtx, rpcURL)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
			continue
		}
		chainID, err := c.ChainID(dialCtx)
		cancel()
		if err != nil {
			c.Close()
			lastErr = fmt.Errorf("failed to verify chainID for %s: %w", rpcURL, err)
			continue
		}
		if chainID.Uint64() != netDef.ChainID {
			c.Close()
			lastErr = fmt.Errorf("chainID mismatch for %s: expected %d, got %d", rpcURL, netDef.ChainID, chainID.Uint64())
			continue
		}
		return &EVMClient{
			ethClient:      c,
			netDef:         netDef,
			limiter:        limiter,
			rpcCallTimeout: rpcCallTimeout,
			chainLabel:     strconv.FormatUint(netDef.ChainID, 10),
		}, nil
	}

	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	c.ethClient.Close()
}

func (c *EVMClient) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("rpc rate limiter: %w", err)
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	return callCtx, cancel, nil
}

func (c *EVMClient) observe(method string, start time.Time, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ethereum.NotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.RPCRequests.WithLabelValues(c.chainLabel, method, status).Inc()
	metrics.RPCDuration.WithLabelValues(c.chainLabel, method).Observe(time.Since(start).Seconds())
}

func (c *EVMClient) ChainID(ctx context.Context) (v *big.Int, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_chainId", start, err) }(time.Now())
	return c.ethClient.ChainID(callCtx)
}

func (c *EVMClient) BlockNumber(ctx context.Context) (v uint64, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_blockNumber", start, err) }(time.Now())
	return c.ethClient.BlockNumber(callCtx)
}

func (c *EVMClient) HeaderByNumber(ctx context.Context, number *big.Int) (h *types.Header, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_getBlockByNumber", start, err) }(time.Now())
	return c.ethClient.HeaderByNumber(callCtx, number)
}

func (c *EVMClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (v *big.Int, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_getBalance", start, err) }(time.Now())
	return c.ethClient.BalanceAt(callCtx, account, blockNumber)
}

func (c *EVMClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (out []byte, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_call", start, err) }(time.Now())
	return c.ethClient.CallContract(callCtx, msg, blockNumber)
}

func (c *EVMClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (gas uint64, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_estimateGas", start, err) }(time.Now())
	return c.ethClient.EstimateGas(callCtx, msg)
}

func (c *EVMClient) SuggestGasPrice(ctx context.Context) (v *big.Int, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_gasPrice", start, err) }(time.Now())
	return c.ethClient.SuggestGasPrice(callCtx)
}

func (c *EVMClient) PendingNonceAt(ctx context.Context, account common.Address) (n uint64, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_getTransactionCount", start, err) }(time.Now())
	return c.ethClient.PendingNonceAt(callCtx, account)
}

func (c *EVMClient) SendTransaction(ctx context.Context, tx *types.Transaction) (err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_sendRawTransaction", start, err) }(time.Now())
	return c.ethClient.SendTransaction(callCtx, tx)
}

func (c *EVMClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (r *types.Receipt, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_getTransactionReceipt", start, err) }(time.Now())
	return c.ethClient.TransactionReceipt(callCtx, txHash)
}

func (c *EVMClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) (logs []types.Log, err error) {
	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("eth_getLogs", start, err) }(time.Now())
	return c.ethClient.FilterLogs(callCtx, q)
}

// GetBalances fetches multiple balances using JSON-RPC batch requests.
func (c *EVMClient) GetBalances(ctx context.Context, requests []entity.BalanceRequestItem) (results []entity.BalanceResultItem, err error) {
	if len(requests) == 0 {
		return []entity.BalanceResultItem{}, nil
	}

	batchElems := make([]rpc.BatchElem, len(requests))
	results = make([]entity.BalanceResultItem, len(requests))

	for i, reqItem := range requests {
		results[i] = entity.BalanceResultItem{
			TokenAddress: reqItem.TokenAddress,
			TokenSymbol:  reqItem.TokenSymbol,
			Decimals:     reqItem.TokenDecimals,
			IsNative:     reqItem.Type == entity.NativeBalanceRequest,
		}

		switch reqItem.Type {
		case entity.NativeBalanceRequest:
			batchElems[i] = rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{common.HexToAddress(reqItem.Account), "latest"},
				Result: new(*hexutil.Big),
			}
		case entity.TokenBalanceRequest:
			paddedAccount := common.LeftPadBytes(common.HexToAddress(reqItem.Account).Bytes(), 32)
			callData := append(append([]byte{}, erc20MethodID...), paddedAccount...)
			batchElems[i] = rpc.BatchElem{
				Method: "eth_call",
				Args: []interface{}{map[string]interface{}{
					"to":   common.HexToAddress(reqItem.TokenAddress),
					"data": hexutil.Bytes(callData),
				}, "latest"},
				Result: new(hexutil.Bytes),
			}
		default:
			results[i].Error = fmt.Errorf("unknown balance request type: %v for %s", reqItem.Type, reqItem.TokenSymbol)
			batchElems[i] = rpc.BatchElem{Method: "eth_chainId", Result: new(hexutil.Big)}
		}
	}

	callCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return results, err
	}
	defer cancel()
	defer func(start time.Time) { c.observe("batch_balances", start, err) }(time.Now())

	if err := c.ethClient.Client().BatchCallContext(callCtx, batchElems); err != nil {
		return results, fmt.Errorf("RPC batch call failed: %w", err)
	}

	for i, elem := range batchElems {
		if results[i].Error != nil {
			continue
		}
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("failed to fetch %s for account %s: %w", requests[i].TokenSymbol, requests[i].Account, elem.Error)
			continue
		}

		switch requests[i].Type {
		case entity.NativeBalanceRequest:
			if result, ok := elem.Result.(**hexutil.Big); ok && result != nil && *result != nil {
				results[i].Balance = (*big.Int)(*result)
			} else {
				results[i].Error = fmt.Errorf("failed to decode native balance for %s: unexpected type or nil result", requests[i].TokenSymbol)
			}
		case entity.TokenBalanceRequest:
			result, ok := elem.Result.(*hexutil.Bytes)
			if !ok || result == nil {
				results[i].Error = fmt.Errorf("failed to decode token balance for %s: unexpected type or nil result", requests[i].TokenSymbol)
				continue
			}
			if len(*result) == 0 {
				results[i].Balance = big.NewInt(0)
				break
			}
			unpacked, err := parsedERC20ABI.Unpack("balanceOf", *result)
			if err != nil || len(unpacked) == 0 {
				results[i].Error = fmt.Errorf("failed to unpack balanceOf result for %s: %v. Raw: %s", requests[i].TokenSymbol, err, hexutil.Encode(*result))
				continue
			}
			balance, ok := unpacked[0].(*big.Int)
			if !ok {
				results[i].Error = fmt.Errorf("unexpected balanceOf result type for %s: %T", requests[i].TokenSymbol, unpacked[0])
				continue
			}
			results[i].Balance = balance
		}

		if results[i].Error == nil {
			formatted, err := utils.FormatBigInt(results[i].Balance, results[i].Decimals)
			if err != nil {
				results[i].Error = fmt.Errorf("failed to format balance for %s: %w", requests[i].TokenSymbol, err)
				continue
			}
			results[i].FormattedBalance = formatted
		}
	}
	return results, nil
}
