package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// transact signs and submits a call to contract and waits for its receipt.
// A receipt with failed status is returned together with ErrContractReverted.
func (s *Service) transact(ctx context.Context, op string, contract abi.ABI, to common.Address, value *big.Int, method string, args ...interface{}) (entity.TxResult, error) {
	if s.signer == nil {
		return entity.TxResult{}, entity.ErrWalletNotConnected
	}
	if value == nil {
		value = new(big.Int)
	}

	data, err := contract.Pack(method, args...)
	if err != nil {
		return entity.TxResult{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	from := s.signer.Address()

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return entity.TxResult{}, s.txFailed(op, fmt.Errorf("%s: failed to get nonce: %w", op, err))
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return entity.TxResult{}, s.txFailed(op, fmt.Errorf("%s: failed to get gas price: %w", op, err))
	}
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
	if err != nil {
		return entity.TxResult{}, s.txFailed(op, clarify(op, err))
	}
	gas = gas * uint64(100+s.opts.GasHeadroomPercent) / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signed, err := s.signer.SignTx(tx, new(big.Int).SetUint64(s.chainID))
	if err != nil {
		return entity.TxResult{}, s.txFailed(op, fmt.Errorf("%s: failed to sign transaction: %w", op, err))
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return entity.TxResult{}, s.txFailed(op, clarify(op, err))
	}
	s.logger.Info("Transaction submitted", "op", op, "hash", signed.Hash().Hex(), "chainId", s.chainID)

	receipt, err := s.waitMined(ctx, signed.Hash())
	if err != nil {
		return entity.TxResult{Hash: signed.Hash().Hex(), Status: entity.TxPending}, s.txFailed(op, err)
	}
	result := receiptResult(receipt)
	if result.Status == entity.TxFailed {
		metrics.Transactions.WithLabelValues(op, "reverted").Inc()
		return result, &entity.ContractError{Op: op, Reason: "transaction reverted", Err: entity.ErrContractReverted}
	}
	metrics.Transactions.WithLabelValues(op, "success").Inc()
	return result, nil
}

func (s *Service) txFailed(op string, err error) error {
	metrics.Transactions.WithLabelValues(op, "error").Inc()
	s.logger.Warn("Transaction failed", "op", op, "chainId", s.chainID, "error", err)
	return err
}

func receiptResult(receipt *types.Receipt) entity.TxResult {
	result := entity.TxResult{
		Hash:    receipt.TxHash.Hex(),
		GasUsed: receipt.GasUsed,
		Status:  entity.TxSuccess,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusFailed {
		result.Status = entity.TxFailed
	}
	return result
}

// waitMined polls for the receipt until it exists or ctx is done.
func (s *Service) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if s.opts.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ConfirmTimeout)
		defer cancel()
	}
	ticker := time.NewTicker(s.opts.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.logger.Debug("Receipt retrieval failed", "hash", hash.Hex(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for transaction %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// TransactionStatus looks a transaction up by hash. Unknown or unmined
// transactions are pending.
func (s *Service) TransactionStatus(ctx context.Context, hash common.Hash) (entity.TxResult, error) {
	receipt, err := s.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) || (err == nil && receipt == nil) {
		return entity.TxResult{Hash: hash.Hex(), Status: entity.TxPending}, nil
	}
	if err != nil {
		return entity.TxResult{}, fmt.Errorf("failed to read receipt %s: %w", hash.Hex(), err)
	}
	return receiptResult(receipt), nil
}

// clarify turns node errors into ContractErrors when they carry a revert.
func clarify(op string, err error) error {
	if reason, ok := revertReason(err); ok {
		return &entity.ContractError{Op: op, Reason: reason, Err: entity.ErrContractReverted}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		var raw []byte
		switch data := dataErr.ErrorData().(type) {
		case string:
			raw, _ = hexutil.Decode(data)
		case []byte:
			raw = data
		}
		if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
			return reason, true
		}
		return dataErr.Error(), true
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return err.Error(), true
	}
	return "", false
}
