package service

import (
	"context"
	"fmt"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NetworkService answers chain status questions for the session's chain.
type NetworkService struct {
	feature
}

func NewNetworkService(deps Deps) *NetworkService {
	return &NetworkService{feature: feature{Deps: deps}}
}

func (s *NetworkService) NetworkInfo(ctx context.Context) (entity.NetworkInfo, error) {
	_, c, err := s.bind()
	if err != nil {
		return entity.NetworkInfo{}, err
	}
	return c.NetworkInfo(ctx)
}

// TransactionStatus reports a transaction as pending until its receipt exists.
func (s *NetworkService) TransactionStatus(ctx context.Context, hash string) (entity.TxResult, error) {
	raw, err := hexutil.Decode(hash)
	if err != nil || len(raw) != common.HashLength {
		return entity.TxResult{}, fmt.Errorf("%w: %q", entity.ErrInvalidHash, hash)
	}
	_, c, err := s.bind()
	if err != nil {
		return entity.TxResult{}, err
	}
	return c.TransactionStatus(ctx, common.BytesToHash(raw))
}

var _ port.NetworkService = (*NetworkService)(nil)
