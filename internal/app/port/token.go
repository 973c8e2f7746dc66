package port

import (
	"context"

	"kaia_defi/internal/domain/entity"
)

// PriceProvider returns USD prices for registered token symbols.
type PriceProvider interface {
	PriceUSD(symbol string) (float64, bool)
}

// TokenPriceService is a PriceProvider that refreshes from a remote source.
type TokenPriceService interface {
	PriceProvider
	LoadAndCacheTokenPrices(ctx context.Context) error
}

// DEXScreenerClient fetches pair data from the DEX Screener API.
type DEXScreenerClient interface {
	GetTokenPairsByAddresses(ctx context.Context, dexscreenerChainID string, tokenAddresses []string) ([]entity.PairData, error)
}
