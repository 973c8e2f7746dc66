package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"
	"kaia_defi/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDEXScreener struct {
	mu      sync.Mutex
	pairs   map[string][]entity.PairData
	err     error
	batches [][]string
}

func (f *fakeDEXScreener) GetTokenPairsByAddresses(_ context.Context, chainID string, addresses []string) ([]entity.PairData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, addresses)
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.PairData
	for _, addr := range addresses {
		out = append(out, f.pairs[chainID+"/"+addr]...)
	}
	return out, nil
}

func pair(base, quote, price string, liquidity float64) entity.PairData {
	return entity.PairData{
		PairAddress: base + "-" + quote,
		BaseToken:   entity.DEXToken{Address: base},
		QuoteToken:  entity.DEXToken{Symbol: quote},
		PriceUsd:    price,
		Liquidity:   &entity.DEXLiquidity{Usd: liquidity},
	}
}

func priceConfig() *configloader.Config {
	cfg := &configloader.Config{}
	cfg.Performance.MaxConcurrentRoutines = 2
	cfg.TokenPriceSvc = configloader.TokenPriceServiceConfig{
		MaxTokensPerBatchRequest: 1,
		CacheTTLMinutes:          5,
		Stablecoins:              []string{"KUSD", "USDT"},
		StaticPrices:             map[string]float64{"KAIA": 0.1, "stKAIA": 0.12},
		Sources: []configloader.PriceSource{
			{Symbol: "KAIA", ChainID: "kaia", Address: "0xaaa"},
			{Symbol: "WKAIA", ChainID: "kaia", Address: "0xAAA"},
			{Symbol: "BORA", ChainID: "kaia", Address: "0xbbb"},
			{Symbol: "IGNORED", ChainID: "", Address: "0xccc"},
		},
	}
	return cfg
}

func TestPriceUSDFallbacks(t *testing.T) {
	svc := NewPriceService(nil, priceConfig(), logger.Nop{})
	require.NoError(t, svc.LoadAndCacheTokenPrices(context.Background()))

	p, ok := svc.PriceUSD("KUSD")
	assert.True(t, ok)
	assert.Equal(t, 1.0, p)
	p, ok = svc.PriceUSD("KAIA")
	assert.True(t, ok)
	assert.Equal(t, 0.1, p)
	_, ok = svc.PriceUSD("WKAIA")
	assert.False(t, ok)
}

func TestLoadAndCacheTokenPrices(t *testing.T) {
	client := &fakeDEXScreener{pairs: map[string][]entity.PairData{
		"kaia/0xaaa": {
			pair("0xaaa", "WETH", "0.20", 9_000_000),
			pair("0xaaa", "USDT", "0.15", 100_000),
			pair("0xaaa", "USDT", "0.14", 50_000),
		},
		"kaia/0xbbb": {
			pair("0xbbb", "WKAIA", "0.05", 10),
			pair("0xbbb", "WKAIA", "0", 99_000),
		},
	}}
	svc := NewPriceService(client, priceConfig(), logger.Nop{})
	require.NoError(t, svc.LoadAndCacheTokenPrices(context.Background()))

	// addresses are deduplicated case-insensitively, one per batch
	assert.Len(t, client.batches, 2)

	p, _ := svc.PriceUSD("KAIA")
	assert.Equal(t, 0.15, p)
	p, ok := svc.PriceUSD("WKAIA")
	assert.True(t, ok)
	assert.Equal(t, 0.15, p)
	p, _ = svc.PriceUSD("BORA")
	assert.Equal(t, 0.05, p)
	_, ok = svc.PriceUSD("IGNORED")
	assert.False(t, ok)
}

func TestLoadAndCacheTokenPricesKeepsStaticOnFailure(t *testing.T) {
	client := &fakeDEXScreener{err: errors.New("rate limited")}
	svc := NewPriceService(client, priceConfig(), logger.Nop{})
	require.NoError(t, svc.LoadAndCacheTokenPrices(context.Background()))

	p, ok := svc.PriceUSD("KAIA")
	assert.True(t, ok)
	assert.Equal(t, 0.1, p)
	_, ok = svc.PriceUSD("BORA")
	assert.False(t, ok)
}
