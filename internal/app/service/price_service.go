package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"
	"kaia_defi/internal/pkg/utils"

	"github.com/patrickmn/go-cache"
)

// PriceService implements port.TokenPriceService. Stablecoins are pinned
// to 1.0, live prices come from DEXScreener and configured static prices
// fill the gaps.
type PriceService struct {
	client      port.DEXScreenerClient
	sources     []configloader.PriceSource
	stablecoins map[string]struct{}
	static      map[string]float64
	batchSize   int
	concurrency int
	refresh     time.Duration
	prices      *cache.Cache
	logger      port.Logger
}

// NewPriceService creates the price service. client may be nil, in which
// case only stablecoins and static prices are known.
func NewPriceService(client port.DEXScreenerClient, cfg *configloader.Config, log port.Logger) *PriceService {
	stable := make(map[string]struct{}, len(cfg.TokenPriceSvc.Stablecoins))
	for _, sym := range cfg.TokenPriceSvc.Stablecoins {
		stable[strings.ToUpper(sym)] = struct{}{}
	}
	var sources []configloader.PriceSource
	for _, src := range cfg.TokenPriceSvc.Sources {
		if src.Symbol != "" && src.ChainID != "" && src.Address != "" {
			sources = append(sources, src)
		}
	}
	ttl := time.Duration(cfg.TokenPriceSvc.CacheTTLMinutes) * time.Minute
	s := &PriceService{
		client:      client,
		sources:     sources,
		stablecoins: stable,
		static:      cfg.TokenPriceSvc.StaticPrices,
		batchSize:   cfg.TokenPriceSvc.MaxTokensPerBatchRequest,
		concurrency: cfg.Performance.MaxConcurrentRoutines,
		refresh:     time.Duration(cfg.TokenPriceSvc.RefreshIntervalMinutes) * time.Minute,
		prices:      cache.New(ttl, 2*ttl),
		logger:      log,
	}
	log.Info("Price service initialized", "sources", len(sources), "static_prices", len(s.static))
	return s
}

// PriceUSD returns the USD price of a registered token symbol.
func (s *PriceService) PriceUSD(symbol string) (float64, bool) {
	if _, ok := s.stablecoins[strings.ToUpper(symbol)]; ok {
		return 1.0, true
	}
	if v, ok := s.prices.Get(symbol); ok {
		return v.(float64), true
	}
	if price, ok := s.static[symbol]; ok && price > 0 {
		return price, true
	}
	return 0, false
}

// LoadAndCacheTokenPrices refreshes every configured source. Failed
// batches are logged and leave the previous prices in place.
func (s *PriceService) LoadAndCacheTokenPrices(ctx context.Context) error {
	if s.client == nil || len(s.sources) == 0 {
		s.logger.Debug("No live price sources configured, skipping price refresh")
		return nil
	}
	s.logger.Info("Starting to load and cache token prices using DEXScreener...")

	byChain := make(map[string][]configloader.PriceSource)
	for _, src := range s.sources {
		byChain[src.ChainID] = append(byChain[src.ChainID], src)
	}

	var processed, missing atomic.Int64
	concurrency := s.concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for chainID, sources := range byChain {
		bySymbol := make(map[string][]configloader.PriceSource, len(sources))
		addresses := make([]string, 0, len(sources))
		for _, src := range sources {
			key := strings.ToLower(src.Address)
			if _, seen := bySymbol[key]; !seen {
				addresses = append(addresses, src.Address)
			}
			bySymbol[key] = append(bySymbol[key], src)
		}

		for _, batch := range utils.BatchStrings(addresses, s.batchSize) {
			wg.Add(1)
			sem <- struct{}{}
			go func(chainID string, batch []string) {
				defer wg.Done()
				defer func() { <-sem }()

				pairs, err := s.client.GetTokenPairsByAddresses(ctx, chainID, batch)
				if err != nil {
					s.logger.Error("Failed to get token pairs from DEXScreener",
						"dexScreenerID", chainID,
						"token_addresses_count", len(batch),
						"error", err)
					missing.Add(int64(len(batch)))
					return
				}
				for _, addr := range batch {
					priceStr := s.selectBestPriceFromPairs(pairs, addr)
					price, err := strconv.ParseFloat(priceStr, 64)
					if priceStr == "" || err != nil || price <= 0 {
						s.logger.Warn("No usable DEXScreener price for token",
							"dexScreenerID", chainID,
							"tokenAddress", addr,
							"price_string", priceStr)
						missing.Add(1)
						continue
					}
					for _, src := range bySymbol[strings.ToLower(addr)] {
						s.prices.SetDefault(src.Symbol, price)
						s.logger.Debug("Cached price for token", "symbol", src.Symbol, "priceUSD", price)
					}
					processed.Add(1)
				}
			}(chainID, batch)
		}
	}

	wg.Wait()
	s.logger.Info("Finished loading and caching token prices from DEXScreener.",
		"processedSuccessfully", processed.Load(),
		"failedOrMissing", missing.Load())
	return nil
}

// Run refreshes prices at the configured interval until ctx is done.
func (s *PriceService) Run(ctx context.Context) {
	if err := s.LoadAndCacheTokenPrices(ctx); err != nil {
		s.logger.Warn("Initial price load failed", "error", err)
	}
	if s.refresh <= 0 {
		return
	}
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.LoadAndCacheTokenPrices(ctx); err != nil {
				s.logger.Warn("Price refresh failed", "error", err)
			}
		}
	}
}

// selectBestPriceFromPairs prefers the deepest pair quoted in a stablecoin,
// then the deepest pair overall.
func (s *PriceService) selectBestPriceFromPairs(pairs []entity.PairData, baseTokenAddress string) string {
	var bestOverall, bestStable *entity.PairData
	for i := range pairs {
		pair := &pairs[i]
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}
		if _, ok := s.stablecoins[strings.ToUpper(pair.QuoteToken.Symbol)]; ok {
			if bestStable == nil || pair.LiquidityUSD() > bestStable.LiquidityUSD() {
				bestStable = pair
			}
		}
		if bestOverall == nil || pair.LiquidityUSD() > bestOverall.LiquidityUSD() {
			bestOverall = pair
		}
	}

	switch {
	case bestStable != nil:
		s.logger.Debug("Selected best price from stablecoin pair",
			"baseTokenAddress", baseTokenAddress,
			"pairAddress", bestStable.PairAddress,
			"priceUsd", bestStable.PriceUsd,
			"liquidityUsd", bestStable.LiquidityUSD())
		return bestStable.PriceUsd
	case bestOverall != nil:
		s.logger.Debug("Selected best price from overall highest liquidity pair",
			"baseTokenAddress", baseTokenAddress,
			"pairAddress", bestOverall.PairAddress,
			"priceUsd", bestOverall.PriceUsd,
			"liquidityUsd", bestOverall.LiquidityUSD())
		return bestOverall.PriceUsd
	}
	return ""
}

var _ port.TokenPriceService = (*PriceService)(nil)
