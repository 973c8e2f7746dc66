package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const pairsArray = `[{"chainId":"kaia","dexId":"dragonswap","pairAddress":"0xpair","baseToken":{"address":"0xaaa","symbol":"WKAIA"},"quoteToken":{"address":"0xbbb","symbol":"USDT"},"priceUsd":"0.1421","liquidity":{"usd":125000.5}}]`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*DEXScreenerClient, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewDEXScreenerClient(srv.URL+"/", 2*time.Second, zap.NewNop(), 2), &paths
}

func TestGetTokenPairsByAddresses(t *testing.T) {
	c, paths := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(pairsArray))
	})

	pairs, err := c.GetTokenPairsByAddresses(context.Background(), "kaia", []string{"0xaaa", "0xccc"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "0.1421", pairs[0].PriceUsd)
	assert.Equal(t, "USDT", pairs[0].QuoteToken.Symbol)
	assert.Equal(t, 125000.5, pairs[0].LiquidityUSD())
	assert.Equal(t, []string{"/tokens/v1/kaia/0xaaa,0xccc"}, *paths)
}

func TestGetTokenPairsWrappedResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":` + pairsArray + `}`))
	})

	pairs, err := c.GetTokenPairsByAddresses(context.Background(), "kaia", []string{"0xaaa"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "0xpair", pairs[0].PairAddress)
}

func TestGetTokenPairsErrors(t *testing.T) {
	c, paths := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tokens/v1/kaia/0xbad" {
			_, _ = w.Write([]byte(`not json`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	})
	ctx := context.Background()

	_, err := c.GetTokenPairsByAddresses(ctx, "kaia", nil)
	assert.Error(t, err)
	_, err = c.GetTokenPairsByAddresses(ctx, "kaia", []string{"0x1", "0x2", "0x3"})
	assert.ErrorContains(t, err, "exceeds max tokens")
	assert.Empty(t, *paths)

	_, err = c.GetTokenPairsByAddresses(ctx, "kaia", []string{"0xaaa"})
	assert.ErrorContains(t, err, "status 429")
	_, err = c.GetTokenPairsByAddresses(ctx, "kaia", []string{"0xbad"})
	assert.ErrorContains(t, err, "unmarshal")
}
