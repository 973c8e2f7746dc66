package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Performance.MaxConcurrentRoutines)
	assert.Equal(t, uint64(10000), cfg.History.BlockRange)
	assert.Equal(t, uint64(1001), cfg.Wallet.DefaultChainID)
	assert.Equal(t, "KAIA", cfg.Swap.DefaultFrom)
	assert.Equal(t, "KUSD", cfg.Swap.DefaultTo)
	assert.InDelta(t, 0.5, cfg.Swap.DefaultSlippage, 1e-9)
	assert.InDelta(t, 90, cfg.Lending.DefaultLiquidationLTV, 1e-9)
	assert.Equal(t, []string{"KAIA", "KUSD", "WKAIA"}, cfg.DisplayTokens)
}

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
history:
  blockRange: 500
tokenPriceService:
  staticPrices:
    KAIA: 0.85
  sources:
    - symbol: KAIA
      dexScreenerChainId: kaia
      address: "0x19Aac5f612f524B754CA7e7c41cbFa2E981A4432"
networks:
  - identifier: kairos
    rpcURL: https://example.invalid/rpc
`)
	t.Setenv("KAIADEFI_SERVER_PORT", "7070")
	t.Setenv("KAIADEFI_SWAP_DEFAULT_SLIPPAGE", "1.5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "env overrides file")
	assert.Equal(t, uint64(500), cfg.History.BlockRange)
	assert.InDelta(t, 1.5, cfg.Swap.DefaultSlippage, 1e-9)
	assert.InDelta(t, 0.85, cfg.TokenPriceSvc.StaticPrices["KAIA"], 1e-9)
	require.Len(t, cfg.TokenPriceSvc.Sources, 1)
	require.Len(t, cfg.Networks, 1)
	assert.Equal(t, "https://example.invalid/rpc", cfg.Networks[0].RPCURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "swap:\n  defaultSlippage: 75\n")
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, "networks:\n  - rpcURL: x\n")
	_, err = Load(path)
	assert.Error(t, err)

	path = writeConfig(t, "server: [")
	_, err = Load(path)
	assert.Error(t, err)
}
