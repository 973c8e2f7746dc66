package bootstrap

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"
	"kaia_defi/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const overrideKUSD = "0x00000000000000000000000000000000000000A1"

func testConfig(t *testing.T) *configloader.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := configloader.Load(filepath.Join(dir, "missing.yml"))
	require.NoError(t, err)

	deployments := filepath.Join(dir, "deployments")
	require.NoError(t, os.MkdirAll(deployments, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deployments, "kairos.json"),
		[]byte(`{"chainId":1001,"tokens":[{"symbol":"KUSD","name":"Kaia USD","decimals":18,"address":"`+overrideKUSD+`"}]}`), 0o600))
	cfg.Deployments.Dir = deployments

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg.Wallet.PrivateKeys = []string{hex.EncodeToString(crypto.FromECDSA(key))}
	cfg.Wallet.KeyFile = ""
	cfg.DEXScreener.Enabled = false
	return cfg
}

func TestNewWiresEveryService(t *testing.T) {
	cfg := testConfig(t)

	app, err := New(cfg, zap.NewNop(), logger.Nop{})
	require.NoError(t, err)
	defer app.Close()

	kusd, err := app.Registry.Token(1001, "KUSD")
	require.NoError(t, err)
	assert.Equal(t, overrideKUSD, kusd.Address)

	h := app.Handlers()
	assert.NotNil(t, h.Sessions)
	assert.NotNil(t, h.Events)
	assert.NotNil(t, h.Balances)
	assert.NotNil(t, h.Swap)
	assert.NotNil(t, h.Staking)
	assert.NotNil(t, h.Borrow)
	assert.NotNil(t, h.Farms)
	assert.NotNil(t, h.Portfolio)
	assert.NotNil(t, h.Network)

	assert.Equal(t, cfg.Swap.DefaultFrom, app.Swap.State().FromToken)
	assert.Equal(t, cfg.Swap.DefaultSlippage, app.Swap.State().Slippage)

	// Keys are not pre-authorized, so Start stays offline.
	app.Start(context.Background(), false)
	assert.Equal(t, entity.StateDisconnected, app.Sessions.Current().State)

	// Static prices are served without a DEXScreener client.
	price, ok := app.Prices.PriceUSD("KUSD")
	assert.True(t, ok)
	assert.Equal(t, 1.0, price)
}

func TestNewRejectsUnsupportedDefaultChain(t *testing.T) {
	cfg := testConfig(t)
	cfg.Wallet.DefaultChainID = 1

	_, err := New(cfg, zap.NewNop(), logger.Nop{})
	assert.ErrorIs(t, err, entity.ErrWrongNetwork)
}
