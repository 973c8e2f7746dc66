package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return k
}

func keyHex(k *ecdsa.PrivateKey) string {
	return hexutil.Encode(crypto.FromECDSA(k))
}

func TestKeyLoaderSources(t *testing.T) {
	dir := t.TempDir()
	envKey, fileKey, storeKey := genKey(t), genKey(t), genKey(t)

	keyFile := filepath.Join(dir, "keys.txt")
	content := strings.Join([]string{"# comment", "", "not-a-key", strings.TrimPrefix(keyHex(fileKey), "0x"), keyHex(envKey)}, "\n")
	require.NoError(t, os.WriteFile(keyFile, []byte(content), 0o600))

	storeDir := filepath.Join(dir, "keystore")
	require.NoError(t, os.Mkdir(storeDir, 0o700))
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(storeKey.PublicKey),
		PrivateKey: storeKey,
	}, "secret", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(storeDir, "key.json"), encrypted, 0o600))
	t.Setenv("TEST_KEYSTORE_PASSPHRASE", "secret")

	loader := NewKeyLoader(keyFile, storeDir, "TEST_KEYSTORE_PASSPHRASE", []string{keyHex(envKey)}, logger.Nop{})
	keys, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, crypto.PubkeyToAddress(envKey.PublicKey), crypto.PubkeyToAddress(keys[0].PublicKey))
	assert.Equal(t, crypto.PubkeyToAddress(fileKey.PublicKey), crypto.PubkeyToAddress(keys[1].PublicKey))
	assert.Equal(t, crypto.PubkeyToAddress(storeKey.PublicKey), crypto.PubkeyToAddress(keys[2].PublicKey))
}

func TestKeyLoaderMissingSources(t *testing.T) {
	dir := t.TempDir()
	loader := NewKeyLoader(filepath.Join(dir, "absent.txt"), filepath.Join(dir, "absent"), "UNSET_ENV", nil, logger.Nop{})
	keys, err := loader.Load()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyWalletAuthorization(t *testing.T) {
	ctx := context.Background()
	k := genKey(t)
	w := NewKeyWallet([]*ecdsa.PrivateKey{k}, 1001, false, logger.Nop{})

	accounts, err := w.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	_, err = w.Signer(crypto.PubkeyToAddress(k.PublicKey).Hex())
	assert.ErrorIs(t, err, ErrUnauthorized)

	accounts, err = w.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{crypto.PubkeyToAddress(k.PublicKey).Hex()}, accounts)

	signer, err := w.Signer(accounts[0])
	require.NoError(t, err)
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(1), Gas: 21000, To: &common.Address{}, Value: big.NewInt(0)})
	signed, err := signer.SignTx(tx, big.NewInt(1001))
	require.NoError(t, err)
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1001)), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)

	_, err = w.Signer(common.HexToAddress("0x01").Hex())
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestKeyWalletWithoutKeys(t *testing.T) {
	w := NewKeyWallet(nil, 1001, false, logger.Nop{})
	_, err := w.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestKeyWalletEvents(t *testing.T) {
	ctx := context.Background()
	k1, k2 := genKey(t), genKey(t)
	w := NewKeyWallet([]*ecdsa.PrivateKey{k1, k2}, 99999, true, logger.Nop{})
	events, cancel := w.Subscribe()

	require.NoError(t, w.SwitchChain(ctx, entity.NetworkDefinition{ChainID: 1001, Name: "Kairos Testnet"}))
	ev := <-events
	assert.Equal(t, entity.ChainChanged, ev.Kind)
	assert.Equal(t, "0x3e9", ev.ChainID)

	chainID, err := w.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1001), chainID)

	second := crypto.PubkeyToAddress(k2.PublicKey).Hex()
	require.NoError(t, w.SelectAccount(second))
	ev = <-events
	assert.Equal(t, entity.AccountsChanged, ev.Kind)
	assert.Equal(t, second, ev.Accounts[0])

	w.Revoke()
	ev = <-events
	assert.Empty(t, ev.Accounts)

	cancel()
	_, open := <-events
	assert.False(t, open)
	cancel()
}
