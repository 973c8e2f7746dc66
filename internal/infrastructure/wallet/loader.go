package wallet

import (
	"bufio"
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kaia_defi/internal/app/port"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyLoader collects signing keys from a key file, raw hex keys and a
// go-ethereum keystore directory.
type KeyLoader struct {
	keyFile       string
	keystoreDir   string
	passphraseEnv string
	rawKeys       []string
	logger        port.Logger
}

// NewKeyLoader creates a KeyLoader. Empty sources are skipped.
func NewKeyLoader(keyFile, keystoreDir, passphraseEnv string, rawKeys []string, log port.Logger) *KeyLoader {
	return &KeyLoader{
		keyFile:       keyFile,
		keystoreDir:   keystoreDir,
		passphraseEnv: passphraseEnv,
		rawKeys:       rawKeys,
		logger:        log,
	}
}

// Load returns the keys in source order, without duplicates.
func (l *KeyLoader) Load() ([]*ecdsa.PrivateKey, error) {
	var keys []*ecdsa.PrivateKey
	seen := make(map[string]bool)
	add := func(k *ecdsa.PrivateKey) {
		addr := crypto.PubkeyToAddress(k.PublicKey).Hex()
		if seen[addr] {
			return
		}
		seen[addr] = true
		keys = append(keys, k)
	}

	for i, raw := range l.rawKeys {
		k, err := parseHexKey(raw)
		if err != nil {
			l.logger.Warn("Skipping invalid private key from environment", "index", i, "error", err)
			continue
		}
		add(k)
	}

	if l.keyFile != "" {
		fileKeys, err := l.loadKeyFile()
		if err != nil {
			return nil, err
		}
		for _, k := range fileKeys {
			add(k)
		}
	}

	if l.keystoreDir != "" {
		storeKeys, err := l.loadKeystore()
		if err != nil {
			return nil, err
		}
		for _, k := range storeKeys {
			add(k)
		}
	}

	l.logger.Info("Signing keys loaded", "count", len(keys))
	return keys, nil
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if len(raw) != 64 {
		return nil, fmt.Errorf("expected 64 hex characters, got %d", len(raw))
	}
	return crypto.HexToECDSA(raw)
}

func (l *KeyLoader) loadKeyFile() ([]*ecdsa.PrivateKey, error) {
	file, err := os.Open(l.keyFile)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("Key file not found, skipping", "path", l.keyFile)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open key file %s: %w", l.keyFile, err)
	}
	defer file.Close()

	var keys []*ecdsa.PrivateKey
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, err := parseHexKey(line)
		if err != nil {
			l.logger.Warn("Skipping invalid private key", "file", l.keyFile, "line_number", lineNum, "error", err)
			continue
		}
		keys = append(keys, k)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning key file %s: %w", l.keyFile, err)
	}
	return keys, nil
}

func (l *KeyLoader) loadKeystore() ([]*ecdsa.PrivateKey, error) {
	entries, err := os.ReadDir(l.keystoreDir)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("Keystore directory not found, skipping", "path", l.keystoreDir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read keystore directory %s: %w", l.keystoreDir, err)
	}
	passphrase := os.Getenv(l.passphraseEnv)

	var keys []*ecdsa.PrivateKey
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(l.keystoreDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("Skipping unreadable keystore file", "path", path, "error", err)
			continue
		}
		key, err := keystore.DecryptKey(data, passphrase)
		if err != nil {
			l.logger.Warn("Skipping keystore file that could not be decrypted", "path", path, "error", err)
			continue
		}
		keys = append(keys, key.PrivateKey)
	}
	return keys, nil
}
