package tokenloader

import (
	"os"
	"path/filepath"
	"testing"

	"kaia_defi/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nop(string, ...any) {}

func TestLoadDeployments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kairos.json"), []byte(`{
  "chainId": 1001,
  "tokens": [
    {"symbol": "KUSD", "address": "0x00000000000000000000000000000000000000aa", "decimals": 18},
    {"symbol": "BAD", "chainId": 8217, "address": "0x00000000000000000000000000000000000000bb"},
    {"address": "0x00000000000000000000000000000000000000cc"}
  ],
  "protocols": {"swap": "0x00000000000000000000000000000000000000dd"}
}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nochain.json"), []byte(`{"tokens": []}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte(`ignored`), 0o600))

	deployments, err := NewDeploymentLoader(dir, nop, nop).Load()
	require.NoError(t, err)
	require.Len(t, deployments, 1)

	d := deployments[0]
	assert.Equal(t, uint64(1001), d.ChainID)
	require.Len(t, d.Tokens, 1)
	assert.Equal(t, "KUSD", d.Tokens[0].Symbol)
	assert.Equal(t, "0x00000000000000000000000000000000000000dd", d.Protocols[entity.ProtocolSwap])
}

func TestLoadMissingDirectory(t *testing.T) {
	deployments, err := NewDeploymentLoader(filepath.Join(t.TempDir(), "nope"), nop, nop).Load()
	require.NoError(t, err)
	assert.Empty(t, deployments)
}
