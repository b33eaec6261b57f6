package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesEnvSubstitutionAndDefaults(t *testing.T) {
	t.Setenv("BUYBACK_ADDR", "0x1111111111111111111111111111111111111111")

	path := writeConfig(t, `
chain:
  rpc:
    http: ["https://rpc1.example", "https://rpc2.example"]
    wss: ["wss://rpc1.example"]
addresses:
  buybackAddr: "${BUYBACK_ADDR}"
  virtualToken: "0x2222222222222222222222222222222222222222"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", cfg.Addresses.BuybackAddr)
	assert.Equal(t, 5000, cfg.Virtuals.PollIntervalMs)
	assert.Equal(t, 60, cfg.Thresholds.TaxWindowMinutes)
}

func TestLoadMissingEnvIsFatal(t *testing.T) {
	path := writeConfig(t, `
chain:
  rpc:
    http: ["https://rpc1.example"]
    wss: ["wss://rpc1.example"]
addresses:
  buybackAddr: "${NEVER_SET_ENV_VAR}"
  virtualToken: "0x2222222222222222222222222222222222222222"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsMalformedAddress(t *testing.T) {
	path := writeConfig(t, `
chain:
  rpc:
    http: ["https://rpc1.example"]
    wss: ["wss://rpc1.example"]
addresses:
  buybackAddr: "not-an-address"
  virtualToken: "0x2222222222222222222222222222222222222222"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestRoundTripPreservesLogicalDocument(t *testing.T) {
	path := writeConfig(t, `
chain:
  rpc:
    http: ["https://rpc1.example"]
    wss: ["wss://rpc1.example"]
addresses:
  buybackAddr: "0x1111111111111111111111111111111111111111"
  virtualToken: "0x2222222222222222222222222222222222222222"
thresholds:
  taxWindowMinutes: 90
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Thresholds.TaxWindowMinutes)
	assert.Equal(t, []string{"https://rpc1.example"}, cfg.Chain.RPC.HTTP)
}
