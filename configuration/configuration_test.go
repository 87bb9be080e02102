package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const setup = `
node_rpc:
  address: "http://${PAYGATE_TEST_NODE_HOST}:7076"
  timeout: 30s
  wallet: "W1"
bookkeeping:
  currency: "rai"
  wait_timeout: 90s
cleanup:
  interval: 5m
  retention: 12h
  lookback: 48h
database:
  conn_str: "memory://"
  max_len: 2000
nats:
  server_address: "nats://localhost:4222"
  client_name: "gateway"
server:
  port: 8080
  wait_timeout: 15m
telemetry:
  port: 2113
emulator:
  port: 7076
  multiplier: "1000000"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadExpandsEnvironment(t *testing.T) {
	t.Setenv("PAYGATE_TEST_NODE_HOST", "node.local")
	cfg, err := Read(writeFile(t, "setup.yaml", setup))
	require.NoError(t, err)

	assert.Equal(t, "http://node.local:7076", cfg.NodeRPC.Address)
	assert.Equal(t, 30*time.Second, cfg.NodeRPC.Timeout)
	assert.Equal(t, "W1", cfg.NodeRPC.Wallet)
	assert.Equal(t, 90*time.Second, cfg.Bookkeeper.WaitTimeout)
	assert.Equal(t, 48*time.Hour, cfg.Cleanup.Lookback)
	assert.Equal(t, "memory://", cfg.Database.ConnStr)
	assert.Equal(t, 2000, cfg.Database.MaxLen)
	assert.True(t, cfg.Nats.Enabled())
	assert.Equal(t, 15*time.Minute, cfg.Server.WaitTimeout)
	assert.Equal(t, 2113, cfg.Telemetry.Port)
	assert.Equal(t, "1000000", cfg.Emulator.Multiplier)
	assert.NoError(t, cfg.Validate())
}

func TestLoadReadsEnvFile(t *testing.T) {
	env := writeFile(t, ".env", "PAYGATE_TEST_NODE_HOST=from-env-file\n")
	t.Cleanup(func() { os.Unsetenv("PAYGATE_TEST_NODE_HOST") })

	cfg, err := Load(env, writeFile(t, "setup.yaml", setup))
	require.NoError(t, err)
	assert.Equal(t, "http://from-env-file:7076", cfg.NodeRPC.Address)
}

func TestLoadWithoutEnvFile(t *testing.T) {
	t.Setenv("PAYGATE_TEST_NODE_HOST", "node.local")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"), writeFile(t, "setup.yaml", setup))
	assert.NoError(t, err)
}

func TestReadFailures(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Read(writeFile(t, "broken.yaml", "node_rpc: [unclosed"))
	assert.Error(t, err)
}

func TestValidateCollectsSections(t *testing.T) {
	cfg := Configuration{}
	cfg.Cleanup.Retention = 48 * time.Hour
	cfg.Cleanup.Lookback = time.Hour

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node_rpc")
	assert.Contains(t, err.Error(), "cleanup")
	assert.Contains(t, err.Error(), "database")
}
