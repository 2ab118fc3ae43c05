package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "STANDARD", cfg.DefaultLevel)
	assert.InDelta(t, 0.66, cfg.ApprovalThreshold, 1e-9)
	assert.Equal(t, int64(16), cfg.PoolSize)
	assert.InDelta(t, 0.01, cfg.EpsilonPerAction, 1e-9)
	assert.Empty(t, cfg.ProofDBPath)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("COVENANT_LOG_LEVEL", "DEBUG")
	t.Setenv("COVENANT_APPROVAL_THRESHOLD", "0.75")
	t.Setenv("COVENANT_DEFAULT_LEVEL", "ENHANCED")
	t.Setenv("COVENANT_POOL_SIZE", "4")
	t.Setenv("COVENANT_PRIVACY_EPSILON", "10.0")
	t.Setenv("COVENANT_RATE_PER_SECOND", "50")
	t.Setenv("COVENANT_PROOF_DB", "/var/lib/covenant/proofs.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.InDelta(t, 0.75, cfg.ApprovalThreshold, 1e-9)
	assert.Equal(t, "ENHANCED", cfg.DefaultLevel)
	assert.Equal(t, int64(4), cfg.PoolSize)
	assert.InDelta(t, 10.0, cfg.PrivacyEpsilon, 1e-9)
	assert.InDelta(t, 50.0, cfg.RatePerSecond, 1e-9)
	assert.Equal(t, "/var/lib/covenant/proofs.db", cfg.ProofDBPath)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("COVENANT_APPROVAL_THRESHOLD", "1.5")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnparseable(t *testing.T) {
	t.Setenv("COVENANT_POOL_SIZE", "many")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonPositivePool(t *testing.T) {
	t.Setenv("COVENANT_POOL_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
}
