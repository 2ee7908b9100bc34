package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1500*time.Millisecond, cfg.Gatekeeper.LookupTimeout)
	assert.Equal(t, time.Minute, cfg.Gatekeeper.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.Ingest.FallbackDelay)
	assert.InDelta(t, 0.4, cfg.Resolver.SimilarityThreshold, 0.001)
	assert.Equal(t, 24*time.Hour, cfg.Claims.DedupWindow)
	assert.Equal(t, "https://api.vapi.ai", cfg.Vapi.BaseURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("INTAKE_SERVER_PORT", "9090")
	t.Setenv("INTAKE_RESOLVER_SIMILARITY_THRESHOLD", "0.6")
	t.Setenv("INTAKE_GATEKEEPER_TRANSFER_NUMBER", "+15550001111")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.6, cfg.Resolver.SimilarityThreshold, 0.001)
	assert.Equal(t, "+15550001111", cfg.Gatekeeper.TransferNumber)
}

func TestInitLogger_RejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "chatty", Format: "json"})
	require.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
