package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsApplyWhenSeedIsZeroValue(t *testing.T) {
	cfg, err := Load(RunConfig{})
	require.NoError(t, err)
	assert.True(t, cfg.PackedDispatch)
	assert.Equal(t, 8, cfg.MaxCaptureDepth)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvVarOverridesSeed(t *testing.T) {
	t.Setenv("LKR_LOG_LEVEL", "debug")
	t.Setenv("LKR_MAX_CAPTURE_DEPTH", "3")

	cfg, err := Load(RunConfig{PackedDispatch: true})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.MaxCaptureDepth)
	assert.True(t, cfg.PackedDispatch)
}

func TestLoad_SeedValueSurvivesWhenNoEnvVarSet(t *testing.T) {
	cfg, err := Load(RunConfig{BytecodeCacheDir: "/tmp/lkr-cache"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/lkr-cache", cfg.BytecodeCacheDir)
}
