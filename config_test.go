package wtinylfu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TinySizePercent = 0
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "tiny cache size")

	cfg = DefaultConfig()
	cfg.TinySizePercent = 51
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.WindowToCacheSizeRatio = 1
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "window to cache size ratio")

	cfg = DefaultConfig()
	cfg.WindowToCacheSizeRatio = 129
	require.Error(t, cfg.Validate())

	// Boundary values are accepted.
	cfg = DefaultConfig()
	cfg.TinySizePercent = 50
	cfg.WindowToCacheSizeRatio = 128
	require.NoError(t, cfg.Validate())
}

func TestNewContainerRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowToCacheSizeRatio = 0
	_, err := NewContainer(cfg)
	require.Error(t, err)
}

func TestConfigModeGates(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.updatesForMode(AccessModeRead))
	require.False(t, cfg.updatesForMode(AccessModeWrite))

	cfg.UpdateOnRead = false
	cfg.UpdateOnWrite = true
	require.False(t, cfg.updatesForMode(AccessModeRead))
	require.True(t, cfg.updatesForMode(AccessModeWrite))
}
