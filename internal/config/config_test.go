package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "VADERBOARD_COUNT", "LOG_LEVEL", "STATIC_DIR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8080", cfg.Addr())
	require.Equal(t, 10, cfg.BoardCount)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "dist", cfg.StaticDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9090")
	t.Setenv("VADERBOARD_COUNT", "25")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9090", cfg.Addr())
	require.Equal(t, 25, cfg.BoardCount)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestBoardCountIgnoresGarbage(t *testing.T) {
	t.Setenv("VADERBOARD_COUNT", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10, cfg.BoardCount)

	t.Setenv("VADERBOARD_COUNT", "-3")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, 10, cfg.BoardCount)
}
