package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, 8, cfg.Server.MaxDepth)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)

		assert.Equal(t, 0, cfg.Expand.Depth)
		assert.Equal(t, 256, cfg.Expand.MaxInFlight)
		assert.Equal(t, 0.0, cfg.Expand.RateLimit)
		assert.Equal(t, 1000, cfg.Expand.PageSize)
		assert.Equal(t, 10_000, cfg.Expand.MaxPages)
		assert.Equal(t, 10*time.Minute, cfg.Expand.Timeout)
		assert.False(t, cfg.Expand.Sort)

		assert.Empty(t, cfg.Snapshot.Path)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("DEPTHLS_PORT", "3000")
		t.Setenv("DEPTHLS_LOG_LEVEL", "WARN")
		t.Setenv("DEPTHLS_PARALLEL", "16")
		t.Setenv("DEPTHLS_EXPAND_RATE_LIMIT", "2.5")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, 16, cfg.Expand.MaxInFlight)
		assert.Equal(t, 2.5, cfg.Expand.RateLimit)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("DEPTHLS_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{"server": map[string]any{"port": 5000}})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Load(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depthls.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
expand:
  max_in_flight: 32
  timeout: 90s
  sort: true
snapshot:
  path: /tmp/listing.db
`), 0o644))

	SetConfigFile(path)
	defer SetConfigFile("")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Expand.MaxInFlight)
	assert.Equal(t, 90*time.Second, cfg.Expand.Timeout)
	assert.True(t, cfg.Expand.Sort)
	assert.Equal(t, "/tmp/listing.db", cfg.Snapshot.Path)

	t.Run("EnvBeatsFile", func(t *testing.T) {
		t.Setenv("DEPTHLS_SERVER_PORT", "7171")
		cfg, err := Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7171, cfg.Server.Port)
	})
}

func TestLoad_MissingConfigFile(t *testing.T) {
	SetConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	defer SetConfigFile("")

	_, err := Load(context.Background())
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(context.Background(), map[string]any{"expand": map[string]any{"max_in_flight": -1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_in_flight")

	_, err = Load(context.Background(), map[string]any{"server": map[string]any{"port": 70000}})
	require.Error(t, err)
}

func TestGetConfig(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestDurationParsing(t *testing.T) {
	t.Setenv("DEPTHLS_READ_TIMEOUT", "45s")
	t.Setenv("DEPTHLS_SHUTDOWN_TIMEOUT", "5m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
}

func TestConfigReload(t *testing.T) {
	cfg1, err := Load(context.Background())
	require.NoError(t, err)

	cfg2, err := Load(context.Background(), map[string]any{"server": map[string]any{"port": cfg1.Server.Port + 1000}})
	require.NoError(t, err)
	assert.Equal(t, cfg1.Server.Port+1000, cfg2.Server.Port)
	assert.Equal(t, cfg2.Server.Port, GetConfig().Server.Port)
}

func TestEnvSpecs(t *testing.T) {
	specs := getEnvSpecs()
	require.NotEmpty(t, specs)

	names := make(map[string]string)
	for _, spec := range specs {
		assert.Contains(t, spec.Name, "DEPTHLS_")
		assert.NotEmpty(t, spec.Path, "env var %s should have a path", spec.Name)
		names[spec.Name] = spec.Path
	}
	assert.Equal(t, "logging.level", names["DEPTHLS_LOG_LEVEL"])
	assert.Equal(t, "server.port", names["DEPTHLS_PORT"])
	assert.Equal(t, "server.host", names["DEPTHLS_HOST"])
	assert.Equal(t, "expand.max_in_flight", names["DEPTHLS_PARALLEL"])
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"Server": map[string]any{"port": 1, "tls": map[string]any{"enabled": true}},
		"debug":  false,
	})
	assert.Equal(t, map[string]any{
		"server.port":        1,
		"server.tls.enabled": true,
		"debug":              false,
	}, got)
}
