package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/depthls/internal/config"
)

func TestSignalHealthChecker(t *testing.T) {
	assert.NoError(t, signalHealthChecker{}.CheckHealth(context.Background()))
}

func TestIdentityHealthChecker(t *testing.T) {
	tests := []struct {
		name       string
		checker    identityHealthChecker
		errContain string
	}{
		{"all fields valid", identityHealthChecker{binaryName, config.EnvPrefix, configName}, ""},
		{"missing binary name", identityHealthChecker{"", "DEPTHLS", "depthls"}, "missing binary name"},
		{"missing env prefix", identityHealthChecker{"depthls", "", "depthls"}, "missing env prefix"},
		{"missing config name", identityHealthChecker{"depthls", "DEPTHLS", ""}, "missing config name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.checker.CheckHealth(context.Background())
			if tt.errContain == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContain)
		})
	}
}

func TestSnapshotHealthChecker(t *testing.T) {
	ctx := context.Background()

	ok := snapshotHealthChecker{path: filepath.Join(t.TempDir(), "snap.db")}
	assert.NoError(t, ok.CheckHealth(ctx))

	// The parent of the database path is a regular file.
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))
	bad := snapshotHealthChecker{path: filepath.Join(parent, "snap.db")}
	assert.Error(t, bad.CheckHealth(ctx))
}
