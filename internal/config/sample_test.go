package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "pqclaim.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.TaskStore.Driver)
	assert.Equal(t, "memory", cfg.TaskQueue.Driver)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, filepath.Join("..", "..", "logs", "audit.log"), cfg.Log.Audit.Path)
}
