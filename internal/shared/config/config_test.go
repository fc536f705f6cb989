package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusd/internal/shared/types"
)

func writeIni(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)

	def := types.DefaultConfig()
	assert.Equal(t, def.Workers, cfg.Workers)
	assert.Equal(t, def.QueueSize, cfg.QueueSize)
	assert.Equal(t, types.PolicyBlock, cfg.FullQueuePolicy)
	assert.Equal(t, 10, cfg.Backlog)
}

func TestLoad_MapsSections(t *testing.T) {
	path := writeIni(t, `
[common]
workers = 2
queue_size = 0
full_queue_policy = REJECT
io_timeout = 5

[server]
bind_host = 127.0.0.1
backlog = 32

[admin]
port = 9090
user = admin
password = secret

[log]
level = debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 0, cfg.QueueSize)
	assert.Equal(t, types.PolicyReject, cfg.FullQueuePolicy)
	assert.Equal(t, 5, cfg.IOTimeout)
	assert.Equal(t, "127.0.0.1", cfg.BindHost)
	assert.Equal(t, 32, cfg.Backlog)
	assert.Equal(t, 9090, cfg.AdminConf.Port)
	assert.Equal(t, "admin", cfg.User)
	assert.Equal(t, "debug", cfg.Level)
	// stats_interval not set in file: default survives
	assert.Equal(t, 2, cfg.StatsInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STATUSD_WORKERS", "7")
	t.Setenv("STATUSD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "warn", cfg.Level)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero workers", "[common]\nworkers = 0\n"},
		{"negative queue", "[common]\nqueue_size = -1\n"},
		{"unknown policy", "[common]\nfull_queue_policy = drop\n"},
		{"bad backlog", "[server]\nbacklog = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeIni(t, tt.content))
			assert.Error(t, err)
		})
	}
}
