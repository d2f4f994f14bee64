package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, "latest", cfg.Pipeline.RepairPolicy)
	assert.Equal(t, 120, cfg.LLM.Generation.MaxTokens)
	assert.InDelta(t, 0.1, cfg.LLM.Generation.Temperature, 0.0001)
	assert.Equal(t, "reviewq:audit", cfg.Audit.Redis.Stream)
	assert.NotEqual(t, cfg.Store.DSN, cfg.Audit.Path)
}

func TestLoadFileProfiles(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
llm:
  generation:
    provider: ollama
    model: llama3.2
  repair:
    provider: anthropic
    model: claude-3-5-haiku-latest
    maxTokens: 300
`))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Generation.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.Generation.Model)
	assert.Equal(t, "anthropic", cfg.LLM.Repair.Provider)
	assert.Equal(t, 300, cfg.LLM.Repair.MaxTokens)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("REVIEWQ_STORE_DRIVER", "pgx")
	cfg, err := LoadFile(writeConfig(t, "store:\n  driver: sqlite3\n"))
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Store.Driver)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "store:\n  driver: mysql\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")

	_, err = LoadFile(writeConfig(t, "pipeline:\n  repairPolicy: everything\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repair policy")
}
