package harness

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanfuller/autoloop/llm"
)

func TestNormalizeDefaultsProjectDirToCwd(t *testing.T) {
	cfg := Config{MaxIterations: 5}
	require.NoError(t, cfg.Normalize())

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, cfg.ProjectDir)
}

func TestNormalizeDefaultsModel(t *testing.T) {
	cfg := Config{MaxIterations: 5}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, llm.DefaultModel, cfg.Model)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		ProjectDir:    dir,
		MaxIterations: 10,
		Model:         "claude-opus-4-6",
		APIAddr:       "127.0.0.1:9000",
	}
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, dir, cfg.ProjectDir)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, "claude-opus-4-6", cfg.Model)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.APIBaseURL())
}

func TestNormalizeRejectsNonPositiveIterations(t *testing.T) {
	cfg := Config{MaxIterations: 0}
	assert.Error(t, cfg.Normalize())

	cfg = Config{MaxIterations: -3}
	assert.Error(t, cfg.Normalize())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTOLOOP_PROJECT_DIR", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, llm.DefaultModel, cfg.Model)
	assert.Equal(t, "127.0.0.1:8765", cfg.APIAddr)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOLOOP_PROJECT_DIR", dir)
	t.Setenv("AUTOLOOP_MAX_ITERATIONS", "10")
	t.Setenv("AUTOLOOP_MODEL", "gpt-5.2")
	t.Setenv("PROGRESS_N8N_WEBHOOK_URL", "http://127.0.0.1:9999/hook")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectDir)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, "gpt-5.2", cfg.Model)
	assert.Equal(t, "http://127.0.0.1:9999/hook", cfg.WebhookURL)
}
