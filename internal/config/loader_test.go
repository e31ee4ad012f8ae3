package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.NotNil(t, cfg)
		assert.Equal(t, "openai", cfg.Completion.Provider)
		assert.Equal(t, "@every 15m", cfg.Sync.Schedule)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"completion": {
				"provider": "anthropic",
				"api_key": "sk-ant-test-key",
				"model": "claude-sonnet-4"
			},
			"gateway": {
				"enabled": true,
				"port": 9100
			}
		}`
		err := os.WriteFile(configPath, []byte(testConfig), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.Completion.Provider)
		assert.Equal(t, "sk-ant-test-key", cfg.Completion.APIKey)
		assert.True(t, cfg.Gateway.Enabled)
		assert.Equal(t, 9100, cfg.Gateway.Port)
		// defaults survive partial config
		assert.Equal(t, "@every 15m", cfg.Sync.Schedule)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{"data_dir": "` + filepath.ToSlash(tmpDir) + `"}`
		err := os.WriteFile(configPath, []byte(testConfig), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.NotEmpty(t, cfg.Logging.File)
		assert.NotEmpty(t, cfg.Remote.DatabasePath)
		assert.Equal(t, filepath.Join(tmpDir, "whatif.log"), cfg.Logging.File)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")

		err := os.WriteFile(configPath, []byte("invalid json"), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		_, err = loader.Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Completion.Provider = "anthropic"
	cfg.Gateway.Port = 9999

	loader := NewLoader(configPath)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", loaded.Completion.Provider)
	assert.Equal(t, 9999, loaded.Gateway.Port)
}

func TestGetConfigPath(t *testing.T) {
	loader := NewLoader("/explicit/path.json")
	assert.Equal(t, "/explicit/path.json", loader.GetConfigPath())

	defaultLoader := NewLoader("")
	assert.Contains(t, defaultLoader.GetConfigPath(), ".whatif")
}
