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
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("TASKGATE_DATA_DIR", tmpDir)

		cfg, err := NewLoader(filepath.Join(tmpDir, "nonexistent.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, PresenterConsole, cfg.Approval.Presenter)
		assert.Equal(t, 4, cfg.Dispatch.PoolSize)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"data_dir": "` + tmpDir + `",
			"dispatch": {"pool_size": 8},
			"approval": {"presenter": "auto-reject", "timeout": 60},
			"providers": {"openai_api_key": "sk-from-file"},
			"tool_config": "tools.json"
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Dispatch.PoolSize)
		assert.Equal(t, 30, cfg.Dispatch.ToolTimeout)
		assert.Equal(t, PresenterAutoReject, cfg.Approval.Presenter)
		assert.Equal(t, 60, cfg.Approval.Timeout)
		assert.Equal(t, "sk-from-file", cfg.Providers.OpenAIAPIKey)
		assert.Equal(t, "tools.json", cfg.ToolConfigPath)
		assert.Equal(t, "config/model_config.json", cfg.ModelConfigPath)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"data_dir": "`+tmpDir+`"}`), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpDir, "taskgate.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(tmpDir, "approvals.db"), cfg.Approval.LedgerPath)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{not json`), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Run("prefixed variables override the file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"data_dir": "`+tmpDir+`", "approval": {"presenter": "console"}}`), 0644))

		t.Setenv("TASKGATE_APPROVAL_PRESENTER", "auto-approve")
		t.Setenv("TASKGATE_DISPATCH_POOL_SIZE", "2")
		t.Setenv("TASKGATE_LOGGING_LEVEL", "debug")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, PresenterAutoApprove, cfg.Approval.Presenter)
		assert.Equal(t, 2, cfg.Dispatch.PoolSize)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("conventional provider variables", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("TASKGATE_DATA_DIR", tmpDir)
		t.Setenv("OPENAI_API_KEY", "sk-from-env")
		t.Setenv("GOOGLE_API_KEY", "AIza-from-env")

		cfg, err := NewLoader(filepath.Join(tmpDir, "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, "sk-from-env", cfg.Providers.OpenAIAPIKey)
		assert.Equal(t, "AIza-from-env", cfg.Providers.GeminiAPIKey)
	})

	t.Run("prefixed provider variable wins", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("TASKGATE_DATA_DIR", tmpDir)
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-generic")
		t.Setenv("TASKGATE_PROVIDERS_ANTHROPIC_API_KEY", "sk-ant-prefixed")

		cfg, err := NewLoader(filepath.Join(tmpDir, "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, "sk-ant-prefixed", cfg.Providers.AnthropicAPIKey)
	})
}

func TestLoaderSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "taskgate.json")

	cfg := DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Dispatch.PoolSize = 6
	cfg.Approval.Presenter = PresenterWebSocket
	cfg.Providers.OpenAIAPIKey = "sk-saved"

	loader := NewLoader(configPath)
	require.NoError(t, loader.Save(cfg))

	_, err := os.Stat(configPath)
	require.NoError(t, err)

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Dispatch.PoolSize)
	assert.Equal(t, PresenterWebSocket, loaded.Approval.Presenter)
	assert.Equal(t, "sk-saved", loaded.Providers.OpenAIAPIKey)
}
