package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "TASKGATE"

// envKeys are the settings that may be overridden from the environment as
// TASKGATE_<KEY> with dots replaced by underscores.
var envKeys = []string{
	"logging.level",
	"logging.file",
	"dispatch.pool_size",
	"dispatch.tool_timeout",
	"dispatch.max_output",
	"approval.timeout",
	"approval.presenter",
	"approval.listen_addr",
	"approval.ledger_path",
	"tool_config",
	"model_config",
	"calendar.credentials_file",
	"metrics.enabled",
	"metrics.addr",
	"tracing.enabled",
	"schedule.spec",
	"schedule.batch_file",
	"data_dir",
}

// providerEnv maps provider keys to the conventional variables checked after
// the prefixed one
var providerEnv = map[string][]string{
	"providers.openai_api_key":    {"OPENAI_API_KEY"},
	"providers.anthropic_api_key": {"ANTHROPIC_API_KEY"},
	"providers.gemini_api_key":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file, when present, over the defaults and applies
// environment overrides
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".taskgate")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "taskgate.log")
	}

	if cfg.Approval.LedgerPath == "" {
		cfg.Approval.LedgerPath = filepath.Join(cfg.DataDir, "approvals.db")
	}

	return cfg, nil
}

func bindEnv(v *viper.Viper) error {
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	for key, fallbacks := range providerEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{prefixed}, fallbacks...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Save writes cfg to the config file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to determine config path")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("logging", cfg.Logging)
	v.Set("dispatch", cfg.Dispatch)
	v.Set("approval", cfg.Approval)
	v.Set("providers", cfg.Providers)
	v.Set("tool_config", cfg.ToolConfigPath)
	v.Set("model_config", cfg.ModelConfigPath)
	v.Set("calendar", cfg.Calendar)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)
	v.Set("schedule", cfg.Schedule)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".taskgate", "taskgate.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
