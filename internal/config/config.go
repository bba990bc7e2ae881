package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Presenter names accepted by approval.presenter
const (
	PresenterConsole     = "console"
	PresenterAutoApprove = "auto-approve"
	PresenterAutoReject  = "auto-reject"
	PresenterWebSocket   = "websocket"
)

// Config represents the main taskgate configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Dispatch
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Approval
	Approval ApprovalConfig `json:"approval" mapstructure:"approval"`

	// Model provider credentials
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`

	// Catalog files
	ToolConfigPath  string `json:"tool_config" mapstructure:"tool_config"`
	ModelConfigPath string `json:"model_config" mapstructure:"model_config"`

	// Calendar tool
	Calendar CalendarConfig `json:"calendar" mapstructure:"calendar"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Scheduled batches
	Schedule ScheduleConfig `json:"schedule" mapstructure:"schedule"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
}

// DispatchConfig sizes the worker pool
type DispatchConfig struct {
	PoolSize    int `json:"pool_size" mapstructure:"pool_size"`
	ToolTimeout int `json:"tool_timeout" mapstructure:"tool_timeout"` // seconds
	MaxOutput   int `json:"max_output" mapstructure:"max_output"`     // bytes, 0 disables truncation
}

// ToolTimeoutDuration returns the per-call tool timeout
func (d DispatchConfig) ToolTimeoutDuration() time.Duration {
	return time.Duration(d.ToolTimeout) * time.Second
}

// ApprovalConfig holds approval settings
type ApprovalConfig struct {
	Timeout    int    `json:"timeout" mapstructure:"timeout"` // seconds
	Presenter  string `json:"presenter" mapstructure:"presenter"`
	ListenAddr string `json:"listen_addr" mapstructure:"listen_addr"`
	LedgerPath string `json:"ledger_path" mapstructure:"ledger_path"`
}

// TimeoutDuration returns how long one approval may wait for a decision
func (a ApprovalConfig) TimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// ProvidersConfig holds model provider API keys
type ProvidersConfig struct {
	OpenAIAPIKey    string `json:"openai_api_key" mapstructure:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string `json:"gemini_api_key" mapstructure:"gemini_api_key"`
}

// Keys returns the configured keys by provider name
func (p ProvidersConfig) Keys() map[string]string {
	keys := make(map[string]string)
	if p.OpenAIAPIKey != "" {
		keys["openai"] = p.OpenAIAPIKey
	}
	if p.AnthropicAPIKey != "" {
		keys["anthropic"] = p.AnthropicAPIKey
	}
	if p.GeminiAPIKey != "" {
		keys["gemini"] = p.GeminiAPIKey
	}
	return keys
}

// CalendarConfig holds Google Calendar settings
type CalendarConfig struct {
	CredentialsFile string `json:"credentials_file" mapstructure:"credentials_file"`
}

// MetricsConfig holds metrics endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	File    string `json:"file" mapstructure:"file"` // span output, stderr when empty
}

// ScheduleConfig holds the default scheduled batch
type ScheduleConfig struct {
	Spec      string `json:"spec" mapstructure:"spec"`
	BatchFile string `json:"batch_file" mapstructure:"batch_file"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Pretty:    true,
		},
		Dispatch: DispatchConfig{
			PoolSize:    4,
			ToolTimeout: 30,
			MaxOutput:   0,
		},
		Approval: ApprovalConfig{
			Timeout:    300,
			Presenter:  PresenterConsole,
			ListenAddr: "127.0.0.1:8765",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		ToolConfigPath:  "config/tool_config.json",
		ModelConfigPath: "config/model_config.json",
		Calendar: CalendarConfig{
			CredentialsFile: "credentials.json",
		},
	}
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	masked := *c
	masked.Providers = ProvidersConfig{
		OpenAIAPIKey:    mask(c.Providers.OpenAIAPIKey),
		AnthropicAPIKey: mask(c.Providers.AnthropicAPIKey),
		GeminiAPIKey:    mask(c.Providers.GeminiAPIKey),
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Dispatch.PoolSize <= 0 {
		return fmt.Errorf("dispatch.pool_size must be positive, got %d", c.Dispatch.PoolSize)
	}
	if c.Dispatch.ToolTimeout <= 0 {
		return fmt.Errorf("dispatch.tool_timeout must be positive, got %d", c.Dispatch.ToolTimeout)
	}
	if c.Approval.Timeout <= 0 {
		return fmt.Errorf("approval.timeout must be positive, got %d", c.Approval.Timeout)
	}
	if c.ToolConfigPath == "" {
		return fmt.Errorf("tool_config path is required")
	}
	if c.ModelConfigPath == "" {
		return fmt.Errorf("model_config path is required")
	}

	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return errs[0]
	}
	return nil
}
