package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/harun/taskgate/pkg/schedule"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePresenter validates the approval presenter name
func (v *Validator) ValidatePresenter(name string) error {
	validPresenters := []string{PresenterConsole, PresenterAutoApprove, PresenterAutoReject, PresenterWebSocket}
	for _, valid := range validPresenters {
		if name == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid approval presenter: %s (must be one of: %s)", name, strings.Join(validPresenters, ", "))
}

// ValidateListenAddr validates a host:port address
func (v *Validator) ValidateListenAddr(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, addr, err)
	}
	return nil
}

// ValidateSchedule validates the scheduled batch settings
func (v *Validator) ValidateSchedule(s ScheduleConfig) error {
	if s.Spec == "" {
		return nil
	}
	if _, err := schedule.NextRun(s.Spec, time.Now()); err != nil {
		return fmt.Errorf("schedule.spec: %w", err)
	}
	if s.BatchFile == "" {
		return fmt.Errorf("schedule.batch_file is required when schedule.spec is set")
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	keys := cfg.Providers.Keys()
	for _, provider := range []string{"openai", "anthropic", "gemini"} {
		key, ok := keys[provider]
		if !ok {
			continue
		}
		if err := v.ValidateAPIKey(key, provider); err != nil {
			errors = append(errors, err)
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidatePresenter(cfg.Approval.Presenter); err != nil {
		errors = append(errors, err)
	}
	if cfg.Approval.Presenter == PresenterWebSocket {
		if err := v.ValidateListenAddr("approval.listen_addr", cfg.Approval.ListenAddr); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Metrics.Enabled {
		if err := v.ValidateListenAddr("metrics.addr", cfg.Metrics.Addr); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Dispatch.MaxOutput < 0 {
		errors = append(errors, fmt.Errorf("dispatch.max_output must be >= 0"))
	}

	if err := v.ValidateSchedule(cfg.Schedule); err != nil {
		errors = append(errors, err)
	}

	return errors
}
