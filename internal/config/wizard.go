package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and prompting on out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for each setting, starting from the defaults
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== taskgate Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	fmt.Fprintln(w.out, "Model provider API keys (needed only for model tasks):")
	fmt.Fprintln(w.out)

	keys := []struct {
		provider string
		label    string
		dst      *string
	}{
		{"openai", "OpenAI", &cfg.Providers.OpenAIAPIKey},
		{"anthropic", "Anthropic", &cfg.Providers.AnthropicAPIKey},
		{"gemini", "Gemini", &cfg.Providers.GeminiAPIKey},
	}
	for _, k := range keys {
		for {
			key, err := w.ask(fmt.Sprintf("%s API Key (press Enter to skip): ", k.label))
			if err != nil {
				return nil, err
			}
			if key == "" {
				break
			}
			if err := validator.ValidateAPIKey(key, k.provider); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
			*k.dst = key
			break
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Catalogs:")

	path, err := w.ask(fmt.Sprintf("Tool config file [%s]: ", cfg.ToolConfigPath))
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.ToolConfigPath = path
	}

	path, err = w.ask(fmt.Sprintf("Model config file [%s]: ", cfg.ModelConfigPath))
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.ModelConfigPath = path
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Approval presenter options:")
	fmt.Fprintln(w.out, "  console      - Ask on this terminal (default)")
	fmt.Fprintln(w.out, "  websocket    - Ask a connected operator over WebSocket")
	fmt.Fprintln(w.out, "  auto-approve - Approve every gated tool")
	fmt.Fprintln(w.out, "  auto-reject  - Reject every gated tool")
	presenter, err := w.ask(fmt.Sprintf("Presenter [%s]: ", cfg.Approval.Presenter))
	if err != nil {
		return nil, err
	}
	if presenter != "" {
		if err := validator.ValidatePresenter(presenter); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (%s)\n", err, cfg.Approval.Presenter)
		} else {
			cfg.Approval.Presenter = presenter
		}
	}

	size, err := w.ask(fmt.Sprintf("Worker pool size [%d]: ", cfg.Dispatch.PoolSize))
	if err != nil {
		return nil, err
	}
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			fmt.Fprintf(w.out, "Warning: invalid pool size %q, using default (%d)\n", size, cfg.Dispatch.PoolSize)
		} else {
			cfg.Dispatch.PoolSize = n
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Logging:")
	level, err := w.ask("Log level (debug/info/warn/error) [info]: ")
	if err != nil {
		return nil, err
	}
	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) ask(prompt string) (string, error) {
	fmt.Fprint(w.out, prompt)
	line, err := w.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
