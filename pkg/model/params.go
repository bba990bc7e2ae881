package model

import (
	"fmt"
	"sort"

	"github.com/harun/taskgate/pkg/taskerr"
)

// Params are the sampling settings passed with every model call
type Params struct {
	// Provider selects the backend: openai, anthropic or gemini. Empty means openai.
	Provider string `json:"provider,omitempty" mapstructure:"provider"`
	// Model is the upstream model id. Empty means the catalog name is used.
	Model string `json:"model,omitempty" mapstructure:"model"`
	// Preset fills unset sampling fields from a named preset.
	Preset string `json:"preset,omitempty" mapstructure:"preset"`

	Temperature      float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens        int     `json:"max_tokens" mapstructure:"max_tokens"`
	TopP             float64 `json:"top_p" mapstructure:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty" mapstructure:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty" mapstructure:"presence_penalty"`
}

var presets = map[string]Params{
	"creative": {Temperature: 0.9, TopP: 0.9, FrequencyPenalty: 0.6, PresencePenalty: 0.6},
	"precise":  {Temperature: 0.2, TopP: 0.9, FrequencyPenalty: 0, PresencePenalty: 0},
	"balanced": {Temperature: 0.7, TopP: 0.9, FrequencyPenalty: 0.3, PresencePenalty: 0.3},
}

// Preset returns the named sampling preset
func Preset(name string) (Params, bool) {
	p, ok := presets[name]
	return p, ok
}

// Validate checks every field against the range the providers accept
func (p Params) Validate() error {
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature %v outside range [0, 2]", p.Temperature)
	}
	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("top_p %v outside range [0, 1]", p.TopP)
	}
	if p.FrequencyPenalty < -2 || p.FrequencyPenalty > 2 {
		return fmt.Errorf("frequency_penalty %v outside range [-2, 2]", p.FrequencyPenalty)
	}
	if p.PresencePenalty < -2 || p.PresencePenalty > 2 {
		return fmt.Errorf("presence_penalty %v outside range [-2, 2]", p.PresencePenalty)
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	switch p.Provider {
	case "", ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unsupported provider: %s", p.Provider)
	}
	return nil
}

// withPreset fills zero sampling fields from the preset
func (p Params) withPreset() (Params, error) {
	if p.Preset == "" {
		return p, nil
	}
	base, ok := presets[p.Preset]
	if !ok {
		return p, fmt.Errorf("unknown preset %s", p.Preset)
	}
	if p.Temperature == 0 {
		p.Temperature = base.Temperature
	}
	if p.TopP == 0 {
		p.TopP = base.TopP
	}
	if p.FrequencyPenalty == 0 {
		p.FrequencyPenalty = base.FrequencyPenalty
	}
	if p.PresencePenalty == 0 {
		p.PresencePenalty = base.PresencePenalty
	}
	return p, nil
}

// Catalog maps configured model names to their parameters
type Catalog struct {
	models map[string]Params
}

// NewCatalog resolves presets and validates every entry
func NewCatalog(models map[string]Params) (*Catalog, error) {
	c := &Catalog{models: make(map[string]Params, len(models))}
	for name, p := range models {
		resolved, err := p.withPreset()
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		if err := resolved.Validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		if resolved.Model == "" {
			resolved.Model = name
		}
		c.models[name] = resolved
	}
	return c, nil
}

// Lookup returns the parameters of a configured model
func (c *Catalog) Lookup(name string) (Params, error) {
	if c != nil {
		if p, ok := c.models[name]; ok {
			return p, nil
		}
	}
	return Params{}, taskerr.Configuration("model", "model %s not found in configuration", name)
}

// Names returns all model names, sorted
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
