package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/taskgate/internal/metrics"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Caller is the model collaborator used by the dispatcher
type Caller interface {
	Complete(ctx context.Context, modelName, prompt string, p Params) (string, error)
}

// Provider is one model backend. p.Model holds the upstream model id.
type Provider interface {
	Complete(ctx context.Context, prompt string, p Params) (string, error)
	Name() string
}

// NewProvider creates a provider by name
func NewProvider(name, apiKey string) (Provider, error) {
	switch name {
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey), nil
	case ProviderOpenAI, "":
		return NewOpenAIProvider(apiKey), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// Router sends each call to the provider named in its params
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	metrics   *metrics.Metrics
}

// NewRouter creates a router over providers
func NewRouter(mt *metrics.Metrics, providers ...Provider) *Router {
	r := &Router{
		providers: make(map[string]Provider, len(providers)),
		metrics:   mt,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Register adds or replaces a provider
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	r.providers[p.Name()] = p
	r.mu.Unlock()
}

// Complete implements Caller
func (r *Router) Complete(ctx context.Context, modelName, prompt string, p Params) (string, error) {
	name := p.Provider
	if name == "" {
		name = ProviderOpenAI
	}
	if p.Model == "" {
		p.Model = modelName
	}

	r.mu.RLock()
	provider, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("provider %s is not configured", name)
	}

	start := time.Now()
	out, err := provider.Complete(ctx, prompt, p)

	status := "success"
	if err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.ModelCallsTotal.WithLabelValues(modelName, status).Inc()
	}

	log.Debug().
		Str("model", modelName).
		Str("provider", name).
		Dur("duration", time.Since(start)).
		Str("status", status).
		Msg("Model call finished")

	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", name, err)
	}
	return out, nil
}
