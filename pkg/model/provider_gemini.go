package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider calls Google Gemini. The client is created on first use.
// Frequency and presence penalties are not forwarded.
type GeminiProvider struct {
	apiKey string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
	}
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// Complete generates content for prompt
func (p *GeminiProvider) Complete(ctx context.Context, prompt string, mp Params) (string, error) {
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(context.Background(), option.WithAPIKey(p.apiKey))
	})
	if p.clientErr != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", p.clientErr)
	}

	gm := p.client.GenerativeModel(mp.Model)
	gm.SetTemperature(float32(mp.Temperature))
	if mp.TopP > 0 {
		gm.SetTopP(float32(mp.TopP))
	}
	if mp.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(mp.MaxTokens))
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	return firstText(resp), nil
}

// Close releases the underlying client
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func firstText(r *genai.GenerateContentResponse) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
