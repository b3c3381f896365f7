// Package llm abstracts the answer-generation model behind a small provider
// interface so the extraction layer can run against Gemini, a local
// OpenAI-compatible deployment, or a test fake.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}

// NewProvider resolves a provider by configured name. Empty selects Gemini.
func NewProvider(name, model string) (Provider, error) {
	switch strings.ToLower(name) {
	case "", "gemini":
		return &GeminiProvider{Model: model}, nil
	case "local", "ollama", "openai-compatible":
		return &LocalProvider{Model: model}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
