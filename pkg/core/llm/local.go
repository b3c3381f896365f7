package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// LocalProvider talks to any OpenAI-compatible chat-completions endpoint
// (ollama, vLLM, llama.cpp server). It is how the engine runs fully
// offline against a locally hosted model.
type LocalProvider struct {
	Model string // e.g. "phi4"
}

var _ Provider = (*LocalProvider)(nil)

// Message is one chat turn in the OpenAI-compatible wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat selects plain text or JSON mode.
type ResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Stream         bool            `json:"stream"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateResponse posts one chat completion. The endpoint comes from
// LOCAL_LLM_URL (default http://localhost:11434/v1/chat/completions);
// LOCAL_LLM_API_KEY is sent as a bearer token when set.
func (p *LocalProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	url := os.Getenv("LOCAL_LLM_URL")
	if url == "" {
		url = "http://localhost:11434/v1/chat/completions"
	}

	model := p.Model
	if model == "" {
		model = "phi4"
	}
	if val, ok := options["model"].(string); ok && val != "" {
		model = val
	}
	temperature := 0.1
	if val, ok := options["temperature"].(float64); ok {
		temperature = val
	}
	maxTokens := 2048
	if val, ok := options["max_tokens"].(int); ok && val > 0 {
		maxTokens = val
	}

	var messages []Message
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}
	if val, ok := options["response_format"].(map[string]interface{}); ok {
		if t, ok := val["type"].(string); ok {
			reqBody.ResponseFormat = &ResponseFormat{Type: t}
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := os.Getenv("LOCAL_LLM_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("local llm request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local llm returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("local llm error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("local llm returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
