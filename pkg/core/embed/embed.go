// Package embed produces the dense vectors for chunks and queries. The
// engine only ever sees the Embedder interface; the Gemini implementation
// lives behind it so retrieval tests can inject fakes.
package embed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"finrag/pkg/models"
)

// Embedder turns texts into fixed-length vectors. Implementations must
// return one vector per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

const (
	defaultModel = "text-embedding-004"
	defaultDims  = 768

	// maxBatch is the per-request content limit of the embedding API.
	maxBatch   = 100
	maxRetries = 3
)

// GeminiEmbedder calls the Gemini embedding API in batches with retry and
// exponential backoff.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGemini creates an embedder from GEMINI_API_KEY. An empty modelName
// selects text-embedding-004.
func NewGemini(ctx context.Context, modelName string) (*GeminiEmbedder, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}
	if modelName == "" {
		modelName = defaultModel
	}
	return &GeminiEmbedder{client: client, model: modelName, dims: defaultDims}, nil
}

// Dimensions returns the vector length this embedder produces.
func (g *GeminiEmbedder) Dimensions() int {
	return g.dims
}

// Embed returns one vector per text, batching requests under the API limit.
// A batch that keeps failing after retries surfaces ErrEmbeddingUnavailable
// so retrieval can degrade to keyword-only.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (g *GeminiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	em := g.client.EmbeddingModel(g.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second << uint(attempt-1)):
			}
		}
		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			lastErr = err
			fmt.Printf("[EMBED] attempt %d/%d failed: %v\n", attempt+1, maxRetries, err)
			continue
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding API returned %d vectors for %d texts: %w",
				len(resp.Embeddings), len(texts), models.ErrEmbeddingUnavailable)
		}
		vectors := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			vectors[i] = e.Values
		}
		return vectors, nil
	}
	return nil, fmt.Errorf("%v: %w", lastErr, models.ErrEmbeddingUnavailable)
}
