// Package ingest turns extracted filing pages into stored, embedded chunks:
// chunk, tag with section context, classify, embed in batches, and atomically
// replace the company+fiscal_year chunk set.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"finrag/pkg/core/chunker"
	"finrag/pkg/core/classify"
	"finrag/pkg/core/section"
	"finrag/pkg/models"
)

// Embedder produces embeddings for a batch of texts. Satisfied by
// embed.GeminiEmbedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists the chunk set for one company+fiscal_year atomically.
// Satisfied by store.ChunkRepo.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, companyID, fiscalYear string, chunks []models.Chunk) error
}

// Config tunes the pipeline.
type Config struct {
	Chunker   chunker.Config
	BatchSize int // chunks per embedding call, default 50
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
}

// Pipeline runs one document through chunking, classification, embedding,
// and storage. Boundaries and section spans are computed once per document
// and shared by every stage.
type Pipeline struct {
	chunker    *chunker.AdaptiveChunker
	detector   *section.ContextDetector
	classifier *classify.UniversalClassifier
	embedder   Embedder
	store      ChunkStore
	cfg        Config
}

func NewPipeline(embedder Embedder, store ChunkStore, cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		chunker:    chunker.New(cfg.Chunker),
		detector:   section.NewContextDetector(),
		classifier: classify.New(),
		embedder:   embedder,
		store:      store,
		cfg:        cfg,
	}
}

// Ingest processes one document. An embedding outage is a warning, not a
// failure: chunks are stored without vectors and retrieval runs keyword-only
// until re-ingestion. Storage errors always surface.
func (p *Pipeline) Ingest(ctx context.Context, companyID, fiscalYear string, pages []models.Page) (models.IngestStats, error) {
	stats := models.IngestStats{CompanyID: companyID, FiscalYear: fiscalYear, PagesSeen: len(pages)}
	if len(pages) == 0 {
		return stats, fmt.Errorf("no pages to ingest for %s %s", companyID, fiscalYear)
	}
	fmt.Printf("[INGEST] %s %s: %d pages\n", companyID, fiscalYear, len(pages))

	chunks, warnings := p.chunker.ChunkDocument(companyID, fiscalYear, pages)
	stats.ChunksCreated = len(chunks)
	stats.Warnings = warnings
	if len(chunks) == 0 {
		return stats, fmt.Errorf("chunking produced no chunks for %s %s", companyID, fiscalYear)
	}

	// Section spans come from the same joined text the chunker offsets refer to.
	fullText, _ := chunker.JoinPages(pages)
	spans := p.detector.DetectSpans(fullText)
	for i := range chunks {
		st := section.StatementTypeAt(spans, chunks[i].StartOffset)
		p.classifier.Apply(&chunks[i], st)
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		if !errors.Is(err, models.ErrEmbeddingUnavailable) {
			return stats, err
		}
		fmt.Printf("[INGEST] Embedding unavailable, storing without vectors: %v\n", err)
		stats.Warnings = append(stats.Warnings, "embeddings unavailable: vector retrieval disabled until re-ingestion")
	}

	if err := p.store.ReplaceChunks(ctx, companyID, fiscalYear, chunks); err != nil {
		return stats, fmt.Errorf("storing chunks for %s %s: %w", companyID, fiscalYear, err)
	}
	stats.ChunksStored = len(chunks)
	fmt.Printf("[INGEST] %s %s: stored %d chunks (%d warnings)\n",
		companyID, fiscalYear, stats.ChunksStored, len(stats.Warnings))
	return stats, nil
}

// embedChunks fills Embedding on each chunk in batches.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk) error {
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return fmt.Errorf("embedding batch %d-%d: got %d vectors for %d texts: %w",
				start, end, len(vectors), end-start, models.ErrEmbeddingUnavailable)
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}
