// Package retrieval implements the hybrid search over the chunk store:
// vector and keyword tiers run concurrently, results merge by chunk_id, and
// a classification-match pass re-ranks before deduplication.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"finrag/pkg/core/store"
	"finrag/pkg/models"
)

// Searcher is what the engine needs from the chunk store.
type Searcher interface {
	VectorSearch(ctx context.Context, queryEmbedding []float32, f store.Filter, limit int) ([]models.RetrievalResult, error)
	KeywordSearch(ctx context.Context, query string, f store.Filter, limit int) ([]models.RetrievalResult, error)
}

// Embedder is the slice of the embedding layer the engine uses for queries.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config tunes the hybrid engine.
type Config struct {
	// TierTimeout bounds each tier independently. A tier that misses it
	// degrades the result instead of failing the query.
	TierTimeout time.Duration
	// VectorCandidates and KeywordCandidates multiply topK to leave
	// deduplication enough raw material.
	VectorCandidates  int
	KeywordCandidates int
}

func (c *Config) defaults() {
	if c.TierTimeout <= 0 {
		c.TierTimeout = 5 * time.Second
	}
	if c.VectorCandidates <= 0 {
		c.VectorCandidates = 3
	}
	if c.KeywordCandidates <= 0 {
		c.KeywordCandidates = 2
	}
}

// Engine runs hybrid retrieval.
type Engine struct {
	searcher Searcher
	embedder Embedder
	cfg      Config
}

// NewEngine creates a hybrid retrieval engine.
func NewEngine(searcher Searcher, embedder Embedder, cfg Config) *Engine {
	cfg.defaults()
	return &Engine{searcher: searcher, embedder: embedder, cfg: cfg}
}

type tierResult struct {
	tier    models.RetrievalTier
	results []models.RetrievalResult
	err     error
}

// Retrieve runs both tiers concurrently, merges by chunk_id keeping the best
// raw score and the union of tiers, then re-ranks. The returned bool reports
// a degraded (single-tier) result. Both tiers empty yields ErrNoCandidates,
// never a synthetic chunk.
func (e *Engine) Retrieve(ctx context.Context, query string, f store.Filter, topK int) ([]models.RetrievalResult, bool, error) {
	if topK <= 0 {
		topK = 10
	}
	ch := make(chan tierResult, 2)

	go func() {
		tctx, cancel := context.WithTimeout(ctx, e.cfg.TierTimeout)
		defer cancel()
		results, err := e.vectorTier(tctx, query, f, topK*e.cfg.VectorCandidates)
		ch <- tierResult{tier: models.TierVector, results: results, err: err}
	}()
	go func() {
		tctx, cancel := context.WithTimeout(ctx, e.cfg.TierTimeout)
		defer cancel()
		results, err := e.searcher.KeywordSearch(tctx, query, f, topK*e.cfg.KeywordCandidates)
		ch <- tierResult{tier: models.TierKeyword, results: results, err: err}
	}()

	var vector, keyword tierResult
	for i := 0; i < 2; i++ {
		tr := <-ch
		if tr.tier == models.TierVector {
			vector = tr
		} else {
			keyword = tr
		}
	}

	degraded := false
	if vector.err != nil {
		fmt.Printf("[RETRIEVAL] vector tier degraded: %v\n", vector.err)
		degraded = true
		vector.results = nil
	}
	if keyword.err != nil {
		fmt.Printf("[RETRIEVAL] keyword tier degraded: %v\n", keyword.err)
		degraded = true
		keyword.results = nil
	}
	if vector.err != nil && keyword.err != nil {
		return nil, true, fmt.Errorf("both retrieval tiers failed: vector: %v; keyword: %w", vector.err, keyword.err)
	}

	merged := merge(vector.results, keyword.results)
	if len(merged) == 0 {
		return nil, degraded, models.ErrNoCandidates
	}

	rerank(merged, sectionHints(query, f.SectionLabels))
	return merged, degraded, nil
}

func (e *Engine) vectorTier(ctx context.Context, query string, f store.Filter, limit int) ([]models.RetrievalResult, error) {
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("query embedding returned %d vectors: %w", len(vectors), models.ErrEmbeddingUnavailable)
	}
	return e.searcher.VectorSearch(ctx, vectors[0], f, limit)
}

// merge combines tier outputs by chunk_id. A chunk seen in both tiers keeps
// its best raw score and accumulates both tiers; the tier-count boost is
// applied later by rerank.
func merge(vector, keyword []models.RetrievalResult) []models.RetrievalResult {
	index := make(map[string]int)
	var merged []models.RetrievalResult
	for _, r := range append(append([]models.RetrievalResult{}, vector...), keyword...) {
		i, seen := index[r.ChunkID]
		if !seen {
			if len(r.Tiers) == 0 {
				r.Tiers = []models.RetrievalTier{r.Tier}
			}
			index[r.ChunkID] = len(merged)
			merged = append(merged, r)
			continue
		}
		ex := &merged[i]
		if r.Score > ex.Score {
			ex.Score = r.Score
			ex.Tier = r.Tier
		}
		if !hasTier(ex.Tiers, r.Tier) {
			ex.Tiers = append(ex.Tiers, r.Tier)
		}
	}
	return merged
}

func hasTier(tiers []models.RetrievalTier, t models.RetrievalTier) bool {
	for _, x := range tiers {
		if x == t {
			return true
		}
	}
	return false
}

// rerank boosts chunks whose section labels match the query's intent (20%
// per matching label) and chunks surfaced by more than one tier (10% per
// extra tier), then orders deterministically: score desc, tier count desc,
// chunk_id asc.
func rerank(results []models.RetrievalResult, hints []string) {
	hintSet := make(map[string]bool, len(hints))
	for _, h := range hints {
		hintSet[h] = true
	}
	for i := range results {
		r := &results[i]
		matches := 0
		for _, label := range r.SectionLabels {
			if hintSet[label] {
				matches++
			}
		}
		boost := 1.0
		if matches > 0 {
			boost += 0.2 * float64(matches)
		}
		if tc := r.TierCount(); tc > 1 {
			boost += 0.1 * float64(tc-1)
		}
		r.Score *= boost
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TierCount() != b.TierCount() {
			return a.TierCount() > b.TierCount()
		}
		return a.ChunkID < b.ChunkID
	})
}

// sectionHints reads label intent out of the query text, plus any explicit
// label filters already applied.
func sectionHints(query string, explicit []string) []string {
	q := strings.ToLower(query)
	var hints []string
	for _, h := range []struct {
		keyword string
		label   string
	}{
		{"fair value", "fair_value"},
		{"investment propert", "investment_property"},
		{"balance sheet", "balance_sheet"},
		{"income statement", "income_statement"},
		{"profit", "income_statement"},
		{"cash flow", "cash_flow"},
		{"note", "notes"},
		{"borrowing", "borrowings"},
		{"debt", "borrowings"},
		{"equity", "equity"},
		{"related part", "related_party"},
		{"contingent", "contingencies"},
		{"dividend", "dividend"},
		{"segment", "segment_reporting"},
	} {
		if strings.Contains(q, h.keyword) {
			hints = append(hints, h.label)
		}
	}
	return append(hints, explicit...)
}
