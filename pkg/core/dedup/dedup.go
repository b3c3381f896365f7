// Package dedup collapses duplicate and near-duplicate retrieval results so
// the extraction prompt never sees the same disclosure twice (e.g. a note
// repeated across the standalone and consolidated statements).
package dedup

import (
	"sort"
	"strings"

	"finrag/pkg/models"
)

// Config tunes deduplication. Zero fields take the defaults.
type Config struct {
	// SimilarityThreshold is the text-overlap ratio at or above which two
	// chunks count as duplicates. Calibrated high so distinct chunks that
	// merely share boilerplate survive.
	SimilarityThreshold float64
	// MaxChunks caps the final result count.
	MaxChunks int
	// MaxPerPage caps chunks sharing the same primary page.
	MaxPerPage int
}

func (c *Config) defaults() {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.75
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = 5
	}
	if c.MaxPerPage <= 0 {
		c.MaxPerPage = 2
	}
}

// Deduplicate removes same-chunk_id and near-duplicate results, keeping the
// higher-scored instance (more tiers on a score tie), then enforces page
// diversity and the final cap. The input is not modified. Running the
// output through again returns it unchanged.
func Deduplicate(results []models.RetrievalResult, cfg Config) []models.RetrievalResult {
	cfg.defaults()
	if len(results) == 0 {
		return nil
	}

	sorted := make([]models.RetrievalResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TierCount() != b.TierCount() {
			return a.TierCount() > b.TierCount()
		}
		return a.ChunkID < b.ChunkID
	})

	unique := collapseSimilar(sorted, cfg.SimilarityThreshold, cfg.MaxChunks*2)
	diverse := pageDiversity(unique, cfg.MaxPerPage)
	if len(diverse) > cfg.MaxChunks {
		diverse = diverse[:cfg.MaxChunks]
	}
	return diverse
}

// collapseSimilar walks results best-first, dropping any result whose text
// overlaps an already-kept result at or above the threshold, or whose
// chunk_id was already kept.
func collapseSimilar(sorted []models.RetrievalResult, threshold float64, limit int) []models.RetrievalResult {
	seenIDs := make(map[string]bool)
	var kept []models.RetrievalResult
	for _, r := range sorted {
		if seenIDs[r.ChunkID] {
			continue
		}
		duplicate := false
		for _, k := range kept {
			if textSimilarity(r.Text, k.Text) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		seenIDs[r.ChunkID] = true
		kept = append(kept, r)
		if len(kept) >= limit {
			break
		}
	}
	return kept
}

// pageDiversity limits how many results share the same primary page.
// Results without page numbers pass through.
func pageDiversity(results []models.RetrievalResult, maxPerPage int) []models.RetrievalResult {
	counts := make(map[int]int)
	var out []models.RetrievalResult
	for _, r := range results {
		if len(r.PageNumbers) == 0 {
			out = append(out, r)
			continue
		}
		page := r.PageNumbers[0]
		if counts[page] >= maxPerPage {
			continue
		}
		counts[page]++
		out = append(out, r)
	}
	return out
}

// textSimilarity is the word-bigram Dice coefficient of the two texts,
// case-folded: 2*|common bigrams| / (|bigrams a| + |bigrams b|).
func textSimilarity(a, b string) float64 {
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
			return 1
		}
		return 0
	}
	common := 0
	for g, n := range ba {
		if m := bb[g]; m > 0 {
			if n < m {
				common += n
			} else {
				common += m
			}
		}
	}
	return 2 * float64(common) / float64(total(ba)+total(bb))
}

func bigrams(s string) map[string]int {
	words := strings.Fields(strings.ToLower(s))
	grams := make(map[string]int)
	if len(words) == 1 {
		grams[words[0]]++
		return grams
	}
	for i := 0; i+1 < len(words); i++ {
		grams[words[i]+" "+words[i+1]]++
	}
	return grams
}

func total(grams map[string]int) int {
	n := 0
	for _, v := range grams {
		n += v
	}
	return n
}
