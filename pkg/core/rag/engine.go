// Package rag orchestrates the query path: parse the question, run hybrid
// retrieval, deduplicate, and extract a grounded answer. A failed attempt
// gets exactly one fallback retry with a simplified query before the engine
// reports "not available".
package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"finrag/pkg/core/answer"
	"finrag/pkg/core/dedup"
	"finrag/pkg/core/section"
	"finrag/pkg/core/store"
	"finrag/pkg/models"
)

// Retriever runs hybrid retrieval for a query. Satisfied by retrieval.Engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string, f store.Filter, topK int) ([]models.RetrievalResult, bool, error)
}

// Extractor turns retrieved context into an answer. Satisfied by answer.Extractor.
type Extractor interface {
	Extract(ctx context.Context, parsed models.ParsedQuery, results []models.RetrievalResult) (string, error)
}

// Config tunes the query engine.
type Config struct {
	TopK  int // retrieval depth per tier merge, default 5
	Dedup dedup.Config
}

func (c *Config) defaults() {
	if c.TopK <= 0 {
		c.TopK = 5
	}
}

// NotAvailableAnswer is returned when both the primary attempt and the
// single fallback produced nothing usable.
const NotAvailableAnswer = "The requested information is not available in the indexed filings."

// =============================================================================
// QUERY ENGINE - parse -> retrieve -> dedup -> extract, one fallback
// =============================================================================

type QueryEngine struct {
	parser    *section.QueryParser
	retriever Retriever
	extractor Extractor
	cfg       Config
}

func NewQueryEngine(retriever Retriever, extractor Extractor, cfg Config) *QueryEngine {
	cfg.defaults()
	return &QueryEngine{
		parser:    section.NewQueryParser(),
		retriever: retriever,
		extractor: extractor,
		cfg:       cfg,
	}
}

// Query answers one question against a company's ingested filing. NoCandidates
// and low-confidence answers trigger exactly one retry with a simplified query
// and a widened filter; a second miss returns a NotFound response, not an
// error. Transport and storage errors surface to the caller.
func (e *QueryEngine) Query(ctx context.Context, question, companyID, fiscalYear string) (models.QueryResponse, error) {
	parsed := e.parse(question)
	fmt.Printf("[RAG] Query company=%s type=%s statement=%s note=%q\n",
		companyID, parsed.QueryType, parsed.StatementType, parsed.NoteNumber)

	f := store.Filter{
		CompanyID:     companyID,
		FiscalYear:    fiscalYear,
		StatementType: parsed.StatementType,
		NoteNumber:    parsed.NoteNumber,
	}
	resp, degraded, err := e.attempt(ctx, question, parsed, f)
	if err == nil {
		return resp, nil
	}
	if !retryable(err) {
		return models.QueryResponse{}, err
	}

	// One fallback: simplified question, constraints dropped.
	simplified := simplifyQuery(question)
	fmt.Printf("[RAG] Fallback retry with simplified query: %q\n", simplified)
	fallbackParsed := models.ParsedQuery{Raw: simplified, StatementType: models.StatementUnknown, QueryType: parsed.QueryType}
	wide := store.Filter{CompanyID: companyID, FiscalYear: fiscalYear}

	resp, degraded2, err := e.attempt(ctx, question, fallbackParsed, wide)
	if err == nil {
		return resp, nil
	}
	if !retryable(err) {
		return models.QueryResponse{}, err
	}
	return models.QueryResponse{
		Question: question,
		Answer:   NotAvailableAnswer,
		Degraded: degraded || degraded2,
		NotFound: true,
	}, nil
}

func (e *QueryEngine) parse(question string) models.ParsedQuery {
	return models.ParsedQuery{
		Raw:           question,
		StatementType: e.parser.StatementType(question),
		NoteNumber:    e.parser.NoteNumber(question),
		QueryType:     answer.DetectQueryType(question),
	}
}

// attempt runs one retrieve+dedup+extract pass. question is the original user
// question kept for the response; parsed.Raw may be a simplified variant.
func (e *QueryEngine) attempt(ctx context.Context, question string, parsed models.ParsedQuery, f store.Filter) (models.QueryResponse, bool, error) {
	results, degraded, err := e.retriever.Retrieve(ctx, parsed.Raw, f, e.cfg.TopK)
	if err != nil {
		return models.QueryResponse{}, degraded, err
	}

	deduped := dedup.Deduplicate(results, e.cfg.Dedup)

	answerText, err := e.extractor.Extract(ctx, parsed, deduped)
	if err != nil {
		return models.QueryResponse{}, degraded, err
	}
	return models.QueryResponse{
		Question: question,
		Answer:   answerText,
		Sources:  sources(deduped),
		Degraded: degraded,
	}, degraded, nil
}

// retryable reports whether the error warrants the single fallback attempt.
func retryable(err error) bool {
	return errors.Is(err, models.ErrNoCandidates) || errors.Is(err, models.ErrLowConfidenceAnswer)
}

func sources(results []models.RetrievalResult) []models.Source {
	out := make([]models.Source, 0, len(results))
	for _, r := range results {
		tiers := make([]string, 0, len(r.Tiers))
		for _, t := range r.Tiers {
			tiers = append(tiers, string(t))
		}
		out = append(out, models.Source{
			ChunkID:     r.ChunkID,
			PageNumbers: r.PageNumbers,
			NoteNumber:  r.NoteNumber,
			Score:       r.Score,
			Tier:        strings.Join(tiers, "+"),
		})
	}
	return out
}

// qualifierPhrase matches section qualifiers and note references so the
// fallback query searches without them.
var qualifierPhrase = regexp.MustCompile(`(?i)\b(?:in|from|under|as\s+per)\s+(?:the\s+)?(?:consolidated|standalone)\s+financial\s+statements?\b|\b(?:consolidated|standalone)\b|\bnote\s+\d+(?:\.\d+)?[A-Za-z]?\b`)

func simplifyQuery(question string) string {
	simplified := qualifierPhrase.ReplaceAllString(question, " ")
	simplified = strings.Join(strings.Fields(simplified), " ")
	simplified = strings.TrimSpace(simplified)
	if simplified == "" {
		return question
	}
	return simplified
}
