// Package models contains the shared data types for the filing RAG engine:
// chunks, section spans, retrieval results, parsed queries, and the public
// API request/response shapes.
package models

import "time"

// ChunkType identifies the structural kind of a chunk.
type ChunkType string

const (
	ChunkTypeTable     ChunkType = "table"
	ChunkTypeParagraph ChunkType = "paragraph"
	ChunkTypeList      ChunkType = "list"
	ChunkTypeHeading   ChunkType = "heading"
)

// StatementType distinguishes consolidated (group-level) from standalone
// (single-entity) financial statements. "both" is an escape hatch for
// genuinely ambiguous chunks and should stay near zero on well-formed
// documents; "unknown" covers regions outside any detected section.
type StatementType string

const (
	StatementConsolidated StatementType = "consolidated"
	StatementStandalone   StatementType = "standalone"
	StatementBoth         StatementType = "both"
	StatementUnknown      StatementType = "unknown"
)

// Chunk is the atomic retrievable unit. Chunks are immutable once stored:
// re-ingestion of the same company+fiscal_year replaces all chunks for that
// key rather than mutating rows in place.
type Chunk struct {
	ChunkID       string        `json:"chunk_id"`
	CompanyID     string        `json:"company_id"`
	FiscalYear    string        `json:"fiscal_year"`
	Text          string        `json:"text"`
	ChunkType     ChunkType     `json:"chunk_type"`
	SectionLabels []string      `json:"section_labels"`
	NoteNumber    string        `json:"note_number,omitempty"` // normalized, e.g. "Note 10", "Note 3A", "Note 12.1"
	StatementType StatementType `json:"statement_type"`
	PageNumbers   []int         `json:"page_numbers"`
	Embedding     []float32     `json:"-"`
	IsCritical    bool          `json:"is_critical"`
	Degraded      bool          `json:"degraded,omitempty"` // set when the chunker fell back to paragraph splitting
	CreatedAt     time.Time     `json:"created_at"`

	// StartOffset/EndOffset locate the chunk in the full document text.
	// Used for section-span containment tagging; not persisted.
	StartOffset int `json:"-"`
	EndOffset   int `json:"-"`
}

// SectionSpan is a contiguous region of the full document text tagged with a
// statement type. Spans produced by the section detector are non-overlapping
// and together cover the whole document; regions under no detected header
// carry StatementUnknown.
type SectionSpan struct {
	Start         int
	End           int
	StatementType StatementType
	SectionName   string // header text that opened the span, empty for unknown gaps
}

// Contains reports whether the given document offset falls inside the span.
func (s SectionSpan) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// RetrievalTier identifies which search tier produced a result.
type RetrievalTier string

const (
	TierVector  RetrievalTier = "vector"
	TierKeyword RetrievalTier = "keyword"
)

// RetrievalResult is one scored candidate from a retrieval tier. The same
// chunk may appear once per tier until deduplication; Tiers accumulates the
// tiers a merged result was seen in.
type RetrievalResult struct {
	ChunkID       string
	Text          string
	ChunkType     ChunkType
	SectionLabels []string
	NoteNumber    string
	StatementType StatementType
	PageNumbers   []int
	Score         float64
	Tier          RetrievalTier
	Tiers         []RetrievalTier
}

// TierCount returns how many distinct tiers surfaced this result.
func (r RetrievalResult) TierCount() int {
	if len(r.Tiers) > 0 {
		return len(r.Tiers)
	}
	if r.Tier != "" {
		return 1
	}
	return 0
}

// QueryType classifies what kind of answer a question is after.
type QueryType string

const (
	QueryObjective  QueryType = "objective"  // exact figures, amounts, rates
	QuerySubjective QueryType = "subjective" // methodology, policy, rationale
	QueryMixed      QueryType = "mixed"
)

// ParsedQuery is the structural reading of a user question. It is derived
// per query and never persisted.
type ParsedQuery struct {
	Raw           string
	StatementType StatementType // StatementUnknown when the question does not specify
	NoteNumber    string        // normalized "Note N" form, empty when absent
	QueryType     QueryType
}

// Source is one cited chunk in a query response.
type Source struct {
	ChunkID     string  `json:"chunk_id"`
	PageNumbers []int   `json:"page_numbers"`
	NoteNumber  string  `json:"note_number,omitempty"`
	Score       float64 `json:"score"`
	Tier        string  `json:"tier"`
}

// QueryResponse is the engine's answer to one question. Degraded is set when
// a retrieval tier failed or timed out and the answer was produced from the
// remaining tier only. NotFound is set when both the primary and the single
// fallback attempt produced no usable answer.
type QueryResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
	Degraded bool     `json:"degraded"`
	NotFound bool     `json:"not_found"`
}

// IngestStats summarizes one document ingestion.
type IngestStats struct {
	CompanyID     string   `json:"company_id"`
	FiscalYear    string   `json:"fiscal_year"`
	PagesSeen     int      `json:"pages_seen"`
	ChunksCreated int      `json:"chunks_created"`
	ChunksStored  int      `json:"chunks_stored"`
	Warnings      []string `json:"warnings"`
}

// Page is one unit of extracted document text with its page number, as
// delivered by the upstream extraction collaborator.
type Page struct {
	Number int
	Text   string
}
