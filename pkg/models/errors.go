package models

import "errors"

// Error taxonomy for the ingestion and query pipelines. Query-time errors
// degrade rather than fail; storage conflicts are the exception and always
// surface to the caller.
var (
	// ErrBoundaryAmbiguous signals the chunker could not trust the supplied
	// boundary list and fell back to paragraph splitting. Warning-level:
	// ingestion proceeds, resulting chunks carry the Degraded flag.
	ErrBoundaryAmbiguous = errors.New("chunk boundaries ambiguous, degraded to paragraph splitting")

	// ErrEmbeddingUnavailable signals the embedding service could not be
	// reached. Retrieval degrades to keyword-only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrNoCandidates signals both retrieval tiers returned empty. Surfaced
	// explicitly so the caller can present a clear "not found" state; never
	// replaced with a synthetic chunk.
	ErrNoCandidates = errors.New("no candidate chunks in any retrieval tier")

	// ErrLowConfidenceAnswer signals the model returned an empty, hedged, or
	// question-restating response. Triggers exactly one fallback retry with a
	// simplified query.
	ErrLowConfidenceAnswer = errors.New("low confidence answer from model")

	// ErrStorageConflict signals an atomic replace of a company+fiscal_year
	// chunk set could not complete. The transaction is rolled back so prior
	// data stays intact; this error is always reported, never tolerated.
	ErrStorageConflict = errors.New("storage conflict during chunk replacement")
)
