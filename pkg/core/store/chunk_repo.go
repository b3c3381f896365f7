package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"finrag/pkg/models"
)

// Filter narrows a search to the chunks a query's structural parse allows.
// Zero fields mean no constraint. All filtering happens in SQL, before
// scoring, so an explicit note_number can never be displaced by a
// semantically-closer chunk from another note.
type Filter struct {
	CompanyID     string
	FiscalYear    string
	StatementType models.StatementType
	NoteNumber    string
	SectionLabels []string
}

func (f Filter) apply(sql *strings.Builder, args *[]interface{}) {
	add := func(clause string, v interface{}) {
		*args = append(*args, v)
		fmt.Fprintf(sql, " AND "+clause, len(*args))
	}
	if f.CompanyID != "" {
		add("company_id = $%d", f.CompanyID)
	}
	if f.FiscalYear != "" {
		add("fiscal_year = $%d", f.FiscalYear)
	}
	if f.StatementType != "" && f.StatementType != models.StatementUnknown {
		add("statement_type = $%d", string(f.StatementType))
	}
	if f.NoteNumber != "" {
		add("note_number = $%d", f.NoteNumber)
	}
	if len(f.SectionLabels) > 0 {
		add("section_labels && $%d", f.SectionLabels)
	}
}

// ChunkRepo stores and searches filing chunks in Postgres. Vector search
// rides the pgvector HNSW index; keyword search the generated tsvector GIN
// index.
type ChunkRepo struct {
	pool *pgxpool.Pool
	dims int
}

// NewChunkRepo creates a chunk repository. dims is the embedding length the
// schema is created with.
func NewChunkRepo(pool *pgxpool.Pool, dims int) *ChunkRepo {
	return &ChunkRepo{pool: pool, dims: dims}
}

// EnsureSchema creates the chunk table and its indexes if absent. The
// search_vector column is generated from chunk_text and never independently
// writable.
func (r *ChunkRepo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS filing_chunks (
			chunk_id       TEXT PRIMARY KEY,
			company_id     TEXT NOT NULL,
			fiscal_year    TEXT NOT NULL,
			chunk_text     TEXT NOT NULL,
			chunk_type     TEXT NOT NULL,
			section_labels TEXT[] NOT NULL DEFAULT '{}',
			note_number    TEXT NOT NULL DEFAULT '',
			statement_type TEXT NOT NULL DEFAULT 'unknown',
			page_numbers   INT[] NOT NULL DEFAULT '{}',
			is_critical    BOOLEAN NOT NULL DEFAULT FALSE,
			degraded       BOOLEAN NOT NULL DEFAULT FALSE,
			embedding      vector(%d),
			search_vector  tsvector GENERATED ALWAYS AS (to_tsvector('english', chunk_text)) STORED,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, r.dims),
		`CREATE INDEX IF NOT EXISTS idx_filing_chunks_embedding ON filing_chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_filing_chunks_search ON filing_chunks USING gin (search_vector)`,
		`CREATE INDEX IF NOT EXISTS idx_filing_chunks_company ON filing_chunks (company_id, fiscal_year)`,
		`CREATE INDEX IF NOT EXISTS idx_filing_chunks_statement ON filing_chunks (statement_type)`,
		`CREATE INDEX IF NOT EXISTS idx_filing_chunks_note ON filing_chunks (note_number)`,
		`CREATE INDEX IF NOT EXISTS idx_filing_chunks_labels ON filing_chunks USING gin (section_labels)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}

// ReplaceChunks atomically swaps all chunks for one company+fiscal_year in a
// single transaction. Any failure rolls back, leaves the prior chunks
// intact, and surfaces ErrStorageConflict.
func (r *ChunkRepo) ReplaceChunks(ctx context.Context, companyID, fiscalYear string, chunks []models.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace for %s FY%s: %v: %w", companyID, fiscalYear, err, models.ErrStorageConflict)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM filing_chunks WHERE company_id = $1 AND fiscal_year = $2`,
		companyID, fiscalYear); err != nil {
		return fmt.Errorf("delete prior chunks for %s FY%s: %v: %w", companyID, fiscalYear, err, models.ErrStorageConflict)
	}

	const insert = `
		INSERT INTO filing_chunks (
			chunk_id, company_id, fiscal_year, chunk_text, chunk_type,
			section_labels, note_number, statement_type, page_numbers,
			is_critical, degraded, embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::vector)`
	for _, ch := range chunks {
		labels := ch.SectionLabels
		if labels == nil {
			labels = []string{}
		}
		pages := ch.PageNumbers
		if pages == nil {
			pages = []int{}
		}
		var embedding interface{}
		if len(ch.Embedding) > 0 {
			embedding = vectorLiteral(ch.Embedding)
		}
		if _, err := tx.Exec(ctx, insert,
			ch.ChunkID, companyID, fiscalYear, ch.Text, string(ch.ChunkType),
			labels, ch.NoteNumber, string(ch.StatementType), pages,
			ch.IsCritical, ch.Degraded, embedding); err != nil {
			return fmt.Errorf("insert chunk %s: %v: %w", ch.ChunkID, err, models.ErrStorageConflict)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace for %s FY%s: %v: %w", companyID, fiscalYear, err, models.ErrStorageConflict)
	}
	return nil
}

// VectorSearch returns the chunks nearest the query embedding by cosine
// distance, filters applied in SQL.
func (r *ChunkRepo) VectorSearch(ctx context.Context, queryEmbedding []float32, f Filter, limit int) ([]models.RetrievalResult, error) {
	var sql strings.Builder
	args := []interface{}{vectorLiteral(queryEmbedding)}
	sql.WriteString(`
		SELECT chunk_id, chunk_text, chunk_type, section_labels, note_number,
		       statement_type, page_numbers,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM filing_chunks
		WHERE embedding IS NOT NULL`)
	f.apply(&sql, &args)
	args = append(args, limit)
	fmt.Fprintf(&sql, " ORDER BY embedding <=> $1::vector LIMIT $%d", len(args))

	return r.queryResults(ctx, sql.String(), args, models.TierVector)
}

// KeywordSearch returns the chunks matching the query's terms, ranked by
// ts_rank. It is the tier that still works when embeddings are unavailable.
func (r *ChunkRepo) KeywordSearch(ctx context.Context, query string, f Filter, limit int) ([]models.RetrievalResult, error) {
	var sql strings.Builder
	args := []interface{}{query}
	sql.WriteString(`
		SELECT chunk_id, chunk_text, chunk_type, section_labels, note_number,
		       statement_type, page_numbers,
		       ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank
		FROM filing_chunks
		WHERE search_vector @@ plainto_tsquery('english', $1)`)
	f.apply(&sql, &args)
	args = append(args, limit)
	fmt.Fprintf(&sql, " ORDER BY rank DESC LIMIT $%d", len(args))

	return r.queryResults(ctx, sql.String(), args, models.TierKeyword)
}

func (r *ChunkRepo) queryResults(ctx context.Context, sql string, args []interface{}, tier models.RetrievalTier) ([]models.RetrievalResult, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", tier, err)
	}
	defer rows.Close()

	var results []models.RetrievalResult
	for rows.Next() {
		var res models.RetrievalResult
		var chunkType, statementType string
		var pages []int32
		if err := rows.Scan(&res.ChunkID, &res.Text, &chunkType, &res.SectionLabels,
			&res.NoteNumber, &statementType, &pages, &res.Score); err != nil {
			return nil, fmt.Errorf("%s search scan failed: %w", tier, err)
		}
		res.ChunkType = models.ChunkType(chunkType)
		res.StatementType = models.StatementType(statementType)
		res.PageNumbers = make([]int, len(pages))
		for i, p := range pages {
			res.PageNumbers[i] = int(p)
		}
		res.Tier = tier
		res.Tiers = []models.RetrievalTier{tier}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s search rows failed: %w", tier, err)
	}
	return results, nil
}

// CompanyStats summarizes what is ingested for one company.
type CompanyStats struct {
	CompanyID   string   `json:"company_id"`
	FiscalYears []string `json:"fiscal_years"`
	ChunkCount  int      `json:"chunk_count"`
}

// ListCompanies returns every ingested company with its fiscal years and
// chunk count.
func (r *ChunkRepo) ListCompanies(ctx context.Context) ([]CompanyStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT company_id, array_agg(DISTINCT fiscal_year ORDER BY fiscal_year), count(*)
		FROM filing_chunks
		GROUP BY company_id
		ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("list companies failed: %w", err)
	}
	defer rows.Close()

	var out []CompanyStats
	for rows.Next() {
		var cs CompanyStats
		if err := rows.Scan(&cs.CompanyID, &cs.FiscalYears, &cs.ChunkCount); err != nil {
			return nil, fmt.Errorf("list companies scan failed: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// vectorLiteral renders an embedding in pgvector's text format.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
