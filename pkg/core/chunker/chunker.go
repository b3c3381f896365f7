package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"finrag/pkg/models"
)

// =============================================================================
// ADAPTIVE CHUNKER - Token-targeted chunking that respects hard boundaries
// =============================================================================

// Config tunes the adaptive chunker. Zero fields take the defaults applied
// by New.
type Config struct {
	// MinTokens is the floor below which a soft break is never taken.
	MinTokens int
	// MaxTokens is the soft ceiling: once exceeded, the chunk closes at the
	// next safe sentence or paragraph break. Hard boundaries always win.
	MaxTokens int
	// CollapseTokens is the size at or below which a segment is folded into
	// its neighbor instead of becoming its own chunk.
	CollapseTokens int
}

// AdaptiveChunker splits a joined filing document into retrieval chunks. It
// never splits across a main note header or a statement-section header, and
// always emits tables whole.
type AdaptiveChunker struct {
	cfg      Config
	notes    *NoteMatcher
	detector *Detector
}

// New builds a chunker, filling zero config fields with the defaults
// (300-token floor, 400-token ceiling, 15-token collapse threshold).
func New(cfg Config) *AdaptiveChunker {
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = 300
	}
	if cfg.MaxTokens <= cfg.MinTokens {
		cfg.MaxTokens = cfg.MinTokens + 100
	}
	if cfg.CollapseTokens <= 0 {
		cfg.CollapseTokens = 15
	}
	notes := NewNoteMatcher()
	return &AdaptiveChunker{cfg: cfg, notes: notes, detector: NewDetector(notes)}
}

// docState carries the per-document context every emitted chunk shares.
type docState struct {
	fullText   string
	ranges     []pageRange
	companyID  string
	fiscalYear string
	degraded   bool
}

// segment is a run of document text between two hard boundaries.
type segment struct {
	start, end int
	table      bool
	// noteEdge marks a segment opened by a main note header; a tiny
	// preceding segment must not fold forward into it.
	noteEdge bool
}

// piece is a half-open offset span inside some text.
type piece struct {
	start, end int
}

// ChunkDocument splits the extracted pages of one filing into chunks. It
// returns the chunks plus human-readable warnings; malformed structure
// degrades to plain paragraph chunking (with per-chunk Degraded set) rather
// than failing.
func (c *AdaptiveChunker) ChunkDocument(companyID, fiscalYear string, pages []models.Page) ([]models.Chunk, []string) {
	fullText, ranges := JoinPages(pages)
	if strings.TrimSpace(fullText) == "" {
		return nil, nil
	}
	d := &docState{fullText: fullText, ranges: ranges, companyID: companyID, fiscalYear: fiscalYear}

	var warnings []string
	segs, err := c.segment(fullText, c.detector.Detect(fullText))
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("boundary detection failed (%v); falling back to paragraph chunking", err))
		fmt.Printf("[CHUNKER] %s FY%s: %s\n", companyID, fiscalYear, warnings[len(warnings)-1])
		d.degraded = true
		return c.paragraphFallback(d), warnings
	}
	segs = c.collapse(fullText, segs)

	noteBounds := c.notes.DetectNoteBoundaries(fullText)
	var chunks []models.Chunk
	for _, seg := range segs {
		note := noteAt(noteBounds, seg.start)
		if seg.table {
			chunks = append(chunks, c.build(d, seg.start, seg.end, "", models.ChunkTypeTable, note))
			continue
		}
		chunks = append(chunks, c.emitText(d, seg, note)...)
	}

	if len(chunks) == 0 {
		warnings = append(warnings, "structured pass produced no chunks; falling back to paragraph chunking")
		d.degraded = true
		return c.paragraphFallback(d), warnings
	}
	return chunks, warnings
}

// emitText chunks one non-table segment. Oversized main notes are split at
// their dotted sub-note headings first, each sub-note chunk carrying the
// parent note header line for context.
func (c *AdaptiveChunker) emitText(d *docState, seg segment, note string) []models.Chunk {
	text := d.fullText[seg.start:seg.end]

	if note != "" && !strings.Contains(note, ".") && tokenCount(text) > c.cfg.MaxTokens {
		parent := strings.TrimPrefix(note, "Note ")
		if subs := c.notes.DetectSubNotes(text, parent); len(subs) > 0 {
			header := firstLine(text)
			var chunks []models.Chunk
			if subs[0].Start > 0 {
				for _, p := range c.splitBySize(text[:subs[0].Start]) {
					chunks = append(chunks, c.build(d, seg.start+p.start, seg.start+p.end, "", "", note))
				}
			}
			for _, sn := range subs {
				snNote := "Note " + sn.SubNote
				for i, p := range c.splitBySize(text[sn.Start:sn.End]) {
					prefix := ""
					if i == 0 && header != "" {
						prefix = header + "\n"
					}
					chunks = append(chunks, c.build(d, seg.start+sn.Start+p.start, seg.start+sn.Start+p.end, prefix, "", snNote))
				}
			}
			return chunks
		}
	}

	var chunks []models.Chunk
	for _, p := range c.splitBySize(text) {
		chunks = append(chunks, c.build(d, seg.start+p.start, seg.start+p.end, "", "", note))
	}
	return chunks
}

// segment cuts the document at the hard boundaries. Unbalanced table edges
// mean the boundary structure cannot be trusted.
func (c *AdaptiveChunker) segment(fullText string, boundaries []Boundary) ([]segment, error) {
	var segs []segment
	prev := 0
	inTable := false
	opened := BoundaryKind("")
	for _, b := range boundaries {
		if b.Offset < prev || b.Offset > len(fullText) {
			return nil, fmt.Errorf("boundary offset %d out of order: %w", b.Offset, models.ErrBoundaryAmbiguous)
		}
		if b.Offset > prev && strings.TrimSpace(fullText[prev:b.Offset]) != "" {
			segs = append(segs, segment{start: prev, end: b.Offset, table: inTable, noteEdge: opened == BoundaryNoteHeader})
		}
		switch b.Kind {
		case BoundaryTableStart:
			if inTable {
				return nil, fmt.Errorf("nested table start at %d: %w", b.Offset, models.ErrBoundaryAmbiguous)
			}
			inTable = true
		case BoundaryTableEnd:
			if !inTable {
				return nil, fmt.Errorf("table end without start at %d: %w", b.Offset, models.ErrBoundaryAmbiguous)
			}
			inTable = false
		}
		prev = b.Offset
		opened = b.Kind
	}
	if prev < len(fullText) && strings.TrimSpace(fullText[prev:]) != "" {
		segs = append(segs, segment{start: prev, end: len(fullText), table: inTable, noteEdge: opened == BoundaryNoteHeader})
	}
	return segs, nil
}

// collapse folds near-empty segments into a neighbor: forward into the next
// segment unless that would cross a note header or enter a table, otherwise
// backward into the previous one. Tables never absorb or shed text.
func (c *AdaptiveChunker) collapse(fullText string, segs []segment) []segment {
	var out []segment
	for i := 0; i < len(segs); i++ {
		s := segs[i]
		if !s.table && tokenCount(fullText[s.start:s.end]) <= c.cfg.CollapseTokens {
			if i+1 < len(segs) && !segs[i+1].table && !segs[i+1].noteEdge {
				segs[i+1].start = s.start
				segs[i+1].noteEdge = s.noteEdge
				continue
			}
			if len(out) > 0 && !out[len(out)-1].table {
				out[len(out)-1].end = s.end
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// criticalDisclosure marks paragraphs whose meaning depends on staying
// intact. They are never split at sentence ends, whatever their size.
var criticalDisclosure = regexp.MustCompile(`(?i)\b(?:fair\s+value\s+(?:measurement|hierarchy)|` +
	`going\s+concern|impairment\s+(?:loss|testing|assessment)|contingent\s+liabilit|` +
	`related\s+part(?:y|ies)|significant\s+accounting\s+(?:policies|estimates|judge?ments))`)

// splitBySize accumulates paragraphs toward the token target, breaking once
// the ceiling would be exceeded and the floor has been reached. Paragraphs
// that alone exceed the ceiling are pre-split at sentence ends, except
// critical disclosures, which stay whole.
func (c *AdaptiveChunker) splitBySize(text string) []piece {
	var units []piece
	for _, p := range paragraphSpans(text) {
		if tokenCount(text[p.start:p.end]) > c.cfg.MaxTokens && !criticalDisclosure.MatchString(text[p.start:p.end]) {
			units = append(units, sentenceSpans(text, p)...)
		} else {
			units = append(units, p)
		}
	}

	var out []piece
	cur := piece{start: -1}
	curTokens := 0
	for _, u := range units {
		t := tokenCount(text[u.start:u.end])
		switch {
		case cur.start < 0:
			cur, curTokens = u, t
		case curTokens+t > c.cfg.MaxTokens && curTokens >= c.cfg.MinTokens:
			out = append(out, cur)
			cur, curTokens = u, t
		default:
			cur.end = u.end
			curTokens += t
		}
	}
	if cur.start >= 0 {
		out = append(out, cur)
	}
	return out
}

// paragraphFallback is the degraded path: plain size-targeted paragraph
// chunking over the whole document, no structural tagging.
func (c *AdaptiveChunker) paragraphFallback(d *docState) []models.Chunk {
	var chunks []models.Chunk
	for _, p := range c.splitBySize(d.fullText) {
		chunks = append(chunks, c.build(d, p.start, p.end, "", "", ""))
	}
	return chunks
}

// build materializes one chunk from a document span. An empty chunk type is
// inferred from the text shape.
func (c *AdaptiveChunker) build(d *docState, start, end int, prefix string, ctype models.ChunkType, note string) models.Chunk {
	text := strings.TrimSpace(d.fullText[start:end])
	if prefix != "" {
		text = prefix + text
	}
	if ctype == "" {
		ctype = classifyChunkType(text)
	}
	return models.Chunk{
		ChunkID:       uuid.New().String(),
		CompanyID:     d.companyID,
		FiscalYear:    d.fiscalYear,
		Text:          text,
		ChunkType:     ctype,
		NoteNumber:    note,
		StatementType: models.StatementUnknown,
		PageNumbers:   pagesForSpan(d.ranges, start, end),
		IsCritical:    criticalDisclosure.MatchString(text),
		Degraded:      d.degraded,
		CreatedAt:     time.Now().UTC(),
		StartOffset:   start,
		EndOffset:     end,
	}
}

// noteAt returns the note containing the given document offset, or empty.
func noteAt(bounds []NoteBoundary, offset int) string {
	for _, nb := range bounds {
		if offset >= nb.Start && offset < nb.End {
			return nb.NoteNumber
		}
	}
	return ""
}

func firstLine(text string) string {
	text = strings.TrimLeft(text, " \t\r\n")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}

// tokenCount approximates tokens as whitespace-separated words, which tracks
// model tokenizers closely enough for chunk sizing.
func tokenCount(s string) int {
	return len(strings.Fields(s))
}

// paragraphSpans returns the non-blank blank-line-separated spans of text.
func paragraphSpans(text string) []piece {
	var out []piece
	off := 0
	for _, para := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(para) != "" {
			out = append(out, piece{start: off, end: off + len(para)})
		}
		off += len(para) + 2
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]?\s+`)

// sentenceSpans cuts one paragraph span at sentence ends. A paragraph with
// no detectable sentence ends is returned whole.
func sentenceSpans(text string, p piece) []piece {
	seg := text[p.start:p.end]
	locs := sentenceEnd.FindAllStringIndex(seg, -1)
	var out []piece
	prev := 0
	for _, loc := range locs {
		end := loc[1]
		for end > loc[0] && (seg[end-1] == ' ' || seg[end-1] == '\n' || seg[end-1] == '\t' || seg[end-1] == '\r') {
			end--
		}
		if end > prev {
			out = append(out, piece{start: p.start + prev, end: p.start + end})
		}
		prev = loc[1]
	}
	if prev < len(seg) && strings.TrimSpace(seg[prev:]) != "" {
		out = append(out, piece{start: p.start + prev, end: p.end})
	}
	if len(out) == 0 {
		out = []piece{p}
	}
	return out
}

var bulletLine = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// classifyChunkType infers the structural kind of a chunk from its text.
func classifyChunkType(text string) models.ChunkType {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 1 && tokenCount(text) <= 12 {
		return models.ChunkTypeHeading
	}
	bullets := 0
	for _, l := range lines {
		if bulletLine.MatchString(l) {
			bullets++
		}
	}
	if len(lines) >= 2 && bullets*2 >= len(lines) {
		return models.ChunkTypeList
	}
	return models.ChunkTypeParagraph
}
