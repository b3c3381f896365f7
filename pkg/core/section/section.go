// Package section builds the document-level section map used to tag chunks
// with their statement type, and parses the same structural signals out of
// user questions. Tagging is strictly by span containment of the chunk's
// start offset; no per-chunk keyword sniffing.
package section

import (
	"regexp"
	"strings"

	"finrag/pkg/core/chunker"
	"finrag/pkg/models"
)

// =============================================================================
// SECTION CONTEXT DETECTOR - Whole-document statement-type span builder
// =============================================================================

// sectionHeader matches a statement-section heading at the start of a line.
// Group 1 is a leading CONSOLIDATED/STANDALONE qualifier, group 3 the
// qualifier embedded in a "NOTES TO THE ... FINANCIAL STATEMENTS" heading.
var sectionHeader = regexp.MustCompile(`(?mi)^\s*(CONSOLIDATED|STANDALONE)?\s*` +
	`(BALANCE\s+SHEET|STATEMENT\s+OF\s+(?:PROFIT\s+AND\s+LOSS|FINANCIAL\s+POSITION|CASH\s+FLOWS?|COMPREHENSIVE\s+INCOME|CHANGES\s+IN\s+EQUITY)|` +
	`CASH\s+FLOW\s+STATEMENT|` +
	`NOTES?\s+(?:TO|FORMING\s+PART\s+OF)\s+(?:THE\s+)?(CONSOLIDATED|STANDALONE)?\s*FINANCIAL\s+STATEMENTS)`)

// nearbyWindow is how far around an unqualified heading the detector looks
// for a consolidated/standalone mention before giving up.
const nearbyWindow = 150

var (
	consolidatedWord = regexp.MustCompile(`(?i)\bconsolidated\b`)
	standaloneWord   = regexp.MustCompile(`(?i)\bstandalone\b|\bseparate\s+financial\s+statements\b`)
)

// ContextDetector turns a full filing document into contiguous statement-type
// spans in one pass.
type ContextDetector struct{}

// NewContextDetector creates a section context detector.
func NewContextDetector() *ContextDetector {
	return &ContextDetector{}
}

// DetectSpans scans the whole document once. Each heading match opens a span
// closed by the next match or end of document; regions before the first
// heading carry StatementUnknown. The returned spans are non-overlapping and
// together cover [0, len(fullText)).
func (d *ContextDetector) DetectSpans(fullText string) []models.SectionSpan {
	if fullText == "" {
		return nil
	}
	locs := sectionHeader.FindAllStringSubmatchIndex(fullText, -1)
	if len(locs) == 0 {
		return []models.SectionSpan{{Start: 0, End: len(fullText), StatementType: models.StatementUnknown}}
	}

	var spans []models.SectionSpan
	if locs[0][0] > 0 {
		spans = append(spans, models.SectionSpan{Start: 0, End: locs[0][0], StatementType: models.StatementUnknown})
	}
	for i, loc := range locs {
		end := len(fullText)
		if i < len(locs)-1 {
			end = locs[i+1][0]
		}
		spans = append(spans, models.SectionSpan{
			Start:         loc[0],
			End:           end,
			StatementType: d.headingStatementType(fullText, loc),
			SectionName:   normalizeHeading(fullText[loc[0]:loc[1]]),
		})
	}
	return spans
}

// headingStatementType resolves the statement type of one heading match: an
// explicit qualifier wins; otherwise the text around the heading decides;
// conflicting or absent signals stay unknown rather than guessing "both".
func (d *ContextDetector) headingStatementType(fullText string, loc []int) models.StatementType {
	for _, g := range []int{2, 6} { // group 1 and group 3 submatch indexes
		if loc[g] >= 0 {
			switch strings.ToUpper(fullText[loc[g]:loc[g+1]]) {
			case "CONSOLIDATED":
				return models.StatementConsolidated
			case "STANDALONE":
				return models.StatementStandalone
			}
		}
	}

	lo := loc[0] - nearbyWindow
	if lo < 0 {
		lo = 0
	}
	hi := loc[1] + nearbyWindow
	if hi > len(fullText) {
		hi = len(fullText)
	}
	window := fullText[lo:hi]
	c := consolidatedWord.MatchString(window)
	s := standaloneWord.MatchString(window)
	switch {
	case c && !s:
		return models.StatementConsolidated
	case s && !c:
		return models.StatementStandalone
	default:
		return models.StatementUnknown
	}
}

// StatementTypeAt returns the statement type of the span containing offset,
// or StatementUnknown when no span does.
func StatementTypeAt(spans []models.SectionSpan, offset int) models.StatementType {
	for _, s := range spans {
		if s.Contains(offset) {
			return s.StatementType
		}
	}
	return models.StatementUnknown
}

func normalizeHeading(h string) string {
	return strings.Join(strings.Fields(h), " ")
}

// =============================================================================
// QUERY PARSER - Structural signals extracted from user questions
// =============================================================================

var (
	queryConsolidated = regexp.MustCompile(`(?i)\bconsolidated\b|\bgroup[\s-]level\b`)
	queryStandalone   = regexp.MustCompile(`(?i)\bstandalone\b|\bseparate\s+financial\s+statements?\b|\bparent\s+(?:company\s+)?only\b`)
)

// QueryParser extracts statement type and note number from a question using
// the same note pattern set ingestion classifies with.
type QueryParser struct {
	notes *chunker.NoteMatcher
}

// NewQueryParser creates a query parser with the shared note pattern set.
func NewQueryParser() *QueryParser {
	return &QueryParser{notes: chunker.NewNoteMatcher()}
}

// StatementType reads an explicit consolidated/standalone ask out of the
// question. Questions naming neither, or both, get StatementUnknown and are
// not filtered on statement type.
func (p *QueryParser) StatementType(question string) models.StatementType {
	c := queryConsolidated.MatchString(question)
	s := queryStandalone.MatchString(question)
	switch {
	case c && !s:
		return models.StatementConsolidated
	case s && !c:
		return models.StatementStandalone
	default:
		return models.StatementUnknown
	}
}

// NoteNumber returns the normalized note reference from the question, or
// empty when the question names none.
func (p *QueryParser) NoteNumber(question string) string {
	return p.notes.DetectNoteReference(question)
}
