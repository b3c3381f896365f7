package chunker

import (
	"regexp"
	"sort"
	"strings"

	"finrag/pkg/models"
)

// =============================================================================
// BOUNDARY DETECTOR - Hard break offsets the chunker must never split across
// =============================================================================

// BoundaryKind identifies why an offset is a hard break.
type BoundaryKind string

const (
	BoundaryNoteHeader      BoundaryKind = "note_header"
	BoundaryStatementHeader BoundaryKind = "statement_header"
	BoundaryTableStart      BoundaryKind = "table_start"
	BoundaryTableEnd        BoundaryKind = "table_end"
)

// Boundary is one hard-break offset in the full document text.
type Boundary struct {
	Offset int
	Kind   BoundaryKind
}

// statementHeader matches the start of a financial statement section, which
// must open a fresh chunk regardless of the running token count.
var statementHeader = regexp.MustCompile(`(?mi)^\s*(?:CONSOLIDATED\s+|STANDALONE\s+)?` +
	`(?:BALANCE\s+SHEET|STATEMENT\s+OF\s+(?:PROFIT\s+AND\s+LOSS|FINANCIAL\s+POSITION|CASH\s+FLOWS?|COMPREHENSIVE\s+INCOME|CHANGES\s+IN\s+EQUITY)|` +
	`CASH\s+FLOW\s+STATEMENT|NOTES?\s+(?:TO|FORMING\s+PART\s+OF)\s+)`)

// tableLine matches a line that is part of a pipe-delimited or rule-drawn
// table.
var tableLine = regexp.MustCompile(`^\s*(?:\|.*\||[-+=]{4,})\s*$`)

// Detector finds the hard boundaries for one document.
type Detector struct {
	notes *NoteMatcher
}

// NewDetector creates a boundary detector sharing the given note matcher.
func NewDetector(notes *NoteMatcher) *Detector {
	return &Detector{notes: notes}
}

// Detect returns the sorted, de-duplicated hard-break offsets for the full
// document text: note headers, statement-section headers, and table
// start/end offsets.
func (d *Detector) Detect(fullText string) []Boundary {
	var boundaries []Boundary

	for _, nb := range d.notes.DetectNoteBoundaries(fullText) {
		boundaries = append(boundaries, Boundary{Offset: nb.Start, Kind: BoundaryNoteHeader})
	}
	for _, loc := range statementHeader.FindAllStringIndex(fullText, -1) {
		boundaries = append(boundaries, Boundary{Offset: loc[0], Kind: BoundaryStatementHeader})
	}
	boundaries = append(boundaries, d.detectTables(fullText)...)

	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].Offset < boundaries[j].Offset })

	// Collapse boundaries sharing an offset; note headers outrank the rest.
	out := boundaries[:0]
	for _, b := range boundaries {
		if len(out) > 0 && out[len(out)-1].Offset == b.Offset {
			continue
		}
		out = append(out, b)
	}
	return out
}

// detectTables scans line by line for maximal runs of table-shaped lines and
// records their start and end offsets. A table must never be split, so both
// edges are hard breaks.
func (d *Detector) detectTables(fullText string) []Boundary {
	var boundaries []Boundary
	offset := 0
	inTable := false
	for _, line := range strings.SplitAfter(fullText, "\n") {
		isTable := tableLine.MatchString(strings.TrimRight(line, "\n"))
		if isTable && !inTable {
			boundaries = append(boundaries, Boundary{Offset: offset, Kind: BoundaryTableStart})
			inTable = true
		} else if !isTable && inTable {
			boundaries = append(boundaries, Boundary{Offset: offset, Kind: BoundaryTableEnd})
			inTable = false
		}
		offset += len(line)
	}
	return boundaries
}

// pageRange records where one source page landed in the joined document text.
type pageRange struct {
	number int
	start  int
	end    int
}

// JoinPages concatenates extracted pages into one document text, recording
// each page's offset range so chunks can be tagged with the pages they span.
func JoinPages(pages []models.Page) (string, []pageRange) {
	var b strings.Builder
	ranges := make([]pageRange, 0, len(pages))
	for _, p := range pages {
		start := b.Len()
		b.WriteString(p.Text)
		b.WriteString("\n\n")
		ranges = append(ranges, pageRange{number: p.Number, start: start, end: b.Len()})
	}
	return b.String(), ranges
}

// pagesForSpan returns the ordered page numbers overlapping [start, end).
func pagesForSpan(ranges []pageRange, start, end int) []int {
	var pages []int
	for _, r := range ranges {
		if end <= r.start || start >= r.end {
			continue
		}
		pages = append(pages, r.number)
	}
	if len(pages) == 0 && len(ranges) > 0 {
		pages = []int{ranges[0].number}
	}
	return pages
}
