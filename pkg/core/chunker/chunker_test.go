package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"finrag/pkg/models"
)

// words builds a space-separated filler string of n words.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ")
}

// sentences builds n filler sentences of perSentence words each.
func sentences(n, perSentence int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(words(perSentence))
		b.WriteString(". ")
	}
	return strings.TrimSpace(b.String())
}

// paragraphs builds n blank-line-separated paragraphs of perPara words each.
func paragraphs(n, perPara int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words(perPara)
	}
	return strings.Join(parts, "\n\n")
}

func TestDetectNoteNumber(t *testing.T) {
	m := NewNoteMatcher()
	cases := []struct {
		name string
		text string
		want string
	}{
		{"header line", "NOTE 10 – INVESTMENT PROPERTY\nThe Group holds...", "Note 10"},
		{"header with colon", "Note 3: Significant Accounting Policies", "Note 3"},
		{"lettered note", "see Note 3A - Borrowings for details", "Note 3A"},
		{"bare mention", "as disclosed in note 12 of the financial statements", "Note 12"},
		{"note no form", "refer notes no. 7", "Note 7"},
		{"parenthetical", "contingent liabilities (Note 29)", "Note 29"},
		{"numbered heading", "5. Revenue Recognition\nRevenue is measured...", "Note 5"},
		{"dotted sub-note", "12.1 Fair Value Measurement\nThe fair value...", "Note 12.1"},
		{"no note", "Total revenue for the year was 1,200 crore.", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.DetectNoteNumber(tc.text); got != tc.want {
				t.Errorf("DetectNoteNumber(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestChunkDocument_NoteBoundaryNeverSplit(t *testing.T) {
	// One long note followed by a second note: no chunk may carry text from
	// both, and every chunk of the first note is tagged with it.
	note10 := "NOTE 10 – INVESTMENT PROPERTY\n" + paragraphs(10, 50)
	note11 := "NOTE 11 – TRADE RECEIVABLES\n" + paragraphs(2, 40)
	pages := []models.Page{{Number: 42, Text: note10 + "\n\n" + note11}}

	c := New(Config{})
	chunks, warnings := c.ChunkDocument("RELIANCE", "2024", pages)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected the long note to split plus one chunk for the second note, got %d chunks", len(chunks))
	}

	sawNote10, sawNote11 := false, false
	for _, ch := range chunks {
		switch ch.NoteNumber {
		case "Note 10":
			sawNote10 = true
			if strings.Contains(ch.Text, "TRADE RECEIVABLES") {
				t.Errorf("Note 10 chunk leaked Note 11 text: %q", ch.Text[:60])
			}
		case "Note 11":
			sawNote11 = true
			if strings.Contains(ch.Text, "INVESTMENT PROPERTY") {
				t.Errorf("Note 11 chunk leaked Note 10 text")
			}
		default:
			t.Errorf("chunk with unexpected note tag %q", ch.NoteNumber)
		}
		if ch.Degraded {
			t.Errorf("well-formed document must not produce degraded chunks")
		}
		if len(ch.PageNumbers) == 0 || ch.PageNumbers[0] != 42 {
			t.Errorf("chunk pages = %v, want [42]", ch.PageNumbers)
		}
	}
	if !sawNote10 || !sawNote11 {
		t.Errorf("expected chunks for both notes, saw note10=%v note11=%v", sawNote10, sawNote11)
	}
}

func TestChunkDocument_TableStaysWhole(t *testing.T) {
	// A table far beyond the token ceiling must still come out as a single
	// table chunk.
	var rows []string
	for i := 0; i < 60; i++ {
		rows = append(rows, fmt.Sprintf("| item%d | %d | %d | %d | %d | %d | %d | %d |", i, i, i*2, i*3, i*4, i*5, i*6, i*7))
	}
	table := strings.Join(rows, "\n")
	doc := paragraphs(1, 30) + "\n\n" + table + "\n\nClosing paragraph follows the table " + words(20)

	c := New(Config{})
	chunks, _ := c.ChunkDocument("TCS", "2024", []models.Page{{Number: 1, Text: doc}})

	var tables []models.Chunk
	for _, ch := range chunks {
		if ch.ChunkType == models.ChunkTypeTable {
			tables = append(tables, ch)
			continue
		}
		if strings.Contains(ch.Text, "| item") {
			t.Errorf("table rows leaked into a %s chunk", ch.ChunkType)
		}
	}
	if len(tables) != 1 {
		t.Fatalf("expected exactly 1 table chunk, got %d", len(tables))
	}
	if !strings.Contains(tables[0].Text, "| item0 |") || !strings.Contains(tables[0].Text, "| item59 |") {
		t.Errorf("table chunk is missing rows; table was split")
	}
}

func TestChunkDocument_TinySegmentCollapses(t *testing.T) {
	// A near-empty run before a statement header folds into the header's
	// segment instead of becoming its own chunk.
	doc := "Continued from previous page\n\nCONSOLIDATED BALANCE SHEET\n\n" + paragraphs(3, 40)

	c := New(Config{})
	chunks, _ := c.ChunkDocument("INFY", "2024", []models.Page{{Number: 7, Text: doc}})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk after collapse, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Continued from previous page") {
		t.Errorf("tiny leading segment was dropped instead of collapsed")
	}
	if !strings.Contains(chunks[0].Text, "CONSOLIDATED BALANCE SHEET") {
		t.Errorf("collapsed chunk lost the statement header")
	}
}

func TestChunkDocument_SubNoteSplitKeepsParentContext(t *testing.T) {
	header := "NOTE 12 – INVESTMENT PROPERTY"
	doc := header + "\n" + sentences(4, 12) + "\n\n" +
		"12.1 Fair Value Measurement\n" + paragraphs(5, 50) + "\n\n" +
		"12.2 Rental Income\n" + paragraphs(5, 50)

	c := New(Config{})
	chunks, _ := c.ChunkDocument("DLF", "2024", []models.Page{{Number: 88, Text: doc}})

	byNote := map[string]int{}
	for _, ch := range chunks {
		byNote[ch.NoteNumber]++
	}
	if byNote["Note 12.1"] == 0 || byNote["Note 12.2"] == 0 {
		t.Fatalf("expected sub-note chunks for 12.1 and 12.2, got %v", byNote)
	}
	for _, ch := range chunks {
		if ch.NoteNumber == "Note 12.1" && strings.Contains(ch.Text, "Rental Income") {
			t.Errorf("sub-note 12.1 chunk leaked 12.2 text")
		}
	}

	// First chunk of each sub-note carries the parent note header line.
	seen := map[string]bool{}
	for _, ch := range chunks {
		if !strings.HasPrefix(ch.NoteNumber, "Note 12.") || seen[ch.NoteNumber] {
			continue
		}
		seen[ch.NoteNumber] = true
		if !strings.HasPrefix(ch.Text, header) {
			t.Errorf("%s first chunk does not start with the parent header: %q", ch.NoteNumber, ch.Text[:40])
		}
	}
}

func TestChunkDocument_SizeTargets(t *testing.T) {
	// Plain prose with no structure accumulates toward the 300-400 window;
	// only the trailing remainder may fall short.
	doc := paragraphs(20, 60)
	c := New(Config{})
	chunks, _ := c.ChunkDocument("HDFC", "2024", []models.Page{{Number: 1, Text: doc}})
	if len(chunks) < 2 {
		t.Fatalf("1200 words should produce multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		n := tokenCount(ch.Text)
		if n > 460 {
			t.Errorf("chunk %d has %d tokens, above the ceiling", i, n)
		}
		if i < len(chunks)-1 && n < 300 {
			t.Errorf("chunk %d has %d tokens, below the floor", i, n)
		}
	}
}

func TestSegment_UnbalancedTableEdges(t *testing.T) {
	c := New(Config{})
	cases := []struct {
		name       string
		boundaries []Boundary
	}{
		{"end without start", []Boundary{{Offset: 5, Kind: BoundaryTableEnd}}},
		{"nested start", []Boundary{
			{Offset: 2, Kind: BoundaryTableStart},
			{Offset: 6, Kind: BoundaryTableStart},
		}},
		{"offset out of order", []Boundary{
			{Offset: 8, Kind: BoundaryNoteHeader},
			{Offset: 3, Kind: BoundaryNoteHeader},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.segment(words(20), tc.boundaries)
			if !errors.Is(err, models.ErrBoundaryAmbiguous) {
				t.Errorf("segment() err = %v, want ErrBoundaryAmbiguous", err)
			}
		})
	}
}

func TestParagraphFallback_MarksChunksDegraded(t *testing.T) {
	c := New(Config{})
	d := &docState{
		fullText:   paragraphs(12, 60),
		ranges:     []pageRange{{number: 3, start: 0, end: 10000}},
		companyID:  "WIPRO",
		fiscalYear: "2023",
		degraded:   true,
	}
	chunks := c.paragraphFallback(d)
	if len(chunks) == 0 {
		t.Fatal("fallback produced no chunks")
	}
	for _, ch := range chunks {
		if !ch.Degraded {
			t.Errorf("fallback chunk not marked degraded")
		}
		if ch.NoteNumber != "" {
			t.Errorf("fallback chunks carry no structural tags, got note %q", ch.NoteNumber)
		}
	}
}

func TestSplitBySize_CriticalParagraphStaysWhole(t *testing.T) {
	// An oversized paragraph carrying a critical disclosure is never cut at
	// sentence ends.
	critical := "The fair value measurement of investment property is categorised as Level 3. " + sentences(40, 12)
	doc := paragraphs(1, 30) + "\n\n" + critical + "\n\n" + paragraphs(1, 30)

	c := New(Config{})
	chunks, _ := c.ChunkDocument("LTI", "2024", []models.Page{{Number: 5, Text: doc}})

	found := false
	for _, ch := range chunks {
		if !strings.Contains(ch.Text, "fair value measurement") {
			continue
		}
		found = true
		if !ch.IsCritical {
			t.Errorf("critical disclosure chunk not flagged IsCritical")
		}
		if !strings.Contains(ch.Text, "word11.") || tokenCount(ch.Text) < 400 {
			t.Errorf("critical paragraph was split; chunk has %d tokens", tokenCount(ch.Text))
		}
	}
	if !found {
		t.Fatal("no chunk contains the critical disclosure")
	}
}

func TestChunkDocument_EmptyInput(t *testing.T) {
	c := New(Config{})
	chunks, warnings := c.ChunkDocument("X", "2024", []models.Page{{Number: 1, Text: "   \n  "}})
	if chunks != nil || warnings != nil {
		t.Errorf("blank document: got %d chunks, %d warnings, want none", len(chunks), len(warnings))
	}
}

func TestJoinPages_PageTagging(t *testing.T) {
	pages := []models.Page{
		{Number: 1, Text: paragraphs(1, 350)},
		{Number: 2, Text: paragraphs(1, 350)},
	}
	c := New(Config{})
	chunks, _ := c.ChunkDocument("ITC", "2024", pages)
	if len(chunks) != 2 {
		t.Fatalf("expected one chunk per page, got %d", len(chunks))
	}
	if len(chunks[0].PageNumbers) != 1 || chunks[0].PageNumbers[0] != 1 {
		t.Errorf("first chunk pages = %v, want [1]", chunks[0].PageNumbers)
	}
	if len(chunks[1].PageNumbers) != 1 || chunks[1].PageNumbers[0] != 2 {
		t.Errorf("second chunk pages = %v, want [2]", chunks[1].PageNumbers)
	}
}

func TestClassifyChunkType(t *testing.T) {
	cases := []struct {
		name string
		text string
		want models.ChunkType
	}{
		{"heading", "SIGNIFICANT ACCOUNTING POLICIES", models.ChunkTypeHeading},
		{"list", "- cash and cash equivalents\n- trade receivables\n- loans to subsidiaries", models.ChunkTypeList},
		{"paragraph", sentences(3, 10), models.ChunkTypeParagraph},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyChunkType(tc.text); got != tc.want {
				t.Errorf("classifyChunkType = %q, want %q", got, tc.want)
			}
		})
	}
}
