// Package chunker turns extracted filing text into note-aware chunks. It
// contains the multi-pattern note matcher, the hard-boundary detector, and
// the adaptive chunker built on top of them.
package chunker

import (
	"regexp"
	"strings"
)

// =============================================================================
// NOTE MATCHER - Ordered multi-pattern note number detection
// =============================================================================

// NotePattern is one way a note reference can appear in filing text. Patterns
// are tried in a fixed priority order; the first match wins. New formats are
// added by appending a pattern, without touching existing ones.
type NotePattern struct {
	Name string
	re   *regexp.Regexp
}

// Match returns the normalized note number ("Note 10", "Note 3A", "Note 12.1")
// or empty when the pattern does not occur in text.
func (p NotePattern) Match(text string) string {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return "Note " + strings.ToUpper(m[1])
}

// NoteMatcher holds the ordered pattern set shared by ingestion-time
// classification and query-time parsing.
type NoteMatcher struct {
	patterns []NotePattern
}

// NewNoteMatcher builds the matcher with the formats observed across annual
// reports: header lines, explicit "Note N" mentions with or without
// separators, parenthetical references, numbered-list headings, and dotted
// sub-notes.
func NewNoteMatcher() *NoteMatcher {
	return &NoteMatcher{patterns: []NotePattern{
		{"header", regexp.MustCompile(`(?mi)^\s*NOTE\s+(\d+[A-Z]?(?:\.\d+)?)\s*[-–—:]?\s*[A-Z]`)},
		{"separator", regexp.MustCompile(`(?i)\bnote\s+(\d+[A-Z]?(?:\.\d+)?)\s*[-–—:]`)},
		{"bare", regexp.MustCompile(`(?i)\bnotes?\s+(?:no\.?\s*)?(\d+[A-Z]?(?:\.\d+)?)\b`)},
		{"parenthetical", regexp.MustCompile(`(?i)[(\[]note\s+(\d+[A-Z]?(?:\.\d+)?)[)\]]`)},
		{"numbered-heading", regexp.MustCompile(`(?m)^\s*(\d+[A-Z]?)\.\s+[A-Z]`)},
		{"dotted-subnote", regexp.MustCompile(`(?m)\b(\d+\.\d+)\s+[A-Z]`)},
	}}
}

// DetectNoteNumber returns the first note number found by the priority-ordered
// pattern set, normalized to "Note N" form, or empty when none matches.
func (m *NoteMatcher) DetectNoteNumber(text string) string {
	for _, p := range m.patterns {
		if n := p.Match(text); n != "" {
			return n
		}
	}
	return ""
}

// DetectNoteReference is the query-side variant of DetectNoteNumber: only
// patterns anchored on the word "note" are tried, so a bare figure in a
// question ("1,200.5 crore") is never mistaken for a note number.
func (m *NoteMatcher) DetectNoteReference(text string) string {
	for _, p := range m.patterns {
		if p.Name == "numbered-heading" || p.Name == "dotted-subnote" {
			continue
		}
		if n := p.Match(text); n != "" {
			return n
		}
	}
	return ""
}

// mainNoteHeader matches the start of a main note disclosure, e.g.
// "NOTE 12 - INVESTMENT PROPERTY". Used for hard chunk boundaries.
var mainNoteHeader = regexp.MustCompile(`(?mi)^\s*NOTE\s+(\d+[A-Z]?)\s*[-–—:]*\s*([A-Z][A-Za-z\s,&()]*)`)

// subNoteHeader matches dotted sub-note headings such as "12.1 Fair Value
// Measurement" at the start of a line.
var subNoteHeader = regexp.MustCompile(`(?m)^\s*(\d+)\.(\d+)\s+([A-Z][A-Za-z\s,&()]*)`)

// NoteBoundary is one detected main note and its extent in the document.
type NoteBoundary struct {
	NoteNumber string // normalized, "Note 12"
	Title      string
	Start      int
	End        int
}

// DetectNoteBoundaries finds every main note header in the full document text
// and closes each note at the next header or end of document.
func (m *NoteMatcher) DetectNoteBoundaries(text string) []NoteBoundary {
	locs := mainNoteHeader.FindAllStringSubmatchIndex(text, -1)
	boundaries := make([]NoteBoundary, 0, len(locs))
	for _, loc := range locs {
		num := strings.ToUpper(text[loc[2]:loc[3]])
		title := ""
		if loc[4] >= 0 {
			title = strings.TrimSpace(text[loc[4]:loc[5]])
		}
		boundaries = append(boundaries, NoteBoundary{
			NoteNumber: "Note " + num,
			Title:      title,
			Start:      loc[0],
		})
	}
	for i := range boundaries {
		if i < len(boundaries)-1 {
			boundaries[i].End = boundaries[i+1].Start
		} else {
			boundaries[i].End = len(text)
		}
	}
	return boundaries
}

// SubNoteSpan is a dotted sub-note region inside a main note.
type SubNoteSpan struct {
	SubNote string // "12.1"
	Title   string
	Start   int
	End     int
}

// DetectSubNotes finds the dotted sub-notes belonging to parentNum (the bare
// main note number, e.g. "12") within a single note's text.
func (m *NoteMatcher) DetectSubNotes(noteText, parentNum string) []SubNoteSpan {
	locs := subNoteHeader.FindAllStringSubmatchIndex(noteText, -1)
	var spans []SubNoteSpan
	for _, loc := range locs {
		if noteText[loc[2]:loc[3]] != parentNum {
			continue
		}
		spans = append(spans, SubNoteSpan{
			SubNote: noteText[loc[2]:loc[3]] + "." + noteText[loc[4]:loc[5]],
			Title:   strings.TrimSpace(noteText[loc[6]:loc[7]]),
			Start:   loc[0],
		})
	}
	for i := range spans {
		if i < len(spans)-1 {
			spans[i].End = spans[i+1].Start
		} else {
			spans[i].End = len(noteText)
		}
	}
	return spans
}
