package section

import (
	"strings"
	"testing"

	"finrag/pkg/models"
)

func TestDetectSpans_CoversWholeDocument(t *testing.T) {
	doc := strings.Join([]string{
		"Board of Directors report and other preamble material.",
		"CONSOLIDATED BALANCE SHEET",
		"Total assets 4,500 crore. Total equity 2,100 crore.",
		"STANDALONE BALANCE SHEET",
		"Total assets 1,900 crore.",
		"NOTES TO THE CONSOLIDATED FINANCIAL STATEMENTS",
		"NOTE 1 - CORPORATE INFORMATION",
	}, "\n")

	d := NewContextDetector()
	spans := d.DetectSpans(doc)
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans (preamble + 3 headings), got %d: %+v", len(spans), spans)
	}

	// Contiguous and covering.
	if spans[0].Start != 0 || spans[len(spans)-1].End != len(doc) {
		t.Errorf("spans do not cover the document: first.Start=%d last.End=%d len=%d",
			spans[0].Start, spans[len(spans)-1].End, len(doc))
	}
	for i := 0; i < len(spans)-1; i++ {
		if spans[i].End != spans[i+1].Start {
			t.Errorf("gap between span %d and %d: %d != %d", i, i+1, spans[i].End, spans[i+1].Start)
		}
	}

	want := []models.StatementType{
		models.StatementUnknown,
		models.StatementConsolidated,
		models.StatementStandalone,
		models.StatementConsolidated,
	}
	for i, w := range want {
		if spans[i].StatementType != w {
			t.Errorf("span %d statement type = %q, want %q", i, spans[i].StatementType, w)
		}
	}
	if spans[1].SectionName != "CONSOLIDATED BALANCE SHEET" {
		t.Errorf("span 1 section name = %q", spans[1].SectionName)
	}
}

func TestDetectSpans_UnqualifiedHeading(t *testing.T) {
	d := NewContextDetector()

	t.Run("nearby consolidated hint", func(t *testing.T) {
		doc := "BALANCE SHEET\n(of the consolidated group as at 31 March 2024)\nTotal assets..."
		spans := d.DetectSpans(doc)
		if len(spans) != 1 || spans[0].StatementType != models.StatementConsolidated {
			t.Errorf("spans = %+v, want one consolidated span", spans)
		}
	})

	t.Run("no hint stays unknown", func(t *testing.T) {
		doc := "CASH FLOW STATEMENT\nOperating activities 320 crore."
		spans := d.DetectSpans(doc)
		if len(spans) != 1 || spans[0].StatementType != models.StatementUnknown {
			t.Errorf("spans = %+v, want one unknown span", spans)
		}
	})

	t.Run("conflicting hints stay unknown", func(t *testing.T) {
		doc := "Consolidated and standalone figures follow.\nBALANCE SHEET\nTotal assets..."
		spans := d.DetectSpans(doc)
		last := spans[len(spans)-1]
		if last.StatementType != models.StatementUnknown {
			t.Errorf("heading type = %q, want unknown on conflicting hints", last.StatementType)
		}
	})
}

func TestStatementTypeAt(t *testing.T) {
	spans := []models.SectionSpan{
		{Start: 0, End: 100, StatementType: models.StatementUnknown},
		{Start: 100, End: 300, StatementType: models.StatementConsolidated},
		{Start: 300, End: 500, StatementType: models.StatementStandalone},
	}
	cases := []struct {
		offset int
		want   models.StatementType
	}{
		{0, models.StatementUnknown},
		{100, models.StatementConsolidated},
		{299, models.StatementConsolidated},
		{300, models.StatementStandalone},
		{9999, models.StatementUnknown},
	}
	for _, tc := range cases {
		if got := StatementTypeAt(spans, tc.offset); got != tc.want {
			t.Errorf("StatementTypeAt(%d) = %q, want %q", tc.offset, got, tc.want)
		}
	}
}

func TestQueryParser(t *testing.T) {
	p := NewQueryParser()
	cases := []struct {
		name     string
		question string
		wantST   models.StatementType
		wantNote string
	}{
		{
			"consolidated note query",
			"What is Note 10 about in Consolidated Financial Statement?",
			models.StatementConsolidated,
			"Note 10",
		},
		{
			"standalone query",
			"What was the standalone revenue for FY2024?",
			models.StatementStandalone,
			"",
		},
		{
			"no structural signal",
			"How much rental income did the company earn?",
			models.StatementUnknown,
			"",
		},
		{
			"both mentioned",
			"Compare consolidated and standalone totals",
			models.StatementUnknown,
			"",
		},
		{
			"sub-note reference",
			"Explain note 12.1 fair value hierarchy",
			models.StatementUnknown,
			"Note 12.1",
		},
		{
			"figure not mistaken for note",
			"Why did revenue grow to 1,200.5 Crore?",
			models.StatementUnknown,
			"",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.StatementType(tc.question); got != tc.wantST {
				t.Errorf("StatementType(%q) = %q, want %q", tc.question, got, tc.wantST)
			}
			if got := p.NoteNumber(tc.question); got != tc.wantNote {
				t.Errorf("NoteNumber(%q) = %q, want %q", tc.question, got, tc.wantNote)
			}
		})
	}
}
