package store

import (
	"strings"
	"testing"

	"finrag/pkg/models"
)

func TestVectorLiteral(t *testing.T) {
	got := vectorLiteral([]float32{0.5, -1, 0.25})
	want := "[0.5,-1,0.25]"
	if got != want {
		t.Errorf("vectorLiteral = %q, want %q", got, want)
	}
	if got := vectorLiteral(nil); got != "[]" {
		t.Errorf("vectorLiteral(nil) = %q, want []", got)
	}
}

func TestFilterApply(t *testing.T) {
	cases := []struct {
		name       string
		filter     Filter
		wantSQL    []string
		notWantSQL []string
		wantArgs   int
	}{
		{
			"empty filter adds nothing",
			Filter{},
			nil,
			[]string{"company_id", "statement_type", "note_number"},
			1,
		},
		{
			"unknown statement type is not a constraint",
			Filter{CompanyID: "RELIANCE", StatementType: models.StatementUnknown},
			[]string{"company_id = $2"},
			[]string{"statement_type"},
			2,
		},
		{
			"full filter numbers placeholders in order",
			Filter{
				CompanyID:     "RELIANCE",
				FiscalYear:    "2024",
				StatementType: models.StatementConsolidated,
				NoteNumber:    "Note 10",
				SectionLabels: []string{"fair_value"},
			},
			[]string{
				"company_id = $2",
				"fiscal_year = $3",
				"statement_type = $4",
				"note_number = $5",
				"section_labels && $6",
			},
			nil,
			6,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var sql strings.Builder
			args := []interface{}{"query-placeholder"}
			tc.filter.apply(&sql, &args)
			for _, w := range tc.wantSQL {
				if !strings.Contains(sql.String(), w) {
					t.Errorf("sql %q missing %q", sql.String(), w)
				}
			}
			for _, nw := range tc.notWantSQL {
				if strings.Contains(sql.String(), nw) {
					t.Errorf("sql %q should not contain %q", sql.String(), nw)
				}
			}
			if len(args) != tc.wantArgs {
				t.Errorf("args len = %d, want %d", len(args), tc.wantArgs)
			}
		})
	}
}
