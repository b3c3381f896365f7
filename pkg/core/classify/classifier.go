// Package classify assigns retrieval metadata to chunks: multi-label section
// labels, note number, and statement type. Labels are advisory ranking
// signals, never hard filters unless the query asks for one.
package classify

import (
	"regexp"
	"sort"

	"finrag/pkg/core/chunker"
	"finrag/pkg/models"
)

// sectionPatterns maps each section label to the keyword patterns that vote
// it in. A chunk can carry several labels. Derived from a survey of annual
// reports across industries.
var sectionPatterns = map[string][]string{
	"balance_sheet": {
		`balance\s+sheet`,
		`statement\s+of\s+financial\s+position`,
		`assets\s+and\s+liabilities`,
	},
	"income_statement": {
		`statement\s+of\s+profit`,
		`income\s+statement`,
		`profit\s+and\s+loss`,
		`statement\s+of\s+comprehensive\s+income`,
	},
	"cash_flow": {
		`cash\s+flow`,
		`statement\s+of\s+cash\s+flows`,
	},
	"notes": {
		`notes?\s+to\s+.*?financial\s+statements`,
		`notes?\s+to\s+.*?accounts`,
		`note\s+\d+`,
	},
	"fair_value": {
		`fair\s+value`,
		`level\s+[123]\s+fair\s+value`,
	},
	"investment_property": {
		`investment\s+propert(?:y|ies)`,
		`rental\s+propert(?:y|ies)`,
		`commercial\s+propert(?:y|ies)`,
	},
	"borrowings": {
		`borrowings?`,
		`loans?\s+and\s+advances`,
		`\bdebt\b`,
		`term\s+loans?`,
	},
	"equity": {
		`\bequity\b`,
		`share\s+capital`,
		`reserves\s+and\s+surplus`,
		`shareholders?\s+funds?`,
	},
	"ppe": {
		`property,?\s+plant\s+and\s+equipment`,
		`fixed\s+assets`,
		`tangible\s+assets`,
	},
	"intangibles": {
		`intangible\s+assets`,
		`goodwill`,
		`intellectual\s+property`,
	},
	"revenue_details": {
		`revenue\s+from\s+operations`,
		`revenue\s+recognition`,
		`disaggregation\s+of\s+revenue`,
	},
	"expense_details": {
		`cost\s+of\s+goods\s+sold`,
		`operating\s+expenses`,
		`administrative\s+expenses`,
	},
	"related_party": {
		`related\s+part(?:y|ies)`,
		`related\s+entities`,
	},
	"contingencies": {
		`contingent\s+liabilit(?:y|ies)`,
		`commitments?`,
		`contingencies`,
	},
	"eps": {
		`earnings?\s+per\s+share`,
		`\beps\b`,
	},
	"segment_reporting": {
		`segment\s+reporting`,
		`operating\s+segments`,
		`geographical\s+segments`,
	},
	"dividend": {
		`dividend`,
		`distribution\s+to\s+shareholders`,
	},
	"auditors_report": {
		`independent\s+auditor`,
		`auditor.?s\s+report`,
		`opinion\s+on\s+.*?financial\s+statements`,
	},
	"md_and_a": {
		`management.?s?\s+discussion`,
		`md\s*&\s*a`,
		`directors?.?\s+report`,
	},
	"accounting_policies": {
		`significant\s+accounting\s+policies`,
		`basis\s+of\s+preparation`,
		`accounting\s+standards`,
	},
	"risk_factors": {
		`risk\s+factors`,
		`risk\s+management`,
		`financial\s+risks?`,
	},
}

var statementPatterns = map[models.StatementType][]string{
	models.StatementStandalone: {
		`\bstandalone\b`,
		`\bstand\s*alone\b`,
		`separate\s+financial\s+statements`,
	},
	models.StatementConsolidated: {
		`\bconsolidated\b`,
		`group\s+financial\s+statements`,
	},
}

// Classification is the metadata assigned to one chunk.
type Classification struct {
	SectionLabels []string
	NoteNumber    string
	StatementType models.StatementType
	Confidence    float64
}

// UniversalClassifier holds the compiled pattern sets. It is stateless after
// construction and safe for concurrent use.
type UniversalClassifier struct {
	sections   map[string][]*regexp.Regexp
	statements map[models.StatementType][]*regexp.Regexp
	notes      *chunker.NoteMatcher
}

// New compiles the classifier's pattern sets.
func New() *UniversalClassifier {
	c := &UniversalClassifier{
		sections:   make(map[string][]*regexp.Regexp, len(sectionPatterns)),
		statements: make(map[models.StatementType][]*regexp.Regexp, len(statementPatterns)),
		notes:      chunker.NewNoteMatcher(),
	}
	for label, pats := range sectionPatterns {
		for _, p := range pats {
			c.sections[label] = append(c.sections[label], regexp.MustCompile(`(?i)`+p))
		}
	}
	for st, pats := range statementPatterns {
		for _, p := range pats {
			c.statements[st] = append(c.statements[st], regexp.MustCompile(`(?i)`+p))
		}
	}
	return c
}

// Classify labels one chunk. sectionContext is the statement type of the
// document-level span containing the chunk; when known it overrides keyword
// detection, which only sees the chunk's own text. Labels come back sorted
// so the result is independent of map iteration order.
func (c *UniversalClassifier) Classify(text string, sectionContext models.StatementType) Classification {
	labels := c.detectSections(text)

	st := sectionContext
	if st == "" || st == models.StatementUnknown {
		st = c.detectStatementType(text)
	}

	note := c.notes.DetectNoteNumber(text)

	conf := 0.5
	if n := float64(len(labels)) * 0.1; n > 0 {
		if n > 0.3 {
			n = 0.3
		}
		conf += n
	}
	if note != "" {
		conf += 0.15
	}
	if st != models.StatementUnknown {
		conf += 0.1
	}
	if sectionContext != "" && sectionContext != models.StatementUnknown {
		conf += 0.1
	}
	if conf > 1 {
		conf = 1
	}

	return Classification{
		SectionLabels: labels,
		NoteNumber:    note,
		StatementType: st,
		Confidence:    conf,
	}
}

// Apply runs Classify and writes the result onto the chunk in place. A note
// number already assigned by the chunker's boundary pass is kept.
func (c *UniversalClassifier) Apply(ch *models.Chunk, sectionContext models.StatementType) {
	cl := c.Classify(ch.Text, sectionContext)
	ch.SectionLabels = cl.SectionLabels
	ch.StatementType = cl.StatementType
	if ch.NoteNumber == "" {
		ch.NoteNumber = cl.NoteNumber
	}
}

func (c *UniversalClassifier) detectSections(text string) []string {
	var labels []string
	for label, pats := range c.sections {
		for _, re := range pats {
			if re.MatchString(text) {
				labels = append(labels, label)
				break
			}
		}
	}
	sort.Strings(labels)
	return labels
}

// detectStatementType is the keyword fallback when no document-level context
// exists. Both signals present means the chunk genuinely talks about both;
// that should stay rare on well-formed documents.
func (c *UniversalClassifier) detectStatementType(text string) models.StatementType {
	match := func(st models.StatementType) bool {
		for _, re := range c.statements[st] {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}
	s := match(models.StatementStandalone)
	con := match(models.StatementConsolidated)
	switch {
	case s && con:
		return models.StatementBoth
	case s:
		return models.StatementStandalone
	case con:
		return models.StatementConsolidated
	default:
		return models.StatementUnknown
	}
}
