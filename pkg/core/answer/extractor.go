// Package answer turns retrieved chunks into a grounded answer. The prompt
// is shaped by the question's intent (objective, subjective, mixed) and the
// statement-type context; hedged or empty model output is surfaced as a
// low-confidence result so the caller can retry once with a simpler query.
package answer

import (
	"context"
	"fmt"
	"strings"

	"finrag/pkg/core/llm"
	"finrag/pkg/core/utils"
	"finrag/pkg/models"
)

// =============================================================================
// QUERY TYPE DETECTION - objective / subjective / mixed
// =============================================================================

var objectiveKeywords = []string{
	"what is", "how much", "fair value", "amount", "value", "number",
	"total", "revenue", "profit", "depreciation rate", "percentage",
	"figure", "balance", "worth", "cost", "price", "rate",
}

var subjectiveKeywords = []string{
	"why", "how", "explain", "describe", "policy", "method",
	"basis", "determined", "assumptions", "approach", "methodology",
	"reason", "rationale", "criteria", "process",
}

// DetectQueryType classifies a question by counting intent keywords.
// Majority wins; a tie (including zero hits) is mixed.
func DetectQueryType(query string) models.QueryType {
	q := strings.ToLower(query)
	obj, subj := 0, 0
	for _, kw := range objectiveKeywords {
		if strings.Contains(q, kw) {
			obj++
		}
	}
	for _, kw := range subjectiveKeywords {
		if strings.Contains(q, kw) {
			subj++
		}
	}
	switch {
	case obj > subj:
		return models.QueryObjective
	case subj > obj:
		return models.QuerySubjective
	default:
		return models.QueryMixed
	}
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// Extractor produces answers from retrieved context via an LLM provider.
type Extractor struct {
	provider llm.Provider
}

// NewExtractor creates an extractor on the given provider.
func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider}
}

// notFoundMarkers are phrases a hedging model uses when the context does not
// actually contain the answer.
var notFoundMarkers = []string{
	"not found in the provided context",
	"information is not available",
	"information not available",
	"no information",
	"does not contain",
	"cannot find",
	"unable to find",
	"not mentioned in the context",
	"no relevant information",
}

// Extract builds the intent-shaped prompt, calls the model, and cleans the
// output. An empty, hedged, or question-restating answer returns
// ErrLowConfidenceAnswer; the caller owns the single fallback retry.
func (e *Extractor) Extract(ctx context.Context, parsed models.ParsedQuery, results []models.RetrievalResult) (string, error) {
	prompt := buildPrompt(parsed, results)

	raw, err := e.provider.GenerateResponse(ctx, prompt,
		"You are a financial document analyst. Ground every statement in the provided context.",
		map[string]interface{}{"temperature": 0.1})
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}

	cleaned := utils.CleanMarkdown(raw)
	// Some models answer in JSON unprompted; unwrap rather than show it.
	if strings.HasPrefix(cleaned, "{") {
		var payload struct {
			Answer string `json:"answer"`
		}
		if _, perr := utils.SmartParse(cleaned, &payload); perr == nil && payload.Answer != "" {
			cleaned = strings.TrimSpace(payload.Answer)
		}
	}

	if isLowConfidence(cleaned, parsed.Raw) {
		return "", fmt.Errorf("model answer %q: %w", truncate(cleaned, 60), models.ErrLowConfidenceAnswer)
	}
	return cleaned, nil
}

// isLowConfidence reports an empty answer, a hedge marker, or a restated
// question.
func isLowConfidence(answer, question string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return true
	}
	for _, m := range notFoundMarkers {
		if strings.Contains(a, m) {
			return true
		}
	}
	q := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(question, "?")))
	if q != "" && strings.Contains(a, q) && len(a) < len(q)+40 {
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// buildPrompt assembles the extraction prompt: section warning, formatted
// context blocks, the question, and intent-specific instructions.
func buildPrompt(parsed models.ParsedQuery, results []models.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("Answer the question using ONLY the provided context below.\n")

	st := parsed.StatementType
	if st == models.StatementConsolidated || st == models.StatementStandalone {
		fmt.Fprintf(&b, `
IMPORTANT SECTION CONTEXT:
- The context below is from %s financial statements
- Ensure your answer is specific to this section only
- Do NOT mix information from different sections (Consolidated vs Standalone)
- If the note number or data doesn't match the question's section, mention the discrepancy
`, strings.ToUpper(string(st)))
	}

	b.WriteString("\nContext from financial statements")
	if st == models.StatementConsolidated || st == models.StatementStandalone {
		fmt.Fprintf(&b, " (%s)", strings.ToUpper(string(st)))
	}
	b.WriteString(":\n")
	for i, r := range results {
		fmt.Fprintf(&b, "\n[Context %d", i+1)
		if r.NoteNumber != "" {
			fmt.Fprintf(&b, ", %s", r.NoteNumber)
		}
		if len(r.PageNumbers) > 0 {
			fmt.Fprintf(&b, ", Page(s) %s", joinInts(r.PageNumbers))
		}
		b.WriteString("]\n")
		b.WriteString(r.Text)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", parsed.Raw)
	b.WriteString("\nInstructions:\n- Read and synthesize information from ALL the context sections above\n")

	switch parsed.QueryType {
	case models.QueryObjective:
		b.WriteString(`- Extract EXACT numbers with their units (Rs., lakhs, crores, million, billion)
- Include year-over-year comparisons when available
- Cite specific note numbers (e.g., "Note 10", "Note 12.1")
- Format numbers clearly with proper separators (1,234.56)
- If asking about calculations, show the formula/breakdown
`)
	case models.QuerySubjective:
		b.WriteString(`- Explain the methodology, policy, or approach mentioned in the context
- Include relevant assumptions and judgments
- Quote key phrases from the document when appropriate
- Explain any accounting standards or frameworks referenced
- If multiple approaches are mentioned, explain all of them
`)
	default:
		b.WriteString(`- Provide a comprehensive answer with both quantitative data and qualitative explanations
- Include all relevant numbers, facts, and detailed context
- Cite note numbers and page references
- Write in flowing paragraphs without structural divisions
`)
	}

	b.WriteString(`- DO NOT reference "Context 1", "Context 2" etc. in your answer
- Provide a direct, clear answer that synthesizes all relevant information

Answer:`)
	return b.String()
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
