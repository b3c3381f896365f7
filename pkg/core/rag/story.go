package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"finrag/pkg/core/utils"
	"finrag/pkg/models"
)

// =============================================================================
// STORY BUILDER - composite investor narrative over fixed analytical angles
// =============================================================================

// Answerer answers one question. Satisfied by QueryEngine.
type Answerer interface {
	Query(ctx context.Context, question, companyID, fiscalYear string) (models.QueryResponse, error)
}

// storySection is one analytical angle with its primary query and a simpler
// fallback used when the primary comes back empty or hedged.
type storySection struct {
	Key      string
	Query    string
	Fallback string
}

var storySections = []storySection{
	{
		Key:      "business_overview",
		Query:    "What does this company do? Describe the company's core business activities, products, services, target markets, and revenue model. Include information about their operations, facilities, and industry positioning.",
		Fallback: "What does this company do? What are its main products and services?",
	},
	{
		Key:      "financial_performance",
		Query:    "Analyze the company's financial performance. What were the revenue and profit figures for the current year compared to the previous year? What are the key financial metrics like EBITDA, profit margins, ROE, ROCE, and debt ratios? Include specific numbers with growth percentages.",
		Fallback: "What is the company's revenue and profit? How did it perform financially this year?",
	},
	{
		Key:      "competitive_position",
		Query:    "What are the company's competitive advantages and market position? Include information about market share, patents, brands, technology, strategic assets, certifications, or any competitive strengths mentioned.",
		Fallback: "What are the company's strengths and competitive advantages?",
	},
	{
		Key:      "risk_factors",
		Query:    "What are the key risks and challenges facing this company? Look for operational risks, market risks, regulatory risks, competitive threats, and financial risks mentioned in risk sections.",
		Fallback: "What are the main risks and challenges for this company?",
	},
	{
		Key:      "growth_strategy",
		Query:    "What is the company's growth strategy and future plans? Include expansion plans, new products, R&D initiatives, capital expenditure, partnerships, acquisitions, or capacity additions. Include timelines and targets if mentioned.",
		Fallback: "What are the company's plans for growth and expansion?",
	},
	{
		Key:      "governance_quality",
		Query:    "Describe the company's management and governance structure. Who are the key leaders and board members? What governance practices, committees, or frameworks are in place?",
		Fallback: "Who are the key leaders and board members of this company?",
	},
}

// Milestone is one roadmap item extracted from the growth strategy narrative.
type Milestone struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Story is the composed investor narrative.
type Story struct {
	CompanyID      string            `json:"company_id"`
	FiscalYear     string            `json:"fiscal_year"`
	Sections       map[string]string `json:"sections"`
	Milestones     []Milestone       `json:"milestones"`
	Recommendation string            `json:"recommendation"`
}

// StoryConfig tunes the fan-out.
type StoryConfig struct {
	SectionTimeout time.Duration // per section attempt, default 90s
	MaxParallel    int           // concurrent section queries, default 3
	MinAnswerLen   int           // shorter answers count as misses, default 50
}

func (c *StoryConfig) defaults() {
	if c.SectionTimeout <= 0 {
		c.SectionTimeout = 90 * time.Second
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 3
	}
	if c.MinAnswerLen <= 0 {
		c.MinAnswerLen = 50
	}
}

type StoryBuilder struct {
	engine Answerer
	cfg    StoryConfig
}

func NewStoryBuilder(engine Answerer, cfg StoryConfig) *StoryBuilder {
	cfg.defaults()
	return &StoryBuilder{engine: engine, cfg: cfg}
}

type sectionResult struct {
	key     string
	content string
	ok      bool
}

// Build fans out the section queries with bounded parallelism and waits for
// all of them. The story is all-or-nothing: if any section stays empty after
// its fallback, Build returns an error instead of a partial narrative.
func (b *StoryBuilder) Build(ctx context.Context, companyID, fiscalYear string) (*Story, error) {
	fmt.Printf("[STORY] Generating story for %s (%s): %d sections, %d parallel\n",
		companyID, fiscalYear, len(storySections), b.cfg.MaxParallel)

	sem := make(chan struct{}, b.cfg.MaxParallel)
	out := make(chan sectionResult, len(storySections))
	for _, s := range storySections {
		go func(s storySection) {
			sem <- struct{}{}
			defer func() { <-sem }()
			out <- b.runSection(ctx, s, companyID, fiscalYear)
		}(s)
	}

	sections := make(map[string]string, len(storySections))
	var failed []string
	for range storySections {
		r := <-out
		if r.ok {
			sections[r.key] = r.content
		} else {
			failed = append(failed, r.key)
		}
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("story incomplete for %s: no usable answer for %s", companyID, strings.Join(failed, ", "))
	}

	story := &Story{
		CompanyID:      companyID,
		FiscalYear:     fiscalYear,
		Sections:       sections,
		Milestones:     extractMilestones(sections["growth_strategy"]),
		Recommendation: b.recommendation(ctx, companyID, fiscalYear, sections),
	}
	fmt.Printf("[STORY] Story complete for %s\n", companyID)
	return story, nil
}

// runSection tries the primary query, then the simpler fallback, each under
// its own timeout.
func (b *StoryBuilder) runSection(ctx context.Context, s storySection, companyID, fiscalYear string) sectionResult {
	for _, q := range []string{s.Query, s.Fallback} {
		attemptCtx, cancel := context.WithTimeout(ctx, b.cfg.SectionTimeout)
		resp, err := b.engine.Query(attemptCtx, q, companyID, fiscalYear)
		cancel()
		if b.usable(resp, err) {
			return sectionResult{key: s.Key, content: resp.Answer, ok: true}
		}
		if err != nil {
			fmt.Printf("[STORY] Section %s attempt failed: %v\n", s.Key, err)
		}
	}
	return sectionResult{key: s.Key, ok: false}
}

func (b *StoryBuilder) usable(resp models.QueryResponse, err error) bool {
	if err != nil || resp.NotFound {
		return false
	}
	a := strings.TrimSpace(resp.Answer)
	if len(a) < b.cfg.MinAnswerLen {
		return false
	}
	if !utils.ValidateMarkdown(a) {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(a), "information not")
}

// recommendation synthesizes a verdict from the leading sections. A miss here
// degrades to a canned disclaimer rather than failing the whole story.
func (b *StoryBuilder) recommendation(ctx context.Context, companyID, fiscalYear string, sections map[string]string) string {
	prompt := fmt.Sprintf(`Based on all available information about this company, provide a clear investment recommendation (BUY, SELL, or HOLD) with detailed justification. Consider:

Business Overview: %s
Financial Performance: %s
Competitive Position: %s

Provide a 2-3 paragraph investment thesis with a clear BUY/SELL/HOLD verdict at the end.`,
		clip(sections["business_overview"], 500),
		clip(sections["financial_performance"], 500),
		clip(sections["competitive_position"], 500))

	attemptCtx, cancel := context.WithTimeout(ctx, b.cfg.SectionTimeout)
	defer cancel()
	resp, err := b.engine.Query(attemptCtx, prompt, companyID, fiscalYear)
	if err != nil || resp.NotFound || strings.TrimSpace(resp.Answer) == "" {
		return "Investment recommendation not available. Please consult with a financial advisor."
	}
	return resp.Answer
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// =============================================================================
// MILESTONE EXTRACTION
// =============================================================================

var (
	markdownNoise     = regexp.MustCompile("[#*_`]+")
	sentenceSep       = regexp.MustCompile(`[.!?]\s+|\n+`)
	milestoneKeywords = []string{
		"expansion", "launch", "new", "plan", "initiative", "project",
		"investment", "capex", "r&d", "innovation", "partnership",
		"acquisition", "market entry", "capacity", "facility", "development",
		"focus", "strategy", "target", "goal",
	}
	maxMilestones = 6
)

// extractMilestones pulls roadmap items out of the growth strategy narrative
// by keyword-matching its sentences.
func extractMilestones(growthStrategy string) []Milestone {
	if len(growthStrategy) < 100 {
		return []Milestone{{
			Title:       "Strategic Milestones",
			Description: "Detailed roadmap information not available in the annual report. Please refer to investor presentations or management guidance.",
		}}
	}

	cleaned := markdownNoise.ReplaceAllString(growthStrategy, "")

	var milestones []Milestone
	for _, sentence := range sentenceSep.Split(cleaned, -1) {
		sentence = strings.Join(strings.Fields(sentence), " ")
		if len(sentence) < 25 || len(milestones) >= maxMilestones {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, kw := range milestoneKeywords {
			if strings.Contains(lower, kw) {
				milestones = append(milestones, Milestone{
					Title:       milestoneTitle(sentence),
					Description: sentence,
				})
				break
			}
		}
	}

	if len(milestones) == 0 {
		desc := strings.Join(strings.Fields(clip(cleaned, 300)), " ")
		milestones = append(milestones, Milestone{Title: "Growth Initiatives", Description: desc})
	}
	return milestones
}

// milestoneTitle takes the leading words of a sentence up to a natural break.
func milestoneTitle(sentence string) string {
	words := strings.Fields(sentence)
	if len(words) <= 5 {
		return sentence
	}
	var title []string
	for i, w := range words[:8] {
		title = append(title, w)
		if strings.HasSuffix(w, ",") || strings.HasSuffix(w, ":") || i >= 5 {
			break
		}
	}
	t := strings.Trim(strings.Join(title, " "), ",: ")
	if len(t) > 10 {
		return t
	}
	return clip(sentence, 60)
}
