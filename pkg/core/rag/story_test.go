package rag

import (
	"context"
	"strings"
	"sync"
	"testing"

	"finrag/pkg/models"
)

// fakeAnswerer serves canned answers keyed by question substring. Safe for
// the builder's concurrent fan-out.
type fakeAnswerer struct {
	mu      sync.Mutex
	queries []string
	answer  func(question string) (models.QueryResponse, error)
}

func (f *fakeAnswerer) Query(ctx context.Context, question, companyID, fiscalYear string) (models.QueryResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, question)
	f.mu.Unlock()
	return f.answer(question)
}

func longAnswer(topic string) string {
	return "The company " + topic + " across multiple markets, with detailed disclosures in the annual report covering operations and outlook."
}

func TestBuild_ComposesAllSections(t *testing.T) {
	// setup
	fa := &fakeAnswerer{answer: func(q string) (models.QueryResponse, error) {
		if strings.HasPrefix(q, "Based on all available information") {
			return models.QueryResponse{Answer: "Strong fundamentals and governance support a BUY verdict."}, nil
		}
		return models.QueryResponse{Answer: longAnswer("pursues an expansion plan with new capacity additions")}, nil
	}}
	b := NewStoryBuilder(fa, StoryConfig{})

	// execute
	story, err := b.Build(context.Background(), "PHX", "FY2023")

	// verify
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(story.Sections) != len(storySections) {
		t.Errorf("sections = %d, want %d", len(story.Sections), len(storySections))
	}
	for _, s := range storySections {
		if story.Sections[s.Key] == "" {
			t.Errorf("section %s empty", s.Key)
		}
	}
	if !strings.Contains(story.Recommendation, "BUY") {
		t.Errorf("recommendation = %q", story.Recommendation)
	}
	if len(story.Milestones) == 0 {
		t.Error("no milestones extracted")
	}
}

func TestBuild_SectionFallsBackToSimplerQuery(t *testing.T) {
	// setup: the long-form business overview query misses; its fallback hits
	primary := storySections[0].Query
	fa := &fakeAnswerer{answer: func(q string) (models.QueryResponse, error) {
		if q == primary {
			return models.QueryResponse{Answer: NotAvailableAnswer, NotFound: true}, nil
		}
		if strings.HasPrefix(q, "Based on all available information") {
			return models.QueryResponse{Answer: "HOLD pending clearer growth signals from management."}, nil
		}
		return models.QueryResponse{Answer: longAnswer("operates manufacturing facilities and targets capacity expansion")}, nil
	}}
	b := NewStoryBuilder(fa, StoryConfig{})

	// execute
	story, err := b.Build(context.Background(), "PHX", "FY2023")

	// verify
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if story.Sections["business_overview"] == "" {
		t.Error("business_overview missing despite fallback")
	}
	fa.mu.Lock()
	defer fa.mu.Unlock()
	sawFallback := false
	for _, q := range fa.queries {
		if q == storySections[0].Fallback {
			sawFallback = true
		}
	}
	if !sawFallback {
		t.Error("fallback query never issued")
	}
}

func TestBuild_AllOrNothing(t *testing.T) {
	// setup: risk_factors never answers, even via fallback
	fa := &fakeAnswerer{answer: func(q string) (models.QueryResponse, error) {
		if strings.Contains(strings.ToLower(q), "risk") {
			return models.QueryResponse{Answer: NotAvailableAnswer, NotFound: true}, nil
		}
		return models.QueryResponse{Answer: longAnswer("maintains a diversified portfolio with planned investments")}, nil
	}}
	b := NewStoryBuilder(fa, StoryConfig{})

	// execute
	story, err := b.Build(context.Background(), "PHX", "FY2023")

	// verify
	if err == nil {
		t.Fatal("expected error for incomplete story")
	}
	if story != nil {
		t.Error("partial story returned")
	}
	if !strings.Contains(err.Error(), "risk_factors") {
		t.Errorf("error does not name failed section: %v", err)
	}
}

func TestExtractMilestones(t *testing.T) {
	text := "The company announced a major expansion of its Pune facility targeting completion by FY2025. " +
		"A new product launch is planned for the premium segment next year. " +
		"R&D investment will increase to fund innovation in battery technology. " +
		"The weather was pleasant during the annual general meeting this year overall."

	milestones := extractMilestones(text)

	if len(milestones) != 3 {
		t.Fatalf("milestones = %d, want 3", len(milestones))
	}
	if !strings.Contains(milestones[0].Description, "expansion") {
		t.Errorf("first milestone = %+v", milestones[0])
	}
	for _, m := range milestones {
		if m.Title == "" {
			t.Errorf("milestone without title: %+v", m)
		}
	}
}

func TestExtractMilestones_ShortTextGetsPlaceholder(t *testing.T) {
	milestones := extractMilestones("No details.")
	if len(milestones) != 1 || milestones[0].Title != "Strategic Milestones" {
		t.Errorf("milestones = %+v", milestones)
	}
}
