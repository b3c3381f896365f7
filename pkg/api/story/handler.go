// Package story exposes the composite investor-narrative endpoint.
package story

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"finrag/pkg/core/rag"
)

// Builder composes the full story. Satisfied by rag.StoryBuilder.
type Builder interface {
	Build(ctx context.Context, companyID, fiscalYear string) (*rag.Story, error)
}

var builder Builder

func InitHandler(b Builder) {
	builder = b
}

// HandleStory answers GET /api/story?company_id=X&fiscal_year=Y.
func HandleStory(w http.ResponseWriter, r *http.Request) {
	// CORS
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	fiscalYear := strings.TrimSpace(r.URL.Query().Get("fiscal_year"))
	if companyID == "" {
		http.Error(w, "company_id is required", http.StatusBadRequest)
		return
	}
	fmt.Printf("[API] Story requested for %s (%s)\n", companyID, fiscalYear)

	s, err := builder.Build(r.Context(), companyID, fiscalYear)
	if err != nil {
		fmt.Printf("[API] Story failed: %v\n", err)
		// An incomplete story is all-or-nothing, not a partial response.
		http.Error(w, fmt.Sprintf("story generation failed: %v", err), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
