// Package ingest exposes the document ingestion endpoint. Documents arrive
// either as pre-extracted pages or as raw HTML.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	coreingest "finrag/pkg/core/ingest"
	"finrag/pkg/models"
)

// Ingester runs one document through the pipeline. Satisfied by
// ingest.Pipeline.
type Ingester interface {
	Ingest(ctx context.Context, companyID, fiscalYear string, pages []models.Page) (models.IngestStats, error)
}

var (
	pipeline  Ingester
	extractor = coreingest.NewHTMLExtractor()
)

func InitHandler(p Ingester) {
	pipeline = p
}

type IngestRequest struct {
	CompanyID  string `json:"company_id"`
	FiscalYear string `json:"fiscal_year"`
	// Exactly one of Pages or HTML must be set.
	Pages []PageInput `json:"pages,omitempty"`
	HTML  string      `json:"html,omitempty"`
}

type PageInput struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// HandleIngest answers POST /api/ingest.
func HandleIngest(w http.ResponseWriter, r *http.Request) {
	// CORS
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.CompanyID == "" || req.FiscalYear == "" {
		http.Error(w, "company_id and fiscal_year are required", http.StatusBadRequest)
		return
	}

	pages, err := resolvePages(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fmt.Printf("[API] Ingest %s %s: %d pages\n", req.CompanyID, req.FiscalYear, len(pages))

	stats, err := pipeline.Ingest(r.Context(), req.CompanyID, req.FiscalYear, pages)
	if err != nil {
		fmt.Printf("[API] Ingest failed: %v\n", err)
		http.Error(w, fmt.Sprintf("ingestion failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func resolvePages(req IngestRequest) ([]models.Page, error) {
	switch {
	case len(req.Pages) > 0 && req.HTML != "":
		return nil, fmt.Errorf("provide pages or html, not both")
	case len(req.Pages) > 0:
		pages := make([]models.Page, 0, len(req.Pages))
		for i, p := range req.Pages {
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			n := p.Number
			if n == 0 {
				n = i + 1
			}
			pages = append(pages, models.Page{Number: n, Text: p.Text})
		}
		return pages, nil
	case req.HTML != "":
		return extractor.ExtractPages(strings.NewReader(req.HTML))
	default:
		return nil, fmt.Errorf("pages or html is required")
	}
}
