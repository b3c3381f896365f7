// Package query exposes the question-answering endpoint.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"finrag/pkg/models"
)

// Engine answers one question. Satisfied by rag.QueryEngine.
type Engine interface {
	Query(ctx context.Context, question, companyID, fiscalYear string) (models.QueryResponse, error)
}

var queryEngine Engine

func InitHandler(e Engine) {
	queryEngine = e
}

type QueryRequest struct {
	Question   string `json:"question"`
	CompanyID  string `json:"company_id"`
	FiscalYear string `json:"fiscal_year"`
}

// HandleQuery answers POST /api/query.
func HandleQuery(w http.ResponseWriter, r *http.Request) {
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

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" || req.CompanyID == "" {
		http.Error(w, "question and company_id are required", http.StatusBadRequest)
		return
	}
	fmt.Printf("[API] Query for %s: %s\n", req.CompanyID, req.Question)

	resp, err := queryEngine.Query(r.Context(), req.Question, req.CompanyID, req.FiscalYear)
	if err != nil {
		fmt.Printf("[API] Query failed: %v\n", err)
		http.Error(w, fmt.Sprintf("query failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
