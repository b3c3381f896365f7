package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"finrag/pkg/core/store"
)

// CompanyLister enumerates ingested companies. Satisfied by store.ChunkRepo.
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]store.CompanyStats, error)
}

var companyLister CompanyLister

func InitCompanyHandler(l CompanyLister) {
	companyLister = l
}

// HandleCompanies answers GET /api/companies with the ingested corpus.
func HandleCompanies(w http.ResponseWriter, r *http.Request) {
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

	companies, err := companyLister.ListCompanies(r.Context())
	if err != nil {
		fmt.Printf("[API] Company listing failed: %v\n", err)
		http.Error(w, fmt.Sprintf("listing failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"companies": companies})
}
