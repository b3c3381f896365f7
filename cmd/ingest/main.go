// Command ingest loads one extracted filing into the chunk store from the
// command line. Text files split into pages on form feeds; HTML files go
// through the HTML extractor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"finrag/pkg/core/embed"
	"finrag/pkg/core/ingest"
	"finrag/pkg/core/store"
	"finrag/pkg/models"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	var (
		company = flag.String("company", "", "company identifier (e.g. PHX)")
		year    = flag.String("year", "", "fiscal year label (e.g. FY2023)")
		file    = flag.String("file", "", "path to the filing (.txt with form-feed page breaks, or .html)")
	)
	flag.Parse()
	if *company == "" || *year == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	pages, err := loadPages(*file)
	if err != nil {
		log.Fatalf("loading %s: %v", *file, err)
	}

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		log.Fatalf("database init: %v", err)
	}
	defer store.Close()

	embedder, err := embed.NewGemini(ctx, "")
	if err != nil {
		log.Fatalf("embedder init: %v", err)
	}
	repo := store.NewChunkRepo(store.GetPool(), embedder.Dimensions())
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema init: %v", err)
	}

	pipeline := ingest.NewPipeline(embedder, repo, ingest.Config{})
	stats, err := pipeline.Ingest(ctx, *company, *year, pages)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}

	fmt.Printf("Ingested %s %s: %d pages, %d chunks stored\n",
		stats.CompanyID, stats.FiscalYear, stats.PagesSeen, stats.ChunksStored)
	for _, w := range stats.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func loadPages(path string) ([]models.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".html" || ext == ".htm" {
		return ingest.NewHTMLExtractor().ExtractPages(strings.NewReader(string(data)))
	}

	var pages []models.Page
	for _, text := range strings.Split(string(data), "\f") {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, models.Page{Number: len(pages) + 1, Text: text})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page content in %s", path)
	}
	return pages, nil
}
