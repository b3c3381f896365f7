package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"

	apiingest "finrag/pkg/api/ingest"
	apiquery "finrag/pkg/api/query"
	apistory "finrag/pkg/api/story"
	"finrag/pkg/core/answer"
	"finrag/pkg/core/dedup"
	"finrag/pkg/core/embed"
	coreingest "finrag/pkg/core/ingest"
	"finrag/pkg/core/llm"
	"finrag/pkg/core/rag"
	"finrag/pkg/core/retrieval"
	"finrag/pkg/core/store"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// AppConfig mirrors config/models.yaml. Missing keys fall back to component
// defaults.
type AppConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	LLM struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
	} `yaml:"llm"`
	Embedding struct {
		Model string `yaml:"model"`
	} `yaml:"embedding"`
	Retrieval struct {
		TopK              int `yaml:"top_k"`
		VectorCandidates  int `yaml:"vector_candidates"`
		KeywordCandidates int `yaml:"keyword_candidates"`
	} `yaml:"retrieval"`
	Dedup struct {
		SimilarityThreshold float64 `yaml:"similarity_threshold"`
		MaxChunks           int     `yaml:"max_chunks"`
		MaxPerPage          int     `yaml:"max_per_page"`
	} `yaml:"dedup"`
}

func main() {
	// Load environment variables
	godotenv.Load()

	var cfg AppConfig
	configData, _ := ioutil.ReadFile("config/models.yaml")
	yaml.Unmarshal(configData, &cfg)
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	ctx := context.Background()

	// Storage
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("[FATAL] Database init failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	embedder, err := embed.NewGemini(ctx, cfg.Embedding.Model)
	if err != nil {
		fmt.Printf("[FATAL] Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	repo := store.NewChunkRepo(store.GetPool(), embedder.Dimensions())
	if err := repo.EnsureSchema(ctx); err != nil {
		fmt.Printf("[FATAL] Schema init failed: %v\n", err)
		os.Exit(1)
	}

	provider, err := llm.NewProvider(cfg.LLM.Provider, cfg.LLM.Model)
	if err != nil {
		fmt.Printf("[FATAL] LLM provider init failed: %v\n", err)
		os.Exit(1)
	}

	// Query path
	retriever := retrieval.NewEngine(repo, embedder, retrieval.Config{
		VectorCandidates:  cfg.Retrieval.VectorCandidates,
		KeywordCandidates: cfg.Retrieval.KeywordCandidates,
	})
	extractor := answer.NewExtractor(provider)
	queryEngine := rag.NewQueryEngine(retriever, extractor, rag.Config{
		TopK: cfg.Retrieval.TopK,
		Dedup: dedup.Config{
			SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
			MaxChunks:           cfg.Dedup.MaxChunks,
			MaxPerPage:          cfg.Dedup.MaxPerPage,
		},
	})
	storyBuilder := rag.NewStoryBuilder(queryEngine, rag.StoryConfig{})

	// Ingest path
	pipeline := coreingest.NewPipeline(embedder, repo, coreingest.Config{})

	apiquery.InitHandler(queryEngine)
	apiquery.InitCompanyHandler(repo)
	apiingest.InitHandler(pipeline)
	apistory.InitHandler(storyBuilder)

	http.HandleFunc("/api/query", apiquery.HandleQuery)
	http.HandleFunc("/api/companies", apiquery.HandleCompanies)
	http.HandleFunc("/api/ingest", apiingest.HandleIngest)
	http.HandleFunc("/api/story", apistory.HandleStory)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	fmt.Printf("API server starting on %s...\n", addr)
	fmt.Println("  - POST /api/query      (question answering)")
	fmt.Println("  - GET  /api/companies  (ingested corpus)")
	fmt.Println("  - POST /api/ingest     (document ingestion)")
	fmt.Println("  - GET  /api/story      (investor narrative)")

	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
