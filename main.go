package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"marketscholar/api"
	"marketscholar/orchestrator"
	"marketscholar/trending"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	addr := ":" + GetEnvOrDefault("PORT", DefaultPort)

	analyzer := orchestrator.NewFromEnv(context.Background())
	trendingSvc := trending.NewFromEnv()

	r := api.NewRouter(analyzer, trendingSvc)
	log.Printf("Starting API server on %s", addr)
	log.Println("API endpoints available:")
	log.Println("  GET  /api/health")
	log.Println("  POST /api/analyze")
	log.Println("  GET  /api/trending")
	log.Println("  POST /api/trending/refresh")

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
