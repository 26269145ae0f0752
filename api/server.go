package api

import (
	"github.com/gin-gonic/gin"

	"marketscholar/orchestrator"
	"marketscholar/trending"
)

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(analyzer *orchestrator.Analyzer, trendingSvc *trending.Service) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	RegisterAnalysisRoutes(r, analyzer)
	RegisterTrendingRoutes(r, trendingSvc)
	RegisterHealthRoutes(r)
	return r
}
