package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketscholar/trending"
)

// RegisterTrendingRoutes registers trending feed endpoints.
func RegisterTrendingRoutes(r *gin.Engine, svc *trending.Service) {
	g := r.Group("/api/trending")
	g.GET("", handleGetTrending(svc))
	g.POST("/refresh", handleRefreshTrending(svc))
}

func handleGetTrending(svc *trending.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		feed, err := svc.Get(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, feed)
	}
}

// handleRefreshTrending forces a cache refresh regardless of TTL.
func handleRefreshTrending(svc *trending.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		feed, err := svc.Refresh(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, feed)
	}
}
