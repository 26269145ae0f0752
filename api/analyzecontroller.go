package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketscholar/extractor"
	"marketscholar/orchestrator"
	"marketscholar/provider"
	"marketscholar/types"
)

// RegisterAnalysisRoutes registers the forensic analysis endpoint.
func RegisterAnalysisRoutes(r *gin.Engine, analyzer *orchestrator.Analyzer) {
	r.POST("/api/analyze", handleAnalyze(analyzer))
}

// handleAnalyze runs one request through the pipeline and maps each failure
// class to a distinct status code so the caller can decide whether to
// retry, prompt for manual text entry, or back off.
func handleAnalyze(analyzer *orchestrator.Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: " + err.Error()})
			return
		}

		result, err := analyzer.Analyze(c.Request.Context(), req)
		if err != nil {
			status, message := classifyError(err)
			c.JSON(status, gin.H{"error": message})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// classifyError maps pipeline failures onto the response contract:
// 400 missing content, 422 extraction failure, 429 provider rate limit,
// 500 configuration/unknown, 504 timeout.
func classifyError(err error) (int, string) {
	if errors.Is(err, orchestrator.ErrEmptyContent) {
		return http.StatusBadRequest, "content is required: provide article text or a URL"
	}

	var fetchErr *extractor.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.Timeout {
			return http.StatusGatewayTimeout, "the article page took too long to respond"
		}
		return http.StatusUnprocessableEntity,
			"could not fetch the article; the site may block automated access. Paste the article text directly instead."
	}
	var parseErr *extractor.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusUnprocessableEntity,
			"could not extract readable text; the page likely requires JavaScript. Paste the article text directly instead."
	}

	if errors.Is(err, provider.ErrNoProviderConfigured) {
		return http.StatusInternalServerError, err.Error()
	}
	var transportErr *provider.TransportError
	if errors.As(err, &transportErr) {
		switch {
		case transportErr.Status == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, "analysis provider rate limit reached; try again shortly"
		case transportErr.Timeout:
			return http.StatusGatewayTimeout, "analysis provider timed out"
		default:
			return http.StatusInternalServerError, "all analysis providers failed: " + transportErr.Error()
		}
	}
	var providerParseErr *provider.ParseError
	if errors.As(err, &providerParseErr) {
		return http.StatusInternalServerError, "all analysis providers failed: " + providerParseErr.Error()
	}

	return http.StatusInternalServerError, err.Error()
}
