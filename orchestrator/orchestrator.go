// Package orchestrator runs the analysis pipeline end to end: URL
// detection, article extraction, provider fallback, and formula
// enforcement, followed by best-effort archival and event publication.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"marketscholar/archive"
	"marketscholar/events"
	"marketscholar/extractor"
	"marketscholar/forensic"
	"marketscholar/provider"
	"marketscholar/types"
)

// ErrEmptyContent is returned before any work happens when the request
// carries no text or URL.
var ErrEmptyContent = errors.New("content is required")

// sideEffectTimeout bounds each post-result archival/publication attempt.
const sideEffectTimeout = 30 * time.Second

// Analyzer owns the pipeline collaborators. Each Analyze call is
// independent: no state is shared or cached between requests.
type Analyzer struct {
	extractor *extractor.Extractor
	clients   []provider.Client
	store     *archive.Store    // optional
	publisher *events.Publisher // optional
}

// NewFromEnv wires the standard pipeline: Gemini first, OpenAI as
// fallback, with S3 archival and Kafka events enabled only when their
// environment configuration is present.
func NewFromEnv(ctx context.Context) *Analyzer {
	return &Analyzer{
		extractor: extractor.New(),
		clients:   []provider.Client{provider.NewGeminiFromEnv(), provider.NewOpenAIFromEnv()},
		store:     archive.NewFromEnv(ctx),
		publisher: events.NewFromEnv(),
	}
}

// New constructs an Analyzer from explicit collaborators, used by tests.
func New(ext *extractor.Extractor, clients []provider.Client, store *archive.Store, pub *events.Publisher) *Analyzer {
	return &Analyzer{extractor: ext, clients: clients, store: store, publisher: pub}
}

// Analyze runs one request through the full pipeline and returns the final
// result object. Ownership of the returned map passes entirely to the
// caller; nothing is retained.
func (a *Analyzer) Analyze(ctx context.Context, req types.AnalysisRequest) (map[string]interface{}, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	sourceURL := ""
	if types.IsArticleURL(content) {
		log.Printf("Extracting article: %s", content)
		article, err := a.extractor.Extract(ctx, content)
		if err != nil {
			return nil, err
		}
		sourceURL = article.SourceURL
		content = article.Payload()
		log.Printf("✓ Extracted %d chars from %s", len(article.BodyText), sourceURL)
	}

	res, err := provider.Run(ctx, a.clients, content, req.Mode, req.Stance)
	if err != nil {
		return nil, err
	}
	log.Printf("✓ Analysis complete via %s (grounded=%v)", res.ModelUsed, res.Grounded)

	result := forensic.Enforce(res.Raw)
	result["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	result["modelUsed"] = res.ModelUsed
	result["isGrounded"] = res.Grounded
	result["citations"] = res.Citations
	if sourceURL != "" {
		result["sourceUrl"] = sourceURL
	}

	a.recordResult(result)
	return result, nil
}

// recordResult archives and publishes the finished record in the
// background. Failures are logged, never surfaced: the caller already has
// its result.
func (a *Analyzer) recordResult(result map[string]interface{}) {
	if a.store == nil && a.publisher == nil {
		return
	}

	record, err := json.Marshal(result)
	if err != nil {
		log.Printf("Warning: failed to encode analysis record: %v", err)
		return
	}
	id := types.GenerateID(string(record))

	if a.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()
			if err := a.store.SaveAnalysis(ctx, id, record); err != nil {
				log.Printf("Warning: S3 archive failed for %s: %v", id, err)
			}
		}()
	}
	if a.publisher != nil {
		go func() {
			if err := a.publisher.PublishAnalysis(id, record); err != nil {
				log.Printf("Warning: Kafka publish failed for %s: %v", id, err)
			}
		}()
	}
}
