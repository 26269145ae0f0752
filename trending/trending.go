// Package trending maintains a cached feed of recent financial headlines.
// It is deliberately outside the analysis pipeline: the pipeline shares no
// mutable state across requests, so any caching lives here with its own
// TTL contract.
package trending

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/redis/go-redis/v9"

	"marketscholar/prompt"
	"marketscholar/types"
)

const (
	defaultFeedPreset = "yahoo"
	defaultItemCount  = 10

	workerCount      = 5
	extractorTimeout = 30 * time.Second

	cacheKey   = "trending:feed"
	defaultTTL = 30 * time.Minute
)

// FeedPresets maps friendly names to financial RSS feed URLs.
var FeedPresets = map[string]string{
	"yahoo":       "https://finance.yahoo.com/news/rssindex",
	"marketwatch": "https://feeds.content.dowjones.io/public/rss/mw_topstories",
	"cnbc":        "https://www.cnbc.com/id/100003114/device/rss/rss.html",
}

// ResolveFeedURL resolves a feed identifier to a URL. Preset names map to
// their URL; anything else is assumed to already be a URL.
func ResolveFeedURL(feedInput string) string {
	if url, exists := FeedPresets[feedInput]; exists {
		return url
	}
	return feedInput
}

// Item is one trending headline with optional extracted content and an
// unverified ticker guess.
type Item struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	PublishedAt     time.Time `json:"published_at"`
	Summary         string    `json:"summary,omitempty"`
	Ticker          string    `json:"ticker,omitempty"`
	Excerpt         string    `json:"excerpt,omitempty"`
	ExtractionError string    `json:"extraction_error,omitempty"`
}

// Feed is the cached payload served to the dashboard.
type Feed struct {
	FeedURL   string    `json:"feed_url"`
	FetchedAt time.Time `json:"fetched_at"`
	Items     []*Item   `json:"items"`
}

// Service fetches, enriches, and caches the trending feed. With no Redis
// configured it degrades to fetch-through (no caching).
type Service struct {
	feedURL string
	count   int
	cache   *redis.Client
	ttl     time.Duration
}

// NewFromEnv builds a Service from TRENDING_FEED (preset or URL),
// TRENDING_COUNT, REDIS_ADDR/REDIS_PASS/REDIS_DB and TRENDING_TTL_SECONDS.
func NewFromEnv() *Service {
	feed := os.Getenv("TRENDING_FEED")
	if feed == "" {
		feed = defaultFeedPreset
	}

	count := defaultItemCount
	if c := os.Getenv("TRENDING_COUNT"); c != "" {
		if v, err := strconv.Atoi(c); err == nil && v > 0 {
			count = v
		}
	}

	ttl := defaultTTL
	if t := os.Getenv("TRENDING_TTL_SECONDS"); t != "" {
		if secs, err := strconv.Atoi(t); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}

	var cache *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		db := 0
		if d := os.Getenv("REDIS_DB"); d != "" {
			if v, err := strconv.Atoi(d); err == nil {
				db = v
			}
		}
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASS"),
			DB:       db,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: redis unavailable at %s: %v (trending cache disabled)", addr, err)
		} else {
			cache = client
		}
	}

	return NewService(ResolveFeedURL(feed), count, cache, ttl)
}

// NewService constructs a Service with explicit collaborators.
func NewService(feedURL string, count int, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{feedURL: feedURL, count: count, cache: cache, ttl: ttl}
}

// Get returns the cached feed, refreshing it when the cache is empty,
// expired, or disabled.
func (s *Service) Get(ctx context.Context) (*Feed, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var feed Feed
			if err := json.Unmarshal(cached, &feed); err == nil {
				return &feed, nil
			}
			// Corrupt cache entry: fall through to refresh.
		}
	}
	return s.Refresh(ctx)
}

// Refresh fetches the feed, extracts readable content for the top items,
// and stores the result under the TTL.
func (s *Service) Refresh(ctx context.Context) (*Feed, error) {
	items, err := fetchFeed(ctx, s.feedURL, s.count)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trending feed: %w", err)
	}

	extractAll(items)

	feed := &Feed{FeedURL: s.feedURL, FetchedAt: time.Now(), Items: items}

	if s.cache != nil {
		if b, err := json.Marshal(feed); err == nil {
			if err := s.cache.Set(ctx, cacheKey, b, s.ttl).Err(); err != nil {
				log.Printf("Warning: failed to cache trending feed: %v", err)
			}
		}
	}
	return feed, nil
}

// fetchFeed retrieves and parses an RSS/Atom feed into trending items.
func fetchFeed(ctx context.Context, feedURL string, maxCount int) ([]*Item, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	count := min(len(feed.Items), maxCount)
	items := make([]*Item, 0, count)

	for i := 0; i < count; i++ {
		entry := feed.Items[i]

		id := entry.GUID
		if id == "" && entry.Link != "" {
			id = types.GenerateID(entry.Link)
		}

		var publishedAt time.Time
		if entry.PublishedParsed != nil {
			publishedAt = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			publishedAt = *entry.UpdatedParsed
		}

		items = append(items, &Item{
			ID:          id,
			Title:       entry.Title,
			URL:         entry.Link,
			PublishedAt: publishedAt,
			Summary:     entry.Description,
			Ticker:      prompt.GuessTicker(entry.Title),
		})
	}
	return items, nil
}

// extractAll fetches readable excerpts for all items using a worker pool.
func extractAll(items []*Item) {
	var wg sync.WaitGroup
	itemChan := make(chan *Item, len(items))

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for item := range itemChan {
				if err := extractExcerpt(item); err != nil {
					item.ExtractionError = err.Error()
					log.Printf("[Worker %d] Failed to extract %s: %v", workerID, item.URL, err)
				}
				wg.Done()
			}
		}(i)
	}

	for _, item := range items {
		wg.Add(1)
		itemChan <- item
	}

	wg.Wait()
	close(itemChan)
}

// extractExcerpt pulls a readable excerpt for a single item.
func extractExcerpt(item *Item) error {
	if item.URL == "" {
		return fmt.Errorf("item URL is empty")
	}

	article, err := readability.FromURL(item.URL, extractorTimeout)
	if err != nil {
		return fmt.Errorf("readability extraction failed: %w", err)
	}

	item.Excerpt = article.Excerpt
	if item.Excerpt == "" && len(article.TextContent) > 0 {
		text := article.TextContent
		if len(text) > 280 {
			text = text[:280]
		}
		item.Excerpt = text
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
