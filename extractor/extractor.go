package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"marketscholar/types"
)

const (
	fetchTimeout = 20 * time.Second
	maxHTMLBytes = 5 << 20

	// Responses shorter than this are JavaScript shells or block pages,
	// not rendered articles.
	minResponseChars = 200

	// Below recoveryThreshold the JSON-LD recovery path is attempted;
	// below minArticleChars extraction fails outright.
	recoveryThreshold = 100
	minArticleChars   = 50

	maxBodyChars = 15000
)

// contentClassFragments are class-name fragments that commonly mark the main
// article container across news sites. Checked in document order, first
// match wins.
var contentClassFragments = []string{
	"article-body",
	"articlebody",
	"article-content",
	"article__body",
	"story-body",
	"entry-content",
	"post-content",
	"content-body",
	"body-content",
}

// knownSiteClasses narrows the class match for hosts with idiosyncratic
// layouts where the generic fragments select navigation chrome.
var knownSiteClasses = map[string][]string{
	"finance.yahoo.com": {"caas-body"},
	"seekingalpha.com":  {"paywall-full-content", "article-content"},
	"fool.com":          {"article-body"},
}

var (
	contentIDPattern = regexp.MustCompile(`(?i)(article|story|content|main)`)
	whitespaceRun    = regexp.MustCompile(`[\s\x{00A0}]+`)
)

// Extractor fetches a URL and converts raw HTML into a bounded plain-text
// article payload using ordered structural heuristics.
type Extractor struct {
	client *http.Client
}

// New returns an Extractor with the bounded fetch timeout. Redirects follow
// the http.Client default.
func New() *Extractor {
	return &Extractor{client: &http.Client{Timeout: fetchTimeout}}
}

// NewWithClient constructs an Extractor around a caller-supplied client,
// used by tests to point at fixture servers.
func NewWithClient(client *http.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract performs a single fetch attempt (no retries) and returns the
// extracted article, or a FetchError / ParseError describing why the page
// yielded nothing readable.
func (e *Extractor) Extract(ctx context.Context, articleURL string) (*types.ExtractedArticle, error) {
	rawHTML, err := e.fetch(ctx, articleURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &ParseError{URL: articleURL, Reason: "invalid HTML: " + err.Error()}
	}

	// JSON-LD blocks must be collected before the script purge below.
	ldBlocks := collectJSONLD(doc)

	doc.Find("script, style, noscript, nav, footer").Remove()

	title := collapseWhitespace(doc.Find("title").First().Text())
	description := extractDescription(doc)

	body := collapseWhitespace(selectArticleBody(doc, articleURL).Text())

	if len(body) < recoveryThreshold {
		if recovered := recoverFromJSONLD(ldBlocks); len(recovered) > len(body) {
			log.Printf("✓ JSON-LD recovery used for %s (%d chars)", articleURL, len(recovered))
			body = recovered
		}
	}

	if len(body) < minArticleChars {
		return nil, &ParseError{URL: articleURL, Reason: "page requires script execution or blocks automated access"}
	}

	if len(body) > maxBodyChars {
		body = body[:truncationBoundary(body, maxBodyChars)]
	}

	return &types.ExtractedArticle{
		Title:           title,
		MetaDescription: description,
		SourceURL:       articleURL,
		BodyText:        body,
	}, nil
}

// fetch issues the single GET with a browser-like header set.
func (e *Extractor) fetch(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", &FetchError{URL: articleURL, Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: articleURL, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: articleURL, Status: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLBytes))
	if err != nil {
		return "", &FetchError{URL: articleURL, Timeout: isTimeout(err), Err: err}
	}
	if len(b) < minResponseChars {
		return "", &FetchError{URL: articleURL, Status: resp.StatusCode, Err: errors.New("response too short, likely a JavaScript-only or blocking page")}
	}
	return string(b), nil
}

func isTimeout(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// extractDescription prefers the Open Graph description over the standard
// meta description.
func extractDescription(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok && strings.TrimSpace(og) != "" {
		return collapseWhitespace(og)
	}
	if std, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		return collapseWhitespace(std)
	}
	return ""
}

// selectArticleBody applies the ordered structural heuristics, first match
// wins: site override, article tag, known class fragments, role/id match,
// then the whole cleaned document.
func selectArticleBody(doc *goquery.Document, articleURL string) *goquery.Selection {
	if sel := siteOverride(doc, articleURL); sel != nil {
		return sel
	}

	if article := doc.Find("article").First(); article.Length() > 0 {
		return article
	}

	if sel := divWithClassFragment(doc, contentClassFragments); sel != nil {
		return sel
	}

	if main := doc.Find(`div[role="main"]`).First(); main.Length() > 0 {
		return main
	}
	var byID *goquery.Selection
	doc.Find("div[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		if contentIDPattern.MatchString(id) {
			byID = s
			return false
		}
		return true
	})
	if byID != nil {
		return byID
	}

	return doc.Selection
}

func siteOverride(doc *goquery.Document, articleURL string) *goquery.Selection {
	u, err := url.Parse(articleURL)
	if err != nil {
		return nil
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	fragments, ok := knownSiteClasses[host]
	if !ok {
		return nil
	}
	return divWithClassFragment(doc, fragments)
}

func divWithClassFragment(doc *goquery.Document, fragments []string) *goquery.Selection {
	var match *goquery.Selection
	doc.Find("div[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		lower := strings.ToLower(class)
		for _, fragment := range fragments {
			if strings.Contains(lower, fragment) {
				match = s
				return false
			}
		}
		return true
	})
	return match
}

// collectJSONLD grabs the text of every ld+json script block before scripts
// are stripped from the document.
func collectJSONLD(doc *goquery.Document) []string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})
	return blocks
}

// recoverFromJSONLD scans structured-data blocks for an articleBody or
// description field, returning the longest candidate found.
func recoverFromJSONLD(blocks []string) string {
	best := ""
	for _, block := range blocks {
		var parsed interface{}
		if err := json.Unmarshal([]byte(block), &parsed); err != nil {
			continue
		}
		for _, node := range flattenJSONLD(parsed) {
			for _, key := range []string{"articleBody", "description"} {
				if text, ok := node[key].(string); ok {
					text = collapseWhitespace(text)
					if len(text) > len(best) {
						best = text
					}
				}
			}
		}
	}
	return best
}

// flattenJSONLD yields every object in a JSON-LD document, descending into
// top-level arrays and @graph containers.
func flattenJSONLD(parsed interface{}) []map[string]interface{} {
	var nodes []map[string]interface{}
	switch v := parsed.(type) {
	case map[string]interface{}:
		nodes = append(nodes, v)
		if graph, ok := v["@graph"].([]interface{}); ok {
			for _, item := range graph {
				if m, ok := item.(map[string]interface{}); ok {
					nodes = append(nodes, m)
				}
			}
		}
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				nodes = append(nodes, m)
			}
		}
	}
	return nodes
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// truncationBoundary backs a byte cap up to the nearest rune start so a cut
// never splits a multi-byte character.
func truncationBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
