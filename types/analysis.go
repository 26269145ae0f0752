package types

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Analysis modes describe where the submitted text came from.
const (
	ModeHeadline = "headline"
	ModeUpload   = "upload"
	ModeThesis   = "thesis"
)

// Stances bias the audit instruction toward a position to stress-test.
const (
	StanceBullish = "bullish"
	StanceNeutral = "neutral"
	StanceBearish = "bearish"
)

// AnalysisRequest is a single inbound analysis call. Content is either raw
// article text or a single http(s) URL. The request is immutable for the
// lifetime of the pipeline run.
type AnalysisRequest struct {
	Content string `json:"content"`
	Mode    string `json:"mode,omitempty"`
	Stance  string `json:"stance,omitempty"`
}

// NormalizeMode maps unknown or empty modes to headline.
func NormalizeMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeUpload:
		return ModeUpload
	case ModeThesis:
		return ModeThesis
	default:
		return ModeHeadline
	}
}

// NormalizeStance maps unknown or empty stances to neutral.
func NormalizeStance(stance string) string {
	switch strings.ToLower(strings.TrimSpace(stance)) {
	case StanceBullish:
		return StanceBullish
	case StanceBearish:
		return StanceBearish
	default:
		return StanceNeutral
	}
}

// urlPattern is deliberately strict: a lone http(s) URL with no embedded
// whitespace. Pasted article text that merely contains a link must not be
// mistaken for a URL submission.
var urlPattern = regexp.MustCompile(`^https?://\S+$`)

// IsArticleURL reports whether content is a single URL rather than raw text.
func IsArticleURL(content string) bool {
	return urlPattern.MatchString(strings.TrimSpace(content))
}

// ExtractedArticle is the readable payload pulled from a fetched page. It is
// owned by a single pipeline invocation and never persisted.
type ExtractedArticle struct {
	Title           string `json:"title,omitempty"`
	MetaDescription string `json:"meta_description,omitempty"`
	SourceURL       string `json:"source_url"`
	BodyText        string `json:"body_text"`
}

// Payload renders the article as the composed text block handed to the
// prompt builder: title line, description line, source line, then body.
func (a *ExtractedArticle) Payload() string {
	var b strings.Builder
	if a.Title != "" {
		b.WriteString("Title: " + a.Title + "\n")
	}
	if a.MetaDescription != "" {
		b.WriteString("Description: " + a.MetaDescription + "\n")
	}
	b.WriteString("Source: " + a.SourceURL + "\n\n")
	b.WriteString(a.BodyText)
	return b.String()
}

// GenerateID creates a short, stable ID by hashing the provided string input
func GenerateID(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
