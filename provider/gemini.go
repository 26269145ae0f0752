package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"marketscholar/prompt"
)

const (
	geminiDefaultModel    = "gemini-2.0-flash"
	geminiDefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	geminiMaxContentChars = 12000
)

// Gemini is the primary provider. It runs with the Google Search grounding
// tool enabled and surfaces grounding chunk URIs as citations.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGeminiFromEnv reads GEMINI_API_KEY (and optional GEMINI_MODEL). A
// missing key leaves the client unconfigured rather than failing.
func NewGeminiFromEnv() *Gemini {
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = geminiDefaultModel
	}
	return &Gemini{
		apiKey:   os.Getenv("GEMINI_API_KEY"),
		model:    model,
		endpoint: geminiDefaultEndpoint,
		client:   http.DefaultClient,
	}
}

// NewGemini constructs a client against a specific endpoint, used by tests.
func NewGemini(apiKey, model, endpoint string, client *http.Client) *Gemini {
	return &Gemini{apiKey: apiKey, model: model, endpoint: endpoint, client: client}
}

func (g *Gemini) Name() string         { return g.model }
func (g *Gemini) Configured() bool     { return g.apiKey != "" }
func (g *Gemini) MaxContentChars() int { return geminiMaxContentChars }

// geminiRequest mirrors the generateContent wire shape. The google_search
// tool and JSON response mode cannot be combined, so the prompt asks for
// bare JSON and stripFences cleans up what comes back.
type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiTool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

func (g *Gemini) Analyze(ctx context.Context, p prompt.Prompt) (*Response, error) {
	payload := geminiRequest{
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: p.User}}}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: p.System}}},
		Tools:             []geminiTool{{}},
		GenerationConfig:  geminiGenConfig{Temperature: 0.2, MaxOutputTokens: 2000},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ParseError{Provider: g.Name(), Err: err}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, g.model, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Provider: g.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: g.Name(), Timeout: isTimeoutErr(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainDiscard(resp.Body)
		return nil, &TransportError{Provider: g.Name(), Status: resp.StatusCode}
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ParseError{Provider: g.Name(), Err: err}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &ParseError{Provider: g.Name(), Err: errors.New("no candidates in response")}
	}

	text := ""
	for _, part := range parsed.Candidates[0].Content.Parts {
		text += part.Text
	}

	raw := map[string]interface{}{}
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return nil, &ParseError{Provider: g.Name(), Err: err}
	}

	var citations []string
	for _, chunk := range parsed.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web.URI != "" {
			citations = append(citations, chunk.Web.URI)
		}
	}

	return &Response{Raw: raw, Citations: citations}, nil
}

func isTimeoutErr(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// drainDiscard empties an unread body so the keep-alive connection can be
// reused.
func drainDiscard(r io.Reader) { _, _ = io.Copy(io.Discard, r) }
