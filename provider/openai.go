package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"marketscholar/prompt"
)

const (
	openaiDefaultModel    = "gpt-4o-mini"
	openaiDefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	openaiMaxContentChars = 8000
)

// OpenAI is the fallback provider. It has no search grounding, so results
// produced through it are never marked grounded and carry no citations.
type OpenAI struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewOpenAIFromEnv reads OPENAI_API_KEY (and optional OPENAI_MODEL).
func NewOpenAIFromEnv() *OpenAI {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = openaiDefaultModel
	}
	return &OpenAI{
		apiKey:   os.Getenv("OPENAI_API_KEY"),
		model:    model,
		endpoint: openaiDefaultEndpoint,
		client:   http.DefaultClient,
	}
}

// NewOpenAI constructs a client against a specific endpoint, used by tests.
func NewOpenAI(apiKey, model, endpoint string, client *http.Client) *OpenAI {
	return &OpenAI{apiKey: apiKey, model: model, endpoint: endpoint, client: client}
}

func (o *OpenAI) Name() string         { return o.model }
func (o *OpenAI) Configured() bool     { return o.apiKey != "" }
func (o *OpenAI) MaxContentChars() int { return openaiMaxContentChars }

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model          string          `json:"model"`
	Messages       []openaiMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Analyze(ctx context.Context, p prompt.Prompt) (*Response, error) {
	payload := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: 0.2,
	}
	payload.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ParseError{Provider: o.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Provider: o.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &TransportError{Provider: o.Name(), Timeout: isTimeoutErr(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainDiscard(resp.Body)
		return nil, &TransportError{Provider: o.Name(), Status: resp.StatusCode}
	}

	var parsed openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ParseError{Provider: o.Name(), Err: err}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, &ParseError{Provider: o.Name(), Err: errors.New("no choices in response")}
	}

	raw := map[string]interface{}{}
	if err := json.Unmarshal([]byte(stripFences(parsed.Choices[0].Message.Content)), &raw); err != nil {
		return nil, &ParseError{Provider: o.Name(), Err: err}
	}

	return &Response{Raw: raw}, nil
}
