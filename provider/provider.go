// Package provider holds the model clients and the ordered fallback logic
// that runs a forensic audit prompt against the first provider able to
// answer. Fallback is sequential, never speculative: rate limits and cost
// make racing both providers undesirable.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"marketscholar/prompt"
)

// RequestTimeout bounds a single provider call, enforced on the caller side.
const RequestTimeout = 60 * time.Second

// ErrNoProviderConfigured is returned before any network call when no
// provider credential is present.
var ErrNoProviderConfigured = errors.New("no analysis provider configured: set GEMINI_API_KEY or OPENAI_API_KEY")

// TransportError reports a non-2xx status or a timeout from a provider
// endpoint. Status 429 is surfaced verbatim to the HTTP layer.
type TransportError struct {
	Provider string
	Status   int
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out", e.Provider)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a response body that was not the JSON the prompt asked
// for. Treated identically to a transport failure for fallback purposes.
type ParseError struct {
	Provider string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Response is one provider's parsed answer plus any grounding citations the
// provider surfaced.
type Response struct {
	Raw       map[string]interface{}
	Citations []string
}

// Client is a single model endpoint. Implementations must translate every
// failure into a TransportError or ParseError so fallback stays typed.
type Client interface {
	Name() string
	Configured() bool
	// MaxContentChars is the provider-specific cap applied when the prompt
	// is built for this client.
	MaxContentChars() int
	Analyze(ctx context.Context, p prompt.Prompt) (*Response, error)
}

// Result is the outcome of the fallback run, before formula enforcement.
type Result struct {
	Raw       map[string]interface{}
	Citations []string
	ModelUsed string
	Grounded  bool
}

// Run tries the configured clients in order and returns the first success
// or the last failure. The prompt is rebuilt per client to honor its
// content cap. No retries happen within a single client. The fallback
// marker reflects the client's position in the priority list, so a
// secondary that answers is labeled a fallback even when it was the only
// provider with a credential.
func Run(ctx context.Context, clients []Client, content, mode, stance string) (*Result, error) {
	var order []int
	for i, c := range clients {
		if c.Configured() {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return nil, ErrNoProviderConfigured
	}

	var lastErr error
	for n, idx := range order {
		c := clients[idx]
		p := prompt.Build(content, mode, stance, c.MaxContentChars())

		callCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		resp, err := c.Analyze(callCtx, p)
		cancel()

		if err != nil {
			lastErr = err
			if n < len(order)-1 {
				log.Printf("provider %s failed, falling back: %v", c.Name(), err)
				continue
			}
			return nil, lastErr
		}

		modelUsed := c.Name()
		if idx > 0 {
			modelUsed += " (fallback)"
		}
		return &Result{
			Raw:       resp.Raw,
			Citations: resp.Citations,
			ModelUsed: modelUsed,
			Grounded:  len(resp.Citations) > 0,
		}, nil
	}
	return nil, lastErr
}

// stripFences removes a Markdown code-fence wrapper (```json ... ```) that
// models emit despite being told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
