package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketscholar/extractor"
	"marketscholar/prompt"
	"marketscholar/provider"
	"marketscholar/types"
)

type stubClient struct {
	name  string
	raw   map[string]interface{}
	cites []string
	err   error
	calls int
	seen  string
}

func (s *stubClient) Name() string         { return s.name }
func (s *stubClient) Configured() bool     { return true }
func (s *stubClient) MaxContentChars() int { return 12000 }

func (s *stubClient) Analyze(ctx context.Context, p prompt.Prompt) (*provider.Response, error) {
	s.calls++
	s.seen = p.User
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Response{Raw: s.raw, Citations: s.cites}, nil
}

func articleServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Chip Rally</title></head><body><article><p>
			Shares of the chipmaker fell 17% even as quarterly revenue grew 114% year over year,
			with data center sales setting another record and margins holding firm.
			</p></article></body></html>
			<!-- padding padding padding padding padding padding padding padding padding
			padding padding padding padding padding padding padding padding padding -->`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeEmptyContent(t *testing.T) {
	a := New(extractor.New(), []provider.Client{&stubClient{name: "stub"}}, nil, nil)

	_, err := a.Analyze(context.Background(), types.AnalysisRequest{Content: "   "})
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestAnalyzeRawTextSkipsExtraction(t *testing.T) {
	stub := &stubClient{name: "stub", raw: map[string]interface{}{
		"vms": map[string]interface{}{"tableCoordMatch": 80.0, "textMatch": 40.0, "score": 1.0},
	}}
	a := New(extractor.New(), []provider.Client{stub}, nil, nil)

	result, err := a.Analyze(context.Background(), types.AnalysisRequest{
		Content: "NVDA fell 17% despite revenue growth", Mode: "headline", Stance: "bearish",
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(stub.seen, "NVDA fell 17%") {
		t.Errorf("raw text should be passed through to the provider")
	}

	// Enforcement must have replaced the model's score.
	vms, _ := result["vms"].(map[string]interface{})
	if vms["score"] != 66.0 {
		t.Errorf("expected enforced score 66, got %v", vms["score"])
	}
	if result["modelUsed"] != "stub" {
		t.Errorf("expected modelUsed recorded, got %v", result["modelUsed"])
	}
	if _, ok := result["timestamp"].(string); !ok {
		t.Errorf("expected timestamp on result")
	}
	if _, ok := result["sourceUrl"]; ok {
		t.Errorf("raw text input should carry no sourceUrl")
	}
}

func TestAnalyzeURLExtractsBeforeProvider(t *testing.T) {
	srv := articleServer(t)
	stub := &stubClient{name: "stub", raw: map[string]interface{}{}}
	a := New(extractor.NewWithClient(srv.Client()), []provider.Client{stub}, nil, nil)

	result, err := a.Analyze(context.Background(), types.AnalysisRequest{Content: srv.URL})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(stub.seen, "Title: Chip Rally") {
		t.Errorf("provider should receive composed article payload, got %q", stub.seen)
	}
	if !strings.Contains(stub.seen, "Source: "+srv.URL) {
		t.Errorf("payload should carry the source line")
	}
	if result["sourceUrl"] != srv.URL {
		t.Errorf("expected sourceUrl on result, got %v", result["sourceUrl"])
	}
}

func TestAnalyzeExtractionFailureSkipsProviders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	stub := &stubClient{name: "stub", raw: map[string]interface{}{}}
	a := New(extractor.NewWithClient(srv.Client()), []provider.Client{stub}, nil, nil)

	_, err := a.Analyze(context.Background(), types.AnalysisRequest{Content: srv.URL})
	var fe *extractor.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("no provider should be invoked after extraction failure")
	}
}

func TestAnalyzeGroundingMetadata(t *testing.T) {
	stub := &stubClient{name: "stub", raw: map[string]interface{}{},
		cites: []string{"https://example.com/a"}}
	a := New(extractor.New(), []provider.Client{stub}, nil, nil)

	result, err := a.Analyze(context.Background(), types.AnalysisRequest{Content: "some market text"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result["isGrounded"] != true {
		t.Errorf("expected grounded result")
	}
	cites, _ := result["citations"].([]string)
	if len(cites) != 1 {
		t.Errorf("expected citations carried onto result, got %v", result["citations"])
	}
}
