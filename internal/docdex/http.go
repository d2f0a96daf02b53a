package docdex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"librarian/internal/logging"
)

// HTTPClient talks to a docdex daemon over JSON/HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	caps       Capabilities
}

// HTTPConfig holds configuration for the HTTP client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig(baseURL string) HTTPConfig {
	return HTTPConfig{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// NewHTTPClient creates a client and resolves the service's optional
// capability set once, at construction. If the capabilities endpoint is
// missing (older daemons), every optional operation is assumed supported and
// failures surface per call.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	c := &HTTPClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	c.caps = c.resolveCapabilities()
	return c
}

func (c *HTTPClient) resolveCapabilities() Capabilities {
	all := Capabilities{
		CapTree:         true,
		CapDagExport:    true,
		CapOpenFile:     true,
		CapIndexRebuild: true,
		CapMemorySave:   true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var resp struct {
		Operations []string `json:"operations"`
	}
	if err := c.get(ctx, "/capabilities", &resp); err != nil {
		logging.DocdexDebug("capabilities probe failed, assuming full surface: %v", err)
		return all
	}

	caps := Capabilities{}
	for _, op := range resp.Operations {
		caps[Capability(op)] = true
	}
	return caps
}

// Capabilities returns the operation set resolved at construction.
func (c *HTTPClient) Capabilities() Capabilities { return c.caps }

// =============================================================================
// TRANSPORT HELPERS
// =============================================================================

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		// Body text is preserved so backoff signatures survive for the
		// retry policy to inspect.
		return fmt.Errorf("docdex %s: status %d: %s", req.URL.Path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// =============================================================================
// CONTRACT IMPLEMENTATION
// =============================================================================

func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *HTTPClient) Initialize(ctx context.Context, rootURI string) error {
	return c.post(ctx, "/initialize", map[string]string{"root_uri": rootURI}, nil)
}

func (c *HTTPClient) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.get(ctx, "/stats", &s)
	return s, err
}

func (c *HTTPClient) Files(ctx context.Context, limit, offset int) ([]string, error) {
	var resp struct {
		Paths []string `json:"paths"`
	}
	err := c.post(ctx, "/files", map[string]int{"limit": limit, "offset": offset}, &resp)
	return resp.Paths, err
}

func (c *HTTPClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	var resp struct {
		Hits []Hit `json:"hits"`
	}
	req := struct {
		Query string `json:"query"`
		SearchOptions
	}{query, opts}
	err := c.post(ctx, "/search", req, &resp)
	return resp.Hits, err
}

func (c *HTTPClient) OpenSnippet(ctx context.Context, docID string, window int) (Snippet, error) {
	var s Snippet
	err := c.post(ctx, "/snippet", map[string]interface{}{"doc_id": docID, "window": window}, &s)
	return s, err
}

func (c *HTTPClient) OpenFile(ctx context.Context, path string, opts OpenFileOptions) (FileContent, error) {
	var fc FileContent
	req := struct {
		Path string `json:"path"`
		OpenFileOptions
	}{path, opts}
	err := c.post(ctx, "/open", req, &fc)
	return fc, err
}

func (c *HTTPClient) Symbols(ctx context.Context, path string) ([]SymbolInfo, error) {
	var resp struct {
		Symbols []SymbolInfo `json:"symbols"`
	}
	err := c.post(ctx, "/symbols", map[string]string{"path": path}, &resp)
	return resp.Symbols, err
}

func (c *HTTPClient) AST(ctx context.Context, path string, maxNodes int) (ASTSummary, error) {
	var s ASTSummary
	err := c.post(ctx, "/ast", map[string]interface{}{"path": path, "max_nodes": maxNodes}, &s)
	return s, err
}

func (c *HTTPClient) ImpactGraph(ctx context.Context, path string, maxDepth, maxEdges int) (ImpactGraph, error) {
	var g ImpactGraph
	err := c.post(ctx, "/impact/graph", map[string]interface{}{
		"path": path, "max_depth": maxDepth, "max_edges": maxEdges,
	}, &g)
	return g, err
}

func (c *HTTPClient) ImpactDiagnostics(ctx context.Context, file string, limit, offset int) ([]ImpactDiagnostic, error) {
	var resp struct {
		Diagnostics []ImpactDiagnostic `json:"diagnostics"`
	}
	err := c.post(ctx, "/impact/diagnostics", map[string]interface{}{
		"file": file, "limit": limit, "offset": offset,
	}, &resp)
	return resp.Diagnostics, err
}

func (c *HTTPClient) Tree(ctx context.Context, opts TreeOptions) (string, error) {
	var resp struct {
		Tree string `json:"tree"`
	}
	err := c.post(ctx, "/tree", opts, &resp)
	return resp.Tree, err
}

func (c *HTTPClient) DagExport(ctx context.Context, sessionID, format string, maxNodes int) (string, error) {
	var resp struct {
		Payload string `json:"payload"`
	}
	err := c.post(ctx, "/dag/export", map[string]interface{}{
		"session_id": sessionID, "format": format, "max_nodes": maxNodes,
	}, &resp)
	return resp.Payload, err
}

func (c *HTTPClient) MemoryRecall(ctx context.Context, query string, topK int) ([]RecalledFact, error) {
	var resp struct {
		Facts []RecalledFact `json:"facts"`
	}
	err := c.post(ctx, "/memory/recall", map[string]interface{}{"query": query, "top_k": topK}, &resp)
	return resp.Facts, err
}

func (c *HTTPClient) MemorySave(ctx context.Context, text string) error {
	return c.post(ctx, "/memory/save", map[string]string{"text": text}, nil)
}

func (c *HTTPClient) GetProfile(ctx context.Context, agentID string) (Profile, error) {
	var p Profile
	err := c.post(ctx, "/profile", map[string]string{"agent_id": agentID}, &p)
	return p, err
}

func (c *HTTPClient) IndexRebuild(ctx context.Context) error {
	return c.post(ctx, "/index/rebuild", struct{}{}, nil)
}
