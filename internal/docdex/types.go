// Package docdex defines the contract with the external code-indexing
// service and the failure-handling rules for talking to it. Every call is
// fallible; callers treat the service as unreliable by design.
package docdex

// Hit is one full-text search result.
type Hit struct {
	DocID string  `json:"doc_id,omitempty"`
	Path  string  `json:"path,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// Key identifies a hit for deduplication. First occurrence wins.
func (h Hit) Key() string {
	return h.DocID + "\x00" + h.Path
}

// Stats describes the state of the remote index.
type Stats struct {
	NumDocs            int   `json:"num_docs"`
	LastUpdatedEpochMS int64 `json:"last_updated_epoch_ms"`
}

// Snippet is a windowed extract around a search hit.
type Snippet struct {
	DocID     string `json:"doc_id"`
	Path      string `json:"path,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Text      string `json:"text"`
}

// FileContent is the result of an openFile call.
type FileContent struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// OpenFileOptions shapes an openFile call.
type OpenFileOptions struct {
	StartLine int  `json:"start_line,omitempty"`
	EndLine   int  `json:"end_line,omitempty"`
	Head      int  `json:"head,omitempty"`
	Clamp     bool `json:"clamp,omitempty"`
}

// SymbolInfo is one symbol reported for a path.
type SymbolInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// ASTSummary is a bounded structural summary of a file.
type ASTSummary struct {
	Path      string `json:"path"`
	NodeCount int    `json:"node_count"`
	Outline   string `json:"outline"`
}

// ImpactEdge is one dependency edge of the impact graph.
type ImpactEdge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Kind   string  `json:"kind,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// ImpactGraph holds the inbound/outbound dependency edges of a path.
type ImpactGraph struct {
	Path     string       `json:"path"`
	Inbound  []ImpactEdge `json:"inbound"`
	Outbound []ImpactEdge `json:"outbound"`
}

// ImpactDiagnostic is one dependency-health finding for a file.
type ImpactDiagnostic struct {
	File     string `json:"file"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// TreeOptions shapes a tree call.
type TreeOptions struct {
	Path          string   `json:"path,omitempty"`
	MaxDepth      int      `json:"max_depth,omitempty"`
	IncludeHidden bool     `json:"include_hidden,omitempty"`
	ExtraExcludes []string `json:"extra_excludes,omitempty"`
}

// RecalledFact is one free-text memory fact returned by memoryRecall.
type RecalledFact struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Profile carries per-agent preferences from the profile store.
type Profile struct {
	AgentID     string            `json:"agent_id"`
	Preferences map[string]string `json:"preferences,omitempty"`
	QAProfile   string            `json:"qa_profile,omitempty"`
}
