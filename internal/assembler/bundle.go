// Package assembler runs the full assembly pipeline: health check, search,
// selection, analysis, loading, memory, and serialization, producing one
// immutable ContextBundle per call.
package assembler

import (
	"fmt"
	"strings"
	"time"

	"librarian/internal/docdex"
	"librarian/internal/intent"
	"librarian/internal/loader"
	"librarian/internal/memory"
	"librarian/internal/selector"
)

// ContextBundle is the aggregate result of one Assemble call. It is built up
// during the pipeline and never mutated after return.
type ContextBundle struct {
	ID        string    `json:"id"`
	Request   string    `json:"request"`
	CreatedAt time.Time `json:"created_at"`

	Intent  intent.Signals `json:"intent"`
	Queries []string       `json:"queries"`
	Hits    []docdex.Hit   `json:"hits,omitempty"`

	Snippets          []docdex.Snippet                     `json:"snippets,omitempty"`
	Symbols           map[string][]docdex.SymbolInfo       `json:"symbols,omitempty"`
	ASTs              map[string]docdex.ASTSummary         `json:"asts,omitempty"`
	ImpactEdges       []docdex.ImpactEdge                  `json:"impact_edges,omitempty"`
	ImpactDiagnostics map[string][]docdex.ImpactDiagnostic `json:"impact_diagnostics,omitempty"`
	RepoMap           string                               `json:"repo_map,omitempty"`

	Selection     selector.Selection `json:"selection"`
	AnalysisPaths []string           `json:"analysis_paths,omitempty"`
	Files         []loader.Entry     `json:"files"`
	RedactedCount int                `json:"redacted_count,omitempty"`

	Memory         []memory.Fact          `json:"memory,omitempty"`
	Episodes       []memory.Episode       `json:"episodes,omitempty"`
	GoldenExamples []memory.GoldenExample `json:"golden_examples,omitempty"`
	Profile        docdex.Profile         `json:"profile,omitempty"`

	Stats    docdex.Stats `json:"stats"`
	Degraded bool         `json:"degraded,omitempty"`

	Warnings []string      `json:"warnings"`
	Missing  []string      `json:"missing"`
	Digest   RequestDigest `json:"digest"`

	// Serialized is the rendered payload; excluded from JSON output to avoid
	// embedding the bundle inside itself.
	Serialized string `json:"-"`
}

// RequestDigest summarizes the assembly outcome for quick consumption.
type RequestDigest struct {
	Summary        string   `json:"summary"`
	RefinedQuery   string   `json:"refined_query"`
	Confidence     string   `json:"confidence"`
	Signals        []string `json:"signals"`
	CandidateFiles []string `json:"candidate_files"`
}

// Confidence levels for the request digest.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// buildDigest derives the digest from the final bundle state. Confidence
// starts at high and degrades on thin hits or an empty focus, with a further
// downgrade when focus is markup-only but plausible script companions exist
// unselected.
func buildDigest(b *ContextBundle) RequestDigest {
	d := RequestDigest{
		Summary:        digestSummary(b),
		RefinedQuery:   refinedQuery(b),
		CandidateFiles: b.Selection.All(),
	}
	for _, bucket := range b.Intent.Buckets {
		d.Signals = append(d.Signals, string(bucket))
	}

	switch {
	case len(b.Hits) >= 3 && len(b.Selection.Focus) > 0:
		d.Confidence = ConfidenceHigh
	case len(b.Hits) > 0 || len(b.Selection.Focus) > 0:
		d.Confidence = ConfidenceMedium
	default:
		d.Confidence = ConfidenceLow
	}

	if d.Confidence != ConfidenceLow && markupOnlyFocus(b) {
		d.Confidence = downgrade(d.Confidence)
	}
	return d
}

// markupOnlyFocus reports whether every focus path is pure markup while at
// least one plausible script companion exists in the hit set but was not
// selected.
func markupOnlyFocus(b *ContextBundle) bool {
	if len(b.Selection.Focus) == 0 {
		return false
	}
	for _, p := range b.Selection.Focus {
		if !intent.IsMarkupPath(p) {
			return false
		}
	}
	known := make(map[string]bool)
	for _, h := range b.Hits {
		known[h.Path] = true
	}
	for _, p := range b.Selection.Focus {
		for _, companion := range intent.ScriptCompanions(p) {
			if known[companion] && !b.Selection.Contains(companion) {
				return true
			}
		}
	}
	return false
}

func downgrade(confidence string) string {
	if confidence == ConfidenceHigh {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

func digestSummary(b *ContextBundle) string {
	mode := "indexed"
	if b.Degraded {
		mode = "degraded"
	}
	return fmt.Sprintf("%s assembly: %d focus, %d periphery, %d hits, intent %s",
		mode, len(b.Selection.Focus), len(b.Selection.Periphery), len(b.Hits),
		strings.Join(bucketsAsStrings(b.Intent.Buckets), "+"))
}

func refinedQuery(b *ContextBundle) string {
	if len(b.Queries) > 0 {
		return b.Queries[0]
	}
	return strings.TrimSpace(b.Request)
}

func bucketsAsStrings(buckets []intent.Bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = string(b)
	}
	return out
}

// =============================================================================
// DEEP MODE FAILURE
// =============================================================================

// DeepModeError is the only fatal assembly outcome: deep mode demands a
// healthy, populated index and fails fast with remediation steps when the
// capability checks do not hold.
type DeepModeError struct {
	Missing     []string
	Remediation []string
}

func (e *DeepModeError) Error() string {
	return fmt.Sprintf("deep investigation unavailable, missing: %s",
		strings.Join(e.Missing, ", "))
}

// =============================================================================
// EVENTS
// =============================================================================

// Event kinds, emitted in stage order on the optional event channel.
const (
	EventStatus     = "status"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
)

// Event is one pipeline progress notification.
type Event struct {
	Kind   string `json:"kind"`
	Stage  string `json:"stage"`
	Detail string `json:"detail,omitempty"`
}
