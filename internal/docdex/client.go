package docdex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"librarian/internal/logging"
)

// Capability names an optional operation a client may support. The supported
// set is fixed at construction time; callers check it instead of probing
// methods per call.
type Capability string

const (
	CapTree         Capability = "tree"
	CapDagExport    Capability = "dagExport"
	CapOpenFile     Capability = "openFile"
	CapIndexRebuild Capability = "indexRebuild"
	CapMemorySave   Capability = "memorySave"
)

// Capabilities is the tagged set of optional operations a client supports.
type Capabilities map[Capability]bool

// Has reports whether the capability is supported.
func (c Capabilities) Has(cap Capability) bool { return c[cap] }

// SearchOptions shapes a search call.
type SearchOptions struct {
	Limit        int    `json:"limit,omitempty"`
	DagSessionID string `json:"dag_session_id,omitempty"`
}

// Client is the index-service contract. Every method may fail; callers wrap
// non-fatal failures with Soft and continue with the artifact absent.
type Client interface {
	Capabilities() Capabilities

	HealthCheck(ctx context.Context) error
	Initialize(ctx context.Context, rootURI string) error
	Stats(ctx context.Context) (Stats, error)
	Files(ctx context.Context, limit, offset int) ([]string, error)
	Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error)
	OpenSnippet(ctx context.Context, docID string, window int) (Snippet, error)
	OpenFile(ctx context.Context, path string, opts OpenFileOptions) (FileContent, error)
	Symbols(ctx context.Context, path string) ([]SymbolInfo, error)
	AST(ctx context.Context, path string, maxNodes int) (ASTSummary, error)
	ImpactGraph(ctx context.Context, path string, maxDepth, maxEdges int) (ImpactGraph, error)
	ImpactDiagnostics(ctx context.Context, file string, limit, offset int) ([]ImpactDiagnostic, error)
	Tree(ctx context.Context, opts TreeOptions) (string, error)
	DagExport(ctx context.Context, sessionID, format string, maxNodes int) (string, error)
	MemoryRecall(ctx context.Context, query string, topK int) ([]RecalledFact, error)
	MemorySave(ctx context.Context, text string) error
	GetProfile(ctx context.Context, agentID string) (Profile, error)
	IndexRebuild(ctx context.Context) error
}

// Soft converts a per-call error into a named warning string. The pipeline
// records the warning and continues with the artifact absent.
func Soft(call string, err error) string {
	return fmt.Sprintf("docdex_%s_failed: %v", call, err)
}

// =============================================================================
// BOUNDED RETRY
// =============================================================================

// Retryable error signatures. Anything else fails immediately.
var retryableSignatures = []string{
	"backoff",
	"index writer unavailable",
}

// IsRetryable reports whether an error carries a transient backoff signature.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range retryableSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// RetryPolicy bounds transient retries for stats/files calls.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration // multiplied by the attempt number
}

// DefaultRetryPolicy matches the service's observed backoff behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Backoff: 150 * time.Millisecond}
}

// Do runs fn, retrying only backoff-signature errors up to MaxRetries times
// with Backoff·attempt delay. The delay is a real timer, never a busy-wait,
// and respects context cancellation.
func (p RetryPolicy) Do(ctx context.Context, call string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}

		delay := p.Backoff * time.Duration(attempt+1)
		logging.DocdexWarn("%s transient failure (attempt %d/%d), retrying in %v: %v",
			call, attempt+1, p.MaxRetries, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
