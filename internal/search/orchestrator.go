// Package search issues the extracted queries against the index service,
// deduplicates the hits, and escalates through the retry ladder when results
// are thin, empty, or doc-dominated.
package search

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"librarian/internal/docdex"
	"librarian/internal/intent"
	"librarian/internal/logging"
	"librarian/internal/query"
)

// excludedDirs are path segments that never contain answerable source:
// dependency trees, build output, VCS metadata, and tool caches. Hits under
// any of these are dropped before dedup.
var excludedDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true, ".bzr": true,
	"node_modules": true, "bower_components": true, "jspm_packages": true,
	"vendor": true, "third_party": true, "thirdparty": true, "external": true,
	"dist": true, "build": true, "out": true, "output": true, "target": true,
	"bin": true, "obj": true, "release": true, "debug": true,
	".idea": true, ".vscode": true, ".vs": true, ".fleet": true,
	"__pycache__": true, ".pytest_cache": true, ".mypy_cache": true,
	".ruff_cache": true, ".tox": true, ".nox": true, ".eggs": true,
	".venv": true, "venv": true, "virtualenv": true, "site-packages": true,
	".ipynb_checkpoints": true,
	"coverage":           true, ".nyc_output": true, "htmlcov": true,
	".next": true, ".nuxt": true, ".svelte-kit": true, ".angular": true,
	".astro": true, ".docusaurus": true, ".vitepress": true,
	".cache": true, ".parcel-cache": true, ".turbo": true, ".sass-cache": true,
	".gradle": true, ".m2": true, ".cargo": true, ".stack-work": true,
	".terraform": true, ".serverless": true, ".aws-sam": true,
	".vercel": true, ".netlify": true, ".firebase": true, ".expo": true,
	".dart_tool": true, ".pub-cache": true,
	"deriveddata": true, "pods": true, "carthage": true, ".bundle": true,
	"cmake-build-debug": true, "cmake-build-release": true,
	"tmp": true, "temp": true, ".tmp": true, "logs": true,
}

// Result is the outcome of one orchestrated search pass, including which
// ladder rungs fired.
type Result struct {
	Hits       []docdex.Hit
	QueriesRun []string
	Expanded   bool
	Adaptive   bool
	SourceBias bool
	Failed     bool
	Warnings   []string
}

// Config holds orchestrator tuning. All values arrive pre-clamped.
type Config struct {
	MaxQueries            int
	MaxHitsPerQuery       int
	DocDominanceThreshold float64
}

// Orchestrator runs the query set against the index service with bounded
// escalation. The expander is optional; without it the expansion rung is a
// no-op.
type Orchestrator struct {
	client   docdex.Client
	expander query.Expander
	cfg      Config
}

// NewOrchestrator creates an orchestrator. expander may be nil.
func NewOrchestrator(client docdex.Client, expander query.Expander, cfg Config) *Orchestrator {
	return &Orchestrator{client: client, expander: expander, cfg: cfg}
}

// lowHitThreshold is the unique-hit count below which the expansion rung
// fires.
func (o *Orchestrator) lowHitThreshold() int {
	if o.cfg.MaxHitsPerQuery < 2 {
		return o.cfg.MaxHitsPerQuery
	}
	return 2
}

// Execute runs the full ladder: base pass, then expansion, adaptive, and
// UI source-bias rungs. Each rung checks the hit state left by the previous
// one, so at most the rungs whose trigger still holds actually run.
func (o *Orchestrator) Execute(ctx context.Context, request string, queries []string, sig intent.Signals, preferredFiles []string) Result {
	timer := logging.StartTimer(logging.CategorySearch, "Orchestrator.Execute")
	defer timer.Stop()

	res := Result{QueriesRun: queries}

	hits, err := o.runQueries(ctx, queries)
	if err != nil {
		res.Failed = true
		res.Warnings = append(res.Warnings, docdex.Soft("search", err))
	}
	res.Hits = hits

	o.expansionRetry(ctx, request, queries, &res)
	o.adaptiveRetry(ctx, request, sig, preferredFiles, &res)
	o.sourceBiasRetry(ctx, sig, &res)

	logging.Search("Execute: %d unique hits, expanded=%v adaptive=%v sourceBias=%v",
		len(res.Hits), res.Expanded, res.Adaptive, res.SourceBias)
	return res
}

// =============================================================================
// RETRY LADDER
// =============================================================================

// expansionRetry fires when the base pass failed, had no queries, or left
// fewer unique hits than the low-hit threshold. Provider failures downgrade
// to a warning.
func (o *Orchestrator) expansionRetry(ctx context.Context, request string, queries []string, res *Result) {
	if o.expander == nil {
		return
	}
	if !res.Failed && len(queries) > 0 && len(res.Hits) >= o.lowHitThreshold() {
		return
	}

	expanded, err := o.expander.Expand(ctx, request, queries)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("query_expansion_failed: %v", err))
		return
	}
	if len(expanded) == 0 {
		return
	}
	logging.SearchDebug("expansion retry with %d queries", len(expanded))

	hits, err := o.runQueries(ctx, expanded)
	if err != nil {
		res.Warnings = append(res.Warnings, docdex.Soft("search", err))
		return
	}
	res.Expanded = true
	res.Failed = false
	res.QueriesRun = mergeQueries(res.QueriesRun, expanded)
	res.Hits = mergeHits(res.Hits, hits)
}

// adaptiveRetry fires when search succeeded but produced zero hits. It
// rebuilds queries from request tokens, preferred-file path tokens, and
// intent keyword hints, skipping the pass entirely when the rebuilt set is
// textually identical to what already ran.
func (o *Orchestrator) adaptiveRetry(ctx context.Context, request string, sig intent.Signals, preferredFiles []string, res *Result) {
	if res.Failed || len(res.Hits) > 0 {
		return
	}

	rebuilt := query.Tokenize(request)
	for _, pf := range preferredFiles {
		rebuilt = append(rebuilt, query.PathTokens(pf)...)
	}
	for _, b := range sig.Buckets {
		for _, kw := range sig.Matches[b] {
			if len(kw) >= 4 {
				rebuilt = append(rebuilt, kw)
			}
		}
	}
	rebuilt = capQueries(dedupe(rebuilt), o.cfg.MaxQueries)
	if len(rebuilt) == 0 || sameQuerySet(rebuilt, res.QueriesRun) {
		return
	}
	logging.SearchDebug("adaptive retry with %d token queries", len(rebuilt))

	hits, err := o.runQueries(ctx, rebuilt)
	if err != nil {
		res.Warnings = append(res.Warnings, docdex.Soft("search", err))
		return
	}
	res.Adaptive = true
	res.QueriesRun = mergeQueries(res.QueriesRun, rebuilt)
	res.Hits = hits
}

// sourceBiasRetry fires for UI-intent requests whose hits are dominated by
// documentation paths. The biased pass only replaces the result set when it
// surfaces at least one non-doc hit.
func (o *Orchestrator) sourceBiasRetry(ctx context.Context, sig intent.Signals, res *Result) {
	if !sig.Has(intent.BucketUI) || len(res.Hits) == 0 {
		return
	}
	if docShare(res.Hits) < o.cfg.DocDominanceThreshold {
		return
	}

	biased := make([]string, 0, len(res.QueriesRun))
	for _, q := range res.QueriesRun {
		biased = append(biased, q+" component source")
	}
	biased = capQueries(biased, o.cfg.MaxQueries)
	logging.SearchDebug("source-bias retry: %.0f%% doc paths", docShare(res.Hits)*100)

	hits, err := o.runQueries(ctx, biased)
	if err != nil {
		res.Warnings = append(res.Warnings, docdex.Soft("search", err))
		return
	}
	if !hasNonDocHit(hits) {
		res.Warnings = append(res.Warnings, "ui_search_no_source_hits")
		return
	}
	res.SourceBias = true
	res.QueriesRun = mergeQueries(res.QueriesRun, biased)
	res.Hits = mergeHits(hits, res.Hits)
}

// =============================================================================
// QUERY EXECUTION
// =============================================================================

// runQueries executes every query concurrently, then concatenates results in
// query order before filtering and dedup, so the final ordering is stable
// regardless of completion order. An error is returned only when every query
// failed.
func (o *Orchestrator) runQueries(ctx context.Context, queries []string) ([]docdex.Hit, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	slots := make([][]docdex.Hit, len(queries))
	errs := make([]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, q := range queries {
		g.Go(func() error {
			hits, err := o.client.Search(gctx, q, docdex.SearchOptions{Limit: o.cfg.MaxHitsPerQuery})
			if err != nil {
				errs[i] = err
				logging.SearchWarn("query %q failed: %v", q, err)
				return nil
			}
			slots[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	var firstErr error
	for _, e := range errs {
		if e != nil {
			failed++
			if firstErr == nil {
				firstErr = e
			}
		}
	}
	if failed == len(queries) {
		return nil, firstErr
	}

	var all []docdex.Hit
	for _, hits := range slots {
		all = append(all, hits...)
	}
	return Dedup(filterExcluded(all)), nil
}

// Dedup removes duplicate hits by (doc_id, path) identity, keeping the first
// occurrence so earlier queries outrank later ones.
func Dedup(hits []docdex.Hit) []docdex.Hit {
	seen := make(map[string]bool, len(hits))
	out := make([]docdex.Hit, 0, len(hits))
	for _, h := range hits {
		k := h.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, h)
	}
	return out
}

func filterExcluded(hits []docdex.Hit) []docdex.Hit {
	out := hits[:0]
	for _, h := range hits {
		if !ExcludedPath(h.Path) {
			out = append(out, h)
		}
	}
	return out
}

// ExcludedPath reports whether any segment of the path is a known dependency,
// build-output, or cache directory.
func ExcludedPath(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if excludedDirs[strings.ToLower(seg)] {
			return true
		}
	}
	return false
}

// docShare returns the fraction of hits whose path is documentation-like.
func docShare(hits []docdex.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	docs := 0
	for _, h := range hits {
		if intent.IsDocPath(h.Path) {
			docs++
		}
	}
	return float64(docs) / float64(len(hits))
}

func hasNonDocHit(hits []docdex.Hit) bool {
	for _, h := range hits {
		if !intent.IsDocPath(h.Path) {
			return true
		}
	}
	return false
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

func mergeHits(primary, secondary []docdex.Hit) []docdex.Hit {
	return Dedup(append(append([]docdex.Hit(nil), primary...), secondary...))
}

func mergeQueries(ran, extra []string) []string {
	return dedupe(append(append([]string(nil), ran...), extra...))
}

func sameQuerySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), strings.TrimSpace(b[i])) {
			return false
		}
	}
	return true
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

func capQueries(ss []string, max int) []string {
	if max > 0 && len(ss) > max {
		return ss[:max]
	}
	return ss
}
