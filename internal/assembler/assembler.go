package assembler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"librarian/internal/config"
	"librarian/internal/docdex"
	"librarian/internal/intent"
	"librarian/internal/loader"
	"librarian/internal/logging"
	"librarian/internal/memory"
	"librarian/internal/query"
	"librarian/internal/search"
	"librarian/internal/selector"
	"librarian/internal/workspace"
)

// memoryRecallTopK bounds how many facts are pulled per request.
const memoryRecallTopK = 12

// episodeAttachLimit bounds episodic and golden-example attachments.
const episodeAttachLimit = 3

// Deps are the collaborators an assembler needs. Client is required;
// everything else is optional and degrades gracefully when nil.
type Deps struct {
	Client   docdex.Client
	Expander query.Expander
	Scanner  *workspace.Scanner
	Episodes *memory.EpisodeStore
	Events   chan<- Event
}

// Assembler builds context bundles. Options are resolved at construction and
// never change afterwards; build a fresh instance for a different preset.
type Assembler struct {
	opts  config.Options
	deps  Deps
	retry docdex.RetryPolicy
}

// New creates an assembler with clamped options.
func New(opts config.Options, deps Deps) *Assembler {
	return &Assembler{
		opts:  opts.Clamped(),
		deps:  deps,
		retry: docdex.DefaultRetryPolicy(),
	}
}

// pipelineState accumulates mutable progress through one Assemble call.
// It never outlives the call.
type pipelineState struct {
	bundle           *ContextBundle
	healthOK         bool
	statsOK          bool
	filesOK          bool
	searchUnreliable bool
}

// Assemble runs the full pipeline for one request. The only error return is
// a *DeepModeError; every other failure degrades into warnings on the bundle.
func (a *Assembler) Assemble(ctx context.Context, request string) (*ContextBundle, error) {
	timer := logging.StartTimer(logging.CategoryAssemble, "Assembler.Assemble")
	defer timer.Stop()

	st := &pipelineState{
		bundle: &ContextBundle{
			ID:        uuid.NewString(),
			Request:   request,
			CreatedAt: time.Now(),
			Intent:    intent.Detect(request),
		},
	}
	a.emit(EventStatus, "start", request)

	if err := a.healthStage(ctx, st); err != nil {
		return nil, err
	}
	if !st.healthOK {
		a.degradedFallback(ctx, st)
		return a.finalize(st), nil
	}

	a.searchStage(ctx, st)
	a.selectStage(st)
	a.analyzeStage(ctx, st)
	a.loadStage(ctx, st)
	a.memoryStage(ctx, st)

	bundle := a.finalize(st)
	a.saveEpisode(bundle)
	return bundle, nil
}

// =============================================================================
// STAGES
// =============================================================================

// healthStage checks the service and index state. In deep mode any gap is
// fatal; otherwise failure routes the call into the degraded fallback.
func (a *Assembler) healthStage(ctx context.Context, st *pipelineState) error {
	a.emit(EventToolCall, "health_check", "")

	if err := a.deps.Client.HealthCheck(ctx); err != nil {
		logging.AssembleWarn("health check failed: %v", err)
		if a.opts.DeepMode {
			return &DeepModeError{
				Missing:     []string{"docdex_unreachable"},
				Remediation: []string{"start the docdex daemon", "check the configured endpoint"},
			}
		}
		st.bundle.Warnings = append(st.bundle.Warnings, WarnUnavailable)
		return nil
	}
	st.healthOK = true

	err := a.retry.Do(ctx, "stats", func() error {
		stats, serr := a.deps.Client.Stats(ctx)
		if serr != nil {
			return serr
		}
		st.bundle.Stats = stats
		return nil
	})
	if err != nil {
		st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("stats", err))
	} else {
		st.statsOK = true
	}

	err = a.retry.Do(ctx, "files", func() error {
		_, ferr := a.deps.Client.Files(ctx, 1, 0)
		return ferr
	})
	if err != nil {
		st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("files", err))
	} else {
		st.filesOK = true
	}

	if a.opts.DeepMode {
		var missing []string
		if !st.statsOK {
			missing = append(missing, "docdex_stats_unavailable")
		}
		if !st.filesOK {
			missing = append(missing, "docdex_files_unavailable")
		}
		if st.statsOK && st.bundle.Stats.NumDocs == 0 {
			missing = append(missing, "docdex_index_empty")
		}
		if len(missing) > 0 {
			return &DeepModeError{
				Missing: missing,
				Remediation: []string{
					"run the indexer over the workspace",
					"verify the index root matches the workspace root",
				},
			}
		}
	}
	if st.statsOK && st.bundle.Stats.NumDocs == 0 {
		st.bundle.Warnings = append(st.bundle.Warnings, WarnIndexEmpty)
	}
	a.emit(EventToolResult, "health_check", fmt.Sprintf("num_docs=%d", st.bundle.Stats.NumDocs))
	return nil
}

// searchStage extracts queries and runs the orchestrated search with its
// retry ladder. Skipped entirely when the caller pinned preferred files and
// asked for no search.
func (a *Assembler) searchStage(ctx context.Context, st *pipelineState) {
	if a.opts.SkipSearchWhenPreferred && len(a.opts.PreferredFiles) > 0 {
		logging.Assemble("search skipped: preferred files pinned")
		return
	}
	a.emit(EventToolCall, "search", "")

	extractor := query.NewExtractor(a.opts.MaxQueries)
	queries := extractor.Extract(st.bundle.Request, a.opts.AdditionalQueries, a.opts.PreferredFiles)
	execList := extractor.ExecutionList(queries, st.bundle.Intent)
	st.bundle.Queries = queries

	orch := search.NewOrchestrator(a.deps.Client, a.deps.Expander, search.Config{
		MaxQueries:            a.opts.MaxQueries,
		MaxHitsPerQuery:       a.opts.MaxHitsPerQuery,
		DocDominanceThreshold: a.opts.DocDominanceThreshold,
	})
	res := orch.Execute(ctx, st.bundle.Request, execList, st.bundle.Intent, a.opts.PreferredFiles)

	st.bundle.Hits = res.Hits
	st.bundle.Warnings = append(st.bundle.Warnings, res.Warnings...)
	if res.Failed || len(res.Hits) == 0 {
		st.searchUnreliable = true
	}
	if len(res.Hits) == 0 {
		st.bundle.Warnings = append(st.bundle.Warnings, WarnNoHits)
	}
	a.emit(EventToolResult, "search", fmt.Sprintf("%d hits", len(res.Hits)))
}

func (a *Assembler) selectorInputs(st *pipelineState) selector.Inputs {
	return selector.Inputs{
		Request:        st.bundle.Request,
		Signals:        st.bundle.Intent,
		Hits:           st.bundle.Hits,
		PreferredFiles: a.opts.PreferredFiles,
		RecentFiles:    a.opts.RecentFiles,
		ForceFocus:     a.opts.ForceFocusFiles,
		ImpactEdges:    st.bundle.ImpactEdges,
		PriorFocusSize: len(st.bundle.Selection.Focus),
	}
}

func (a *Assembler) selectStage(st *pipelineState) {
	a.emit(EventStatus, "select", "")

	var disc selector.Discoverer
	if a.deps.Scanner != nil {
		disc = a.deps.Scanner
	}
	sel := selector.NewSelector(a.opts.MaxFiles, disc)
	selection, warnings := sel.Select(a.selectorInputs(st))
	selection.LowConfidence = st.searchUnreliable

	st.bundle.Selection = selection
	st.bundle.Warnings = append(st.bundle.Warnings, warnings...)
	if len(selection.Focus) == 0 {
		st.bundle.Missing = append(st.bundle.Missing, WarnNoFocusSelected)
	}
}

// analyzeStage spends symbol/AST/impact/snippet calls on the analysis subset.
// Every call is soft-fail. When impact edges arrive, selection is recomputed
// with them folded into scoring.
func (a *Assembler) analyzeStage(ctx context.Context, st *pipelineState) {
	preferred := make(map[string]bool)
	for _, p := range a.opts.PreferredFiles {
		preferred[p] = true
	}
	paths := selector.AnalysisPaths(st.bundle.Selection.All(), st.bundle.Request,
		st.bundle.Intent, preferred, a.opts.MaxFiles)
	st.bundle.AnalysisPaths = paths
	if len(paths) == 0 {
		return
	}
	a.emit(EventToolCall, "analyze", fmt.Sprintf("%d paths", len(paths)))

	st.bundle.Symbols = make(map[string][]docdex.SymbolInfo)
	st.bundle.ASTs = make(map[string]docdex.ASTSummary)
	st.bundle.ImpactDiagnostics = make(map[string][]docdex.ImpactDiagnostic)

	for _, p := range paths {
		if syms, err := a.deps.Client.Symbols(ctx, p); err != nil {
			st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("symbols", err))
		} else if len(syms) > 0 {
			st.bundle.Symbols[p] = syms
		}

		if ast, err := a.deps.Client.AST(ctx, p, 200); err != nil {
			st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("ast", err))
		} else if ast.Outline != "" {
			st.bundle.ASTs[p] = ast
		}

		if a.opts.IncludeImpact {
			graph, err := a.deps.Client.ImpactGraph(ctx, p, a.opts.ImpactMaxDepth, a.opts.ImpactMaxEdges)
			if err != nil {
				st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("impact_graph", err))
			} else {
				st.bundle.ImpactEdges = append(st.bundle.ImpactEdges, graph.Inbound...)
				st.bundle.ImpactEdges = append(st.bundle.ImpactEdges, graph.Outbound...)
			}
			if diags, err := a.deps.Client.ImpactDiagnostics(ctx, p, 20, 0); err != nil {
				st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("impact_diagnostics", err))
			} else if len(diags) > 0 {
				st.bundle.ImpactDiagnostics[p] = diags
			}
		}
	}

	if a.opts.IncludeSnippets {
		a.attachSnippets(ctx, st)
	}
	if a.opts.IncludeRepoMap {
		a.attachRepoMap(ctx, st)
	}

	if len(st.bundle.ImpactEdges) > 0 {
		sel := selector.NewSelector(a.opts.MaxFiles, nil)
		lowConfidence := st.bundle.Selection.LowConfidence
		st.bundle.Selection = sel.Recompute(a.selectorInputs(st))
		st.bundle.Selection.LowConfidence = lowConfidence
	}
	a.emit(EventToolResult, "analyze", fmt.Sprintf("%d impact edges", len(st.bundle.ImpactEdges)))
}

func (a *Assembler) attachSnippets(ctx context.Context, st *pipelineState) {
	count := 0
	for _, h := range st.bundle.Hits {
		if h.DocID == "" {
			continue
		}
		snip, err := a.deps.Client.OpenSnippet(ctx, h.DocID, a.opts.SnippetWindow)
		if err != nil {
			st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("snippet", err))
			continue
		}
		if snip.Path == "" {
			snip.Path = h.Path
		}
		st.bundle.Snippets = append(st.bundle.Snippets, snip)
		count++
		if count >= 3 {
			break
		}
	}
}

func (a *Assembler) attachRepoMap(ctx context.Context, st *pipelineState) {
	if a.deps.Client.Capabilities().Has(docdex.CapTree) {
		tree, err := a.deps.Client.Tree(ctx, docdex.TreeOptions{MaxDepth: 2})
		if err == nil && tree != "" {
			st.bundle.RepoMap = tree
			return
		}
		if err != nil {
			st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("tree", err))
		}
	}
	if a.deps.Scanner != nil {
		st.bundle.RepoMap = shallowListing(a.deps.Scanner.Files())
	}
}

// loadStage loads the selection, enforces the budget, and reconciles the
// selection with whatever was dropped.
func (a *Assembler) loadStage(ctx context.Context, st *pipelineState) {
	a.emit(EventToolCall, "load", fmt.Sprintf("%d paths", len(st.bundle.Selection.All())))

	ldr := loader.NewLoader(a.deps.Client, a.opts)
	res := ldr.Load(ctx, st.bundle.Selection)
	st.bundle.Warnings = append(st.bundle.Warnings, res.Warnings...)
	for _, p := range res.FailedFocus {
		st.bundle.Missing = append(st.bundle.Missing, "focus_content_missing:"+p)
	}

	outcome := loader.EnforceBudget(res.Entries, a.opts.MaxTotalBytes,
		a.opts.TokenBudget, a.opts.TrimPassesPerEntry)
	st.bundle.Files = outcome.Entries
	st.bundle.Warnings = append(st.bundle.Warnings, outcome.Warnings...)

	if len(outcome.Dropped) > 0 {
		dropped := make(map[string]bool, len(outcome.Dropped))
		for _, p := range outcome.Dropped {
			dropped[p] = true
		}
		kept := st.bundle.Selection.Periphery[:0]
		for _, p := range st.bundle.Selection.Periphery {
			if !dropped[p] {
				kept = append(kept, p)
			}
		}
		st.bundle.Selection.Periphery = kept
	}

	for _, f := range st.bundle.Files {
		st.bundle.RedactedCount += f.Redacted
	}
	if len(st.bundle.Files) == 0 {
		st.bundle.Missing = append(st.bundle.Missing, WarnNoFilesLoaded)
	}
	a.emit(EventToolResult, "load", fmt.Sprintf("%d files", len(st.bundle.Files)))
}

// memoryStage recalls and reconciles facts, then attaches episodic memory,
// golden examples, and the agent profile. All soft-fail.
func (a *Assembler) memoryStage(ctx context.Context, st *pipelineState) {
	a.emit(EventToolCall, "memory", "")

	facts, err := a.deps.Client.MemoryRecall(ctx, st.bundle.Request, memoryRecallTopK)
	if err != nil {
		st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("memory_recall", err))
	} else {
		st.bundle.Memory = memory.Reconcile(facts, st.bundle.Request, st.bundle.Selection.Focus)
	}

	if a.deps.Episodes != nil {
		if eps, err := a.deps.Episodes.RecentEpisodes(ctx, st.bundle.Request, episodeAttachLimit); err != nil {
			logging.AssembleWarn("episode lookup failed: %v", err)
		} else {
			st.bundle.Episodes = eps
		}
		if golden, err := a.deps.Episodes.GoldenExamples(ctx, st.bundle.Request, episodeAttachLimit); err != nil {
			logging.AssembleWarn("golden example lookup failed: %v", err)
		} else {
			st.bundle.GoldenExamples = golden
		}
	}

	if a.opts.AgentID != "" {
		if profile, err := a.deps.Client.GetProfile(ctx, a.opts.AgentID); err != nil {
			st.bundle.Warnings = append(st.bundle.Warnings, docdex.Soft("profile", err))
		} else {
			st.bundle.Profile = profile
		}
	}
}

// degradedFallback builds a minimal bundle from filesystem discovery when the
// index service is unreachable.
func (a *Assembler) degradedFallback(ctx context.Context, st *pipelineState) {
	a.emit(EventStatus, "degraded_fallback", "")
	st.bundle.Degraded = true
	st.bundle.Selection.LowConfidence = true

	if a.deps.Scanner == nil {
		st.bundle.Missing = append(st.bundle.Missing, WarnNoFilesLoaded)
		return
	}

	candidates := a.deps.Scanner.CandidateFiles(st.bundle.Request, a.opts.MaxFiles)
	sel := selector.NewSelector(a.opts.MaxFiles, a.deps.Scanner)
	selection, warnings := sel.Select(selector.Inputs{
		Request:        st.bundle.Request,
		Signals:        st.bundle.Intent,
		PreferredFiles: append(append([]string(nil), a.opts.PreferredFiles...), candidates...),
		RecentFiles:    a.opts.RecentFiles,
		ForceFocus:     a.opts.ForceFocusFiles,
	})
	selection.LowConfidence = true
	st.bundle.Selection = selection
	st.bundle.Warnings = append(st.bundle.Warnings, warnings...)

	fsOpts := a.opts
	fsOpts.ReadStrategy = config.ReadFS
	ldr := loader.NewLoader(a.deps.Client, fsOpts)
	res := ldr.Load(ctx, selection)
	st.bundle.Warnings = append(st.bundle.Warnings, res.Warnings...)
	for _, p := range res.FailedFocus {
		st.bundle.Missing = append(st.bundle.Missing, "focus_content_missing:"+p)
	}

	outcome := loader.EnforceBudget(res.Entries, a.opts.MaxTotalBytes,
		a.opts.TokenBudget, a.opts.TrimPassesPerEntry)
	st.bundle.Files = outcome.Entries
	st.bundle.Warnings = append(st.bundle.Warnings, outcome.Warnings...)
	if len(st.bundle.Files) == 0 {
		st.bundle.Missing = append(st.bundle.Missing, WarnNoFilesLoaded)
	}

	if a.opts.IncludeRepoMap {
		st.bundle.RepoMap = shallowListing(a.deps.Scanner.Files())
	}
	if a.opts.IncludeRepoMap || len(candidates) > 0 {
		manifests := a.deps.Scanner.Manifests(ctx)
		logging.Assemble("degraded mode: manifests %v", manifests)
	}
}

// finalize reconciles warnings, builds the digest, and serializes.
func (a *Assembler) finalize(st *pipelineState) *ContextBundle {
	b := st.bundle

	b.Warnings = reconcileWarnings(b.Warnings, suppressionState{
		healthOK:    st.healthOK,
		statsOK:     st.statsOK,
		filesOK:     st.filesOK,
		numDocs:     b.Stats.NumDocs,
		hasFocus:    len(b.Selection.Focus) > 0,
		hasLoaded:   len(b.Files) > 0,
		hasSnippets: len(b.Snippets) > 0,
	})
	b.Digest = buildDigest(b)

	serialized, err := Serialize(b, a.opts.SerializationMode)
	if err != nil {
		logging.AssembleWarn("serialization failed: %v", err)
	}
	b.Serialized = serialized

	a.emit(EventStatus, "finalize", b.Digest.Confidence)
	logging.Assemble("bundle %s: %d files, %d warnings, confidence %s",
		b.ID, len(b.Files), len(b.Warnings), b.Digest.Confidence)
	return b
}

// saveEpisode records the outcome out of band. Fire-and-forget: completion is
// not awaited and failure is only logged.
func (a *Assembler) saveEpisode(b *ContextBundle) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if a.deps.Client.Capabilities().Has(docdex.CapMemorySave) {
			if err := a.deps.Client.MemorySave(ctx, b.Digest.Summary); err != nil {
				logging.AssembleWarn("memory save failed: %v", err)
			}
		}
		if a.deps.Episodes != nil {
			if err := a.deps.Episodes.RecordEpisode(ctx, b.Request, b.Digest.Summary, b.Digest.Confidence); err != nil {
				logging.AssembleWarn("episode record failed: %v", err)
			}
		}
	}()
}

func (a *Assembler) emit(kind, stage, detail string) {
	if a.deps.Events == nil {
		return
	}
	select {
	case a.deps.Events <- Event{Kind: kind, Stage: stage, Detail: detail}:
	default:
	}
}

// shallowListing renders a depth-2 overview of the workspace file list.
func shallowListing(files []string) string {
	seen := make(map[string]bool)
	var lines []string
	for _, f := range files {
		parts := strings.SplitN(f, "/", 3)
		entry := parts[0]
		if len(parts) > 1 {
			entry = parts[0] + "/" + parts[1]
		}
		if seen[entry] {
			continue
		}
		seen[entry] = true
		lines = append(lines, entry)
		if len(lines) >= 200 {
			break
		}
	}
	return strings.Join(lines, "\n")
}
