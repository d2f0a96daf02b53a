package docdex

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is a scriptable in-memory Client used across package tests.
// Zero value behaves like an empty but healthy index.
type FakeClient struct {
	mu sync.Mutex

	Caps Capabilities

	// Scripted state
	HealthErr    error
	StatsVal     Stats
	StatsErr     error
	FilesVal     []string
	FilesErr     error
	HitsByQuery  map[string][]Hit
	DefaultHits  []Hit
	SearchErr    error
	FileContents map[string]string
	OpenErr      map[string]error
	SymbolsVal   map[string][]SymbolInfo
	ASTVal       map[string]ASTSummary
	ImpactVal    map[string]ImpactGraph
	DiagVal      map[string][]ImpactDiagnostic
	TreeVal      string
	TreeErr      error
	RecallFacts  []RecalledFact
	RecallErr    error
	ProfileVal   Profile
	ProfileErr   error

	// Call log, in invocation order
	Calls      []string
	SavedTexts []string
}

func (f *FakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

// CallCount returns how many times a call name was recorded.
func (f *FakeClient) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *FakeClient) Capabilities() Capabilities {
	if f.Caps != nil {
		return f.Caps
	}
	return Capabilities{
		CapTree: true, CapDagExport: true, CapOpenFile: true,
		CapIndexRebuild: true, CapMemorySave: true,
	}
}

func (f *FakeClient) HealthCheck(ctx context.Context) error {
	f.record("healthCheck")
	return f.HealthErr
}

func (f *FakeClient) Initialize(ctx context.Context, rootURI string) error {
	f.record("initialize")
	return nil
}

func (f *FakeClient) Stats(ctx context.Context) (Stats, error) {
	f.record("stats")
	return f.StatsVal, f.StatsErr
}

func (f *FakeClient) Files(ctx context.Context, limit, offset int) ([]string, error) {
	f.record("files")
	if f.FilesErr != nil {
		return nil, f.FilesErr
	}
	if offset >= len(f.FilesVal) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.FilesVal) {
		end = len(f.FilesVal)
	}
	return f.FilesVal[offset:end], nil
}

func (f *FakeClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	f.record("search:" + query)
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	if hits, ok := f.HitsByQuery[query]; ok {
		return limitHits(hits, opts.Limit), nil
	}
	return limitHits(f.DefaultHits, opts.Limit), nil
}

func limitHits(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

func (f *FakeClient) OpenSnippet(ctx context.Context, docID string, window int) (Snippet, error) {
	f.record("openSnippet:" + docID)
	if content, ok := f.FileContents[docID]; ok {
		return Snippet{DocID: docID, Text: content}, nil
	}
	return Snippet{}, fmt.Errorf("snippet %s not found", docID)
}

func (f *FakeClient) OpenFile(ctx context.Context, path string, opts OpenFileOptions) (FileContent, error) {
	f.record("openFile:" + path)
	if err, ok := f.OpenErr[path]; ok {
		return FileContent{}, err
	}
	content, ok := f.FileContents[path]
	if !ok {
		return FileContent{}, fmt.Errorf("file %s not indexed", path)
	}
	truncated := false
	if opts.Head > 0 && len(content) > opts.Head {
		content = content[:opts.Head]
		truncated = true
	}
	return FileContent{Path: path, Content: content, Truncated: truncated}, nil
}

func (f *FakeClient) Symbols(ctx context.Context, path string) ([]SymbolInfo, error) {
	f.record("symbols:" + path)
	return f.SymbolsVal[path], nil
}

func (f *FakeClient) AST(ctx context.Context, path string, maxNodes int) (ASTSummary, error) {
	f.record("ast:" + path)
	if s, ok := f.ASTVal[path]; ok {
		return s, nil
	}
	return ASTSummary{Path: path}, nil
}

func (f *FakeClient) ImpactGraph(ctx context.Context, path string, maxDepth, maxEdges int) (ImpactGraph, error) {
	f.record("impactGraph:" + path)
	if g, ok := f.ImpactVal[path]; ok {
		return g, nil
	}
	return ImpactGraph{Path: path}, nil
}

func (f *FakeClient) ImpactDiagnostics(ctx context.Context, file string, limit, offset int) ([]ImpactDiagnostic, error) {
	f.record("impactDiagnostics:" + file)
	return f.DiagVal[file], nil
}

func (f *FakeClient) Tree(ctx context.Context, opts TreeOptions) (string, error) {
	f.record("tree")
	return f.TreeVal, f.TreeErr
}

func (f *FakeClient) DagExport(ctx context.Context, sessionID, format string, maxNodes int) (string, error) {
	f.record("dagExport")
	return "", nil
}

func (f *FakeClient) MemoryRecall(ctx context.Context, query string, topK int) ([]RecalledFact, error) {
	f.record("memoryRecall")
	if f.RecallErr != nil {
		return nil, f.RecallErr
	}
	if topK > 0 && len(f.RecallFacts) > topK {
		return f.RecallFacts[:topK], nil
	}
	return f.RecallFacts, nil
}

func (f *FakeClient) MemorySave(ctx context.Context, text string) error {
	f.record("memorySave")
	f.mu.Lock()
	f.SavedTexts = append(f.SavedTexts, text)
	f.mu.Unlock()
	return nil
}

func (f *FakeClient) GetProfile(ctx context.Context, agentID string) (Profile, error) {
	f.record("getProfile:" + agentID)
	return f.ProfileVal, f.ProfileErr
}

func (f *FakeClient) IndexRebuild(ctx context.Context) error {
	f.record("indexRebuild")
	return nil
}
