package selector

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"librarian/internal/docdex"
	"librarian/internal/intent"
)

type fakeDiscoverer struct {
	byFacet map[intent.Facet][]string
	calls   map[intent.Facet]int
}

func (f *fakeDiscoverer) DiscoverFacet(facet intent.Facet, limit int) []string {
	if f.calls == nil {
		f.calls = make(map[intent.Facet]int)
	}
	f.calls[facet]++
	return f.byFacet[facet]
}

func hitsFor(paths ...string) []docdex.Hit {
	hits := make([]docdex.Hit, len(paths))
	for i, p := range paths {
		hits[i] = docdex.Hit{DocID: p, Path: p}
	}
	return hits
}

func TestSelectInvariants(t *testing.T) {
	s := NewSelector(3, nil)
	sel, _ := s.Select(Inputs{
		Request: "fix the handler logic",
		Signals: intent.Detect("fix the handler logic"),
		Hits:    hitsFor("a.go", "b.go", "c.go", "d.go", "e.go"),
	})

	if len(sel.Focus) > 3 {
		t.Errorf("focus size %d exceeds maxFiles", len(sel.Focus))
	}
	all := sel.All()
	if len(all) > 3 {
		t.Errorf("selection size %d exceeds maxFiles", len(all))
	}
	seen := make(map[string]bool)
	for _, p := range all {
		if seen[p] {
			t.Errorf("duplicate path %s in selection", p)
		}
		seen[p] = true
	}
}

func TestSelectPreferredFilesWin(t *testing.T) {
	s := NewSelector(2, nil)
	sel, _ := s.Select(Inputs{
		Request:        "fix the handler logic",
		Signals:        intent.Detect("fix the handler logic"),
		Hits:           hitsFor("x.go", "y.go", "z.go"),
		PreferredFiles: []string{"z.go"},
	})

	if sel.Focus[0] != "z.go" {
		t.Errorf("focus[0] = %s, want the preferred file", sel.Focus[0])
	}
}

func TestSelectForcedFocusIsHardFloor(t *testing.T) {
	s := NewSelector(2, nil)
	sel, _ := s.Select(Inputs{
		Request:    "fix the handler logic",
		Signals:    intent.Detect("fix the handler logic"),
		Hits:       hitsFor("a.go", "b.go", "c.go"),
		ForceFocus: []string{"forced.go"},
	})

	found := false
	for _, p := range sel.Focus {
		if p == "forced.go" {
			found = true
		}
	}
	if !found {
		t.Errorf("forced path missing from focus: %v", sel.Focus)
	}
}

func TestSelectUIPrefersFrontendPaths(t *testing.T) {
	sig := intent.Detect("fix the login button styling")
	s := NewSelector(2, nil)
	sel, _ := s.Select(Inputs{
		Request: "fix the login button styling",
		Signals: sig,
		Hits:    hitsFor("docs/login.md", "server/login.go", "src/components/Login.tsx"),
	})

	if sel.Focus[0] != "src/components/Login.tsx" {
		t.Errorf("focus[0] = %s, want the frontend path", sel.Focus[0])
	}
	for _, p := range sel.All() {
		if p == "docs/login.md" {
			t.Errorf("doc path selected over source for a non-doc request: %v", sel.All())
		}
	}
}

func TestSelectDocTaskKeepsDocPaths(t *testing.T) {
	req := "update the readme installation docs"
	s := NewSelector(2, nil)
	sel, _ := s.Select(Inputs{
		Request: req,
		Signals: intent.Detect(req),
		Hits:    hitsFor("README.md", "main.go"),
	})

	if sel.Focus[0] != "README.md" {
		t.Errorf("focus[0] = %s, want README.md for a doc task", sel.Focus[0])
	}
}

func TestSelectStrayTestPenaltyWhenUIOnly(t *testing.T) {
	req := "change the css theme"
	s := NewSelector(1, nil)
	sel, _ := s.Select(Inputs{
		Request: req,
		Signals: intent.Detect(req),
		Hits:    hitsFor("server/handler_test.go", "styles/theme.css"),
	})

	if sel.Focus[0] != "styles/theme.css" {
		t.Errorf("focus[0] = %s, want the style file over the stray test", sel.Focus[0])
	}
}

func TestSelectFallbackSweepFiresOnce(t *testing.T) {
	disc := &fakeDiscoverer{byFacet: map[intent.Facet][]string{
		intent.FacetFrontend: {"src/components/Button.tsx"},
	}}
	sig := intent.Detect("change the button styles")
	s := NewSelector(4, disc)

	sel, warnings := s.Select(Inputs{
		Request: "change the button styles",
		Signals: sig,
		Hits:    hitsFor("server/render.go"),
	})

	if !sel.Contains("src/components/Button.tsx") {
		t.Errorf("sweep candidate not merged into selection: %v", sel.All())
	}
	found := false
	for _, w := range warnings {
		if w == "librarian_frontend_candidates" {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want librarian_frontend_candidates", warnings)
	}

	// A second pass must not sweep again.
	s.Select(Inputs{Request: "change the button styles", Signals: sig})
	if disc.calls[intent.FacetFrontend] != 1 {
		t.Errorf("frontend sweep fired %d times, want once", disc.calls[intent.FacetFrontend])
	}
}

func TestRecomputeFoldsImpactEdges(t *testing.T) {
	in := Inputs{
		Request: "fix the handler logic",
		Signals: intent.Detect("fix the handler logic"),
		Hits:    hitsFor("a.go", "b.go"),
	}
	s := NewSelector(1, nil)
	first := s.compute(in)
	if first.Focus[0] != "a.go" {
		t.Fatalf("baseline focus = %s, want discovery order winner a.go", first.Focus[0])
	}

	in.ImpactEdges = []docdex.ImpactEdge{
		{From: "b.go", To: "core.go"},
		{From: "util.go", To: "b.go"},
	}
	second := s.Recompute(in)
	if second.Focus[0] != "b.go" {
		t.Errorf("recomputed focus = %s, want impact-weighted b.go", second.Focus[0])
	}
}

func TestAnalysisPathsExcludesDocsForCodeTasks(t *testing.T) {
	known := []string{"docs/a.md", "src/a.go", "src/b.go"}
	sig := intent.Detect("fix the handler logic")

	got := AnalysisPaths(known, "fix the handler logic", sig, nil, 8)
	want := []string{"src/a.go", "src/b.go"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AnalysisPaths mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalysisPathsKeepsDocsWhenNothingElse(t *testing.T) {
	known := []string{"docs/a.md", "docs/b.md"}
	sig := intent.Detect("fix the handler logic")

	got := AnalysisPaths(known, "fix the handler logic", sig, nil, 8)
	if len(got) != 2 {
		t.Errorf("AnalysisPaths = %v, want doc fallback when no code candidates", got)
	}
}

func TestAnalysisPathsCap(t *testing.T) {
	known := []string{"a.go", "b.go", "c.go", "d.go", "e.go", "f.go", "g.go", "h.go"}
	sig := intent.Detect("fix the handler logic")

	got := AnalysisPaths(known, "fix the handler logic", sig, nil, 8)
	if len(got) != 6 {
		t.Errorf("AnalysisPaths returned %d, want cap 6", len(got))
	}
}
