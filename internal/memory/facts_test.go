package memory

import (
	"testing"

	"librarian/internal/docdex"
)

func fact(text string, score float64) Fact {
	return NewFact(docdex.RecalledFact{Text: text, Score: score})
}

func TestNewFactPolarity(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"never use global state in handlers", -1},
		{"always prefer table driven tests", 1},
		{"the parser lives in parser.go", 0},
		{"always validate but never trust input", -1},
	}
	for _, tt := range tests {
		if got := fact(tt.text, 1).Polarity; got != tt.want {
			t.Errorf("polarity(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestNewFactPathHint(t *testing.T) {
	f := fact("keep retries in docdex/client.go under the policy type", 1)
	if f.PathHint != "docdex/client.go" {
		t.Errorf("PathHint = %q, want docdex/client.go", f.PathHint)
	}
	if fact("no paths here at all", 1).PathHint != "" {
		t.Error("PathHint derived from text without a path")
	}
}

func TestConflicts(t *testing.T) {
	pos := fact("always use the session cache for login token lookups", 5)
	neg := fact("never use the session cache for login token lookups", 4)
	if !Conflicts(pos, neg) {
		t.Error("opposite polarity with heavy token overlap should conflict")
	}

	unrelated := fact("never deploy on fridays", 3)
	if Conflicts(pos, unrelated) {
		t.Error("opposite polarity without overlap should not conflict")
	}

	samePolarity := fact("always use the session cache for login token lookups", 2)
	if Conflicts(pos, samePolarity) {
		t.Error("same polarity should never conflict")
	}
}

func TestConflictsViaPathHint(t *testing.T) {
	a := fact("always batch writes in store/db.go for speed", 5)
	b := fact("never batch writes in store/db.go", 4)
	if !Conflicts(a, b) {
		t.Error("matching path hints with 2 shared tokens should conflict")
	}
}

func TestPruneConflictsGreedyHighestScoreWins(t *testing.T) {
	high := fact("always use the session cache for login token lookups", 9)
	low := fact("never use the session cache for login token lookups", 3)
	mid := fact("prefer the session cache when login tokens expire quickly", 5)

	got := PruneConflicts([]Fact{low, mid, high})

	for _, f := range got {
		if f.Text == low.Text {
			t.Error("lower-scored conflicting fact survived")
		}
	}
	kept := map[string]bool{}
	for _, f := range got {
		kept[f.Text] = true
	}
	if !kept[high.Text] {
		t.Error("highest-scored fact was dropped")
	}
}

func TestPruneConflictsIsNotPairwiseSymmetric(t *testing.T) {
	// B conflicts with A (kept), C conflicts with B but not A. Since B is
	// dropped before C is considered, C must survive.
	a := fact("always use the session cache for login token lookups", 9)
	b := fact("never use the session cache for login token lookups", 5)
	c := fact("always use the session cache for login token lookups today", 1)

	got := PruneConflicts([]Fact{a, b, c})
	kept := map[string]bool{}
	for _, f := range got {
		kept[f.Text] = true
	}
	if !kept[a.Text] || kept[b.Text] || !kept[c.Text] {
		t.Errorf("greedy pruning mismatch: kept=%v", kept)
	}
}

func TestFilterRelevantPassThroughWithoutTokens(t *testing.T) {
	facts := []Fact{fact("anything at all", 1)}
	got := FilterRelevant(facts, "", nil)
	if len(got) != 1 {
		t.Error("facts dropped despite no request/focus tokens")
	}
}

func TestFilterRelevantKeepsOverlapping(t *testing.T) {
	facts := []Fact{
		fact("the login flow uses the session cache", 1),
		fact("kubernetes ingress rewrites trailing slashes", 1),
	}
	got := FilterRelevant(facts, "fix the login session bug", []string{"src/login.ts"})

	if len(got) != 1 || got[0].Text != facts[0].Text {
		t.Errorf("FilterRelevant = %v, want only the login fact", got)
	}
}

func TestFilterRelevantPenalizesStaleFacts(t *testing.T) {
	facts := []Fact{fact("the login flow is deprecated and no longer used", 1)}
	got := FilterRelevant(facts, "fix the login button", []string{"src/app.go"})
	if len(got) != 0 {
		t.Errorf("stale fact survived: %v", got)
	}
}

func TestFilterRelevantExcludesPatchBoilerplate(t *testing.T) {
	facts := []Fact{fact("when using apply patch always include the unified diff header", 1)}
	got := FilterRelevant(facts, "fix the login button styling", []string{"src/login.ts"})
	if len(got) != 0 {
		t.Errorf("patch boilerplate survived a non-patch request: %v", got)
	}
}

func TestReconcileScenario(t *testing.T) {
	recalled := []docdex.RecalledFact{
		{Text: "always use the session cache for login token lookups", Score: 9},
		{Text: "never use the session cache for login token lookups", Score: 3},
		{Text: "kubernetes ingress rewrites trailing slashes", Score: 8},
	}
	got := Reconcile(recalled, "fix the login session cache bug", []string{"src/login.ts"})

	if len(got) != 1 {
		t.Fatalf("Reconcile kept %d facts, want 1: %v", len(got), got)
	}
	if got[0].Text != recalled[0].Text {
		t.Errorf("kept %q, want the high-scored login fact", got[0].Text)
	}
}
