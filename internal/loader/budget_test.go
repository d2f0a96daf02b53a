package loader

import (
	"strings"
	"testing"
)

func entry(path, kind string, size int) Entry {
	content := strings.Repeat("x", size)
	return Entry{
		Path:    path,
		Content: content,
		Bytes:   len(content),
		Tokens:  EstimateTokens(content),
		Kind:    kind,
	}
}

func totalBytes(entries []Entry) int {
	n := 0
	for _, e := range entries {
		n += e.Bytes
	}
	return n
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{0, 0}, {1, 1}, {4, 1}, {5, 2}, {100, 25},
	}
	for _, tt := range tests {
		if got := EstimateTokens(strings.Repeat("x", tt.size)); got != tt.want {
			t.Errorf("EstimateTokens(len=%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestEnforceBudgetWithinBudgetIsUntouched(t *testing.T) {
	entries := []Entry{entry("a.go", KindFocus, 50), entry("b.go", KindPeriphery, 30)}

	out := EnforceBudget(entries, 100, 1000, 4)
	if out.Pruned || out.Trimmed || len(out.Dropped) > 0 {
		t.Errorf("budget touched an in-budget set: %+v", out)
	}
	if len(out.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(out.Entries))
	}
}

func TestEnforceBudgetDropsPeripheryLastFirst(t *testing.T) {
	entries := []Entry{
		entry("focus.go", KindFocus, 60),
		entry("p1.go", KindPeriphery, 30),
		entry("p2.go", KindPeriphery, 30),
	}

	out := EnforceBudget(entries, 95, 1000, 4)
	if !out.Pruned {
		t.Fatal("phase one did not prune")
	}
	if len(out.Dropped) != 1 || out.Dropped[0] != "p2.go" {
		t.Errorf("Dropped = %v, want the last-loaded periphery entry", out.Dropped)
	}
	if totalBytes(out.Entries) > 95 {
		t.Errorf("still over byte budget: %d", totalBytes(out.Entries))
	}
	found := false
	for _, w := range out.Warnings {
		if w == "context_budget_pruned" {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want context_budget_pruned", out.Warnings)
	}
}

func TestEnforceBudgetDropOnlySetsTrimmedFlag(t *testing.T) {
	// One 50-byte focus plus two 80-byte periphery entries against a 100-byte
	// cap: both periphery entries go, nothing needs truncation, and the
	// outcome still reports the payload as modified.
	entries := []Entry{
		entry("focus.go", KindFocus, 50),
		entry("p1.go", KindPeriphery, 80),
		entry("p2.go", KindPeriphery, 80),
	}

	out := EnforceBudget(entries, 100, 100000, 4)
	if len(out.Dropped) != 2 {
		t.Fatalf("Dropped = %v, want both periphery entries", out.Dropped)
	}
	if !out.Pruned || !out.Trimmed {
		t.Errorf("Pruned = %v, Trimmed = %v, want both set after drops", out.Pruned, out.Trimmed)
	}
	if totalBytes(out.Entries) != 50 {
		t.Errorf("total = %d, want the focus entry alone", totalBytes(out.Entries))
	}
	for _, e := range out.Entries {
		if e.Truncated {
			t.Errorf("%s truncated, want drops only", e.Path)
		}
	}
	for _, w := range out.Warnings {
		if w == "context_budget_trimmed" {
			t.Errorf("Warnings = %v, trimmed warning without truncation", out.Warnings)
		}
	}
}

func TestEnforceBudgetTrimsWhenNoPeripheryRemains(t *testing.T) {
	// Two 80-byte focus entries against a 100-byte cap: nothing to drop, so
	// the tail entry must be truncated with the marker.
	entries := []Entry{
		entry("a.go", KindFocus, 80),
		entry("b.go", KindFocus, 80),
	}

	out := EnforceBudget(entries, 100, 1000, 4)
	if out.Pruned {
		t.Error("phase one pruned focus entries")
	}
	if !out.Trimmed {
		t.Fatal("phase two did not trim")
	}
	if len(out.Entries) != 2 {
		t.Fatalf("entries = %d, want both retained", len(out.Entries))
	}

	last := out.Entries[1]
	if !strings.Contains(last.Content, "...truncated...") {
		t.Error("trimmed entry missing the truncation marker")
	}
	if last.Strategy != StrategyBudgetTrim {
		t.Errorf("strategy = %s, want %s", last.Strategy, StrategyBudgetTrim)
	}
	if !last.Truncated {
		t.Error("trimmed entry not flagged truncated")
	}

	trimWarned := false
	for _, w := range out.Warnings {
		if w == "context_budget_trimmed" {
			trimWarned = true
		}
	}
	if !trimWarned {
		t.Errorf("Warnings = %v, want context_budget_trimmed", out.Warnings)
	}
}

func TestEnforceBudgetHonorsTokenBudget(t *testing.T) {
	entries := []Entry{
		entry("a.go", KindFocus, 400),
		entry("p.go", KindPeriphery, 400),
	}

	// 800 bytes is fine, but 200 tokens exceeds a 150-token budget.
	out := EnforceBudget(entries, 10000, 150, 4)
	if !out.Pruned {
		t.Fatal("token overage did not prune periphery")
	}
	tokens := 0
	for _, e := range out.Entries {
		tokens += e.Tokens
	}
	if tokens > 150 {
		t.Errorf("still over token budget: %d", tokens)
	}
}

func TestEnforceBudgetTerminatesOnDegenerateBudget(t *testing.T) {
	entries := []Entry{
		entry("a.go", KindFocus, 500),
		entry("b.go", KindFocus, 500),
	}

	// A budget smaller than the marker itself can never be satisfied; the
	// iteration bound must still terminate.
	out := EnforceBudget(entries, 5, 1, 4)
	if len(out.Entries) != 2 {
		t.Errorf("entries = %d, want both retained after bounded trimming", len(out.Entries))
	}
}

func TestEnforceBudgetEmptyEntries(t *testing.T) {
	out := EnforceBudget(nil, 100, 100, 4)
	if len(out.Entries) != 0 || out.Pruned || out.Trimmed {
		t.Errorf("unexpected outcome for empty input: %+v", out)
	}
}
