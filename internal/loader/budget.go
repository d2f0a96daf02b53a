package loader

import (
	"strings"

	"librarian/internal/logging"
)

const truncationMarker = "\n...truncated...\n"

// BudgetOutcome reports what budget enforcement changed. Pruned means whole
// periphery entries were dropped; Trimmed means enforcement modified the
// payload at all, whether by dropping or by tail truncation.
type BudgetOutcome struct {
	Entries  []Entry
	Dropped  []string
	Pruned   bool
	Trimmed  bool
	Warnings []string
}

// EnforceBudget applies the two-phase budget to the loaded entries.
// Phase one drops periphery entries, last-loaded first, until the byte and
// token caps are both met or no periphery remains. Phase two truncates the
// tail entries in place, bounded to trimPassesPerEntry iterations per entry
// so a degenerate budget always terminates.
func EnforceBudget(entries []Entry, maxTotalBytes, tokenBudget, trimPassesPerEntry int) BudgetOutcome {
	out := BudgetOutcome{Entries: append([]Entry(nil), entries...)}

	for overBudget(out.Entries, maxTotalBytes, tokenBudget) {
		idx := lastPeripheryIndex(out.Entries)
		if idx < 0 {
			break
		}
		out.Dropped = append(out.Dropped, out.Entries[idx].Path)
		out.Entries = append(out.Entries[:idx], out.Entries[idx+1:]...)
		out.Pruned = true
	}
	if out.Pruned {
		out.Warnings = append(out.Warnings, "context_budget_pruned")
		logging.LoaderWarn("budget: dropped %d periphery entries", len(out.Dropped))
	}

	truncated := false
	maxIters := trimPassesPerEntry * len(out.Entries)
	for iter := 0; iter < maxIters && overBudget(out.Entries, maxTotalBytes, tokenBudget); iter++ {
		idx := len(out.Entries) - 1 - (iter % len(out.Entries))
		if trimEntry(&out.Entries[idx], bytesOver(out.Entries, maxTotalBytes), tokensOver(out.Entries, tokenBudget)) {
			truncated = true
		}
	}
	if truncated {
		out.Warnings = append(out.Warnings, "context_budget_trimmed")
	}
	out.Trimmed = truncated || out.Pruned

	return out
}

// trimEntry shortens one entry's content by the larger of the byte overage
// and the token overage expressed in bytes. Returns false when the entry is
// already too small to cut further.
func trimEntry(e *Entry, bytesOver, tokensOver int) bool {
	cut := bytesOver
	if t := tokensOver * 4; t > cut {
		cut = t
	}
	if cut <= 0 {
		return false
	}

	content := strings.TrimSuffix(e.Content, truncationMarker)
	keep := len(content) - cut
	if keep < 0 {
		keep = 0
	}
	if keep >= len(content) {
		return false
	}

	e.Content = content[:keep] + truncationMarker
	e.Bytes = len(e.Content)
	e.Tokens = EstimateTokens(e.Content)
	e.Strategy = StrategyBudgetTrim
	e.Truncated = true
	return true
}

func overBudget(entries []Entry, maxTotalBytes, tokenBudget int) bool {
	return bytesOver(entries, maxTotalBytes) > 0 || tokensOver(entries, tokenBudget) > 0
}

func bytesOver(entries []Entry, maxTotalBytes int) int {
	if maxTotalBytes <= 0 {
		return 0
	}
	total := 0
	for _, e := range entries {
		total += e.Bytes
	}
	return total - maxTotalBytes
}

func tokensOver(entries []Entry, tokenBudget int) int {
	if tokenBudget <= 0 {
		return 0
	}
	total := 0
	for _, e := range entries {
		total += e.Tokens
	}
	return total - tokenBudget
}

func lastPeripheryIndex(entries []Entry) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == KindPeriphery {
			return i
		}
	}
	return -1
}
