// Package memory reconciles recalled facts before they enter the bundle:
// contradictory facts are pruned greedily by score, then the survivors are
// filtered by relevance to the current request and focus set.
package memory

import (
	"regexp"
	"sort"
	"strings"

	"librarian/internal/docdex"
	"librarian/internal/logging"
	"librarian/internal/query"
)

// Fact is a recalled memory item with its derived comparison fields. All
// derived fields are pure functions of Text.
type Fact struct {
	Text     string
	Score    float64
	PathHint string
	Polarity int
	Tokens   map[string]bool
}

var (
	negativeRe = regexp.MustCompile(`(?i)\b(never|don'?t|do not|avoid|must not|stop|forbid|disallow)\b`)
	positiveRe = regexp.MustCompile(`(?i)\b(always|prefer|should|must|use|enable|require)\b`)
	pathHintRe = regexp.MustCompile(`\b[\w./-]*[\w-]+\.[A-Za-z]{1,5}\b`)

	staleRe  = regexp.MustCompile(`(?i)\b(deprecated|obsolete|outdated|superseded|no longer)\b`)
	policyRe = regexp.MustCompile(`(?i)\b(policy|convention|house rule)\b`)
	taskIDRe = regexp.MustCompile(`\b[A-Z]{2,}-\d+\b`)
	patchRe  = regexp.MustCompile(`(?i)\b(patch interpreter|apply patch|diff hunk|unified diff)\b`)
)

// NewFact derives the comparison fields from a recalled fact's text.
func NewFact(rf docdex.RecalledFact) Fact {
	f := Fact{
		Text:   rf.Text,
		Score:  rf.Score,
		Tokens: make(map[string]bool),
	}
	for _, t := range query.Tokenize(rf.Text) {
		f.Tokens[t] = true
	}

	// Negation wins: "never use X" carries positive cue words but is a
	// prohibition.
	switch {
	case negativeRe.MatchString(rf.Text):
		f.Polarity = -1
	case positiveRe.MatchString(rf.Text):
		f.Polarity = 1
	}

	if m := pathHintRe.FindString(rf.Text); m != "" {
		f.PathHint = strings.ToLower(m)
	}
	return f
}

// Conflicts reports whether two facts contradict: opposite polarity plus
// either matching path hints with at least 2 shared tokens, or at least 4
// shared tokens regardless of hints.
func Conflicts(a, b Fact) bool {
	if a.Polarity*b.Polarity != -1 {
		return false
	}
	shared := sharedTokens(a, b)
	if a.PathHint != "" && a.PathHint == b.PathHint && shared >= 2 {
		return true
	}
	return shared >= 4
}

func sharedTokens(a, b Fact) int {
	n := 0
	for t := range a.Tokens {
		if b.Tokens[t] {
			n++
		}
	}
	return n
}

// PruneConflicts drops every fact that contradicts an already-kept
// higher-scored fact. Greedy highest-score-wins: once a fact is kept it can
// never be displaced by a later, lower-scored contradiction.
func PruneConflicts(facts []Fact) []Fact {
	sorted := append([]Fact(nil), facts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var kept []Fact
	for _, f := range sorted {
		conflicted := false
		for _, k := range kept {
			if Conflicts(f, k) {
				logging.MemoryDebug("pruning conflicting fact %q (vs %q)", f.Text, k.Text)
				conflicted = true
				break
			}
		}
		if !conflicted {
			kept = append(kept, f)
		}
	}
	return kept
}

// Relevance thresholds: a fact whose path hint lands in the focus set needs
// less textual overlap to stay.
const (
	focusScopedThreshold = 2
	unscopedThreshold    = 3

	stalePenalty  = 4
	policyPenalty = 4
	taskIDPenalty = 2
	patchPenalty  = 8
)

// FilterRelevant keeps facts that overlap the request or focus paths enough
// to be worth bundle space. When neither request nor focus yields any tokens
// everything passes through, so an empty request never silently drops memory.
func FilterRelevant(facts []Fact, request string, focusPaths []string) []Fact {
	requestTokens := make(map[string]bool)
	for _, t := range query.Tokenize(request) {
		requestTokens[t] = true
	}
	focusTokens := make(map[string]bool)
	for _, p := range focusPaths {
		for _, t := range query.PathTokens(p) {
			focusTokens[t] = true
		}
	}
	if len(requestTokens) == 0 && len(focusTokens) == 0 {
		return facts
	}

	patchFlavored := patchRe.MatchString(request)

	var kept []Fact
	for _, f := range facts {
		reqOverlap, focusOverlap := 0, 0
		for t := range f.Tokens {
			if requestTokens[t] {
				reqOverlap++
			}
			if focusTokens[t] {
				focusOverlap++
			}
		}
		score := 2*reqOverlap + focusOverlap

		if staleRe.MatchString(f.Text) {
			score -= stalePenalty
		}
		if reqOverlap == 0 {
			if policyRe.MatchString(f.Text) {
				score -= policyPenalty
			}
			if taskIDRe.MatchString(f.Text) {
				score -= taskIDPenalty
			}
		}

		focusScoped := f.PathHint != "" && hintMatchesFocus(f.PathHint, focusPaths)
		if patchRe.MatchString(f.Text) && !patchFlavored {
			if !focusScoped {
				logging.MemoryDebug("excluding patch-workflow fact %q", f.Text)
				continue
			}
			score -= patchPenalty
		}

		threshold := unscopedThreshold
		if focusScoped {
			threshold = focusScopedThreshold
		}
		if score >= threshold {
			kept = append(kept, f)
		}
	}
	return kept
}

func hintMatchesFocus(hint string, focusPaths []string) bool {
	for _, p := range focusPaths {
		lp := strings.ToLower(p)
		if strings.HasSuffix(lp, hint) || strings.Contains(lp, hint) {
			return true
		}
	}
	return false
}

// Reconcile runs the full pipeline: derive, prune conflicts, filter by
// relevance. Returned facts keep their post-prune score order.
func Reconcile(recalled []docdex.RecalledFact, request string, focusPaths []string) []Fact {
	facts := make([]Fact, 0, len(recalled))
	for _, rf := range recalled {
		facts = append(facts, NewFact(rf))
	}
	facts = PruneConflicts(facts)
	facts = FilterRelevant(facts, request, focusPaths)
	logging.Memory("Reconcile: %d of %d facts kept", len(facts), len(recalled))
	return facts
}
