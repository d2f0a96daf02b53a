// Package selector ranks candidate paths into the focus/periphery split and
// picks the subset sent to symbol/AST/impact analysis. Scoring is additive
// over facet bonuses and penalties; every recompute (impact data, fallback
// sweeps) reuses the same single scoring pass.
package selector

import (
	"fmt"
	"sort"
	"strings"

	"librarian/internal/docdex"
	"librarian/internal/intent"
	"librarian/internal/logging"
)

// Score weights. Preferred membership dominates everything else so caller
// pinning always wins; facet bonuses separate on-topic source from noise.
const (
	preferredBonus   = 600
	docPenalty       = -120
	strayTestPenalty = -50
	impactEdgeBonus  = 25
	impactBonusCap   = 100
)

// facetBonus is the per-bucket bonus applied when a path carries the facet
// that satisfies the bucket.
var facetBonus = map[intent.Bucket]int{
	intent.BucketUI:            140,
	intent.BucketTesting:       120,
	intent.BucketSecurity:      110,
	intent.BucketInfra:         100,
	intent.BucketPerformance:   90,
	intent.BucketObservability: 90,
	intent.BucketData:          60,
	intent.BucketBehavior:      30,
}

// Discoverer finds workspace paths carrying a facet. Implemented by the
// workspace scanner; sweeps are scoped to the workspace root.
type Discoverer interface {
	DiscoverFacet(facet intent.Facet, limit int) []string
}

// Selection is the chosen file set, split into fully-loaded focus paths and
// skeleton-loaded periphery paths. LowConfidence marks a selection built
// without reliable search evidence, so consumers can treat it as a guess.
type Selection struct {
	Focus         []string `json:"focus"`
	Periphery     []string `json:"periphery"`
	LowConfidence bool     `json:"low_confidence,omitempty"`
}

// All returns focus then periphery, the canonical load order.
func (s Selection) All() []string {
	return append(append([]string(nil), s.Focus...), s.Periphery...)
}

// Contains reports whether a path is anywhere in the selection.
func (s Selection) Contains(p string) bool {
	for _, x := range s.All() {
		if x == p {
			return true
		}
	}
	return false
}

// Inputs carries everything one scoring pass consumes. ImpactEdges is empty
// on the first pass and populated for the recompute.
type Inputs struct {
	Request        string
	Signals        intent.Signals
	Hits           []docdex.Hit
	PreferredFiles []string
	RecentFiles    []string
	ForceFocus     []string
	ImpactEdges    []docdex.ImpactEdge
	PriorFocusSize int
}

// Selector ranks candidates. disc may be nil, which disables fallback sweeps.
type Selector struct {
	maxFiles int
	disc     Discoverer

	firedFallbacks map[intent.Facet]bool
}

// NewSelector creates a selector. maxFiles arrives pre-clamped.
func NewSelector(maxFiles int, disc Discoverer) *Selector {
	return &Selector{
		maxFiles:       maxFiles,
		disc:           disc,
		firedFallbacks: make(map[intent.Facet]bool),
	}
}

// Select runs one scoring pass plus any per-intent fallback sweeps that have
// not fired yet. Sweep hits are merged into in.PreferredFiles and selection
// is recomputed, so the caller sees the post-fallback result. Returned
// warnings name each facet whose sweep produced candidates.
func (s *Selector) Select(in Inputs) (Selection, []string) {
	timer := logging.StartTimer(logging.CategorySelect, "Selector.Select")
	defer timer.Stop()

	sel := s.compute(in)

	var warnings []string
	for _, b := range in.Signals.Buckets {
		facet, ok := intent.FacetForBucket(b)
		if !ok || s.disc == nil || s.firedFallbacks[facet] {
			continue
		}
		if selectionHasFacet(sel, facet) {
			continue
		}
		s.firedFallbacks[facet] = true

		found := s.disc.DiscoverFacet(facet, s.maxFiles)
		if len(found) == 0 {
			continue
		}
		logging.Select("fallback sweep for %s found %d candidates", facet, len(found))
		warnings = append(warnings, fmt.Sprintf("librarian_%s_candidates", facet))
		in.PreferredFiles = append(in.PreferredFiles, found...)
		sel = s.compute(in)
	}

	logging.SelectDebug("Select: focus=%d periphery=%d", len(sel.Focus), len(sel.Periphery))
	return sel, warnings
}

// Recompute reruns the scoring pass with impact edges folded in. Fallbacks
// that already fired do not fire again.
func (s *Selector) Recompute(in Inputs) Selection {
	return s.compute(in)
}

// compute is the single scoring pass: gather candidates in discovery order,
// score, take top maxFiles, split focus/periphery with the forced-focus
// floor.
func (s *Selector) compute(in Inputs) Selection {
	type candidate struct {
		path  string
		score int
		order int
	}

	preferred := make(map[string]bool)
	for _, p := range in.PreferredFiles {
		preferred[p] = true
	}
	forced := make(map[string]bool)
	for _, p := range in.ForceFocus {
		preferred[p] = true
		forced[p] = true
	}

	impactDegree := make(map[string]int)
	for _, e := range in.ImpactEdges {
		impactDegree[e.From]++
		impactDegree[e.To]++
	}

	// Discovery order: hits, preferred, recent, forced. First occurrence
	// fixes the tiebreak position.
	var ordered []string
	seen := make(map[string]bool)
	addPath := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		ordered = append(ordered, p)
	}
	for _, h := range in.Hits {
		addPath(h.Path)
	}
	for _, p := range in.PreferredFiles {
		addPath(p)
	}
	for _, p := range in.RecentFiles {
		addPath(p)
	}
	for _, p := range in.ForceFocus {
		addPath(p)
	}

	docTask := intent.DocFlavored(in.Request, in.Signals)
	uiOnly := in.Signals.Only(intent.BucketUI)

	cands := make([]candidate, 0, len(ordered))
	for i, p := range ordered {
		score := 0
		if preferred[p] {
			score += preferredBonus
		}
		for _, b := range in.Signals.Buckets {
			facet, ok := intent.FacetForBucket(b)
			if ok && intent.HasFacet(p, facet) {
				score += facetBonus[b]
			}
		}
		if intent.IsDocPath(p) && !docTask {
			score += docPenalty
		}
		if uiOnly && intent.HasFacet(p, intent.FacetTest) && !intent.HasFacet(p, intent.FacetFrontend) {
			score += strayTestPenalty
		}
		if d := impactDegree[p]; d > 0 {
			bonus := d * impactEdgeBonus
			if bonus > impactBonusCap {
				bonus = impactBonusCap
			}
			score += bonus
		}
		cands = append(cands, candidate{path: p, score: score, order: i})
	}

	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].score != cands[b].score {
			return cands[a].score > cands[b].score
		}
		return cands[a].order < cands[b].order
	})

	if len(cands) > s.maxFiles {
		// Forced-focus paths are a hard floor: pull any that fell below the
		// cut line back in before trimming.
		kept := cands[:s.maxFiles]
		present := make(map[string]bool, len(kept))
		for _, c := range kept {
			present[c.path] = true
		}
		repl := len(kept) - 1
		for _, c := range cands[s.maxFiles:] {
			if !forced[c.path] || present[c.path] {
				continue
			}
			for repl >= 0 && forced[kept[repl].path] {
				repl--
			}
			if repl < 0 {
				break
			}
			kept[repl] = c
			present[c.path] = true
			repl--
		}
		cands = kept
	}

	focusSize := in.PriorFocusSize
	if len(in.ForceFocus) > focusSize {
		focusSize = len(in.ForceFocus)
	}
	if focusSize < 1 {
		focusSize = 1
	}
	if focusSize > s.maxFiles {
		focusSize = s.maxFiles
	}

	var sel Selection
	// Forced paths enter focus first, in caller order.
	inFocus := make(map[string]bool)
	for _, p := range in.ForceFocus {
		if seen[p] && !inFocus[p] && len(sel.Focus) < focusSize {
			sel.Focus = append(sel.Focus, p)
			inFocus[p] = true
		}
	}
	for _, c := range cands {
		if inFocus[c.path] {
			continue
		}
		if len(sel.Focus) < focusSize {
			sel.Focus = append(sel.Focus, c.path)
			inFocus[c.path] = true
		} else {
			sel.Periphery = append(sel.Periphery, c.path)
		}
	}
	return sel
}

func selectionHasFacet(sel Selection, facet intent.Facet) bool {
	for _, p := range sel.All() {
		if intent.HasFacet(p, facet) {
			return true
		}
	}
	return false
}
