package selector

import (
	"sort"

	"librarian/internal/intent"
)

// analysisCap bounds the structural-analysis set regardless of maxFiles.
const analysisCap = 6

const analysisDocPenalty = -80

// AnalysisPaths picks the paths worth spending symbol/AST/impact calls on,
// at most min(maxFiles, 6). Doc-flavored requests keep doc paths; code
// requests exclude them entirely unless nothing else is available.
func AnalysisPaths(known []string, request string, sig intent.Signals, preferred map[string]bool, maxFiles int) []string {
	limit := maxFiles
	if limit > analysisCap {
		limit = analysisCap
	}
	if limit < 1 || len(known) == 0 {
		return nil
	}

	docTask := intent.DocFlavored(request, sig)

	type candidate struct {
		path  string
		score int
		order int
	}
	var cands []candidate
	var docOnly []candidate
	for i, p := range known {
		score := 0
		if preferred[p] {
			score += preferredBonus
		}
		for _, b := range sig.Buckets {
			facet, ok := intent.FacetForBucket(b)
			if ok && intent.HasFacet(p, facet) {
				score += facetBonus[b]
			}
		}
		c := candidate{path: p, score: score, order: i}
		if intent.IsDocPath(p) {
			if docTask {
				cands = append(cands, c)
			} else {
				c.score += analysisDocPenalty
				docOnly = append(docOnly, c)
			}
			continue
		}
		cands = append(cands, c)
	}
	if len(cands) == 0 {
		cands = docOnly
	}

	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].score != cands[b].score {
			return cands[a].score > cands[b].score
		}
		return cands[a].order < cands[b].order
	})

	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.path
	}
	return out
}
