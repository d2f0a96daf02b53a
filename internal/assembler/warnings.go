package assembler

// Warning names produced by the pipeline itself. Per-call docdex failures are
// named by docdex.Soft.
const (
	WarnUnavailable     = "docdex_unavailable"
	WarnIndexEmpty      = "docdex_index_empty"
	WarnNoHits          = "docdex_no_hits"
	WarnNoFilesLoaded   = "no_context_files_loaded"
	WarnNoFocusSelected = "no_focus_files_selected"
)

// suppressionState is the read-only pipeline outcome the reconciler rules
// consult. The reconciler never mutates upstream state.
type suppressionState struct {
	healthOK    bool
	statsOK     bool
	filesOK     bool
	numDocs     int
	hasFocus    bool
	hasLoaded   bool
	hasSnippets bool
}

// suppressionRules maps a warning name to the condition under which it is
// dropped. A pure table: reconciliation is a single filtering pass and is
// idempotent by construction.
var suppressionRules = map[string]func(suppressionState) bool{
	WarnIndexEmpty: func(s suppressionState) bool {
		return s.statsOK && s.filesOK && s.numDocs > 0
	},
	WarnNoHits: func(s suppressionState) bool {
		return s.hasFocus || s.hasLoaded || s.hasSnippets
	},
	WarnUnavailable: func(s suppressionState) bool {
		return s.healthOK
	},
	WarnNoFocusSelected: func(s suppressionState) bool {
		return s.hasFocus
	},
	WarnNoFilesLoaded: func(s suppressionState) bool {
		return s.hasLoaded
	},
}

// reconcileWarnings applies the suppression table and removes duplicates,
// preserving first-occurrence order.
func reconcileWarnings(warnings []string, st suppressionState) []string {
	seen := make(map[string]bool, len(warnings))
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if seen[w] {
			continue
		}
		if rule, ok := suppressionRules[w]; ok && rule(st) {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
