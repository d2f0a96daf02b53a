package intent

import (
	"path"
	"regexp"
	"strings"
)

// Facet is a coarse classification of a repository-relative path.
// A path can carry several facets (a TSX test file is both frontend and test).
type Facet string

const (
	FacetFrontend      Facet = "frontend"
	FacetTest          Facet = "test"
	FacetInfra         Facet = "infra"
	FacetSecurity      Facet = "security"
	FacetPerformance   Facet = "performance"
	FacetObservability Facet = "observability"
	FacetDocumentation Facet = "documentation"
	FacetConfig        Facet = "config"
	FacetBackend       Facet = "backend"
)

// facetRule is one compiled classification rule. Rules are data: adding a
// facet never touches the classifier itself.
type facetRule struct {
	facet   Facet
	pattern *regexp.Regexp
}

var facetRules = []facetRule{
	{FacetFrontend, regexp.MustCompile(`(?i)\.(tsx|jsx|vue|svelte|html|css|scss|sass|less)$`)},
	{FacetFrontend, regexp.MustCompile(`(?i)(^|/)(ui|frontend|components?|views?|pages?|styles?|public|assets)(/|$)`)},
	{FacetTest, regexp.MustCompile(`(?i)(^|/)(tests?|__tests__|spec|e2e|testdata)(/|$)`)},
	{FacetTest, regexp.MustCompile(`(?i)(_test\.[a-z0-9]+|\.test\.[a-z0-9]+|\.spec\.[a-z0-9]+|_spec\.[a-z0-9]+)$`)},
	{FacetInfra, regexp.MustCompile(`(?i)(^|/)(\.github/workflows|\.circleci|deploy|deployment|infra|terraform|helm|charts?|k8s|kubernetes|ansible)(/|$)`)},
	{FacetInfra, regexp.MustCompile(`(?i)(^|/)(dockerfile|docker-compose[^/]*\.ya?ml|makefile|jenkinsfile|\.gitlab-ci\.ya?ml)$`)},
	{FacetSecurity, regexp.MustCompile(`(?i)(^|/)(auth|security|crypto|secrets?|permissions?|acl)(/|$)`)},
	{FacetSecurity, regexp.MustCompile(`(?i)(auth|security|crypt|token|session)[^/]*\.[a-z0-9]+$`)},
	{FacetPerformance, regexp.MustCompile(`(?i)(^|/)(bench|benchmarks?|perf|profiling)(/|$)`)},
	{FacetPerformance, regexp.MustCompile(`(?i)(_bench(mark)?_?test\.[a-z0-9]+|bench[^/]*\.[a-z0-9]+)$`)},
	{FacetObservability, regexp.MustCompile(`(?i)(^|/)(metrics?|telemetry|tracing|monitoring|observability|logging)(/|$)`)},
	{FacetObservability, regexp.MustCompile(`(?i)(metrics?|telemetry|tracing|logger)[^/]*\.[a-z0-9]+$`)},
	{FacetDocumentation, regexp.MustCompile(`(?i)\.(md|mdx|rst|adoc|txt)$`)},
	{FacetDocumentation, regexp.MustCompile(`(?i)(^|/)(docs?|documentation|examples?)(/|$)`)},
	{FacetConfig, regexp.MustCompile(`(?i)\.(ya?ml|toml|ini|env|properties|conf)$`)},
	{FacetConfig, regexp.MustCompile(`(?i)(^|/)(config|configs|settings|\.config)(/|$)`)},
	{FacetBackend, regexp.MustCompile(`(?i)\.(go|py|rb|java|rs|c|cc|cpp|h|hpp|cs|php|ex|exs|kt|scala|ts|js|mjs)$`)},
}

// frontend-ish script extensions only count as backend when the path does not
// already classify as frontend.
var frontendScriptRe = regexp.MustCompile(`(?i)\.(ts|js|mjs)$`)

// Classify returns the facets of a repository-relative path.
// Stateless and side-effect free.
func Classify(p string) []Facet {
	p = strings.ReplaceAll(p, "\\", "/")

	seen := make(map[Facet]bool)
	var facets []Facet
	for _, rule := range facetRules {
		if seen[rule.facet] {
			continue
		}
		if rule.pattern.MatchString(p) {
			seen[rule.facet] = true
			facets = append(facets, rule.facet)
		}
	}

	// A .ts/.js file inside a frontend tree is frontend source, not backend.
	if seen[FacetBackend] && seen[FacetFrontend] && frontendScriptRe.MatchString(p) {
		filtered := facets[:0]
		for _, f := range facets {
			if f != FacetBackend {
				filtered = append(filtered, f)
			}
		}
		facets = filtered
	}

	return facets
}

// HasFacet reports whether a path carries the given facet.
func HasFacet(p string, f Facet) bool {
	for _, x := range Classify(p) {
		if x == f {
			return true
		}
	}
	return false
}

// IsDocPath reports whether a path is documentation-like.
func IsDocPath(p string) bool {
	return HasFacet(p, FacetDocumentation)
}

var markupRe = regexp.MustCompile(`(?i)\.(html|css|scss|sass|less|svg)$`)

// IsMarkupPath reports whether a path is pure markup/styling with no script.
func IsMarkupPath(p string) bool {
	return markupRe.MatchString(p)
}

// ScriptCompanions returns plausible script counterparts for a markup path,
// used to downgrade digest confidence when focus is markup-only.
func ScriptCompanions(p string) []string {
	ext := path.Ext(p)
	if ext == "" {
		return nil
	}
	stem := strings.TrimSuffix(p, ext)
	return []string{stem + ".ts", stem + ".tsx", stem + ".js", stem + ".jsx"}
}

// FacetForBucket maps an intent bucket to the path facet that satisfies it
// during selection and fallback discovery.
func FacetForBucket(b Bucket) (Facet, bool) {
	switch b {
	case BucketUI:
		return FacetFrontend, true
	case BucketTesting:
		return FacetTest, true
	case BucketInfra:
		return FacetInfra, true
	case BucketSecurity:
		return FacetSecurity, true
	case BucketPerformance:
		return FacetPerformance, true
	case BucketObservability:
		return FacetObservability, true
	case BucketData, BucketBehavior:
		return FacetBackend, true
	default:
		return "", false
	}
}
