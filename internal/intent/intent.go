// Package intent derives coarse request categories and path facets used to
// bias search and selection scoring. All classification is table-driven:
// new buckets or facets are added by extending the tables, not the logic.
package intent

import (
	"regexp"
	"strings"

	"librarian/internal/logging"
)

// Bucket is one of the nine coarse request categories.
type Bucket string

const (
	BucketUI            Bucket = "ui"
	BucketContent       Bucket = "content"
	BucketBehavior      Bucket = "behavior"
	BucketData          Bucket = "data"
	BucketTesting       Bucket = "testing"
	BucketInfra         Bucket = "infra"
	BucketSecurity      Bucket = "security"
	BucketPerformance   Bucket = "performance"
	BucketObservability Bucket = "observability"
)

// Signals holds the detected buckets plus the keywords that matched each.
// Computed once per request and treated as immutable afterwards.
type Signals struct {
	Buckets []Bucket
	Matches map[Bucket][]string
}

// Has reports whether a bucket was detected.
func (s Signals) Has(b Bucket) bool {
	for _, x := range s.Buckets {
		if x == b {
			return true
		}
	}
	return false
}

// Only reports whether the detected buckets are exactly {b}.
func (s Signals) Only(b Bucket) bool {
	return len(s.Buckets) == 1 && s.Buckets[0] == b
}

// bucketKeywords maps each bucket to its trigger keywords. Keywords are
// matched as substrings of the normalized request, so "styl" covers
// style/styling/stylesheet.
var bucketKeywords = map[Bucket][]string{
	BucketUI: {
		"button", "styl", "css", "layout", "theme", "color", "colour", "font",
		"ui", "frontend", "render", "screen", "page", "modal", "dropdown",
		"widget", "icon", "responsive", "animation", "component", "markup",
	},
	BucketContent: {
		"copy", "wording", "text", "label", "translation", "locale", "i18n",
		"readme", "docs", "documentation", "tutorial", "changelog", "heading",
	},
	BucketBehavior: {
		"fix", "bug", "crash", "error", "broken", "logic", "behavior",
		"behaviour", "feature", "implement", "refactor", "handler", "flow",
		"validate", "workflow",
	},
	BucketData: {
		"database", "schema", "migration", "query", "sql", "model", "storage",
		"cache", "persist", "serialize", "json", "payload", "record", "index",
	},
	BucketTesting: {
		"test", "spec", "coverage", "assert", "mock", "fixture", "e2e",
		"regression", "flaky", "unit test",
	},
	BucketSecurity: {
		"security", "auth", "token", "permission", "xss", "csrf", "injection",
		"vulnerab", "secret", "encrypt", "sanitiz", "password", "credential",
	},
	BucketPerformance: {
		"slow", "performance", "latency", "optimiz", "memory leak", "profil",
		"throughput", "bottleneck", "speed up", "cpu", "timeout",
	},
}

// Infra matching is two-stage: a base keyword must be present before the
// conditional keywords count, so "build the login page" stays out of infra.
var (
	infraBaseKeywords = []string{
		"deploy", "docker", "kubernetes", "k8s", "terraform", "helm", "ci",
		"cd pipeline", "pipeline", "github action", "workflow file", "infra",
		"provision", "ansible", "makefile",
	}
	infraConditionalKeywords = []string{"build", "release", "package"}
)

// Observability matching discards pure logging mentions: "add logging" alone
// should not pull in dashboards and tracing.
var (
	observabilityKeywords = []string{
		"logging", "log", "logger", "metric", "trace", "tracing", "span",
		"telemetry", "dashboard", "alert", "monitor", "observab", "prometheus",
		"grafana",
	}
	loggingOnlyKeywords = map[string]bool{"logging": true, "log": true, "logger": true}
)

var normalizeRe = regexp.MustCompile(`[^a-z0-9 ]+`)

// normalize lowercases and strips non-alphanumerics so keyword matching is
// insensitive to punctuation.
func normalize(request string) string {
	s := strings.ToLower(request)
	s = normalizeRe.ReplaceAllString(s, " ")
	return " " + strings.Join(strings.Fields(s), " ") + " "
}

// Detect derives intent signals from a free-text request.
// The result always contains at least one bucket (default: behavior).
func Detect(request string) Signals {
	text := normalize(request)

	sig := Signals{Matches: make(map[Bucket][]string)}
	add := func(b Bucket, matched []string) {
		if len(matched) == 0 {
			return
		}
		sig.Buckets = append(sig.Buckets, b)
		sig.Matches[b] = matched
	}

	// Fixed order keeps Signals.Buckets deterministic across runs.
	order := []Bucket{
		BucketUI, BucketContent, BucketBehavior, BucketData, BucketTesting,
		BucketSecurity, BucketPerformance,
	}
	for _, b := range order {
		add(b, matchKeywords(text, bucketKeywords[b]))
	}

	add(BucketInfra, matchInfra(text))
	add(BucketObservability, matchObservability(text))

	if len(sig.Buckets) == 0 {
		sig.Buckets = []Bucket{BucketBehavior}
		sig.Matches[BucketBehavior] = nil
	}

	logging.IntentDebug("Detect: buckets=%v", sig.Buckets)
	return sig
}

func matchKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if containsKeyword(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func matchInfra(text string) []string {
	base := matchKeywords(text, infraBaseKeywords)
	if len(base) == 0 {
		return nil
	}
	return append(base, matchKeywords(text, infraConditionalKeywords)...)
}

func matchObservability(text string) []string {
	matched := matchKeywords(text, observabilityKeywords)
	nonLogging := false
	for _, kw := range matched {
		if !loggingOnlyKeywords[kw] {
			nonLogging = true
			break
		}
	}
	if !nonLogging {
		return nil
	}
	return matched
}

// containsKeyword does substring matching with a word-start boundary for
// short keywords, so "ci" does not match "deprecation".
func containsKeyword(text, kw string) bool {
	if len(kw) <= 3 {
		return strings.Contains(text, " "+kw+" ") || strings.Contains(text, " "+kw)
	}
	return strings.Contains(text, kw)
}

// DocFlavored reports whether the request is primarily about documentation,
// used to suspend the doc-path penalty during selection.
func DocFlavored(request string, sig Signals) bool {
	if sig.Has(BucketContent) && !sig.Has(BucketUI) && !sig.Has(BucketData) {
		return true
	}
	text := normalize(request)
	for _, kw := range []string{"readme", "documentation", " docs ", "changelog", "tutorial"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
