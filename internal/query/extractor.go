// Package query turns a natural-language request into the ordered set of
// search queries issued against the index service.
package query

import (
	"context"
	"path"
	"regexp"
	"strings"

	"librarian/internal/intent"
	"librarian/internal/logging"
)

// Expander is the optional LLM hook that rewrites or widens the query set.
// Implementations are best-effort: a failed expansion is recorded as a
// warning by the caller and never aborts assembly.
type Expander interface {
	Expand(ctx context.Context, request string, queries []string) ([]string, error)
}

// Extractor builds query lists for a single request.
type Extractor struct {
	maxQueries int
}

// NewExtractor creates an extractor. maxQueries is assumed pre-clamped to
// [1,12] by config.
func NewExtractor(maxQueries int) *Extractor {
	return &Extractor{maxQueries: maxQueries}
}

// Extract produces the ordered, deduplicated candidate queries, capped at
// maxQueries. Priority order: literal request, caller-supplied extra queries,
// salient phrases and file tokens from the request text, file-name hints from
// preferred files.
func (e *Extractor) Extract(request string, additional, preferredFiles []string) []string {
	var queries []string

	if trimmed := strings.TrimSpace(request); trimmed != "" {
		queries = append(queries, trimmed)
	}
	queries = append(queries, additional...)
	queries = append(queries, SalientPhrases(request)...)
	queries = append(queries, FileTokens(request)...)

	for _, pf := range preferredFiles {
		queries = append(queries, FileNameHints(pf)...)
	}

	queries = dedupeNonEmpty(queries)
	if len(queries) > e.maxQueries {
		queries = queries[:e.maxQueries]
	}

	logging.QueryDebug("Extract: %d queries from request %q", len(queries), request)
	return queries
}

// ExecutionList widens the candidate queries with intent-keyword hints into
// the list actually executed, capped at maxQueries*3. Base queries keep their
// priority order; hint expansions follow.
func (e *Extractor) ExecutionList(queries []string, sig intent.Signals) []string {
	out := append([]string(nil), queries...)

	for _, bucket := range sig.Buckets {
		for _, kw := range sig.Matches[bucket] {
			if len(kw) < 4 {
				continue
			}
			out = append(out, kw)
		}
	}

	out = dedupeNonEmpty(out)
	limit := e.maxQueries * 3
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// =============================================================================
// TEXT SIGNAL EXTRACTION
// =============================================================================

var (
	quotedRe     = regexp.MustCompile("[\"'`]([^\"'`]{3,60})[\"'`]")
	fileTokenRe  = regexp.MustCompile(`\b([\w./-]+\.[A-Za-z]{1,5})\b`)
	camelIdentRe = regexp.MustCompile(`\b([a-z]+[A-Z]\w+|[A-Z][a-z]+[A-Z]\w*)\b`)
	snakeIdentRe = regexp.MustCompile(`\b([a-z][a-z0-9]*(?:_[a-z0-9]+)+)\b`)
	versionRe    = regexp.MustCompile(`^\d+\.\d+$`)
)

// SalientPhrases extracts quoted phrases and code-shaped identifiers from the
// request text, in discovery order.
func SalientPhrases(request string) []string {
	var phrases []string
	for _, m := range quotedRe.FindAllStringSubmatch(request, -1) {
		phrases = append(phrases, strings.TrimSpace(m[1]))
	}
	for _, m := range camelIdentRe.FindAllStringSubmatch(request, -1) {
		phrases = append(phrases, m[1])
	}
	for _, m := range snakeIdentRe.FindAllStringSubmatch(request, -1) {
		phrases = append(phrases, m[1])
	}
	return dedupeNonEmpty(phrases)
}

// FileTokens extracts filename-looking tokens ("login.tsx", "auth/session.go")
// mentioned in the request.
func FileTokens(request string) []string {
	var tokens []string
	for _, m := range fileTokenRe.FindAllStringSubmatch(request, -1) {
		tok := m[1]
		// Bare version numbers ("1.2") slip through the extension pattern.
		if versionRe.MatchString(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return dedupeNonEmpty(tokens)
}

// FileNameHints derives query strings from a file path: the path itself, its
// basename, and the extension-free stem.
func FileNameHints(p string) []string {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	return dedupeNonEmpty([]string{p, base, stem})
}

// Tokenize splits free text into lowercase word tokens of length ≥3,
// dropping stop words. Used for adaptive retry queries and memory overlap.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	var tokens []string
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return dedupeNonEmpty(tokens)
}

// PathTokens splits a path into its meaningful segments and stem tokens.
func PathTokens(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	var tokens []string
	for _, seg := range strings.Split(p, "/") {
		seg = strings.TrimSuffix(seg, path.Ext(seg))
		tokens = append(tokens, Tokenize(strings.ReplaceAll(seg, "-", " "))...)
	}
	return dedupeNonEmpty(tokens)
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "when": true, "where": true,
	"what": true, "have": true, "has": true, "are": true, "was": true,
	"should": true, "would": true, "could": true, "please": true,
	"add": true, "fix": true, "make": true, "use": true, "not": true,
	"but": true, "all": true, "can": true, "its": true, "our": true,
}

func dedupeNonEmpty(ss []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
