package loader

import (
	"bufio"
	"os"
	"path"
	"regexp"
	"strings"

	"librarian/internal/config"
	"librarian/internal/logging"
)

const redactedPlaceholder = "[REDACTED]"

// Built-in secret patterns: well-known token shapes plus generic credential
// assignments. User patterns from options are appended at construction.
var builtinSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password|passwd|credential)["']?\s*[:=]\s*["'][^"']{8,}["']`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{20,}`),
}

// Files never worth including regardless of selection.
var builtinIgnoredFiles = []string{
	".env", ".env.*", "*.pem", "*.key", "*.p12", "*.pfx",
	"id_rsa", "id_ed25519", "credentials", "credentials.json",
	".netrc", ".npmrc", ".pypirc",
}

// Redactor scrubs secret-shaped text from loaded content and filters whole
// files off the load list.
type Redactor struct {
	enabled  bool
	patterns []*regexp.Regexp
	ignored  []string
}

// NewRedactor builds a redactor from the options' redaction settings. Bad
// user patterns and an unreadable ignore file degrade to warnings in the log,
// never failures.
func NewRedactor(opts config.Options) *Redactor {
	r := &Redactor{enabled: opts.RedactSecrets}
	if !r.enabled {
		return r
	}

	r.patterns = append(r.patterns, builtinSecretPatterns...)
	for _, p := range opts.RedactPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			logging.LoaderWarn("invalid redact pattern %q: %v", p, err)
			continue
		}
		r.patterns = append(r.patterns, re)
	}

	r.ignored = append(r.ignored, builtinIgnoredFiles...)
	if opts.IgnoreFilesFrom != "" {
		r.ignored = append(r.ignored, readIgnoreFile(opts.IgnoreFilesFrom)...)
	}
	return r
}

// Ignored reports whether a path's basename matches the ignore list.
func (r *Redactor) Ignored(p string) bool {
	if !r.enabled {
		return false
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	for _, pattern := range r.ignored {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Apply scrubs content in place and returns it with the number of
// replacements made.
func (r *Redactor) Apply(content string) (string, int) {
	if !r.enabled {
		return content, 0
	}
	total := 0
	for _, re := range r.patterns {
		content = re.ReplaceAllStringFunc(content, func(string) string {
			total++
			return redactedPlaceholder
		})
	}
	return content, total
}

func readIgnoreFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		logging.LoaderWarn("ignore file %s unreadable: %v", path, err)
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
