// Package loader reads the selected files (full for focus, skeleton for
// periphery), redacts secrets, and enforces the byte/token budget over the
// loaded set.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"librarian/internal/config"
	"librarian/internal/docdex"
	"librarian/internal/logging"
	"librarian/internal/selector"
)

// Entry kinds and slice strategies recorded on loaded files.
const (
	KindFocus     = "focus"
	KindPeriphery = "periphery"

	StrategyFull       = "full"
	StrategySkeleton   = "skeleton"
	StrategyBudgetTrim = "budget_trim"
)

// Entry is one loaded file as it appears in the bundle.
type Entry struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Bytes     int    `json:"bytes"`
	Tokens    int    `json:"tokens"`
	Kind      string `json:"kind"`
	Strategy  string `json:"strategy"`
	Truncated bool   `json:"truncated,omitempty"`
	Redacted  int    `json:"redacted,omitempty"`
}

// Result is the loaded file set before budget enforcement.
type Result struct {
	Entries     []Entry
	Warnings    []string
	FailedFocus []string
}

// Loader loads files via the index service or the filesystem, per the
// configured read strategy.
type Loader struct {
	client   docdex.Client
	opts     config.Options
	redactor *Redactor
}

// NewLoader creates a loader. The redactor is built once from the options'
// redaction settings.
func NewLoader(client docdex.Client, opts config.Options) *Loader {
	return &Loader{
		client:   client,
		opts:     opts,
		redactor: NewRedactor(opts),
	}
}

// Load reads every selected path. Per-file failures become warnings and the
// file is omitted; failed focus paths are reported separately so the caller
// can record them as missing items.
func (l *Loader) Load(ctx context.Context, sel selector.Selection) Result {
	timer := logging.StartTimer(logging.CategoryLoader, "Loader.Load")
	defer timer.Stop()

	var res Result
	for _, p := range sel.Focus {
		entry, err := l.loadOne(ctx, p, KindFocus, l.opts.FocusMaxFileBytes)
		if err != nil {
			res.Warnings = append(res.Warnings, docdex.Soft("open_file", err))
			res.FailedFocus = append(res.FailedFocus, p)
			continue
		}
		if entry != nil {
			res.Entries = append(res.Entries, *entry)
		}
	}
	for _, p := range sel.Periphery {
		entry, err := l.loadOne(ctx, p, KindPeriphery, l.opts.PeripheryMaxBytes)
		if err != nil {
			res.Warnings = append(res.Warnings, docdex.Soft("open_file", err))
			continue
		}
		if entry != nil {
			res.Entries = append(res.Entries, *entry)
		}
	}

	logging.Loader("Load: %d entries, %d focus failures", len(res.Entries), len(res.FailedFocus))
	return res
}

// loadOne returns (nil, nil) when the path is on the redaction ignore list.
func (l *Loader) loadOne(ctx context.Context, path, kind string, maxBytes int) (*Entry, error) {
	if l.redactor.Ignored(path) {
		logging.LoaderDebug("skipping ignored file %s", path)
		return nil, nil
	}

	content, truncated, err := l.read(ctx, path, maxBytes)
	if err != nil {
		return nil, err
	}

	strategy := StrategyFull
	if kind == KindPeriphery {
		content = l.skeletonize(content, maxBytes)
		strategy = StrategySkeleton
	}

	content, redacted := l.redactor.Apply(content)

	return &Entry{
		Path:      path,
		Content:   content,
		Bytes:     len(content),
		Tokens:    EstimateTokens(content),
		Kind:      kind,
		Strategy:  strategy,
		Truncated: truncated,
		Redacted:  redacted,
	}, nil
}

func (l *Loader) read(ctx context.Context, path string, maxBytes int) (string, bool, error) {
	if l.opts.ReadStrategy == config.ReadFS {
		return l.readFS(path, maxBytes)
	}
	fc, err := l.client.OpenFile(ctx, path, docdex.OpenFileOptions{Head: maxBytes, Clamp: true})
	if err != nil {
		return "", false, err
	}
	return fc.Content, fc.Truncated, nil
}

// readFS loads from disk with a traversal guard: paths resolving outside the
// workspace root are rejected outright.
func (l *Loader) readFS(path string, maxBytes int) (string, bool, error) {
	abs := filepath.Join(l.opts.WorkspaceRoot, filepath.FromSlash(path))
	rel, err := filepath.Rel(l.opts.WorkspaceRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false, fmt.Errorf("path %q escapes workspace root", path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", false, err
	}
	if len(data) > maxBytes {
		return string(data[:maxBytes]), true, nil
	}
	return string(data), false, nil
}

// skeletonize reduces periphery content to declaration-shaped lines when
// enabled, otherwise head-truncates. Either way the result fits maxBytes.
func (l *Loader) skeletonize(content string, maxBytes int) string {
	if !l.opts.SkeletonizeLargeFiles || len(content) <= maxBytes {
		if len(content) > maxBytes {
			return content[:maxBytes]
		}
		return content
	}

	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if !declLine(line) {
			continue
		}
		if b.Len()+len(line)+1 > maxBytes {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return content[:maxBytes]
	}
	return b.String()
}

var declPrefixes = []string{
	"func ", "type ", "const ", "var ", "package ", "import ",
	"class ", "def ", "interface ", "struct ", "enum ",
	"export ", "function ", "public ", "private ", "protected ",
	"module ", "impl ", "fn ", "pub ",
}

func declLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range declPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// EstimateTokens approximates the token cost of a string as ⌈len/4⌉.
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}
