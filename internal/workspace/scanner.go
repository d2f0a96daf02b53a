// Package workspace discovers candidate files straight from the filesystem.
// It backs the degraded fallback path when the index service is unreachable
// and the per-intent fallback sweeps during selection.
package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"librarian/internal/intent"
	"librarian/internal/logging"
	"librarian/internal/query"
	"librarian/internal/search"
)

// maxScanFiles bounds a walk so a huge monorepo cannot stall assembly.
const maxScanFiles = 5000

// Hidden directories still worth scanning.
var hiddenAllowlist = map[string]bool{
	".github":   true,
	".circleci": true,
	".config":   true,
}

// Scanner walks the workspace once and caches the file list. A filesystem
// watcher invalidates the cache on changes; without a watcher every call
// rescans.
type Scanner struct {
	root string

	mu      sync.RWMutex
	cached  []string
	dirty   bool
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewScanner creates a scanner rooted at the workspace. The watcher is
// best-effort: when it cannot be created the scanner still works, just
// without caching.
func NewScanner(root string) *Scanner {
	s := &Scanner{root: root, dirty: true, done: make(chan struct{})}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WorkspaceDebug("watcher unavailable, caching disabled: %v", err)
		return s
	}
	if err := watcher.Add(root); err != nil {
		logging.WorkspaceDebug("cannot watch %s: %v", root, err)
		watcher.Close()
		return s
	}
	s.watcher = watcher
	go s.watch()
	return s
}

func (s *Scanner) watch() {
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.mu.Lock()
			s.dirty = true
			s.mu.Unlock()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.WorkspaceDebug("watcher error: %v", err)
		}
	}
}

// Close stops the watcher goroutine.
func (s *Scanner) Close() {
	close(s.done)
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// Files returns workspace-relative paths, rescanning only when the cache is
// stale. Dependency and build directories are skipped; hidden directories
// are skipped unless allowlisted.
func (s *Scanner) Files() []string {
	s.mu.RLock()
	if !s.dirty && s.watcher != nil {
		cached := s.cached
		s.mu.RUnlock()
		return cached
	}
	s.mu.RUnlock()

	timer := logging.StartTimer(logging.CategoryWorkspace, "Scanner.Files")
	defer timer.Stop()

	var files []string
	filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, rerr := filepath.Rel(s.root, p)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") && !hiddenAllowlist[name] {
				return filepath.SkipDir
			}
			if search.ExcludedPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || search.ExcludedPath(rel) {
			return nil
		}
		files = append(files, rel)
		if len(files) >= maxScanFiles {
			return filepath.SkipAll
		}
		return nil
	})

	s.mu.Lock()
	s.cached = files
	s.dirty = false
	s.mu.Unlock()

	logging.Workspace("scanned %d files under %s", len(files), s.root)
	return files
}

// DiscoverFacet returns up to limit workspace paths carrying the facet.
// Satisfies the selector's fallback-sweep hook.
func (s *Scanner) DiscoverFacet(facet intent.Facet, limit int) []string {
	var out []string
	for _, p := range s.Files() {
		if intent.HasFacet(p, facet) {
			out = append(out, p)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// CandidateFiles ranks workspace files by token overlap with the request,
// used to seed a minimal bundle in degraded mode. Files with zero overlap
// are included only when nothing overlapped at all.
func (s *Scanner) CandidateFiles(request string, limit int) []string {
	tokens := make(map[string]bool)
	for _, t := range query.Tokenize(request) {
		tokens[t] = true
	}

	var matched, rest []string
	for _, p := range s.Files() {
		overlap := false
		for _, t := range query.PathTokens(p) {
			if tokens[t] {
				overlap = true
				break
			}
		}
		if overlap {
			matched = append(matched, p)
		} else {
			rest = append(rest, p)
		}
	}
	if len(matched) == 0 {
		matched = rest
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// manifestFiles are the project-type markers probed in parallel.
var manifestFiles = []string{
	"package.json", "go.mod", "Cargo.toml", "pyproject.toml",
	"requirements.txt", "pom.xml", "build.gradle", "Gemfile",
	"composer.json", "mix.exs",
}

// Manifests probes for well-known project manifests. Probes are independent
// stat calls, so they run fully parallel.
func (s *Scanner) Manifests(ctx context.Context) []string {
	found := make([]bool, len(manifestFiles))

	g, _ := errgroup.WithContext(ctx)
	for i, name := range manifestFiles {
		g.Go(func() error {
			if _, err := os.Stat(filepath.Join(s.root, name)); err == nil {
				found[i] = true
			}
			return nil
		})
	}
	g.Wait()

	var out []string
	for i, ok := range found {
		if ok {
			out = append(out, manifestFiles[i])
		}
	}
	return out
}
