package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"librarian/internal/intent"
)

func writeTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("content\n"), 0644))
	}
}

func TestFilesSkipsExcludedAndHidden(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/main.go",
		"src/components/Login.tsx",
		"node_modules/react/index.js",
		".git/HEAD",
		".github/workflows/ci.yml",
		".hidden/secret.txt",
	)

	s := NewScanner(root)
	defer s.Close()

	files := s.Files()
	got := make(map[string]bool)
	for _, f := range files {
		got[f] = true
	}

	require.True(t, got["src/main.go"])
	require.True(t, got["src/components/Login.tsx"])
	require.True(t, got[".github/workflows/ci.yml"], "allowlisted hidden dir should be scanned")
	require.False(t, got["node_modules/react/index.js"])
	require.False(t, got[".git/HEAD"])
	require.False(t, got[".hidden/secret.txt"])
}

func TestDiscoverFacet(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/components/Login.tsx",
		"src/server/main.go",
		"src/server/main_test.go",
	)

	s := NewScanner(root)
	defer s.Close()

	frontend := s.DiscoverFacet(intent.FacetFrontend, 10)
	require.Equal(t, []string{"src/components/Login.tsx"}, frontend)

	tests := s.DiscoverFacet(intent.FacetTest, 10)
	require.Equal(t, []string{"src/server/main_test.go"}, tests)

	require.Len(t, s.DiscoverFacet(intent.FacetFrontend, 0), 1)
}

func TestCandidateFilesRanksByOverlap(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/login/form.ts",
		"src/billing/invoice.go",
	)

	s := NewScanner(root)
	defer s.Close()

	got := s.CandidateFiles("fix the login form", 5)
	require.NotEmpty(t, got)
	require.Equal(t, "src/login/form.ts", got[0])
}

func TestCandidateFilesFallsBackWhenNoOverlap(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/a.go")

	s := NewScanner(root)
	defer s.Close()

	got := s.CandidateFiles("zzz qqq www", 5)
	require.Equal(t, []string{"src/a.go"}, got)
}

func TestManifests(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "go.mod", "package.json", "src/main.go")

	s := NewScanner(root)
	defer s.Close()

	got := s.Manifests(context.Background())
	require.Contains(t, got, "go.mod")
	require.Contains(t, got, "package.json")
	require.NotContains(t, got, "Cargo.toml")
}
