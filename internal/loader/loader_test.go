package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"librarian/internal/config"
	"librarian/internal/docdex"
	"librarian/internal/selector"
)

func TestLoadFocusAndPeriphery(t *testing.T) {
	client := &docdex.FakeClient{
		FileContents: map[string]string{
			"a.go": "package a\n\nfunc A() {}\n",
			"b.go": "package b\n\nfunc B() {}\n",
		},
	}
	l := NewLoader(client, config.Default("."))

	res := l.Load(context.Background(), selector.Selection{
		Focus:     []string{"a.go"},
		Periphery: []string{"b.go"},
	})

	require.Len(t, res.Entries, 2)
	require.Equal(t, KindFocus, res.Entries[0].Kind)
	require.Equal(t, StrategyFull, res.Entries[0].Strategy)
	require.Equal(t, KindPeriphery, res.Entries[1].Kind)
	require.Equal(t, StrategySkeleton, res.Entries[1].Strategy)
	require.Empty(t, res.Warnings)
}

func TestLoadFailuresAreSoft(t *testing.T) {
	client := &docdex.FakeClient{
		FileContents: map[string]string{"ok.go": "package ok\n"},
		OpenErr:      map[string]error{"bad.go": errors.New("not indexed")},
	}
	l := NewLoader(client, config.Default("."))

	res := l.Load(context.Background(), selector.Selection{
		Focus: []string{"bad.go", "ok.go"},
	})

	require.Len(t, res.Entries, 1)
	require.Equal(t, "ok.go", res.Entries[0].Path)
	require.Equal(t, []string{"bad.go"}, res.FailedFocus)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "docdex_open_file_failed")
}

func TestLoadFromFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))

	opts := config.Default(dir)
	opts.ReadStrategy = config.ReadFS
	l := NewLoader(&docdex.FakeClient{}, opts)

	res := l.Load(context.Background(), selector.Selection{Focus: []string{"main.go"}})
	require.Len(t, res.Entries, 1)
	require.Equal(t, "package main\n", res.Entries[0].Content)
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	opts := config.Default(dir)
	opts.ReadStrategy = config.ReadFS
	l := NewLoader(&docdex.FakeClient{}, opts)

	res := l.Load(context.Background(), selector.Selection{Focus: []string{"../../etc/passwd"}})
	require.Empty(t, res.Entries)
	require.Equal(t, []string{"../../etc/passwd"}, res.FailedFocus)
}

func TestLoadSkipsIgnoredFiles(t *testing.T) {
	client := &docdex.FakeClient{
		FileContents: map[string]string{".env": "SECRET=1\n"},
	}
	l := NewLoader(client, config.Default("."))

	res := l.Load(context.Background(), selector.Selection{Focus: []string{".env"}})
	require.Empty(t, res.Entries)
	require.Empty(t, res.Warnings)
}

func TestSkeletonizeKeepsDeclarations(t *testing.T) {
	opts := config.Default(".")
	opts.SkeletonizeLargeFiles = true
	opts.PeripheryMaxBytes = 60
	l := NewLoader(&docdex.FakeClient{}, opts)

	content := "package big\n" +
		"func Exported() {\n" +
		strings.Repeat("\tx := 1\n\t_ = x\n", 40) +
		"}\n" +
		"type Thing struct{}\n"

	got := l.skeletonize(content, opts.PeripheryMaxBytes)
	require.LessOrEqual(t, len(got), 60)
	require.Contains(t, got, "package big")
	require.Contains(t, got, "func Exported()")
	require.NotContains(t, got, "x := 1")
}
