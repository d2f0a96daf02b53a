package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClampedForcesRanges(t *testing.T) {
	o := Default(".")
	o.MaxQueries = 99
	o.MaxHitsPerQuery = 0
	o.SnippetWindow = 10
	o.ImpactMaxDepth = 100
	o.ImpactMaxEdges = 1
	o.MaxFiles = -5

	c := o.Clamped()

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"max_queries", c.MaxQueries, 12},
		{"max_hits_per_query", c.MaxHitsPerQuery, 1},
		{"snippet_window", c.SnippetWindow, 40},
		{"impact_max_depth", c.ImpactMaxDepth, 6},
		{"impact_max_edges", c.ImpactMaxEdges, 10},
		{"max_files", c.MaxFiles, 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestClampedLeavesValidValues(t *testing.T) {
	o := Default(".")
	c := o.Clamped()
	if c.MaxQueries != o.MaxQueries || c.MaxFiles != o.MaxFiles {
		t.Errorf("Clamped changed in-range values: %+v", c)
	}
}

func TestClampedRepairsEnums(t *testing.T) {
	o := Default(".")
	o.ReadStrategy = "carrier-pigeon"
	o.SerializationMode = "interpretive-dance"

	c := o.Clamped()
	if c.ReadStrategy != ReadDocdex {
		t.Errorf("ReadStrategy = %s, want default", c.ReadStrategy)
	}
	if c.SerializationMode != SerializeBundleText {
		t.Errorf("SerializationMode = %s, want default", c.SerializationMode)
	}
}

func TestWithDeepScanIsPure(t *testing.T) {
	o := Default(".")
	deep := o.WithDeepScan()

	if o.DeepMode {
		t.Error("WithDeepScan mutated the receiver")
	}
	if !deep.DeepMode {
		t.Error("preset did not enable deep mode")
	}
	if deep.MaxQueries != 12 || deep.MaxHitsPerQuery != 20 {
		t.Errorf("preset limits = %d/%d, want maxed", deep.MaxQueries, deep.MaxHitsPerQuery)
	}
	if !deep.IncludeRepoMap || !deep.IncludeImpact || !deep.IncludeSnippets {
		t.Error("preset did not force feature toggles on")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned %v for a missing file", err)
	}
	want := Default(dir)
	if got.MaxQueries != want.MaxQueries || got.WorkspaceRoot != dir {
		t.Errorf("Load = %+v, want defaults for %s", got, dir)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ".librarian")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	yaml := "max_queries: 3\nmax_files: 4\ndeep_mode: true\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "librarian.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if got.MaxQueries != 3 || got.MaxFiles != 4 || !got.DeepMode {
		t.Errorf("Load = %+v, yaml values not applied", got)
	}
	if got.WorkspaceRoot != dir {
		t.Errorf("WorkspaceRoot = %s, want %s", got.WorkspaceRoot, dir)
	}
}
