// Package config holds the assembler option surface and its clamping rules.
// Out-of-range numeric options are clamped and logged, never rejected.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"librarian/internal/logging"
)

// ReadStrategy selects where file contents are read from.
type ReadStrategy string

const (
	ReadDocdex ReadStrategy = "docdex"
	ReadFS     ReadStrategy = "fs"
)

// SerializationMode selects the output format of the assembled bundle.
type SerializationMode string

const (
	SerializeBundleText SerializationMode = "bundle_text"
	SerializeJSON       SerializationMode = "json"
)

// Empirically chosen constants carried over from the original tuning.
// Kept configurable rather than reinterpreted.
const (
	DefaultDocDominanceThreshold = 0.60
	DefaultTrimPassesPerEntry    = 4
)

// Options is the full configuration surface of the context assembler.
type Options struct {
	WorkspaceRoot string `yaml:"workspace_root"`
	AgentID       string `yaml:"agent_id"`

	// Search shape
	MaxQueries      int `yaml:"max_queries"`        // clamped to [1,12]
	MaxHitsPerQuery int `yaml:"max_hits_per_query"` // clamped to [1,20]
	SnippetWindow   int `yaml:"snippet_window"`     // clamped to [40,600]

	// Impact graph shape
	ImpactMaxDepth int `yaml:"impact_max_depth"` // clamped to [1,6]
	ImpactMaxEdges int `yaml:"impact_max_edges"` // clamped to [10,200]

	// Selection and budgets
	MaxFiles          int `yaml:"max_files"`
	MaxTotalBytes     int `yaml:"max_total_bytes"`
	TokenBudget       int `yaml:"token_budget"`
	FocusMaxFileBytes int `yaml:"focus_max_file_bytes"`
	PeripheryMaxBytes int `yaml:"periphery_max_bytes"`

	// Feature toggles
	IncludeRepoMap        bool `yaml:"include_repo_map"`
	IncludeImpact         bool `yaml:"include_impact"`
	IncludeSnippets       bool `yaml:"include_snippets"`
	SkeletonizeLargeFiles bool `yaml:"skeletonize_large_files"`

	ReadStrategy      ReadStrategy      `yaml:"read_strategy"`
	SerializationMode SerializationMode `yaml:"serialization_mode"`

	// Redaction
	RedactSecrets   bool     `yaml:"redact_secrets"`
	RedactPatterns  []string `yaml:"redact_patterns"`
	IgnoreFilesFrom string   `yaml:"ignore_files_from"`

	// Strictness: fail fast with diagnostics instead of degrading
	DeepMode bool `yaml:"deep_mode"`

	// Caller-supplied selection hints
	PreferredFiles          []string `yaml:"preferred_files"`
	RecentFiles             []string `yaml:"recent_files"`
	ForceFocusFiles         []string `yaml:"force_focus_files"`
	AdditionalQueries       []string `yaml:"additional_queries"`
	SkipSearchWhenPreferred bool     `yaml:"skip_search_when_preferred"`

	// Tuning constants (see package comment)
	DocDominanceThreshold float64 `yaml:"doc_dominance_threshold"`
	TrimPassesPerEntry    int     `yaml:"trim_passes_per_entry"`
}

// Default returns the baseline option set for a workspace.
func Default(workspaceRoot string) Options {
	return Options{
		WorkspaceRoot:     workspaceRoot,
		MaxQueries:        6,
		MaxHitsPerQuery:   8,
		SnippetWindow:     160,
		ImpactMaxDepth:    2,
		ImpactMaxEdges:    60,
		MaxFiles:          8,
		MaxTotalBytes:     48000,
		TokenBudget:       12000,
		FocusMaxFileBytes: 12000,
		PeripheryMaxBytes: 4000,
		IncludeRepoMap:    true,
		IncludeImpact:     true,
		IncludeSnippets:   true,
		ReadStrategy:      ReadDocdex,
		SerializationMode: SerializeBundleText,
		RedactSecrets:     true,

		DocDominanceThreshold: DefaultDocDominanceThreshold,
		TrimPassesPerEntry:    DefaultTrimPassesPerEntry,
	}
}

// Clamped returns a copy with every numeric option forced into its legal
// range. Adjustments are logged, never rejected.
func (o Options) Clamped() Options {
	log := logging.Get(logging.CategoryBoot)

	clampInt := func(name string, v, lo, hi int) int {
		if v < lo {
			log.Warn("option %s=%d below minimum, clamped to %d", name, v, lo)
			return lo
		}
		if v > hi {
			log.Warn("option %s=%d above maximum, clamped to %d", name, v, hi)
			return hi
		}
		return v
	}

	o.MaxQueries = clampInt("max_queries", o.MaxQueries, 1, 12)
	o.MaxHitsPerQuery = clampInt("max_hits_per_query", o.MaxHitsPerQuery, 1, 20)
	o.SnippetWindow = clampInt("snippet_window", o.SnippetWindow, 40, 600)
	o.ImpactMaxDepth = clampInt("impact_max_depth", o.ImpactMaxDepth, 1, 6)
	o.ImpactMaxEdges = clampInt("impact_max_edges", o.ImpactMaxEdges, 10, 200)

	if o.MaxFiles < 1 {
		log.Warn("option max_files=%d below minimum, clamped to 1", o.MaxFiles)
		o.MaxFiles = 1
	}
	if o.MaxTotalBytes < 1 {
		o.MaxTotalBytes = Default("").MaxTotalBytes
	}
	if o.TokenBudget < 1 {
		o.TokenBudget = Default("").TokenBudget
	}
	if o.FocusMaxFileBytes < 1 {
		o.FocusMaxFileBytes = Default("").FocusMaxFileBytes
	}
	if o.PeripheryMaxBytes < 1 {
		o.PeripheryMaxBytes = Default("").PeripheryMaxBytes
	}
	if o.DocDominanceThreshold <= 0 || o.DocDominanceThreshold > 1 {
		o.DocDominanceThreshold = DefaultDocDominanceThreshold
	}
	if o.TrimPassesPerEntry < 1 {
		o.TrimPassesPerEntry = DefaultTrimPassesPerEntry
	}
	if o.ReadStrategy != ReadDocdex && o.ReadStrategy != ReadFS {
		o.ReadStrategy = ReadDocdex
	}
	if o.SerializationMode != SerializeBundleText && o.SerializationMode != SerializeJSON {
		o.SerializationMode = SerializeBundleText
	}

	return o
}

// WithDeepScan returns a copy with the deep-investigation preset applied.
// This is a pure transform: the receiver is not modified, so an assembler
// holding resolved options stays safe under concurrent use.
func (o Options) WithDeepScan() Options {
	o.DeepMode = true
	o.MaxQueries = 12
	o.MaxHitsPerQuery = 20
	o.MaxFiles = maxInt(o.MaxFiles, 12)
	o.ImpactMaxDepth = maxInt(o.ImpactMaxDepth, 4)
	o.ImpactMaxEdges = maxInt(o.ImpactMaxEdges, 120)
	o.IncludeRepoMap = true
	o.IncludeImpact = true
	o.IncludeSnippets = true
	return o.Clamped()
}

// Load reads options from <workspace>/.librarian/librarian.yaml, falling back
// to defaults when the file is absent.
func Load(workspaceRoot string) (Options, error) {
	opts := Default(workspaceRoot)

	path := filepath.Join(workspaceRoot, ".librarian", "librarian.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, err
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Default(workspaceRoot), err
	}
	if opts.WorkspaceRoot == "" {
		opts.WorkspaceRoot = workspaceRoot
	}
	return opts.Clamped(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
