package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"librarian/internal/assembler"
	"librarian/internal/config"
	"librarian/internal/docdex"
	"librarian/internal/llm"
	"librarian/internal/logging"
	"librarian/internal/memory"
	"librarian/internal/query"
	"librarian/internal/workspace"
)

const version = "0.3.0"

var (
	// Global flags
	verbose   bool
	workspc   string
	endpoint  string
	timeout   time.Duration
	deep      bool
	asJSON    bool
	agentID   string
	preferred []string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "librarian - bounded context-bundle assembly for coding agents",
	Long: `librarian sits between a natural-language request and a docdex code
index, assembling a budgeted context bundle: it detects intent, extracts
queries, searches with an escalating retry ladder, selects and loads the most
relevant files, reconciles remembered facts, and serializes the result for
prompt injection.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// assembleCmd builds one bundle for a request and prints it.
var assembleCmd = &cobra.Command{
	Use:   "assemble \"<request>\"",
	Short: "Assemble a context bundle for a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		request := args[0]

		root := workspc
		if root == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			root = cwd
		}

		opts, err := config.Load(root)
		if err != nil {
			logger.Warn("options file unreadable, using defaults", zap.Error(err))
		}
		if deep {
			opts = opts.WithDeepScan()
		}
		if asJSON {
			opts.SerializationMode = config.SerializeJSON
		}
		if agentID != "" {
			opts.AgentID = agentID
		}
		opts.PreferredFiles = append(opts.PreferredFiles, preferred...)

		client := docdex.NewHTTPClient(docdex.HTTPConfig{BaseURL: endpoint, Timeout: timeout})
		scanner := workspace.NewScanner(root)
		defer scanner.Close()

		var expander query.Expander
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			exp, err := llm.NewGeminiExpander(cmd.Context(), llm.GeminiConfig{
				APIKey:     key,
				MaxQueries: opts.MaxQueries,
			})
			if err != nil {
				logger.Warn("query expander unavailable", zap.Error(err))
			} else {
				expander = exp
			}
		}

		episodes, err := memory.OpenEpisodeStore(root)
		if err != nil {
			logger.Warn("episode store unavailable", zap.Error(err))
			episodes = nil
		} else {
			defer episodes.Close()
		}

		asm := assembler.New(opts, assembler.Deps{
			Client:   client,
			Expander: expander,
			Scanner:  scanner,
			Episodes: episodes,
		})

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		bundle, err := asm.Assemble(ctx, request)
		if err != nil {
			if dme, ok := err.(*assembler.DeepModeError); ok {
				logger.Error("deep investigation unavailable",
					zap.Strings("missing", dme.Missing),
					zap.Strings("remediation", dme.Remediation))
			}
			return err
		}

		for _, w := range bundle.Warnings {
			logger.Warn("assembly warning", zap.String("warning", w))
		}
		fmt.Fprintln(cmd.OutOrStdout(), bundle.Serialized)
		return nil
	},
}

// versionCmd prints the build version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the librarian version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "librarian %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspc, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "http://127.0.0.1:7345", "docdex daemon endpoint")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	assembleCmd.Flags().BoolVar(&deep, "deep", false, "Deep mode: fail fast unless the index is healthy")
	assembleCmd.Flags().BoolVar(&asJSON, "json", false, "Serialize the bundle as JSON instead of bundle text")
	assembleCmd.Flags().StringVar(&agentID, "agent", "", "Agent ID for profile lookup")
	assembleCmd.Flags().StringSliceVar(&preferred, "prefer", nil, "Preferred file (repeatable)")

	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
