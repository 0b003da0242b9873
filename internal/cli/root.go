// Package cli provides the cobra command tree for the grader binary.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ETAnderson/grader/internal/config"
	"github.com/ETAnderson/grader/internal/logging"
)

type GlobalOpts struct {
	Verbose bool
	// Cache overrides CACHE_BACKEND for this invocation.
	Cache string
}

var globalOpts GlobalOpts

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "grader",
		Short: "Grade a repository against an analysis and scoring rubric",
		Long: `grader - rubric-driven repository grading

Runs the configured checks against a repository, then asks the judge model to
score each weighted criterion. Configuration comes from the environment and an
optional .env file; see the README for the variables.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "log progress to stderr")
	rootCmd.PersistentFlags().StringVar(&globalOpts.Cache, "cache", "", "judge cache backend override (memory, file, sql, s3)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newScoreCmd(),
		newGradeCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

func loadConfig() config.Config {
	cfg := config.Load()
	if globalOpts.Cache != "" {
		cfg.CacheBackend = globalOpts.Cache
	}
	return cfg
}

func newLogger(cmd *cobra.Command, prefix string) logging.Logger {
	if !globalOpts.Verbose {
		return logging.Discard()
	}
	l := logging.NewStdLogger(prefix)
	l.SetOutput(cmd.ErrOrStderr())
	return l
}

// writeOutput writes s to path, or to stdout when path is empty or "-".
func writeOutput(cmd *cobra.Command, path string, s string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(cmd.OutOrStdout(), s)
		return err
	}
	return os.WriteFile(path, []byte(s), 0o644)
}
