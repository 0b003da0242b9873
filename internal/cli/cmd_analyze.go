package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ETAnderson/grader/internal/app"
	"github.com/ETAnderson/grader/internal/checks"
	"github.com/ETAnderson/grader/internal/rubric"
	"github.com/ETAnderson/grader/internal/vcs"
)

func newAnalyzeCmd() *cobra.Command {
	var rubricPath string
	var out string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <repo-dir>",
		Short: "Run the analysis checks against a local checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := loadConfig()
			log := newLogger(cmd, "grader-analyze ")

			if rubricPath == "" {
				rubricPath = cfg.RubricPath
			}
			specs, err := rubric.LoadChecks(rubricPath)
			if err != nil {
				return fmt.Errorf("load %s: %w", rubricPath, err)
			}

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			git := vcs.NewGitCLI(vcs.ExecRunner(), cfg.CloneDepth)
			snap := checks.Snapshot{Dir: dir, RepositoryURL: dir}
			if branch, commit, err := git.RevisionInfo(ctx, dir); err == nil {
				snap.Branch, snap.Commit = branch, commit
			} else {
				log.Printf("revision info unavailable: %v", err)
			}

			cache, err := app.NewCache(ctx, cfg, nil, "")
			if err != nil {
				return err
			}
			j := app.NewJudge(cfg, cache, log)

			engine := checks.NewEngine(checks.DefaultRegistry(git, j.Invoker), log)
			analysis := engine.Run(ctx, specs, snap)

			if jsonOutput {
				raw, err := analysis.JSON()
				if err != nil {
					return err
				}
				return writeOutput(cmd, out, string(raw)+"\n")
			}
			return writeOutput(cmd, out, analysis.Markdown())
		},
	}

	cmd.Flags().StringVar(&rubricPath, "rubric", "", "analysis rubric (default RUBRIC_PATH)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the structured analysis as JSON")
	return cmd
}
