package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ETAnderson/grader/internal/app"
	"github.com/ETAnderson/grader/internal/execute"
	"github.com/ETAnderson/grader/internal/state"
	"github.com/ETAnderson/grader/internal/vcs"
)

// newGradeCmd runs the full pipeline once, in process, against an
// in-memory run store.
func newGradeCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "grade <repository-url>",
		Short: "Clone, analyze and score a repository in one go",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := loadConfig()
			log := newLogger(cmd, "grader ")

			rubrics, err := app.LoadRubrics(cfg)
			if err != nil {
				return err
			}
			cache, err := app.NewCache(ctx, cfg, nil, "")
			if err != nil {
				return err
			}
			j := app.NewJudge(cfg, cache, log)
			git := vcs.NewGitCLI(vcs.ExecRunner(), cfg.CloneDepth)

			store := state.NewMemoryStore()
			run, err := store.CreateRun(ctx, email, args[0])
			if err != nil {
				return err
			}

			exec := execute.Executor{
				Store:    store,
				Fetcher:  git,
				Keys:     j.Keys,
				NewJudge: j.NewJudge,
				Invoker:  j.Invoker,
				Analyzer: execute.RubricAnalyzer{Checks: rubrics.Checks, History: git, Log: log},
				Scorer: execute.RubricScorer{
					Criteria:  rubrics.Criteria,
					Overrides: rubrics.Overrides,
					Config:    app.ScoringConfig(cfg),
					Log:       log,
				},
				Log:        log,
				ScratchDir: cfg.ScratchDir,
			}
			if err := exec.Execute(ctx, run.ID); err != nil {
				return err
			}

			done, _, err := store.GetRun(ctx, run.ID)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = io.WriteString(w, done.AnalysisMarkdown)
			_, _ = io.WriteString(w, "\n")
			_, _ = io.WriteString(w, done.ScoringMarkdown)
			if done.OverallScore != nil {
				fmt.Fprintf(w, "\nrun=%s commit=%s overall=%.2f\n", done.ID, done.CommitHash, *done.OverallScore)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "cli@localhost", "submitter email recorded on the run")
	return cmd
}
