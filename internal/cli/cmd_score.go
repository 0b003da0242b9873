package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ETAnderson/grader/internal/app"
	"github.com/ETAnderson/grader/internal/rubric"
	"github.com/ETAnderson/grader/internal/scoring"
)

func newScoreCmd() *cobra.Command {
	var criteriaPath string
	var overridesPath string
	var out string
	var strict bool
	var noSummary bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "score <analysis-file|->",
		Short: "Score an analysis report against the weighted criteria",
		Long: `Score an analysis report against the weighted criteria.
The input is the analysis markdown or JSON; "-" reads it from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := loadConfig()
			log := newLogger(cmd, "grader-score ")

			input, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			if criteriaPath == "" {
				criteriaPath = cfg.ScoreRubricPath
			}
			criteria, err := rubric.LoadCriteria(criteriaPath)
			if err != nil {
				return fmt.Errorf("load %s: %w", criteriaPath, err)
			}
			if overridesPath == "" {
				overridesPath = cfg.ScoreOverridesPath
			}

			cache, err := app.NewCache(ctx, cfg, nil, "")
			if err != nil {
				return err
			}
			j := app.NewJudge(cfg, cache, log)

			agg := scoring.NewAggregator(j.Invoker, scoring.Config{
				Strict:           strict,
				Summary:          !noSummary && cfg.ScorerSummary,
				MaxAnalyzerChars: cfg.ScorerMaxAnalyzerChars,
			}, log)
			rep, err := agg.Score(ctx, string(input), criteria, rubric.LoadOverrides(overridesPath))
			if err != nil {
				return err
			}

			if jsonOutput {
				raw, err := rep.JSON()
				if err != nil {
					return err
				}
				return writeOutput(cmd, out, string(raw)+"\n")
			}
			return writeOutput(cmd, out, rep.Markdown())
		},
	}

	cmd.Flags().StringVar(&criteriaPath, "criteria", "", "scoring rubric (default SCORE_RUBRIC_PATH)")
	cmd.Flags().StringVar(&overridesPath, "overrides", "", "JSON file of fixed scores by criterion id (default SCORE_OVERRIDES_PATH)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first criterion the judge cannot score")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "skip the overall review comment")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the structured report as JSON")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
