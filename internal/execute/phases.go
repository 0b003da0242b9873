package execute

import (
	"context"
	"encoding/json"

	"github.com/ETAnderson/grader/internal/checks"
	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/logging"
	"github.com/ETAnderson/grader/internal/scoring"
)

// Analyzer runs the analyze phase for one run.
type Analyzer interface {
	Analyze(ctx context.Context, judge checks.Invoker, snap checks.Snapshot) (checks.Analysis, error)
}

// Scorer runs the score phase over the persisted analysis JSON.
type Scorer interface {
	Score(ctx context.Context, judge scoring.Invoker, analysis json.RawMessage) (scoring.Report, error)
}

// RubricAnalyzer runs the configured checks with the built-in check kinds.
type RubricAnalyzer struct {
	Checks  []domain.CheckSpec
	History checks.History
	Log     logging.Logger
}

func (a RubricAnalyzer) Analyze(ctx context.Context, judge checks.Invoker, snap checks.Snapshot) (checks.Analysis, error) {
	engine := checks.NewEngine(checks.DefaultRegistry(a.History, judge), a.Log)
	return engine.Run(ctx, a.Checks, snap), nil
}

// RubricScorer scores the configured criteria.
type RubricScorer struct {
	Criteria  []domain.Criterion
	Overrides domain.Overrides
	Config    scoring.Config
	Log       logging.Logger
}

func (s RubricScorer) Score(ctx context.Context, judge scoring.Invoker, analysis json.RawMessage) (scoring.Report, error) {
	agg := scoring.NewAggregator(judge, s.Config, s.Log)
	return agg.Score(ctx, string(analysis), s.Criteria, s.Overrides)
}
