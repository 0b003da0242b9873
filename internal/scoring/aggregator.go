// Package scoring turns an analysis into weighted per-criterion scores,
// judged or overridden, plus an overall score and review comment.
package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/errors"
	"github.com/ETAnderson/grader/internal/logging"
)

// ToolVersion is recorded on every persisted scoring report.
const ToolVersion = "1.0.0"

const (
	defaultMaxAnalyzerChars = 35000
	analyzerTruncatedMarker = "\n... (truncated)"
)

// Invoker sends a prompt to the judge.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	// Strict aborts the whole pass on the first criterion that cannot be
	// judged. Otherwise that criterion scores 0.0 with source "error".
	Strict           bool
	Summary          bool
	MaxAnalyzerChars int
}

type Aggregator struct {
	judge Invoker
	cfg   Config
	log   logging.Logger
	now   func() time.Time
}

func NewAggregator(judge Invoker, cfg Config, log logging.Logger) *Aggregator {
	if cfg.MaxAnalyzerChars <= 0 {
		cfg.MaxAnalyzerChars = defaultMaxAnalyzerChars
	}
	return &Aggregator{
		judge: judge,
		cfg:   cfg,
		log:   logging.OrDiscard(log),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Score judges every criterion against analyzerOutput in order.
func (a *Aggregator) Score(ctx context.Context, analyzerOutput string, criteria []domain.Criterion, overrides domain.Overrides) (Report, error) {
	if strings.TrimSpace(analyzerOutput) == "" {
		return Report{}, errors.New(errors.EInvalidInput, "analyzer output is empty")
	}
	if r := []rune(analyzerOutput); len(r) > a.cfg.MaxAnalyzerChars {
		a.log.Printf("truncating analyzer output from %d to %d chars", len(r), a.cfg.MaxAnalyzerChars)
		analyzerOutput = string(r[:a.cfg.MaxAnalyzerChars]) + analyzerTruncatedMarker
	}

	rows := make([]CriterionScore, 0, len(criteria))
	for _, c := range criteria {
		if v, ok := overrides.Lookup(c.ID); ok {
			rows = append(rows, CriterionScore{
				ID:            c.ID,
				Name:          c.Name,
				Score:         v,
				Weight:        c.Weight,
				Justification: "(override applied)",
				Source:        SourceOverride,
			})
			continue
		}

		if a.judge == nil {
			return Report{}, errors.New(errors.EMisconfigured, "no judge configured for scoring")
		}

		a.log.Printf("scoring criterion id=%s name=%q", c.ID, c.Name)
		raw, err := a.judge.Invoke(ctx, criterionPrompt(c, analyzerOutput))
		var (
			score float64
			just  string
		)
		if err == nil {
			score, just, err = ParseResponse(raw)
		}
		if err != nil {
			if a.cfg.Strict || ctx.Err() != nil {
				return Report{}, fmt.Errorf("score criterion %q: %w", c.ID, err)
			}
			a.log.Printf("criterion id=%s failed, scoring 0.0: %v", c.ID, err)
			rows = append(rows, CriterionScore{
				ID:            c.ID,
				Name:          c.Name,
				Score:         0,
				Weight:        c.Weight,
				Justification: fmt.Sprintf("Parse/AI failure: %v", err),
				Source:        SourceError,
			})
			continue
		}

		rows = append(rows, CriterionScore{
			ID:            c.ID,
			Name:          c.Name,
			Score:         score,
			Weight:        c.Weight,
			Justification: just,
			Raw:           raw,
			Source:        SourceAI,
		})
	}

	overall := Overall(rows)
	rep := Report{
		GeneratedAt:    a.now(),
		OverallScore:   round(overall, 2),
		OverallPercent: round(overall*100, 1),
		Criteria:       rows,
	}
	if a.cfg.Summary && a.judge != nil {
		rep.OverallComment = a.summarize(ctx, rows, overall)
	}
	return rep, nil
}

// summarize never fails the pass; errors become a placeholder comment.
func (a *Aggregator) summarize(ctx context.Context, rows []CriterionScore, overall float64) string {
	out, err := a.judge.Invoke(ctx, summaryPrompt(rows, overall))
	if err != nil {
		a.log.Printf("summary generation failed: %v", err)
		return fmt.Sprintf("(Summary generation failed: %v)", err)
	}
	return strings.TrimSpace(out)
}

// Overall is the weight-averaged score, or 0 when the total weight is 0.
func Overall(rows []CriterionScore) float64 {
	var sum, total float64
	for _, r := range rows {
		sum += r.Score * r.Weight
		total += r.Weight
	}
	if total == 0 {
		return 0
	}
	return sum / total
}
