package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/logging"
)

type Engine struct {
	registry Registry
	log      logging.Logger
	now      func() time.Time
}

func NewEngine(registry Registry, log logging.Logger) *Engine {
	return &Engine{
		registry: registry,
		log:      logging.OrDiscard(log),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes every spec in order. A failing or panicking check yields a
// FAIL result and the remaining checks still run.
func (e *Engine) Run(ctx context.Context, specs []domain.CheckSpec, snap Snapshot) Analysis {
	a := Analysis{
		RepositoryURL: snap.RepositoryURL,
		Branch:        snap.Branch,
		Commit:        snap.Commit,
		Results:       make([]domain.CheckResult, 0, len(specs)),
	}

	for i, spec := range specs {
		res := e.runOne(ctx, spec, snap)
		e.log.Printf("check %d/%d name=%q type=%s status=%s", i+1, len(specs), res.Name, res.Type, res.Status)
		a.Results = append(a.Results, res)
	}

	a.Summary = Summarize(a.Results)
	a.GeneratedAt = e.now()
	return a
}

func (e *Engine) runOne(ctx context.Context, spec domain.CheckSpec, snap Snapshot) (res domain.CheckResult) {
	c, ok := e.registry.Get(spec.Type)
	if !ok {
		return domain.NewCheckResult(spec, domain.CheckFail, fmt.Sprintf("FAILED: Unknown check type '%s'.", spec.Type))
	}

	defer func() {
		if r := recover(); r != nil {
			res = domain.NewCheckResult(spec, domain.CheckFail, fmt.Sprintf("FAILED: check crashed: %v", r))
		}
	}()
	return c.Execute(ctx, spec, snap)
}
