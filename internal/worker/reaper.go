package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/events"
	"github.com/ETAnderson/grader/internal/logging"
	"github.com/ETAnderson/grader/internal/state"
)

// Reaper marks runs stuck in flight (RUNNING, or ANALYZED while scoring)
// as ERROR. A process that died mid-run leaves its run in flight forever
// otherwise, and the worker only picks up PENDING and ERROR runs. Once
// reaped, a re-enqueue resumes from the last persisted phase.
type Reaper struct {
	Store      state.Store
	StaleAfter time.Duration
	Every      time.Duration

	// Active, when set, excludes the run the local worker is processing.
	Active func(runID string) bool
	// Requeue, when set, re-enqueues each reaped run.
	Requeue func(runID string)

	Events events.Publisher
	Log    logging.Logger
	Now    func() time.Time
}

func (r Reaper) Run(ctx context.Context) error {
	if r.Store == nil {
		return errors.New("store is nil")
	}
	if r.Every <= 0 {
		r.Every = time.Minute
	}
	log := logging.OrDiscard(r.Log)

	ticker := time.NewTicker(r.Every)
	defer ticker.Stop()

	// one immediate pass
	if _, err := r.Sweep(ctx); err != nil {
		log.Printf("reaper sweep failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				log.Printf("reaper sweep failed: %v", err)
			}
		}
	}
}

// Sweep reaps once and returns the ids it marked ERROR.
func (r Reaper) Sweep(ctx context.Context) ([]string, error) {
	if r.Store == nil {
		return nil, errors.New("store is nil")
	}
	staleAfter := r.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}
	log := logging.OrDiscard(r.Log)

	stale, err := r.Store.ListStaleRunning(ctx, now.Add(-staleAfter))
	if err != nil {
		return nil, err
	}

	var reaped []string
	for _, run := range stale {
		if r.Active != nil && r.Active(run.ID) {
			continue
		}
		msg := fmt.Sprintf("no progress since %s; marked stale", run.UpdatedAt.UTC().Format(time.RFC3339))
		if err := r.Store.UpdateRun(ctx, run.ID, state.RunUpdate{
			Status:       state.Ptr(domain.RunStatusError),
			ErrorMessage: state.Ptr(msg),
		}); err != nil {
			log.Printf("run_id=%s reap failed: %v", run.ID, err)
			continue
		}
		log.Printf("run_id=%s reaped stale run (status=%s phase=%q)", run.ID, run.Status, run.Phase)
		reaped = append(reaped, run.ID)

		if r.Events != nil {
			ev := events.RunEvent{
				Type:            events.RunReaped,
				RunID:           run.ID,
				RepositoryURL:   run.RepositoryURL,
				Status:          domain.RunStatusError,
				Phase:           run.Phase,
				InvokerIdentity: run.InvokerIdentity,
				Error:           msg,
				At:              now,
			}
			if err := r.Events.Publish(ctx, ev); err != nil {
				log.Printf("run_id=%s publish reaped failed: %v", run.ID, err)
			}
		}
		if r.Requeue != nil {
			r.Requeue(run.ID)
		}
	}
	return reaped, nil
}
