// Package execute drives one run through fetch, analyze and score. Each
// phase is skipped when its output is already persisted, so a failed run
// can be re-enqueued and resumes where it stopped.
package execute

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ETAnderson/grader/internal/checks"
	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/errors"
	"github.com/ETAnderson/grader/internal/events"
	"github.com/ETAnderson/grader/internal/invoke"
	"github.com/ETAnderson/grader/internal/judge"
	"github.com/ETAnderson/grader/internal/logging"
	"github.com/ETAnderson/grader/internal/scoring"
	"github.com/ETAnderson/grader/internal/state"
	"github.com/ETAnderson/grader/internal/vcs"
)

const maxErrorSummary = 500

// CredentialSource hands out the judge credential for a run.
type CredentialSource interface {
	Next() (judge.Credential, error)
}

// JudgeFactory builds a judge client bound to one credential.
type JudgeFactory func(cred judge.Credential) (judge.Generator, error)

type Executor struct {
	Store    state.Store
	Fetcher  vcs.Fetcher
	Keys     CredentialSource
	NewJudge JudgeFactory

	// Invoker carries the process-wide cache and limiter; each run gets a
	// copy bound to its own credential.
	Invoker  *invoke.Invoker
	Analyzer Analyzer
	Scorer   Scorer
	Events   events.Publisher
	Log      logging.Logger

	// ScratchDir is the parent of per-run clone directories. Empty uses
	// the OS temp dir.
	ScratchDir string
}

// Execute implements worker.RunExecutor. Runs that are not PENDING or
// ERROR are skipped. Pipeline failures are logged, persisted as ERROR and
// returned.
func (e Executor) Execute(ctx context.Context, runID string) (err error) {
	if e.Store == nil {
		return errors.New(errors.EMisconfigured, "store is nil")
	}
	log := logging.OrDiscard(e.Log)

	run, ok, err := e.Store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run failed: %w", err)
	}
	if !ok {
		return errors.Newf(errors.ERunNotFound, "run %s not found", runID)
	}
	if !run.Status.CanPickUp() {
		log.Printf("run_id=%s skip: status=%s", runID, run.Status)
		return nil
	}

	cred, err := e.credential()
	if err != nil {
		return e.fail(ctx, run, err)
	}

	if err := e.Store.UpdateRun(ctx, runID, state.RunUpdate{
		Status:          state.Ptr(domain.RunStatusRunning),
		InvokerIdentity: state.Ptr(cred.Label),
		ErrorMessage:    state.Ptr(""),
	}); err != nil {
		return fmt.Errorf("mark running failed: %w", err)
	}
	run.Status = domain.RunStatusRunning
	run.InvokerIdentity = cred.Label
	e.publish(ctx, events.RunStarted, run, "")
	log.Printf("run_id=%s repo=%s start phase=%q identity=%s", runID, run.RepositoryURL, run.Phase, cred.Label)

	defer func() {
		if rec := recover(); rec != nil {
			err = e.fail(ctx, run, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := e.process(ctx, &run, cred); err != nil {
		return e.fail(ctx, run, err)
	}
	return nil
}

func (e Executor) process(ctx context.Context, run *domain.Run, cred judge.Credential) error {
	log := logging.OrDiscard(e.Log)

	scratch, err := os.MkdirTemp(e.ScratchDir, run.ID+"_")
	if err != nil {
		return errors.Wrap(errors.EInfrastructure, "create scratch dir", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.Printf("run_id=%s scratch cleanup failed dir=%s err=%v", run.ID, scratch, rmErr)
		}
	}()

	snap, err := e.fetch(ctx, run, filepath.Join(scratch, "repo"))
	if err != nil {
		return err
	}
	if err := e.Store.UpdateRun(ctx, run.ID, state.RunUpdate{
		CommitHash: state.Ptr(snap.Commit),
		BranchName: state.Ptr(snap.Branch),
	}); err != nil {
		return err
	}

	judgeInv, err := e.judgeFor(cred)
	if err != nil {
		return err
	}

	if !run.AnalysisDone() {
		if e.Analyzer == nil {
			return errors.New(errors.EMisconfigured, "analyzer is nil")
		}
		started := time.Now().UTC()
		journal := judgeInv.Journal()
		analysis, err := e.Analyzer.Analyze(ctx, journal, snap)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		raw, err := analysis.JSON()
		if err != nil {
			return err
		}
		judgeLog, err := journal.JSON()
		if err != nil {
			return err
		}
		if err := e.Store.UpdateRun(ctx, run.ID, state.RunUpdate{
			Status:            state.Ptr(domain.RunStatusAnalyzed),
			Phase:             state.Ptr(domain.PhaseAnalyzed),
			AnalysisMD:        state.Ptr(analysis.Markdown()),
			AnalysisJSON:      raw,
			AnalyzerVersion:   state.Ptr(checks.ToolVersion),
			AnalysisJudgeLog:  judgeLog,
			AnalysisStartedAt: &started,
		}); err != nil {
			return fmt.Errorf("persist analysis: %w", err)
		}
		run.Status = domain.RunStatusAnalyzed
		run.Phase = domain.PhaseAnalyzed
		run.AnalysisJSON = raw
		log.Printf("run_id=%s analyzed passed=%d partial=%d failed=%d", run.ID, analysis.Summary.Passed, analysis.Summary.Partial, analysis.Summary.Failed)
		e.publish(ctx, events.RunAnalyzed, *run, "")
	} else {
		log.Printf("run_id=%s analysis already persisted, skipping", run.ID)
	}

	switch {
	case run.ScoringDone():
		log.Printf("run_id=%s scoring already persisted, skipping", run.ID)
	case len(run.AnalysisJSON) == 0:
		log.Printf("run_id=%s no analysis result to score, skipping", run.ID)
	default:
		if e.Scorer == nil {
			return errors.New(errors.EMisconfigured, "scorer is nil")
		}
		journal := judgeInv.Journal()
		rep, err := e.Scorer.Score(ctx, journal, run.AnalysisJSON)
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		raw, err := rep.JSON()
		if err != nil {
			return err
		}
		judgeLog, err := journal.JSON()
		if err != nil {
			return err
		}
		overall := rep.OverallScore
		if err := e.Store.UpdateRun(ctx, run.ID, state.RunUpdate{
			Phase:           state.Ptr(domain.PhaseScored),
			ScoringMD:       state.Ptr(rep.Markdown()),
			ScoringJSON:     raw,
			OverallScore:    &overall,
			ScorerVersion:   state.Ptr(scoring.ToolVersion),
			ScoringJudgeLog: judgeLog,
		}); err != nil {
			return fmt.Errorf("persist scoring: %w", err)
		}
		run.Phase = domain.PhaseScored
		run.OverallScore = &overall
		log.Printf("run_id=%s scored overall=%.2f", run.ID, overall)
		e.publish(ctx, events.RunScored, *run, "")
	}

	if err := e.Store.UpdateRun(ctx, run.ID, state.RunUpdate{Status: state.Ptr(domain.RunStatusDone)}); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	run.Status = domain.RunStatusDone
	st := judgeInv.Stats()
	log.Printf("run_id=%s done judge_calls=%d cache_hits=%d retries=%d", run.ID, st.Calls, st.CacheHits, st.Retries)
	e.publish(ctx, events.RunDone, *run, "")
	return nil
}

func (e Executor) fetch(ctx context.Context, run *domain.Run, dest string) (checks.Snapshot, error) {
	if e.Fetcher == nil {
		return checks.Snapshot{}, errors.New(errors.EMisconfigured, "fetcher is nil")
	}
	if err := e.Fetcher.Clone(ctx, run.RepositoryURL, dest); err != nil {
		return checks.Snapshot{}, err
	}
	branch, commit, err := e.Fetcher.RevisionInfo(ctx, dest)
	if err != nil {
		return checks.Snapshot{}, fmt.Errorf("revision info: %w", err)
	}
	run.BranchName, run.CommitHash = branch, commit
	return checks.Snapshot{Dir: dest, RepositoryURL: run.RepositoryURL, Branch: branch, Commit: commit}, nil
}

func (e Executor) credential() (judge.Credential, error) {
	if e.Keys == nil {
		return judge.Credential{}, nil
	}
	return e.Keys.Next()
}

// judgeFor binds the shared invoker to this run's credential. Without a
// factory the shared invoker is used as is.
func (e Executor) judgeFor(cred judge.Credential) (*invoke.Invoker, error) {
	if e.Invoker == nil {
		return nil, errors.New(errors.EMisconfigured, "invoker is nil")
	}
	if e.NewJudge == nil {
		return e.Invoker, nil
	}
	gen, err := e.NewJudge(cred)
	if err != nil {
		return nil, err
	}
	return e.Invoker.WithGenerator(gen), nil
}

// fail logs err with run context and persists ERROR with a truncated
// summary. The store write uses a context that survives cancellation.
func (e Executor) fail(ctx context.Context, run domain.Run, cause error) error {
	log := logging.OrDiscard(e.Log)
	log.Printf("run_id=%s repo=%s failed: %v", run.ID, run.RepositoryURL, cause)

	msg := cause.Error()
	if r := []rune(msg); len(r) > maxErrorSummary {
		msg = string(r[:maxErrorSummary-3]) + "..."
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := e.Store.UpdateRun(wctx, run.ID, state.RunUpdate{
		Status:       state.Ptr(domain.RunStatusError),
		ErrorMessage: state.Ptr(msg),
	}); err != nil {
		log.Printf("run_id=%s mark error failed: %v", run.ID, err)
	}
	run.Status = domain.RunStatusError
	e.publish(wctx, events.RunFailed, run, msg)
	return cause
}

func (e Executor) publish(ctx context.Context, t events.Type, run domain.Run, errMsg string) {
	if e.Events == nil {
		return
	}
	ev := events.RunEvent{
		Type:            t,
		RunID:           run.ID,
		RepositoryURL:   run.RepositoryURL,
		Status:          run.Status,
		Phase:           run.Phase,
		InvokerIdentity: run.InvokerIdentity,
		OverallScore:    run.OverallScore,
		Error:           errMsg,
		At:              time.Now().UTC(),
	}
	if err := e.Events.Publish(ctx, ev); err != nil {
		logging.OrDiscard(e.Log).Printf("run_id=%s publish %s failed: %v", run.ID, t, err)
	}
}
