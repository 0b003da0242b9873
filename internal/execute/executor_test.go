package execute

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/grader/internal/checks"
	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/errors"
	"github.com/ETAnderson/grader/internal/events"
	"github.com/ETAnderson/grader/internal/invoke"
	"github.com/ETAnderson/grader/internal/judge"
	"github.com/ETAnderson/grader/internal/scoring"
	"github.com/ETAnderson/grader/internal/state"
)

type fakeFetcher struct {
	mu       sync.Mutex
	cloneErr error
	clones   []string
}

func (f *fakeFetcher) Clone(_ context.Context, _ string, dest string) error {
	f.mu.Lock()
	f.clones = append(f.clones, dest)
	f.mu.Unlock()
	if f.cloneErr != nil {
		return f.cloneErr
	}
	return os.MkdirAll(dest, 0o755)
}

func (f *fakeFetcher) RevisionInfo(context.Context, string) (string, string, error) {
	return "main", "abc123", nil
}

func (f *fakeFetcher) CommitCount(context.Context, string) (int, error) { return 3, nil }

func (f *fakeFetcher) Log(context.Context, string, int) (string, error) { return "* abc123 init", nil }

type fakeAnalyzer struct {
	calls  int
	panic  bool
	err    error
	prompt string
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, inv checks.Invoker, snap checks.Snapshot) (checks.Analysis, error) {
	a.calls++
	if a.panic {
		panic("boom")
	}
	if a.err != nil {
		return checks.Analysis{}, a.err
	}
	if a.prompt != "" {
		if _, err := inv.Invoke(ctx, a.prompt); err != nil {
			return checks.Analysis{}, err
		}
	}
	results := []domain.CheckResult{{Name: "readme", Type: domain.CheckFileExists, Status: domain.CheckPass, Score: 1, Details: []string{"PASSED"}}}
	return checks.Analysis{
		RepositoryURL: snap.RepositoryURL,
		Branch:        snap.Branch,
		Commit:        snap.Commit,
		Results:       results,
		Summary:       checks.Summarize(results),
	}, nil
}

type fakeScorer struct {
	calls  int
	got    json.RawMessage
	err    error
	prompt string
}

func (s *fakeScorer) Score(ctx context.Context, inv scoring.Invoker, analysis json.RawMessage) (scoring.Report, error) {
	s.calls++
	s.got = analysis
	if s.err != nil {
		return scoring.Report{}, s.err
	}
	if s.prompt != "" {
		if _, err := inv.Invoke(ctx, s.prompt); err != nil {
			return scoring.Report{}, err
		}
	}
	return scoring.Report{OverallScore: 0.75, OverallPercent: 75}, nil
}

type harness struct {
	store    *state.MemoryStore
	fetcher  *fakeFetcher
	analyzer *fakeAnalyzer
	scorer   *fakeScorer
	events   *events.Recorder
	scratch  string
	exec     Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    state.NewMemoryStore(),
		fetcher:  &fakeFetcher{},
		analyzer: &fakeAnalyzer{},
		scorer:   &fakeScorer{},
		events:   &events.Recorder{},
		scratch:  t.TempDir(),
	}
	gen := judge.GeneratorFunc(func(context.Context, string, string) (string, error) { return "PASS", nil })
	h.exec = Executor{
		Store:   h.store,
		Fetcher: h.fetcher,
		Keys:    judge.NewKeyPool([]string{"secret-1", "secret-2"}),
		NewJudge: func(judge.Credential) (judge.Generator, error) {
			return gen, nil
		},
		Invoker:    invoke.NewInvoker(gen, invoke.NewMemoryCache(), nil, nil, nil, invoke.Config{Model: "m"}),
		Analyzer:   h.analyzer,
		Scorer:     h.scorer,
		Events:     h.events,
		ScratchDir: h.scratch,
	}
	return h
}

func (h *harness) createRun(t *testing.T) domain.Run {
	t.Helper()
	run, err := h.store.CreateRun(context.Background(), "a@b.c", "https://example.com/repo.git")
	require.NoError(t, err)
	return run
}

func (h *harness) getRun(t *testing.T, id string) domain.Run {
	t.Helper()
	run, ok, err := h.store.GetRun(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	return run
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "per-run scratch directory was not removed")
}

func TestExecute_FullPipeline(t *testing.T) {
	h := newHarness(t)
	run := h.createRun(t)

	require.NoError(t, h.exec.Execute(context.Background(), run.ID))

	got := h.getRun(t, run.ID)
	assert.Equal(t, domain.RunStatusDone, got.Status)
	assert.Equal(t, domain.PhaseScored, got.Phase)
	assert.Equal(t, "main", got.BranchName)
	assert.Equal(t, "abc123", got.CommitHash)
	assert.Equal(t, "k1", got.InvokerIdentity)
	assert.Contains(t, got.AnalysisMarkdown, "# Analysis Report")
	assert.NotEmpty(t, got.AnalysisJSON)
	assert.Contains(t, got.ScoringMarkdown, "# Final Scoring Report")
	require.NotNil(t, got.OverallScore)
	assert.InDelta(t, 0.75, *got.OverallScore, 1e-9)
	assert.Empty(t, got.ErrorMessage)

	assert.Equal(t, 1, h.analyzer.calls)
	assert.Equal(t, 1, h.scorer.calls)
	assert.JSONEq(t, string(got.AnalysisJSON), string(h.scorer.got))
	assert.Equal(t, []events.Type{events.RunStarted, events.RunAnalyzed, events.RunScored, events.RunDone}, h.events.Types())
	assertScratchEmpty(t, h.scratch)
}

func TestExecute_RecordsPhaseProvenance(t *testing.T) {
	h := newHarness(t)
	h.analyzer.prompt = "does the readme explain setup?"
	h.scorer.prompt = "score documentation"
	run := h.createRun(t)
	before := time.Now().UTC().Add(-time.Second)

	require.NoError(t, h.exec.Execute(context.Background(), run.ID))

	got := h.getRun(t, run.ID)
	assert.Equal(t, checks.ToolVersion, got.AnalyzerVersion)
	assert.Equal(t, scoring.ToolVersion, got.ScorerVersion)
	require.NotNil(t, got.AnalysisStartedAt)
	assert.True(t, got.AnalysisStartedAt.After(before))

	var analysisLog, scoringLog map[string]string
	require.NoError(t, json.Unmarshal(got.AnalysisJudgeLog, &analysisLog))
	require.NoError(t, json.Unmarshal(got.ScoringJudgeLog, &scoringLog))
	assert.Equal(t, map[string]string{invoke.Fingerprint("m", h.analyzer.prompt): "PASS"}, analysisLog)
	assert.Equal(t, map[string]string{invoke.Fingerprint("m", h.scorer.prompt): "PASS"}, scoringLog)
}

func TestExecute_PersistedAnalysisIsNotRecomputed(t *testing.T) {
	h := newHarness(t)
	run := h.createRun(t)
	ctx := context.Background()

	persisted := json.RawMessage(`{"results":[],"summary":{"total":0,"passed":0,"partial":0,"failed":0}}`)
	require.NoError(t, h.store.UpdateRun(ctx, run.ID, state.RunUpdate{
		Status:       state.Ptr(domain.RunStatusError),
		Phase:        state.Ptr(domain.PhaseAnalyzed),
		AnalysisMD:   state.Ptr("# Analysis Report\n"),
		AnalysisJSON: persisted,
		ErrorMessage: state.Ptr("rate limited (429)"),
	}))

	require.NoError(t, h.exec.Execute(ctx, run.ID))

	assert.Equal(t, 0, h.analyzer.calls)
	assert.Equal(t, 1, h.scorer.calls)
	assert.JSONEq(t, string(persisted), string(h.scorer.got))

	got := h.getRun(t, run.ID)
	assert.Equal(t, domain.RunStatusDone, got.Status)
	assert.Equal(t, domain.PhaseScored, got.Phase)
	assert.Equal(t, "# Analysis Report\n", got.AnalysisMarkdown)
	assert.Empty(t, got.ErrorMessage)
}

func TestExecute_FullyPersistedRunOnlyFinishes(t *testing.T) {
	h := newHarness(t)
	run := h.createRun(t)
	ctx := context.Background()

	require.NoError(t, h.store.UpdateRun(ctx, run.ID, state.RunUpdate{
		Status:       state.Ptr(domain.RunStatusError),
		Phase:        state.Ptr(domain.PhaseScored),
		AnalysisJSON: json.RawMessage(`{}`),
		ScoringJSON:  json.RawMessage(`{}`),
	}))

	require.NoError(t, h.exec.Execute(ctx, run.ID))

	assert.Equal(t, 0, h.analyzer.calls)
	assert.Equal(t, 0, h.scorer.calls)
	assert.Equal(t, domain.RunStatusDone, h.getRun(t, run.ID).Status)
}

func TestExecute_SkipsRunsNotPickable(t *testing.T) {
	for _, status := range []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusAnalyzed, domain.RunStatusDone} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			run := h.createRun(t)
			require.NoError(t, h.store.UpdateRun(context.Background(), run.ID, state.RunUpdate{Status: state.Ptr(status)}))

			require.NoError(t, h.exec.Execute(context.Background(), run.ID))

			assert.Empty(t, h.fetcher.clones)
			assert.Equal(t, 0, h.analyzer.calls)
			assert.Equal(t, status, h.getRun(t, run.ID).Status)
			assert.Empty(t, h.events.Events)
		})
	}
}

func TestExecute_UnknownRun(t *testing.T) {
	h := newHarness(t)

	err := h.exec.Execute(context.Background(), "run_missing")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ERunNotFound))
}

func TestExecute_ScoringFailureKeepsAnalysis(t *testing.T) {
	h := newHarness(t)
	h.scorer.err = fmt.Errorf("judge call failed after retries")
	run := h.createRun(t)

	err := h.exec.Execute(context.Background(), run.ID)
	require.Error(t, err)

	got := h.getRun(t, run.ID)
	assert.Equal(t, domain.RunStatusError, got.Status)
	assert.Equal(t, domain.PhaseAnalyzed, got.Phase)
	assert.NotEmpty(t, got.AnalysisJSON)
	assert.Contains(t, got.ErrorMessage, "judge call failed after retries")
	assert.Equal(t, events.RunFailed, h.events.Types()[len(h.events.Events)-1])
	assertScratchEmpty(t, h.scratch)

	// re-enqueue resumes at scoring
	h.scorer.err = nil
	require.NoError(t, h.exec.Execute(context.Background(), run.ID))
	assert.Equal(t, 1, h.analyzer.calls)
	assert.Equal(t, 2, h.scorer.calls)
	assert.Equal(t, domain.RunStatusDone, h.getRun(t, run.ID).Status)
}

func TestExecute_CloneFailureMarksError(t *testing.T) {
	h := newHarness(t)
	h.fetcher.cloneErr = errors.New(errors.EResourceMissing, "git clone failed: repository not found")
	run := h.createRun(t)

	err := h.exec.Execute(context.Background(), run.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.EResourceMissing))

	got := h.getRun(t, run.ID)
	assert.Equal(t, domain.RunStatusError, got.Status)
	assert.Equal(t, domain.PhaseNone, got.Phase)
	assert.Contains(t, got.ErrorMessage, "repository not found")
	assert.Equal(t, 0, h.analyzer.calls)
	assertScratchEmpty(t, h.scratch)
}

func TestExecute_ErrorMessageIsTruncated(t *testing.T) {
	h := newHarness(t)
	h.analyzer.err = fmt.Errorf("%s", strings.Repeat("x", 2000))
	run := h.createRun(t)

	require.Error(t, h.exec.Execute(context.Background(), run.ID))

	msg := h.getRun(t, run.ID).ErrorMessage
	assert.Len(t, []rune(msg), maxErrorSummary)
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestExecute_PanicIsContained(t *testing.T) {
	h := newHarness(t)
	h.analyzer.panic = true
	run := h.createRun(t)

	err := h.exec.Execute(context.Background(), run.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")

	got := h.getRun(t, run.ID)
	assert.Equal(t, domain.RunStatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "boom")
	assertScratchEmpty(t, h.scratch)
}

func TestExecute_RotatesCredentials(t *testing.T) {
	h := newHarness(t)
	first := h.createRun(t)
	second := h.createRun(t)

	require.NoError(t, h.exec.Execute(context.Background(), first.ID))
	require.NoError(t, h.exec.Execute(context.Background(), second.ID))

	assert.Equal(t, "k1", h.getRun(t, first.ID).InvokerIdentity)
	assert.Equal(t, "k2", h.getRun(t, second.ID).InvokerIdentity)
}
