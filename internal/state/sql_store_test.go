package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/errors"
)

var runRowColumns = []string{
	"id", "email", "repository_url", "status", "phase", "commit_hash", "branch_name",
	"analysis_md", "analysis_json", "scoring_md", "scoring_json", "overall_score",
	"invoker_identity", "error_message", "analyzer_version", "scorer_version",
	"analysis_judge_log", "scoring_judge_log", "analysis_started_at", "created_at", "updated_at",
}

func newMockStore(t *testing.T, d Dialect) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLStore(db, d)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestDialect_Rebind(t *testing.T) {
	q := `UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`

	assert.Equal(t, q, DialectMySQL.Rebind(q))
	assert.Equal(t, `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`, DialectPostgres.Rebind(q))
}

func TestSQLStore_CreateRun(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(sqlmock.AnyArg(), "dev@example.com", "https://github.com/acme/app", "PENDING", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run, err := s.CreateRun(context.Background(), "dev@example.com", "https://github.com/acme/app")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateRun_WritesOnlySetFieldsInOneStatement(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE runs SET status = $1, phase = $2, scoring_md = $3, scoring_json = $4, overall_score = $5, updated_at = $6 WHERE id = $7`)).
		WithArgs("DONE", "scored", "# scores", `{"overall_score":0.5}`, 0.5, sqlmock.AnyArg(), "run_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateRun(context.Background(), "run_1", RunUpdate{
		Status:       Ptr(domain.RunStatusDone),
		Phase:        Ptr(domain.PhaseScored),
		ScoringMD:    Ptr("# scores"),
		ScoringJSON:  json.RawMessage(`{"overall_score":0.5}`),
		OverallScore: Ptr(0.5),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateRun_NotFound(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)

	mock.ExpectExec("UPDATE runs SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateRun(context.Background(), "run_missing", RunUpdate{Status: Ptr(domain.RunStatusRunning)})
	assert.Equal(t, errors.ERunNotFound, errors.GetCode(err))
}

func TestSQLStore_GetRun_ScansNullableColumns(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id = ?").
		WithArgs("run_1").
		WillReturnRows(sqlmock.NewRows(runRowColumns).AddRow(
			"run_1", "dev@example.com", "https://github.com/acme/app", "ANALYZED", "analyzed", "abc123", "main",
			"# report", `{"summary":{"total":1}}`, nil, nil, nil,
			"k2", nil, "1.0.0", nil, `{"fp":"PASS"}`, nil, created, created, created,
		))

	run, ok, err := s.GetRun(context.Background(), "run_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusAnalyzed, run.Status)
	assert.True(t, run.AnalysisDone())
	assert.False(t, run.ScoringDone())
	assert.Equal(t, "k2", run.InvokerIdentity)
	assert.Nil(t, run.OverallScore)
	assert.Nil(t, run.ScoringJSON)
	assert.JSONEq(t, `{"summary":{"total":1}}`, string(run.AnalysisJSON))
	assert.Equal(t, "1.0.0", run.AnalyzerVersion)
	assert.Empty(t, run.ScorerVersion)
	assert.JSONEq(t, `{"fp":"PASS"}`, string(run.AnalysisJudgeLog))
	assert.Nil(t, run.ScoringJudgeLog)
	require.NotNil(t, run.AnalysisStartedAt)
	assert.True(t, created.Equal(*run.AnalysisStartedAt))
}

func TestSQLStore_UpdateRun_WritesPhaseProvenance(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)
	started := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE runs SET phase = ?, analyzer_version = ?, analysis_judge_log = ?, analysis_started_at = ?, updated_at = ? WHERE id = ?`)).
		WithArgs("analyzed", "1.0.0", `{"fp":"PASS"}`, started, sqlmock.AnyArg(), "run_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateRun(context.Background(), "run_1", RunUpdate{
		Phase:             Ptr(domain.PhaseAnalyzed),
		AnalyzerVersion:   Ptr("1.0.0"),
		AnalysisJudgeLog:  json.RawMessage(`{"fp":"PASS"}`),
		AnalysisStartedAt: &started,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetRun_Missing(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)

	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id = ?").
		WithArgs("run_missing").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := s.GetRun(context.Background(), "run_missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStore_ListStaleRunning(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)
	cutoff := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	at := cutoff.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE status IN ($1, $2) AND updated_at < $3`)).
		WithArgs("RUNNING", "ANALYZED", cutoff).
		WillReturnRows(sqlmock.NewRows(runRowColumns).AddRow(
			"run_9", "dev@example.com", "https://github.com/acme/app", "RUNNING", "", nil, nil,
			nil, nil, nil, nil, nil, "k1", nil, nil, nil, nil, nil, nil, at, at,
		))

	runs, err := s.ListStaleRunning(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run_9", runs[0].ID)
}
