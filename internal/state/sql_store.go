package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/errors"
)

const runColumns = `id, email, repository_url, status, phase, commit_hash, branch_name,
analysis_md, analysis_json, scoring_md, scoring_json, overall_score,
invoker_identity, error_message, analyzer_version, scorer_version,
analysis_judge_log, scoring_judge_log, analysis_started_at, created_at, updated_at`

// SQLStore persists runs in MySQL or Postgres; the schema lives in
// migrations/<dialect>.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) CreateRun(ctx context.Context, email string, repositoryURL string) (domain.Run, error) {
	email = strings.TrimSpace(email)
	repositoryURL = strings.TrimSpace(repositoryURL)
	if email == "" || repositoryURL == "" {
		return domain.Run{}, errors.New(errors.EInvalidInput, "email and repository_url required")
	}

	now := s.now()
	r := domain.Run{
		ID:            NewRunID(),
		Email:         email,
		RepositoryURL: repositoryURL,
		Status:        domain.RunStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO runs (id, email, repository_url, status, phase, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.Email, r.RepositoryURL, string(r.Status), string(r.Phase), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return domain.Run{}, errors.Wrap(errors.EInfrastructure, "insert run", err)
	}
	return r, nil
}

func (s *SQLStore) GetRun(ctx context.Context, runID string) (domain.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT `+runColumns+` FROM runs WHERE id = ?`), runID)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return domain.Run{}, false, nil
	}
	if err != nil {
		return domain.Run{}, false, errors.Wrap(errors.EInfrastructure, "get run", err)
	}
	return r, true, nil
}

func (s *SQLStore) UpdateRun(ctx context.Context, runID string, u RunUpdate) error {
	sets := make([]string, 0, 17)
	args := make([]any, 0, 18)

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Phase != nil {
		add("phase", string(*u.Phase))
	}
	if u.CommitHash != nil {
		add("commit_hash", *u.CommitHash)
	}
	if u.BranchName != nil {
		add("branch_name", *u.BranchName)
	}
	if u.AnalysisMD != nil {
		add("analysis_md", *u.AnalysisMD)
	}
	if u.AnalysisJSON != nil {
		// Text column on both backends; pq would hex-encode a []byte.
		add("analysis_json", string(u.AnalysisJSON))
	}
	if u.ScoringMD != nil {
		add("scoring_md", *u.ScoringMD)
	}
	if u.ScoringJSON != nil {
		add("scoring_json", string(u.ScoringJSON))
	}
	if u.OverallScore != nil {
		add("overall_score", *u.OverallScore)
	}
	if u.InvokerIdentity != nil {
		add("invoker_identity", *u.InvokerIdentity)
	}
	if u.ErrorMessage != nil {
		add("error_message", *u.ErrorMessage)
	}
	if u.AnalyzerVersion != nil {
		add("analyzer_version", *u.AnalyzerVersion)
	}
	if u.ScorerVersion != nil {
		add("scorer_version", *u.ScorerVersion)
	}
	if u.AnalysisJudgeLog != nil {
		add("analysis_judge_log", string(u.AnalysisJudgeLog))
	}
	if u.ScoringJudgeLog != nil {
		add("scoring_judge_log", string(u.ScoringJudgeLog))
	}
	if u.AnalysisStartedAt != nil {
		add("analysis_started_at", u.AnalysisStartedAt.UTC())
	}
	add("updated_at", s.now())
	args = append(args, runID)

	q := fmt.Sprintf(`UPDATE runs SET %s WHERE id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return errors.Wrap(errors.EInfrastructure, "update run", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return errors.Newf(errors.ERunNotFound, "run %s not found", runID)
	}
	return nil
}

func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, errors.Wrap(errors.EInfrastructure, "list runs", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (s *SQLStore) ListStaleRunning(ctx context.Context, before time.Time) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT `+runColumns+` FROM runs WHERE status IN (?, ?) AND updated_at < ? ORDER BY updated_at ASC`),
		string(domain.RunStatusRunning), string(domain.RunStatusAnalyzed), before.UTC())
	if err != nil {
		return nil, errors.Wrap(errors.EInfrastructure, "list stale runs", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var (
		r                              domain.Run
		status, phase                  string
		commit, branch                 sql.NullString
		analysisMD, analysisJSON       sql.NullString
		scoringMD, scoringJSON         sql.NullString
		overall                        sql.NullFloat64
		invokerIdentity, errorMessage  sql.NullString
		analyzerVersion, scorerVersion sql.NullString
		analysisLog, scoringLog        sql.NullString
		analysisStarted                sql.NullTime
	)

	err := row.Scan(
		&r.ID, &r.Email, &r.RepositoryURL, &status, &phase, &commit, &branch,
		&analysisMD, &analysisJSON, &scoringMD, &scoringJSON, &overall,
		&invokerIdentity, &errorMessage, &analyzerVersion, &scorerVersion,
		&analysisLog, &scoringLog, &analysisStarted, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.Run{}, err
	}

	r.Status = domain.RunStatus(status)
	r.Phase = domain.Phase(phase)
	r.CommitHash = commit.String
	r.BranchName = branch.String
	r.AnalysisMarkdown = analysisMD.String
	if analysisJSON.Valid && analysisJSON.String != "" {
		r.AnalysisJSON = json.RawMessage(analysisJSON.String)
	}
	r.ScoringMarkdown = scoringMD.String
	if scoringJSON.Valid && scoringJSON.String != "" {
		r.ScoringJSON = json.RawMessage(scoringJSON.String)
	}
	if overall.Valid {
		v := overall.Float64
		r.OverallScore = &v
	}
	r.InvokerIdentity = invokerIdentity.String
	r.ErrorMessage = errorMessage.String
	r.AnalyzerVersion = analyzerVersion.String
	r.ScorerVersion = scorerVersion.String
	if analysisLog.Valid && analysisLog.String != "" {
		r.AnalysisJudgeLog = json.RawMessage(analysisLog.String)
	}
	if scoringLog.Valid && scoringLog.String != "" {
		r.ScoringJudgeLog = json.RawMessage(scoringLog.String)
	}
	if analysisStarted.Valid {
		t := analysisStarted.Time.UTC()
		r.AnalysisStartedAt = &t
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func scanRuns(rows *sql.Rows) ([]domain.Run, error) {
	out := make([]domain.Run, 0, 16)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
