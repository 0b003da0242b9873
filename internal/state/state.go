package state

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ETAnderson/grader/internal/domain"
)

// RunUpdate is a partial update of a run record. Nil fields are left
// untouched; UpdatedAt is always refreshed. Each UpdateRun call is applied as
// a single atomic write so readers never observe half of a phase's output.
type RunUpdate struct {
	Status          *domain.RunStatus
	Phase           *domain.Phase
	CommitHash      *string
	BranchName      *string
	AnalysisMD      *string
	AnalysisJSON    json.RawMessage
	ScoringMD       *string
	ScoringJSON     json.RawMessage
	OverallScore    *float64
	InvokerIdentity *string
	ErrorMessage    *string

	AnalyzerVersion   *string
	ScorerVersion     *string
	AnalysisJudgeLog  json.RawMessage
	ScoringJudgeLog   json.RawMessage
	AnalysisStartedAt *time.Time
}

// Ptr returns a pointer to v, for building RunUpdate literals.
func Ptr[T any](v T) *T { return &v }

type Store interface {
	CreateRun(ctx context.Context, email string, repositoryURL string) (domain.Run, error)
	GetRun(ctx context.Context, runID string) (domain.Run, bool, error)
	UpdateRun(ctx context.Context, runID string, u RunUpdate) error
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)

	// ListStaleRunning returns in-flight runs (RUNNING or ANALYZED) whose
	// last update is before the cutoff.
	ListStaleRunning(ctx context.Context, before time.Time) ([]domain.Run, error)
}

// NewRunID creates a random run id suitable for logs + API responses.
// Format: "run_" + 32 hex chars
func NewRunID() string {
	return "run_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func applyUpdate(r *domain.Run, u RunUpdate, now time.Time) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Phase != nil {
		r.Phase = *u.Phase
	}
	if u.CommitHash != nil {
		r.CommitHash = *u.CommitHash
	}
	if u.BranchName != nil {
		r.BranchName = *u.BranchName
	}
	if u.AnalysisMD != nil {
		r.AnalysisMarkdown = *u.AnalysisMD
	}
	if u.AnalysisJSON != nil {
		r.AnalysisJSON = append(json.RawMessage(nil), u.AnalysisJSON...)
	}
	if u.ScoringMD != nil {
		r.ScoringMarkdown = *u.ScoringMD
	}
	if u.ScoringJSON != nil {
		r.ScoringJSON = append(json.RawMessage(nil), u.ScoringJSON...)
	}
	if u.OverallScore != nil {
		v := *u.OverallScore
		r.OverallScore = &v
	}
	if u.InvokerIdentity != nil {
		r.InvokerIdentity = *u.InvokerIdentity
	}
	if u.ErrorMessage != nil {
		r.ErrorMessage = *u.ErrorMessage
	}
	if u.AnalyzerVersion != nil {
		r.AnalyzerVersion = *u.AnalyzerVersion
	}
	if u.ScorerVersion != nil {
		r.ScorerVersion = *u.ScorerVersion
	}
	if u.AnalysisJudgeLog != nil {
		r.AnalysisJudgeLog = append(json.RawMessage(nil), u.AnalysisJudgeLog...)
	}
	if u.ScoringJudgeLog != nil {
		r.ScoringJudgeLog = append(json.RawMessage(nil), u.ScoringJudgeLog...)
	}
	if u.AnalysisStartedAt != nil {
		t := u.AnalysisStartedAt.UTC()
		r.AnalysisStartedAt = &t
	}
	r.UpdatedAt = now
}
