package domain

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusPending  RunStatus = "PENDING"
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusAnalyzed RunStatus = "ANALYZED"
	RunStatusDone     RunStatus = "DONE"
	RunStatusError    RunStatus = "ERROR"
)

// InFlight reports whether a worker owns a run in this status. A run left
// in flight by a dead process is only recovered by the stale reaper.
func (s RunStatus) InFlight() bool {
	return s == RunStatusRunning || s == RunStatusAnalyzed
}

// CanPickUp reports whether the worker may start processing a run in this
// status. Anything else is a duplicate dequeue and is skipped.
func (s RunStatus) CanPickUp() bool {
	return s == RunStatusPending || s == RunStatusError
}

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusAnalyzed, RunStatusDone, RunStatusError:
		return true
	}
	return false
}

// Phase records the last pipeline phase whose output was durably persisted.
// Phases are ordered: PhaseScored implies PhaseAnalyzed.
type Phase string

const (
	PhaseNone     Phase = ""
	PhaseAnalyzed Phase = "analyzed"
	PhaseScored   Phase = "scored"
)

func (p Phase) rank() int {
	switch p {
	case PhaseAnalyzed:
		return 1
	case PhaseScored:
		return 2
	}
	return 0
}

// AtLeast reports whether p is at or past other.
func (p Phase) AtLeast(other Phase) bool { return p.rank() >= other.rank() }

type Run struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	RepositoryURL string    `json:"repository_url"`
	Status        RunStatus `json:"status"`
	Phase         Phase     `json:"phase"`

	CommitHash string `json:"commit_hash,omitempty"`
	BranchName string `json:"branch_name,omitempty"`

	AnalysisMarkdown string          `json:"analysis_md,omitempty"`
	AnalysisJSON     json.RawMessage `json:"analysis_json,omitempty"`
	ScoringMarkdown  string          `json:"scoring_md,omitempty"`
	ScoringJSON      json.RawMessage `json:"scoring_json,omitempty"`
	OverallScore     *float64        `json:"overall_score,omitempty"`

	// Provenance of the persisted phases: the tool version that produced
	// each one and the judge answers it used, keyed by fingerprint.
	AnalyzerVersion   string          `json:"analyzer_tool_version,omitempty"`
	ScorerVersion     string          `json:"scorer_tool_version,omitempty"`
	AnalysisJudgeLog  json.RawMessage `json:"analysis_judge_log,omitempty"`
	ScoringJudgeLog   json.RawMessage `json:"scoring_judge_log,omitempty"`
	AnalysisStartedAt *time.Time      `json:"analysis_started_at,omitempty"`

	// InvokerIdentity is the label (never the secret) of the judge credential
	// that served this run.
	InvokerIdentity string `json:"assigned_invoker_identity,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r Run) AnalysisDone() bool { return r.Phase.AtLeast(PhaseAnalyzed) }
func (r Run) ScoringDone() bool  { return r.Phase.AtLeast(PhaseScored) }
