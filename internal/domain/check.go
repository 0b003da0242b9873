package domain

type CheckKind string

const (
	CheckFileExists     CheckKind = "file_exists"
	CheckGitCommitCount CheckKind = "git_commit_count"
	CheckAI             CheckKind = "ai_check"
)

// Context sources for ai_check.
const (
	ContextGitLog = "git_log"
	ContextFiles  = "files"
)

// CheckSpec is one configured check from the analysis rubric. Which fields
// matter depends on Type.
type CheckSpec struct {
	Type CheckKind `yaml:"type" json:"type"`
	Name string    `yaml:"name" json:"name"`

	// file_exists
	Path      string   `yaml:"path,omitempty" json:"path,omitempty"`
	Paths     []string `yaml:"paths,omitempty" json:"paths,omitempty"`
	Recursive bool     `yaml:"recursive,omitempty" json:"recursive,omitempty"`
	MaxDepth  int      `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`

	// git_commit_count
	MinCommits int `yaml:"min_commits,omitempty" json:"min_commits,omitempty"`

	// ai_check
	ContextSource   string   `yaml:"context_source,omitempty" json:"context_source,omitempty"`
	FilesToAnalyze  []string `yaml:"files_to_analyze,omitempty" json:"files_to_analyze,omitempty"`
	Prompt          string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	LogEntries      int      `yaml:"log_entries,omitempty" json:"log_entries,omitempty"`
	PerFileChars    int      `yaml:"per_file_chars,omitempty" json:"per_file_chars,omitempty"`
	MaxContextChars int      `yaml:"max_context_chars,omitempty" json:"max_context_chars,omitempty"`
}

// Title is the display name used in reports.
func (s CheckSpec) Title() string {
	if s.Name == "" {
		return "Unnamed Check"
	}
	return s.Name
}

type CheckStatus string

const (
	CheckPass    CheckStatus = "PASS"
	CheckPartial CheckStatus = "PARTIAL"
	CheckFail    CheckStatus = "FAIL"
)

// Score maps a status onto the fixed score scale.
func (s CheckStatus) Score() float64 {
	switch s {
	case CheckPass:
		return 1.0
	case CheckPartial:
		return 0.5
	}
	return 0.0
}

// CheckResult is the immutable outcome of one CheckSpec for one run.
type CheckResult struct {
	Name    string      `json:"name"`
	Type    CheckKind   `json:"type"`
	Status  CheckStatus `json:"status"`
	Score   float64     `json:"score"`
	Details []string    `json:"details"`
}

// NewCheckResult builds a result whose score is derived from status.
// PARTIAL is only meaningful for ai_check; other kinds downgrade it to FAIL.
func NewCheckResult(spec CheckSpec, status CheckStatus, details ...string) CheckResult {
	if status == CheckPartial && spec.Type != CheckAI {
		status = CheckFail
	}
	if status != CheckPass && status != CheckPartial {
		status = CheckFail
	}
	d := make([]string, len(details))
	copy(d, details)
	return CheckResult{
		Name:    spec.Title(),
		Type:    spec.Type,
		Status:  status,
		Score:   status.Score(),
		Details: d,
	}
}
