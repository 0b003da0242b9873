package checks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ETAnderson/grader/internal/domain"
)

type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Partial int `json:"partial"`
	Failed  int `json:"failed"`
}

func Summarize(results []domain.CheckResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case domain.CheckPass:
			s.Passed++
		case domain.CheckPartial:
			s.Partial++
		default:
			s.Failed++
		}
	}
	return s
}

// Analysis is the persisted output of the analyze phase.
type Analysis struct {
	RepositoryURL string               `json:"repository_url,omitempty"`
	Branch        string               `json:"branch,omitempty"`
	Commit        string               `json:"commit,omitempty"`
	Results       []domain.CheckResult `json:"results"`
	Summary       Summary              `json:"summary"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

func (a Analysis) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return b, nil
}

func ParseAnalysis(raw []byte) (Analysis, error) {
	var a Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis: %w", err)
	}
	return a, nil
}

func (a Analysis) Markdown() string {
	var b strings.Builder
	b.WriteString("# Analysis Report\n\n")
	if a.RepositoryURL != "" {
		fmt.Fprintf(&b, "Repository: %s\n", a.RepositoryURL)
	}
	if a.Branch != "" || a.Commit != "" {
		fmt.Fprintf(&b, "Branch: %s  Commit: %s\n", a.Branch, a.Commit)
	}
	if !a.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", a.GeneratedAt.Format(time.RFC3339))
	}

	for _, r := range a.Results {
		fmt.Fprintf(&b, "\n### [%s] %s\n\n", r.Status, r.Name)
		for _, d := range r.Details {
			fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(strings.TrimSpace(d), "\n", "\n  "))
		}
	}

	b.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&b, "%d out of %d checks passed", a.Summary.Passed, a.Summary.Total)
	if a.Summary.Partial > 0 {
		fmt.Fprintf(&b, " (%d partial)", a.Summary.Partial)
	}
	b.WriteString(".\n")
	return b.String()
}
