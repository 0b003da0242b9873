package checks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/logging"
)

type panicCheck struct{}

func (panicCheck) Kind() domain.CheckKind { return "explode" }

func (panicCheck) Execute(ctx context.Context, spec domain.CheckSpec, snap Snapshot) domain.CheckResult {
	panic("boom")
}

func TestEngine_ContinuesPastFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "")

	reg := NewRegistry(FileExists{}, GitCommitCount{History: &fakeHistory{count: 3}}, panicCheck{})
	e := NewEngine(reg, logging.Discard())

	specs := []domain.CheckSpec{
		{Type: "explode", Name: "Crashy"},
		{Type: "mystery", Name: "Unknown"},
		{Type: domain.CheckFileExists, Name: "Readme", Path: "README.md"},
		{Type: domain.CheckGitCommitCount, Name: "Commits", MinCommits: 5},
	}
	a := e.Run(context.Background(), specs, Snapshot{Dir: root})

	require.Len(t, a.Results, 4)
	assert.Equal(t, domain.CheckFail, a.Results[0].Status)
	assert.Contains(t, a.Results[0].Details[0], "boom")
	assert.Equal(t, "FAILED: Unknown check type 'mystery'.", a.Results[1].Details[0])
	assert.Equal(t, domain.CheckPass, a.Results[2].Status)
	assert.Equal(t, "FAILED: Found only 3 commits (minimum is 5).", a.Results[3].Details[0])
	assert.Equal(t, Summary{Total: 4, Passed: 1, Failed: 3}, a.Summary)
	assert.False(t, a.GeneratedAt.IsZero())
}

func TestAnalysis_RenderAndParse(t *testing.T) {
	a := Analysis{
		RepositoryURL: "https://github.com/acme/app",
		Results: []domain.CheckResult{
			domain.NewCheckResult(domain.CheckSpec{Type: domain.CheckAI, Name: "Design"}, domain.CheckPartial, "PARTIAL - ok\nsecond line"),
		},
	}
	a.Summary = Summarize(a.Results)

	md := a.Markdown()
	assert.Contains(t, md, "### [PARTIAL] Design")
	assert.Contains(t, md, "- PARTIAL - ok\n  second line")
	assert.Contains(t, md, "0 out of 1 checks passed (1 partial).")

	raw, err := a.JSON()
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "summary")

	back, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, a.Results, back.Results)
}

func TestGitCommitCount_VCSFailureIsFail(t *testing.T) {
	c := GitCommitCount{History: &fakeHistory{countErr: assert.AnError}}
	res := c.Execute(context.Background(), domain.CheckSpec{Type: domain.CheckGitCommitCount, MinCommits: 1}, Snapshot{Dir: "/x"})
	assert.Equal(t, domain.CheckFail, res.Status)
	assert.Contains(t, res.Details[0], assert.AnError.Error())
}
