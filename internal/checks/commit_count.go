package checks

import (
	"context"
	"fmt"

	"github.com/ETAnderson/grader/internal/domain"
)

// GitCommitCount passes when HEAD has at least MinCommits reachable commits.
type GitCommitCount struct {
	History History
}

func (GitCommitCount) Kind() domain.CheckKind { return domain.CheckGitCommitCount }

func (c GitCommitCount) Execute(ctx context.Context, spec domain.CheckSpec, snap Snapshot) domain.CheckResult {
	if c.History == nil {
		return domain.NewCheckResult(spec, domain.CheckFail, "FAILED: No version control backend configured.")
	}
	if spec.MinCommits < 0 {
		return domain.NewCheckResult(spec, domain.CheckFail, "FAILED: Check is misconfigured (min_commits must not be negative).")
	}

	n, err := c.History.CommitCount(ctx, snap.Dir)
	if err != nil {
		return domain.NewCheckResult(spec, domain.CheckFail,
			fmt.Sprintf("FAILED: Could not run git command. Is git installed and is this a git repo? Error: %v", err))
	}
	if n >= spec.MinCommits {
		return domain.NewCheckResult(spec, domain.CheckPass, fmt.Sprintf("PASSED: Found %d commits (minimum was %d).", n, spec.MinCommits))
	}
	return domain.NewCheckResult(spec, domain.CheckFail, fmt.Sprintf("FAILED: Found only %d commits (minimum is %d).", n, spec.MinCommits))
}
