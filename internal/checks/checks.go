// Package checks runs the configured analysis checks against a repository
// snapshot. Every check kind resolves to a domain.CheckResult; nothing a
// check does can abort the other checks.
package checks

import (
	"context"

	"github.com/ETAnderson/grader/internal/domain"
)

// ToolVersion is recorded on every persisted analysis.
const ToolVersion = "1.0.0"

// Snapshot is a fetched repository on local disk.
type Snapshot struct {
	Dir           string
	RepositoryURL string
	Branch        string
	Commit        string
}

// Check executes one kind of CheckSpec.
type Check interface {
	Kind() domain.CheckKind
	Execute(ctx context.Context, spec domain.CheckSpec, snap Snapshot) domain.CheckResult
}

// Invoker sends a prompt to the judge (cache, limiter and retry included).
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// History is the part of the VCS collaborator the checks read.
type History interface {
	CommitCount(ctx context.Context, dir string) (int, error)
	Log(ctx context.Context, dir string, entries int) (string, error)
}

type Registry struct {
	byKind map[domain.CheckKind]Check
}

func NewRegistry(checks ...Check) Registry {
	m := make(map[domain.CheckKind]Check, len(checks))
	for _, c := range checks {
		if c == nil {
			continue
		}
		m[c.Kind()] = c
	}
	return Registry{byKind: m}
}

func (r Registry) Get(kind domain.CheckKind) (Check, bool) {
	if r.byKind == nil {
		return nil, false
	}
	c, ok := r.byKind[kind]
	return c, ok
}

// DefaultRegistry wires the three built-in kinds.
func DefaultRegistry(history History, judge Invoker) Registry {
	return NewRegistry(
		FileExists{},
		GitCommitCount{History: history},
		AICheck{History: history, Judge: judge},
	)
}
