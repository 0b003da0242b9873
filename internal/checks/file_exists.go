package checks

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ETAnderson/grader/internal/domain"
)

const defaultMaxDepth = 2

// FileExists passes when the configured path (or any of paths) exists,
// first literally and then, with recursive set, by basename search. A
// literal path may be a directory; the recursive search only matches files.
type FileExists struct{}

func (FileExists) Kind() domain.CheckKind { return domain.CheckFileExists }

func (FileExists) Execute(ctx context.Context, spec domain.CheckSpec, snap Snapshot) domain.CheckResult {
	candidates := spec.Paths
	if spec.Path != "" {
		candidates = []string{spec.Path}
	}
	if len(candidates) == 0 {
		return domain.NewCheckResult(spec, domain.CheckFail, "FAILED: Check is misconfigured (needs 'path' or 'paths').")
	}

	for _, c := range candidates {
		full, ok := insideRoot(snap.Dir, c)
		if !ok {
			return domain.NewCheckResult(spec, domain.CheckFail, fmt.Sprintf("FAILED: '%s' points outside the repository.", c))
		}
		if _, err := os.Stat(full); err == nil {
			if spec.Path != "" {
				return domain.NewCheckResult(spec, domain.CheckPass, fmt.Sprintf("PASSED: '%s' found.", c))
			}
			return domain.NewCheckResult(spec, domain.CheckPass, fmt.Sprintf("PASSED: Found required dependency file ('%s').", c))
		}
	}

	if spec.Recursive {
		depth := spec.MaxDepth
		if depth <= 0 {
			depth = defaultMaxDepth
		}
		if m, ok := findByBasename(snap.Dir, candidates, depth); ok {
			return domain.NewCheckResult(spec, domain.CheckPass,
				fmt.Sprintf("PASSED: '%s' found recursively at '%s' (depth %d).", m.base, m.rel, m.depth))
		}
		return domain.NewCheckResult(spec, domain.CheckFail,
			fmt.Sprintf("FAILED: Could not find '%s' (searched recursively to depth %d).", strings.Join(candidates, "' or '"), depth))
	}

	if spec.Path != "" {
		return domain.NewCheckResult(spec, domain.CheckFail, fmt.Sprintf("FAILED: '%s' does not exist.", spec.Path))
	}
	return domain.NewCheckResult(spec, domain.CheckFail, fmt.Sprintf("FAILED: Could not find '%s'.", strings.Join(candidates, "' or '")))
}
