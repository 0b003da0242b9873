// Package vcs fetches repository snapshots and reads their history through
// the git command line.
package vcs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ETAnderson/grader/internal/errors"
)

// maxStderrLen bounds the stderr included in error messages.
const maxStderrLen = 2048

// Fetcher is the repository collaborator used by the pipeline and checks.
type Fetcher interface {
	Clone(ctx context.Context, url string, dest string) error
	RevisionInfo(ctx context.Context, dir string) (branch string, commit string, err error)
	CommitCount(ctx context.Context, dir string) (int, error)
	Log(ctx context.Context, dir string, entries int) (string, error)
}

type GitCLI struct {
	runner CommandRunner
	depth  int
}

// DefaultCloneDepth is the shallow clone depth used when none is given.
const DefaultCloneDepth = 50

// NewGitCLI clones shallowly to depth commits. Zero uses DefaultCloneDepth;
// a negative depth clones the full history.
func NewGitCLI(runner CommandRunner, depth int) *GitCLI {
	if runner == nil {
		runner = ExecRunner()
	}
	if depth == 0 {
		depth = DefaultCloneDepth
	}
	return &GitCLI{runner: runner, depth: depth}
}

// Clone uses: git clone [--depth <n>] <url> <dest>
func (g *GitCLI) Clone(ctx context.Context, url string, dest string) error {
	args := []string{"clone"}
	if g.depth > 0 {
		args = append(args, "--depth", strconv.Itoa(g.depth))
	}
	_, err := g.git(ctx, append(args, url, dest)...)
	if err != nil {
		return errors.Wrap(errors.EResourceMissing, "clone "+url, err)
	}
	return nil
}

// RevisionInfo uses: git rev-parse --abbrev-ref HEAD / git rev-parse HEAD
func (g *GitCLI) RevisionInfo(ctx context.Context, dir string) (string, string, error) {
	branch, err := g.git(ctx, "-C", dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", "", err
	}
	commit, err := g.git(ctx, "-C", dir, "rev-parse", "HEAD")
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(branch), strings.TrimSpace(commit), nil
}

// CommitCount uses: git rev-list --count HEAD. A count that reaches the
// shallow clone depth may be truncated, so the history is unshallowed with
// git fetch --unshallow and counted again.
func (g *GitCLI) CommitCount(ctx context.Context, dir string) (int, error) {
	n, err := g.revCount(ctx, dir)
	if err != nil || g.depth <= 0 || n < g.depth {
		return n, err
	}
	if _, err := g.git(ctx, "-C", dir, "fetch", "--unshallow", "--quiet"); err != nil {
		return 0, fmt.Errorf("unshallow for commit count: %w", err)
	}
	return g.revCount(ctx, dir)
}

func (g *GitCLI) revCount(ctx context.Context, dir string) (int, error) {
	out, err := g.git(ctx, "-C", dir, "rev-list", "--count", "HEAD")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("git rev-list: unexpected output %q", strings.TrimSpace(out))
	}
	return n, nil
}

// Log uses: git log --oneline --graph -n <entries>
func (g *GitCLI) Log(ctx context.Context, dir string, entries int) (string, error) {
	if entries <= 0 {
		entries = 25
	}
	return g.git(ctx, "-C", dir, "log", "--oneline", "--graph", "-n", strconv.Itoa(entries))
}

func (g *GitCLI) git(ctx context.Context, args ...string) (string, error) {
	res, err := g.runner.Run(ctx, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", subcommand(args), err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("git %s failed (exit %d): %s", subcommand(args), res.ExitCode, truncate(strings.TrimSpace(res.Stderr), maxStderrLen))
	}
	return res.Stdout, nil
}

func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-C" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
