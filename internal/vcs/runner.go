package vcs

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
)

// CmdResult is the outcome of a finished command.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs an external command. A non-zero exit is reported in
// CmdResult, not as an error; err is only for failures to run at all.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CmdResult, error)
}

type execRunner struct{}

// ExecRunner runs commands with os/exec.
func ExecRunner() CommandRunner { return execRunner{} }

func (execRunner) Run(ctx context.Context, name string, args ...string) (CmdResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	err := cmd.Run()
	res := CmdResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var ee *exec.ExitError
		if stderrors.As(err, &ee) && ctx.Err() == nil {
			res.ExitCode = ee.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}
