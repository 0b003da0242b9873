package worker

import "context"

// RunExecutor processes one dequeued run id.
type RunExecutor interface {
	Execute(ctx context.Context, runID string) error
}

// ExecutorFunc adapts a function to RunExecutor.
type ExecutorFunc func(ctx context.Context, runID string) error

func (f ExecutorFunc) Execute(ctx context.Context, runID string) error { return f(ctx, runID) }
