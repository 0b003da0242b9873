package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/ETAnderson/grader/internal/logging"
)

// Runner is the single sequential worker. It starts lazily on the first
// Enqueue and drains the queue until its base context is cancelled.
type Runner struct {
	base  context.Context
	queue *Queue
	exec  RunExecutor
	log   logging.Logger

	mu      sync.Mutex
	started bool
	current string
	wg      sync.WaitGroup
}

// NewRunner binds the worker loop to ctx; cancelling it stops the loop
// after the in-flight run returns.
func NewRunner(ctx context.Context, exec RunExecutor, log logging.Logger) *Runner {
	return &Runner{
		base:  ctx,
		queue: NewQueue(),
		exec:  exec,
		log:   logging.OrDiscard(log),
	}
}

// Enqueue is safe to call from any goroutine.
func (r *Runner) Enqueue(runID string) {
	r.queue.Push(runID)
	r.ensureStarted()
}

func (r *Runner) ensureStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.loop()
	r.log.Printf("worker started")
}

func (r *Runner) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Pending is the number of queued ids not yet picked up.
func (r *Runner) Pending() int { return r.queue.Len() }

// Active reports whether runID is being processed right now.
func (r *Runner) Active(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != "" && r.current == runID
}

// Wait blocks until the loop has exited. It returns immediately if the
// worker was never started.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) loop() {
	defer r.wg.Done()
	for {
		runID, err := r.queue.Next(r.base)
		if err != nil {
			r.log.Printf("worker stopped: %v", err)
			return
		}
		r.process(runID)
	}
}

// process runs one id. Errors and panics are logged and never stop the loop.
func (r *Runner) process(runID string) {
	ctx := WithRunID(r.base, runID)

	r.setCurrent(runID)
	defer r.setCurrent("")

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Printf("run_id=%s worker recovered: %v", RunID(ctx), rec)
		}
	}()

	if r.exec == nil {
		panic(fmt.Sprintf("no executor configured for run %s", runID))
	}
	if err := r.exec.Execute(ctx, runID); err != nil {
		r.log.Printf("run_id=%s execute failed: %v", RunID(ctx), err)
	}
}

func (r *Runner) setCurrent(runID string) {
	r.mu.Lock()
	r.current = runID
	r.mu.Unlock()
}
