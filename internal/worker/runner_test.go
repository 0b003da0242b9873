package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingExecutor struct {
	mu    sync.Mutex
	ids   []string
	ctxID []string
	done  chan string
	fn    func(runID string) error
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{done: make(chan string, 16)}
}

func (e *recordingExecutor) Execute(ctx context.Context, runID string) error {
	e.mu.Lock()
	e.ids = append(e.ids, runID)
	e.ctxID = append(e.ctxID, RunID(ctx))
	e.mu.Unlock()
	defer func() { e.done <- runID }()
	if e.fn != nil {
		return e.fn(runID)
	}
	return nil
}

func waitFor(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	for len(got) < n {
		select {
		case id := <-ch:
			got = append(got, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d runs", len(got), n)
		}
	}
	return got
}

func TestRunner_StartsLazilyAndDrainsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := newRecordingExecutor()
	r := NewRunner(ctx, exec, nil)

	if r.Started() {
		t.Fatalf("expected runner not started before first enqueue")
	}

	r.Enqueue("run_a")
	r.Enqueue("run_b")
	r.Enqueue("run_c")

	got := waitFor(t, exec.done, 3)
	want := []string{"run_a", "run_b", "run_c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if !r.Started() {
		t.Fatalf("expected runner started")
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	for i, id := range exec.ids {
		if exec.ctxID[i] != id {
			t.Fatalf("expected ctx run_id=%q got %q", id, exec.ctxID[i])
		}
	}
}

func TestRunner_ConcurrentEnqueueStartsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	exec := newRecordingExecutor()
	exec.fn = func(string) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}
	exec.done = make(chan string, 64)
	r := NewRunner(ctx, exec, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Enqueue("run_x")
		}()
	}
	wg.Wait()

	waitFor(t, exec.done, 50)
	if maxInFlight != 1 {
		t.Fatalf("expected strictly sequential processing, saw %d in flight", maxInFlight)
	}
}

func TestRunner_SurvivesErrorsAndPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := newRecordingExecutor()
	exec.fn = func(runID string) error {
		switch runID {
		case "run_err":
			return errors.New("boom")
		case "run_panic":
			panic("kaboom")
		}
		return nil
	}
	r := NewRunner(ctx, exec, nil)

	r.Enqueue("run_err")
	r.Enqueue("run_panic")
	r.Enqueue("run_ok")

	got := waitFor(t, exec.done, 3)
	if got[2] != "run_ok" {
		t.Fatalf("expected loop to keep serving after failures, got %v", got)
	}
}

func TestRunner_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	exec := newRecordingExecutor()
	r := NewRunner(ctx, exec, nil)
	r.Enqueue("run_a")
	waitFor(t, exec.done, 1)

	cancel()

	stopped := make(chan struct{})
	go func() {
		r.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected runner to stop after cancel")
	}
}

func TestRunner_WaitWithoutStart(t *testing.T) {
	r := NewRunner(context.Background(), newRecordingExecutor(), nil)
	r.Wait()
	if r.Pending() != 0 {
		t.Fatalf("expected empty queue")
	}
}

func TestRunner_ActiveTracksCurrentRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	entered := make(chan struct{})
	exec := newRecordingExecutor()
	exec.fn = func(string) error {
		close(entered)
		<-release
		return nil
	}
	r := NewRunner(ctx, exec, nil)
	r.Enqueue("run_slow")

	<-entered
	if !r.Active("run_slow") {
		t.Fatalf("expected run_slow active")
	}
	if r.Active("run_other") {
		t.Fatalf("expected run_other inactive")
	}
	close(release)
	waitFor(t, exec.done, 1)
}

func TestQueue_NextHonoursContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
