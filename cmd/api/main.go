package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ETAnderson/grader/internal/api"
	"github.com/ETAnderson/grader/internal/api/middleware"
	"github.com/ETAnderson/grader/internal/app"
	"github.com/ETAnderson/grader/internal/config"
	"github.com/ETAnderson/grader/internal/execute"
	"github.com/ETAnderson/grader/internal/logging"
	"github.com/ETAnderson/grader/internal/migrate"
	"github.com/ETAnderson/grader/internal/service"
	"github.com/ETAnderson/grader/internal/state"
	"github.com/ETAnderson/grader/internal/vcs"
	"github.com/ETAnderson/grader/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.NewStdLogger("grader-api ")

	logger.Printf("ENV=%q STATE_BACKEND=%q DB_DSN_set=%v CACHE_BACKEND=%q judge_keys=%d",
		cfg.Env, cfg.StateBackend, cfg.DSN != "", cfg.CacheBackend, len(cfg.APIKeys))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factoryRes, err := state.NewStore(ctx, state.FactoryConfig{
		Backend: cfg.StateBackend,
		DSN:     cfg.DSN,
	})
	if err != nil {
		logger.Printf("state store init failed: %v", err)
		os.Exit(1)
	}
	if factoryRes.DB != nil {
		defer factoryRes.DB.Close()
		if cfg.RunMigrations {
			applied, err := migrate.ApplyDir(ctx, factoryRes.DB, factoryRes.Dialect, cfg.MigrationsDir)
			if err != nil {
				logger.Printf("migrations failed: %v", err)
				os.Exit(1)
			}
			logger.Printf("migrations applied: %v", applied)
		}
	}
	store := factoryRes.Store

	rubrics, err := app.LoadRubrics(cfg)
	if err != nil {
		logger.Printf("rubric load failed: %v", err)
		os.Exit(1)
	}

	cache, err := app.NewCache(ctx, cfg, factoryRes.DB, factoryRes.Dialect)
	if err != nil {
		logger.Printf("judge cache init failed: %v", err)
		os.Exit(1)
	}
	j := app.NewJudge(cfg, cache, logging.NewStdLogger("grader-judge "))
	if j.Keys.Len() == 0 {
		logger.Printf("warning: no judge API keys configured; runs will fail until GEMINI_API_KEYS is set")
	}

	publisher, closePublisher, err := app.NewPublisher(cfg, logger)
	if err != nil {
		logger.Printf("event publisher init failed: %v", err)
		os.Exit(1)
	}
	defer closePublisher()

	git := vcs.NewGitCLI(vcs.ExecRunner(), cfg.CloneDepth)
	workerLog := logging.NewStdLogger("grader-worker ")

	exec := execute.Executor{
		Store:    store,
		Fetcher:  git,
		Keys:     j.Keys,
		NewJudge: j.NewJudge,
		Invoker:  j.Invoker,
		Analyzer: execute.RubricAnalyzer{Checks: rubrics.Checks, History: git, Log: workerLog},
		Scorer: execute.RubricScorer{
			Criteria:  rubrics.Criteria,
			Overrides: rubrics.Overrides,
			Config:    app.ScoringConfig(cfg),
			Log:       workerLog,
		},
		Events:     publisher,
		Log:        workerLog,
		ScratchDir: cfg.ScratchDir,
	}

	runner := worker.NewRunner(ctx, exec, workerLog)

	reaper := worker.Reaper{
		Store:      store,
		StaleAfter: cfg.StaleRunningAfter,
		Active:     runner.Active,
		Events:     publisher,
		Log:        workerLog,
	}
	go func() {
		if err := reaper.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("reaper stopped: %v", err)
		}
	}()

	svc := service.New(store, runner, logger)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(svc, api.Options{
			Idempotency: middleware.NewMemoryIdempotencyStore(24 * time.Hour),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("starting (env=%s) on %s", cfg.Env, server.Addr)

		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Printf("server error: %v", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(logger, server, cancel, runner)
}

// waitForShutdown stops HTTP first, then the worker. A run in flight is
// cancelled and marked ERROR; if the process dies before that, the reaper
// picks it up on the next start.
func waitForShutdown(logger interface{ Printf(string, ...any) }, server *http.Server, stopWorker context.CancelFunc, runner *worker.Runner) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Printf("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = server.Shutdown(ctx)

	stopWorker()
	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Printf("worker did not stop in time; pending=%d", runner.Pending())
	}
	logger.Printf("shutdown complete")
}
