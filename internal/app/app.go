// Package app turns a config.Config into the wired collaborators shared
// by the API server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ETAnderson/grader/internal/config"
	"github.com/ETAnderson/grader/internal/domain"
	"github.com/ETAnderson/grader/internal/errors"
	"github.com/ETAnderson/grader/internal/events"
	"github.com/ETAnderson/grader/internal/execute"
	"github.com/ETAnderson/grader/internal/invoke"
	"github.com/ETAnderson/grader/internal/judge"
	"github.com/ETAnderson/grader/internal/logging"
	"github.com/ETAnderson/grader/internal/rubric"
	"github.com/ETAnderson/grader/internal/scoring"
	"github.com/ETAnderson/grader/internal/state"
)

// NewCache picks the invocation cache backend. The sql backend reuses the
// run store's connection and needs STATE_BACKEND to be mysql or postgres.
func NewCache(ctx context.Context, cfg config.Config, sqlDB *sql.DB, dialect state.Dialect) (invoke.Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CacheBackend)) {
	case "", "file":
		return invoke.NewFileCache(cfg.CachePath), nil
	case "memory":
		return invoke.NewMemoryCache(), nil
	case "sql":
		if sqlDB == nil {
			return nil, errors.New(errors.EMisconfigured, "CACHE_BACKEND=sql requires a mysql or postgres STATE_BACKEND")
		}
		return invoke.NewSQLCache(sqlDB, dialect), nil
	case "s3":
		c, err := invoke.NewS3Cache(ctx, cfg.CacheS3Bucket, cfg.CacheS3Prefix)
		if err != nil {
			return nil, errors.Wrap(errors.EMisconfigured, "s3 cache", err)
		}
		return c, nil
	default:
		return nil, errors.Newf(errors.EMisconfigured, "unknown CACHE_BACKEND %q (use memory, file, sql or s3)", cfg.CacheBackend)
	}
}

// Judge is the process-wide judge call stack: one cache, one limiter and a
// rotating credential pool.
type Judge struct {
	Keys     *judge.KeyPool
	Invoker  *invoke.Invoker
	NewJudge execute.JudgeFactory
}

func NewJudge(cfg config.Config, cache invoke.Cache, log logging.Logger) Judge {
	keys := judge.NewKeyPool(cfg.APIKeys)
	factory := func(cred judge.Credential) (judge.Generator, error) {
		return judge.NewGeminiClient(context.Background(), judge.GeminiConfig{
			BaseURL: cfg.JudgeBaseURL,
			APIKey:  cred.Key,
			Timeout: cfg.JudgeTimeout,
		})
	}

	var base judge.Generator = judge.GeneratorFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New(errors.EMisconfigured, "no judge API keys configured (set GEMINI_API_KEYS or GEMINI_API_KEY)")
	})
	if cred, err := keys.First(); err == nil {
		if gen, err := factory(cred); err == nil {
			base = gen
		}
	}

	clock := invoke.RealClock()
	inv := invoke.NewInvoker(base, cache, invoke.NewRateLimiter(cfg.MaxPerMinute, clock), clock, log, invoke.Config{
		Model:       cfg.Model,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
	})
	return Judge{Keys: keys, Invoker: inv, NewJudge: factory}
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op one otherwise. close is never nil.
func NewPublisher(cfg config.Config, log logging.Logger) (pub events.Publisher, close func() error, err error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, func() error { return nil }, nil
	}
	kp, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
	if err != nil {
		return nil, nil, err
	}
	logging.OrDiscard(log).Printf("publishing run events to kafka topic=%s brokers=%s", cfg.KafkaTopic, strings.Join(cfg.KafkaBrokers, ","))
	return kp, kp.Close, nil
}

type Rubrics struct {
	Checks    []domain.CheckSpec
	Criteria  []domain.Criterion
	Overrides domain.Overrides
}

func LoadRubrics(cfg config.Config) (Rubrics, error) {
	checks, err := rubric.LoadChecks(cfg.RubricPath)
	if err != nil {
		return Rubrics{}, fmt.Errorf("load %s: %w", cfg.RubricPath, err)
	}
	criteria, err := rubric.LoadCriteria(cfg.ScoreRubricPath)
	if err != nil {
		return Rubrics{}, fmt.Errorf("load %s: %w", cfg.ScoreRubricPath, err)
	}
	return Rubrics{
		Checks:    checks,
		Criteria:  criteria,
		Overrides: rubric.LoadOverrides(cfg.ScoreOverridesPath),
	}, nil
}

func ScoringConfig(cfg config.Config) scoring.Config {
	return scoring.Config{
		Strict:           cfg.ScorerStrict,
		Summary:          cfg.ScorerSummary,
		MaxAnalyzerChars: cfg.ScorerMaxAnalyzerChars,
	}
}
