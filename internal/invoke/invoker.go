// Package invoke is the single path to the external judge: cache lookup,
// rate limiting and bounded retry.
package invoke

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ETAnderson/grader/internal/errors"
	"github.com/ETAnderson/grader/internal/judge"
	"github.com/ETAnderson/grader/internal/logging"
)

// transientWords are matched case-insensitively against failure messages.
var transientWords = []string{
	"rate limit", "rate-limit", "ratelimit", "429", "unavailable", "unavail", "overload", "timeout", "timed out", "503", "resource exhausted",
}

type Config struct {
	Model       string
	MaxAttempts int
	BaseDelay   time.Duration
	// JitterCap bounds the random part of a backoff sleep. Defaults to 3s.
	JitterCap time.Duration
}

type Stats struct {
	Calls     int
	CacheHits int
	Retries   int
}

// Invoker is shared by the check engine and the scoring aggregator.
type Invoker struct {
	gen     judge.Generator
	cache   Cache
	limiter *RateLimiter
	clock   Clock
	log     logging.Logger
	cfg     Config

	// jitter returns a value in [0,1).
	jitter func() float64

	mu    sync.Mutex
	stats Stats
}

func NewInvoker(gen judge.Generator, cache Cache, limiter *RateLimiter, clock Clock, log logging.Logger, cfg Config) *Invoker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.JitterCap <= 0 {
		cfg.JitterCap = 3 * time.Second
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if clock == nil {
		clock = RealClock()
	}
	if limiter == nil {
		limiter = NewRateLimiter(0, clock)
	}
	return &Invoker{
		gen:     gen,
		cache:   cache,
		limiter: limiter,
		clock:   clock,
		log:     logging.OrDiscard(log),
		cfg:     cfg,
		jitter:  rand.Float64,
	}
}

// Model is the model id used in every call and fingerprint.
func (inv *Invoker) Model() string { return inv.cfg.Model }

// WithGenerator returns an invoker sharing this one's cache, limiter and
// stats policy but calling gen. Used to bind a run's credential.
func (inv *Invoker) WithGenerator(gen judge.Generator) *Invoker {
	return &Invoker{
		gen:     gen,
		cache:   inv.cache,
		limiter: inv.limiter,
		clock:   inv.clock,
		log:     inv.log,
		cfg:     inv.cfg,
		jitter:  inv.jitter,
	}
}

func (inv *Invoker) Stats() Stats {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.stats
}

// Invoke returns the judge's answer to prompt.
func (inv *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	fp := Fingerprint(inv.cfg.Model, prompt)

	if v, ok, err := inv.cache.Get(ctx, fp); err != nil {
		inv.log.Printf("judge cache read failed fingerprint=%s err=%v", fp[:12], err)
	} else if ok {
		inv.bump(func(s *Stats) { s.CacheHits++ })
		return v, nil
	}

	var lastErr error
	for attempt := 1; attempt <= inv.cfg.MaxAttempts; attempt++ {
		if err := inv.limiter.Acquire(ctx); err != nil {
			return "", err
		}

		inv.bump(func(s *Stats) { s.Calls++ })
		text, err := inv.gen.Generate(ctx, inv.cfg.Model, prompt)
		if err == nil {
			if perr := inv.cache.Put(ctx, fp, text); perr != nil {
				inv.log.Printf("judge cache write failed fingerprint=%s err=%v", fp[:12], perr)
			}
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !IsTransient(err) {
			return "", err
		}
		if attempt == inv.cfg.MaxAttempts {
			break
		}

		delay := inv.backoff(attempt)
		inv.log.Printf("judge transient failure attempt=%d/%d retry_in=%s err=%v", attempt, inv.cfg.MaxAttempts, delay, err)
		inv.bump(func(s *Stats) { s.Retries++ })
		if err := inv.clock.Sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", errors.Wrap(errors.ERetriesExhausted, "judge call failed after retries", lastErr)
}

// backoff is base*2^(attempt-1) plus up to 25% jitter; the jitter itself
// never exceeds JitterCap.
func (inv *Invoker) backoff(attempt int) time.Duration {
	d := float64(inv.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	j := math.Min(d*0.25, float64(inv.cfg.JitterCap))
	return time.Duration(d + j*inv.jitter())
}

func (inv *Invoker) bump(f func(*Stats)) {
	inv.mu.Lock()
	f(&inv.stats)
	inv.mu.Unlock()
}

// IsTransient reports whether err is worth retrying: either it carries the
// transient code or its message uses the transient vocabulary.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.HasCode(err, errors.ETransientExternal) {
		return true
	}
	if errors.HasCode(err, errors.EPermanentExternal) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, w := range transientWords {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}
