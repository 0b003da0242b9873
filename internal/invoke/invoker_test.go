package invoke

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/grader/internal/errors"
	"github.com/ETAnderson/grader/internal/judge"
)

type scriptedGen struct {
	calls   int
	prompts []string
	errs    []error
	text    string
}

func (g *scriptedGen) Generate(ctx context.Context, model string, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return g.text, nil
}

func newTestInvoker(gen judge.Generator, clock *fakeClock) (*Invoker, *RateLimiter) {
	l := NewRateLimiter(100, clock)
	inv := NewInvoker(gen, NewMemoryCache(), l, clock, nil, Config{Model: "m", MaxAttempts: 3, BaseDelay: time.Second})
	inv.jitter = func() float64 { return 0 }
	return inv, l
}

func TestFingerprint_IsStableAndModelScoped(t *testing.T) {
	a := Fingerprint("m1", "prompt")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint("m1", "prompt"))
	assert.NotEqual(t, a, Fingerprint("m2", "prompt"))
}

func TestInvoker_SecondIdenticalPromptIsServedFromCache(t *testing.T) {
	clock := newFakeClock()
	gen := &scriptedGen{text: "PASS"}
	inv, l := newTestInvoker(gen, clock)

	for i := 0; i < 2; i++ {
		out, err := inv.Invoke(context.Background(), "same prompt")
		require.NoError(t, err)
		assert.Equal(t, "PASS", out)
	}

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, l.Acquired())
	assert.Equal(t, Stats{Calls: 1, CacheHits: 1}, inv.Stats())
}

func TestInvoker_RetriesTransientWithBackoff(t *testing.T) {
	clock := newFakeClock()
	gen := &scriptedGen{
		text: "SCORE: 1.0",
		errs: []error{
			stderrors.New("429 Too Many Requests"),
			errors.New(errors.ETransientExternal, "gemini unavailable"),
		},
	}
	inv, _ := newTestInvoker(gen, clock)

	out, err := inv.Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "SCORE: 1.0", out)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.slept)
}

func TestInvoker_PermanentFailureIsNotRetried(t *testing.T) {
	clock := newFakeClock()
	gen := &scriptedGen{errs: []error{errors.New(errors.EPermanentExternal, "gemini rejected request: 401")}}
	inv, _ := newTestInvoker(gen, clock)

	_, err := inv.Invoke(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, errors.EPermanentExternal, errors.GetCode(err))
	assert.Equal(t, 1, gen.calls)
	assert.Empty(t, clock.slept)
}

func TestInvoker_ExhaustedRetriesCarryLastError(t *testing.T) {
	clock := newFakeClock()
	last := stderrors.New("503 overloaded again")
	gen := &scriptedGen{errs: []error{stderrors.New("timeout"), stderrors.New("timeout"), last}}
	inv, _ := newTestInvoker(gen, clock)

	_, err := inv.Invoke(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, errors.ERetriesExhausted, errors.GetCode(err))
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, gen.calls)

	// Nothing cached on failure.
	_, ok, _ := inv.cache.Get(context.Background(), Fingerprint("m", "p"))
	assert.False(t, ok)
}

type failingCache struct{ MemoryCache }

func (*failingCache) Put(ctx context.Context, fingerprint string, response string) error {
	return stderrors.New("disk full")
}

func TestInvoker_CacheWriteFailureIsNotFatal(t *testing.T) {
	clock := newFakeClock()
	gen := &scriptedGen{text: "ok"}
	inv := NewInvoker(gen, &failingCache{MemoryCache{m: map[string]string{}}}, NewRateLimiter(10, clock), clock, nil, Config{Model: "m"})

	out, err := inv.Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestInvoker_WithGeneratorSharesCache(t *testing.T) {
	clock := newFakeClock()
	first := &scriptedGen{text: "cached"}
	inv, _ := newTestInvoker(first, clock)
	_, err := inv.Invoke(context.Background(), "p")
	require.NoError(t, err)

	second := &scriptedGen{text: "fresh"}
	out, err := inv.WithGenerator(second).Invoke(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "cached", out)
	assert.Zero(t, second.calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(stderrors.New("Resource exhausted")))
	assert.True(t, IsTransient(stderrors.New("context deadline: timed out")))
	assert.False(t, IsTransient(stderrors.New("invalid api key")))
	assert.True(t, IsTransient(stderrors.New("Rate limit exceeded for model")))
	assert.True(t, IsTransient(stderrors.New("request was rate-limited")))
	assert.False(t, IsTransient(stderrors.New("could not generate content")))
	assert.False(t, IsTransient(stderrors.New("separate config is invalid")))
	assert.False(t, IsTransient(errors.New(errors.EPermanentExternal, "rate card missing")))
	assert.False(t, IsTransient(nil))
}
