package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STATE_BACKEND", "")
	t.Setenv("JUDGE_MAX_PER_MINUTE", "")
	t.Setenv("GIT_CLONE_DEPTH", "")

	cfg := Load()

	assert.Equal(t, "memory", cfg.StateBackend)
	assert.Equal(t, 6, cfg.MaxPerMinute)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
	assert.True(t, cfg.ScorerStrict)
	assert.Equal(t, 50, cfg.CloneDepth)
	assert.Empty(t, cfg.APIKeys)
}

func TestLoad_APIKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", " a, b ,,c ")
	t.Setenv("GEMINI_API_KEY", "single")

	assert.Equal(t, []string{"a", "b", "c"}, Load().APIKeys)

	t.Setenv("GEMINI_API_KEYS", "")
	assert.Equal(t, []string{"single"}, Load().APIKeys)
}

func TestGetDuration_AcceptsSeconds(t *testing.T) {
	t.Setenv("JUDGE_BASE_DELAY", "1.5")
	assert.Equal(t, 1500*time.Millisecond, getDuration("JUDGE_BASE_DELAY", time.Second))

	t.Setenv("JUDGE_BASE_DELAY", "250ms")
	assert.Equal(t, 250*time.Millisecond, getDuration("JUDGE_BASE_DELAY", time.Second))

	t.Setenv("JUDGE_BASE_DELAY", "nope")
	assert.Equal(t, time.Second, getDuration("JUDGE_BASE_DELAY", time.Second))
}
