package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ETAnderson/grader/internal/config"
	"github.com/ETAnderson/grader/internal/errors"
	"github.com/ETAnderson/grader/internal/events"
	"github.com/ETAnderson/grader/internal/invoke"
)

func TestNewCache_Backends(t *testing.T) {
	ctx := context.Background()

	c, err := NewCache(ctx, config.Config{CacheBackend: "memory"}, nil, "")
	require.NoError(t, err)
	assert.IsType(t, &invoke.MemoryCache{}, c)

	c, err = NewCache(ctx, config.Config{CacheBackend: "file", CachePath: filepath.Join(t.TempDir(), "c.json")}, nil, "")
	require.NoError(t, err)
	assert.IsType(t, &invoke.FileCache{}, c)

	_, err = NewCache(ctx, config.Config{CacheBackend: "sql"}, nil, "")
	assert.True(t, errors.HasCode(err, errors.EMisconfigured))

	_, err = NewCache(ctx, config.Config{CacheBackend: "redis"}, nil, "")
	assert.True(t, errors.HasCode(err, errors.EMisconfigured))
}

func TestNewJudge_WithoutKeysFailsCalls(t *testing.T) {
	j := NewJudge(config.Config{Model: "m", MaxPerMinute: 6, MaxAttempts: 1}, invoke.NewMemoryCache(), nil)
	assert.Equal(t, 0, j.Keys.Len())

	_, err := j.Invoker.Invoke(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.EMisconfigured))
}

func TestNewJudge_FactoryBindsKey(t *testing.T) {
	j := NewJudge(config.Config{Model: "m", APIKeys: []string{"a", "b"}}, invoke.NewMemoryCache(), nil)
	assert.Equal(t, 2, j.Keys.Len())

	cred, err := j.Keys.Next()
	require.NoError(t, err)
	assert.Equal(t, "k1", cred.Label, "building the judge stack must not consume a credential")
	gen, err := j.NewJudge(cred)
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

func TestNewPublisher_NopWithoutBrokers(t *testing.T) {
	pub, closeFn, err := NewPublisher(config.Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, events.NopPublisher{}, pub)
	assert.NoError(t, closeFn())
}

func TestLoadRubrics(t *testing.T) {
	dir := t.TempDir()
	checks := filepath.Join(dir, "rubric.yaml")
	criteria := filepath.Join(dir, "final.yaml")
	require.NoError(t, os.WriteFile(checks, []byte("checks:\n  - type: file_exists\n    name: README\n    path: README.md\n"), 0o644))
	require.NoError(t, os.WriteFile(criteria, []byte("criteria:\n  - id: docs\n    weight: 2\n"), 0o644))

	r, err := LoadRubrics(config.Config{RubricPath: checks, ScoreRubricPath: criteria, ScoreOverridesPath: filepath.Join(dir, "missing.json")})
	require.NoError(t, err)
	assert.Len(t, r.Checks, 1)
	require.Len(t, r.Criteria, 1)
	assert.Equal(t, 2.0, r.Criteria[0].Weight)
	assert.Nil(t, r.Overrides)
}
