package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string `env:"ENV" default:"dev"`

	Port string `env:"PORT" default:"8080"`

	StateBackend string `env:"STATE_BACKEND" default:"memory"` // memory | mysql | postgres
	DSN          string `env:"DB_DSN" default:""`              // required when STATE_BACKEND != memory

	// Optional: run migrations at startup (dev convenience)
	RunMigrations bool   `env:"RUN_MIGRATIONS" default:"false"`
	MigrationsDir string `env:"MIGRATIONS_DIR" default:"migrations"`

	RubricPath         string `env:"RUBRIC_PATH" default:"rubric.yaml"`
	ScoreRubricPath    string `env:"SCORE_RUBRIC_PATH" default:"final_score_rubric.yaml"`
	ScoreOverridesPath string `env:"SCORE_OVERRIDES_PATH" default:"final_score_overrides.json"`

	Model         string        `env:"GEMINI_MODEL" default:"gemini-2.5-pro"`
	APIKeys       []string      `env:"GEMINI_API_KEYS"` // falls back to GEMINI_API_KEY
	JudgeBaseURL  string        `env:"GEMINI_BASE_URL" default:""`
	MaxPerMinute  int           `env:"JUDGE_MAX_PER_MINUTE" default:"6"`
	MaxAttempts   int           `env:"JUDGE_MAX_ATTEMPTS" default:"5"`
	BaseDelay     time.Duration `env:"JUDGE_BASE_DELAY" default:"2s"`
	JudgeTimeout  time.Duration `env:"JUDGE_TIMEOUT" default:"120s"`
	CacheBackend  string        `env:"CACHE_BACKEND" default:"file"` // memory | file | sql | s3
	CachePath     string        `env:"CACHE_PATH" default:".judge_cache.json"`
	CacheS3Bucket string        `env:"CACHE_S3_BUCKET" default:""`
	CacheS3Prefix string        `env:"CACHE_S3_PREFIX" default:"judge-cache"`

	ScorerStrict           bool `env:"SCORER_STRICT" default:"true"`
	ScorerSummary          bool `env:"SCORER_SUMMARY" default:"true"`
	ScorerMaxAnalyzerChars int  `env:"SCORER_MAX_ANALYZER_CHARS" default:"35000"`

	StaleRunningAfter time.Duration `env:"STALE_RUNNING_AFTER" default:"30m"`

	KafkaBrokers []string `env:"KAFKA_BROKERS"` // empty disables event publishing
	KafkaTopic   string   `env:"KAFKA_TOPIC" default:"grader.run-events"`

	ScratchDir string `env:"SCRATCH_DIR" default:""`
	CloneDepth int    `env:"GIT_CLONE_DEPTH" default:"50"` // negative clones full history
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:           getenv("ENV", "dev"),
		Port:          getenv("PORT", "8080"),
		StateBackend:  getenv("STATE_BACKEND", "memory"),
		DSN:           getenv("DB_DSN", ""),
		RunMigrations: getBool("RUN_MIGRATIONS", false),
		MigrationsDir: getenv("MIGRATIONS_DIR", "migrations"),

		RubricPath:         getenv("RUBRIC_PATH", "rubric.yaml"),
		ScoreRubricPath:    getenv("SCORE_RUBRIC_PATH", "final_score_rubric.yaml"),
		ScoreOverridesPath: getenv("SCORE_OVERRIDES_PATH", "final_score_overrides.json"),

		Model:         getenv("GEMINI_MODEL", "gemini-2.5-pro"),
		APIKeys:       apiKeys(),
		JudgeBaseURL:  getenv("GEMINI_BASE_URL", ""),
		MaxPerMinute:  getInt("JUDGE_MAX_PER_MINUTE", 6),
		MaxAttempts:   getInt("JUDGE_MAX_ATTEMPTS", 5),
		BaseDelay:     getDuration("JUDGE_BASE_DELAY", 2*time.Second),
		JudgeTimeout:  getDuration("JUDGE_TIMEOUT", 120*time.Second),
		CacheBackend:  getenv("CACHE_BACKEND", "file"),
		CachePath:     getenv("CACHE_PATH", ".judge_cache.json"),
		CacheS3Bucket: getenv("CACHE_S3_BUCKET", ""),
		CacheS3Prefix: getenv("CACHE_S3_PREFIX", "judge-cache"),

		ScorerStrict:           getBool("SCORER_STRICT", true),
		ScorerSummary:          getBool("SCORER_SUMMARY", true),
		ScorerMaxAnalyzerChars: getInt("SCORER_MAX_ANALYZER_CHARS", 35000),
		StaleRunningAfter:      getDuration("STALE_RUNNING_AFTER", 30*time.Minute),
		KafkaBrokers:           splitList(getenv("KAFKA_BROKERS", "")),
		KafkaTopic:             getenv("KAFKA_TOPIC", "grader.run-events"),
		ScratchDir:             getenv("SCRATCH_DIR", ""),
		CloneDepth:             getInt("GIT_CLONE_DEPTH", 50),
	}
	return cfg
}

// apiKeys reads GEMINI_API_KEYS (comma separated) and falls back to the
// single GEMINI_API_KEY.
func apiKeys() []string {
	if keys := splitList(os.Getenv("GEMINI_API_KEYS")); len(keys) > 0 {
		return keys
	}
	if k := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); k != "" {
		return []string{k}
	}
	return nil
}

func getenv(key string, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

// getDuration accepts Go durations ("2s") or bare seconds ("2", "1.5").
func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
