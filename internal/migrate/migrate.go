package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ETAnderson/grader/internal/state"
)

// ApplyDir applies every *.sql file under dir/<dialect> that is not yet
// recorded in schema_migrations, in lexical order.
func ApplyDir(ctx context.Context, db *sql.DB, dialect state.Dialect, dir string) ([]string, error) {
	dir = filepath.Join(dir, string(dialect))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, filepath.Join(dir, name))
		}
	}

	sort.Strings(files)

	if err := ensureSchemaMigrations(ctx, db, dialect); err != nil {
		return nil, err
	}

	var applied []string
	for _, path := range files {
		name := filepath.Base(path)

		done, err := isApplied(ctx, db, dialect, name)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			return applied, err
		}

		// The mysql driver rejects multi-statement Exec unless the DSN opts in.
		for _, stmt := range SplitStatements(string(sqlBytes)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return applied, fmt.Errorf("migration %s failed: %w", name, err)
			}
		}

		if err := markApplied(ctx, db, dialect, name); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}

	return applied, nil
}

// SplitStatements splits a migration file on ";" line endings and drops
// "--" comment lines.
func SplitStatements(src string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			if s := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";"); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func ensureSchemaMigrations(ctx context.Context, db *sql.DB, dialect state.Dialect) error {
	q := `
CREATE TABLE IF NOT EXISTS schema_migrations (
  name VARCHAR(255) NOT NULL,
  applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (name)
) ENGINE=InnoDB`
	if dialect == state.DialectPostgres {
		q = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  name VARCHAR(255) PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	}
	_, err := db.ExecContext(ctx, q)
	return err
}

func isApplied(ctx context.Context, db *sql.DB, dialect state.Dialect, name string) (bool, error) {
	var v string
	err := db.QueryRowContext(ctx, dialect.Rebind(`SELECT name FROM schema_migrations WHERE name = ?`), name).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func markApplied(ctx context.Context, db *sql.DB, dialect state.Dialect, name string) error {
	_, err := db.ExecContext(ctx, dialect.Rebind(`INSERT INTO schema_migrations (name) VALUES (?)`), name)
	return err
}
