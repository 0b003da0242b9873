package invoke

import (
	"context"
	"database/sql"

	"github.com/ETAnderson/grader/internal/state"
)

// SQLCache stores entries in the judge_cache table next to the runs.
type SQLCache struct {
	db      *sql.DB
	dialect state.Dialect
}

func NewSQLCache(db *sql.DB, dialect state.Dialect) *SQLCache {
	return &SQLCache{db: db, dialect: dialect}
}

func (c *SQLCache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	var v string
	err := c.db.QueryRowContext(ctx, c.dialect.Rebind(
		`SELECT response FROM judge_cache WHERE fingerprint = ?`), fingerprint).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Put keeps the first response stored for a fingerprint.
func (c *SQLCache) Put(ctx context.Context, fingerprint string, response string) error {
	q := `INSERT IGNORE INTO judge_cache (fingerprint, response) VALUES (?, ?)`
	if c.dialect == state.DialectPostgres {
		q = `INSERT INTO judge_cache (fingerprint, response) VALUES ($1, $2) ON CONFLICT (fingerprint) DO NOTHING`
	}
	_, err := c.db.ExecContext(ctx, q, fingerprint, response)
	return err
}
