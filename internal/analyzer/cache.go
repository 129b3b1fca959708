package analyzer

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// AnswerCache persists analyzer answers across runs, keyed by a hash of the
// full question (subject, prompt, context and schema). Identical questions
// about identical text are common when the same document is re-analyzed
// after an edit; the cache keeps those re-runs free. This is separate from
// the per-run DocumentContext caches, which exist to coalesce calls within
// a single run.
type AnswerCache struct {
	db    *sql.DB
	model string
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS answers (
	key        TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);`

// OpenAnswerCache opens (creating if needed) a SQLite answer cache. Answers
// are segregated by model so a model upgrade naturally invalidates them.
func OpenAnswerCache(path, model string) (*AnswerCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: open answer cache")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "analyzer: exec %s", pragma)
		}
	}
	if _, err := db.Exec(cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "analyzer: migrate answer cache")
	}
	return &AnswerCache{db: db, model: model}, nil
}

// Close releases the underlying database handle.
func (c *AnswerCache) Close() error {
	return c.db.Close()
}

func (c *AnswerCache) key(q Question) string {
	sum := sha256.Sum256([]byte(c.model + "|" + q.CacheKey()))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached answer, or (nil, false) on miss. Read failures are
// logged and treated as misses; the cache must never fail a run.
func (c *AnswerCache) Get(ctx context.Context, q Question) (*Answer, bool) {
	var payload string
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM answers WHERE key = ?`, c.key(q),
	).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			zap.L().Warn("analyzer: answer cache read failed", zap.Error(err))
		}
		return nil, false
	}
	ans, err := unmarshalAnswer([]byte(payload))
	if err != nil {
		zap.L().Warn("analyzer: answer cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return ans, true
}

// Put stores an answer. Write failures are logged and ignored.
func (c *AnswerCache) Put(ctx context.Context, q Question, ans *Answer) {
	payload, err := marshalAnswer(ans)
	if err != nil {
		zap.L().Warn("analyzer: answer cache marshal failed", zap.Error(err))
		return
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO answers (key, model, payload) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`,
		c.key(q), c.model, string(payload),
	)
	if err != nil {
		zap.L().Warn("analyzer: answer cache write failed", zap.Error(err))
	}
}
