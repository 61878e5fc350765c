package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteQueries = jobQueries{
	schema: `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS scheduled_jobs (
  id TEXT PRIMARY KEY,
  recipients TEXT NOT NULL,
  message_template TEXT NOT NULL,
  scheduled_time INTEGER NOT NULL,
  timezone TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  status TEXT NOT NULL CHECK(status IN ('scheduled','completed','failed')) DEFAULT 'scheduled'
);
CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_time ON scheduled_jobs(scheduled_time);
`,
	upsert: `
INSERT INTO scheduled_jobs (id,recipients,message_template,scheduled_time,timezone,created_at,status)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  recipients=excluded.recipients,
  message_template=excluded.message_template,
  scheduled_time=excluded.scheduled_time,
  timezone=excluded.timezone,
  status=excluded.status`,
	get: `
SELECT id,recipients,message_template,scheduled_time,timezone,created_at,status
FROM scheduled_jobs WHERE id=?`,
	remove: `DELETE FROM scheduled_jobs WHERE id=?`,
	list: `
SELECT id,recipients,message_template,scheduled_time,timezone,created_at,status
FROM scheduled_jobs ORDER BY scheduled_time ASC, id ASC`,
}

// OpenSQLite opens (and creates if needed) a SQLite job store at path.
func OpenSQLite(ctx context.Context, path string) (JobStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // single writer

	r := &sqlJobStore{db: db, q: sqliteQueries}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return r, nil
}
