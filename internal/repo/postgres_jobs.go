package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresQueries = jobQueries{
	schema: `
CREATE TABLE IF NOT EXISTS scheduled_jobs (
  id TEXT PRIMARY KEY,
  recipients TEXT NOT NULL,
  message_template TEXT NOT NULL,
  scheduled_time BIGINT NOT NULL,
  timezone TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  status TEXT NOT NULL DEFAULT 'scheduled'
);
CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_time ON scheduled_jobs(scheduled_time);
`,
	upsert: `
INSERT INTO scheduled_jobs (id, recipients, message_template, scheduled_time, timezone, created_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    recipients = EXCLUDED.recipients,
    message_template = EXCLUDED.message_template,
    scheduled_time = EXCLUDED.scheduled_time,
    timezone = EXCLUDED.timezone,
    status = EXCLUDED.status
`,
	get: `
SELECT id, recipients, message_template, scheduled_time, timezone, created_at, status
FROM scheduled_jobs
WHERE id = $1
`,
	remove: `DELETE FROM scheduled_jobs WHERE id = $1`,
	list: `
SELECT id, recipients, message_template, scheduled_time, timezone, created_at, status
FROM scheduled_jobs
ORDER BY scheduled_time ASC, id ASC
`,
}

// OpenPostgres connects through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, url string) (JobStore, error) {
	if url == "" {
		return nil, errors.New("postgres url is required")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	r := &sqlJobStore{db: db, q: postgresQueries}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return r, nil
}
