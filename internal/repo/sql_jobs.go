package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeventeLantos/bulk-messaging/internal/model"
)

type jobQueries struct {
	schema string
	upsert string
	get    string
	remove string
	list   string
}

// sqlJobStore writes through on every Put/Remove, so Persist has nothing
// left to do.
type sqlJobStore struct {
	db *sql.DB
	q  jobQueries
}

func (r *sqlJobStore) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, r.q.schema)
	return err
}

func (r *sqlJobStore) LoadAll(ctx context.Context) (map[string]model.Job, error) {
	jobs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Job, len(jobs))
	for _, j := range jobs {
		out[j.ID] = j
	}
	return out, nil
}

func (r *sqlJobStore) Put(ctx context.Context, job model.Job) error {
	rec := job.Record()
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.q.upsert,
		job.ID, string(recipients), rec.MessageTemplate, rec.ScheduledTime, rec.Timezone, rec.CreatedAt, string(rec.Status),
	)
	return err
}

func (r *sqlJobStore) Get(ctx context.Context, id string) (model.Job, bool, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, r.q.get, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, false, nil
	}
	if err != nil {
		return model.Job{}, false, err
	}
	return j, true, nil
}

func (r *sqlJobStore) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.q.remove, id)
	return err
}

func (r *sqlJobStore) List(ctx context.Context) ([]model.Job, error) {
	rows, err := r.db.QueryContext(ctx, r.q.list)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *sqlJobStore) Persist(ctx context.Context) error { return nil }

func (r *sqlJobStore) Close() error { return r.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.Job, error) {
	var (
		id         string
		recipients string
		status     string
		rec        model.JobRecord
	)
	if err := row.Scan(&id, &recipients, &rec.MessageTemplate, &rec.ScheduledTime, &rec.Timezone, &rec.CreatedAt, &status); err != nil {
		return model.Job{}, err
	}
	if err := json.Unmarshal([]byte(recipients), &rec.Recipients); err != nil {
		return model.Job{}, fmt.Errorf("job %s: decode recipients: %w", id, err)
	}
	rec.Status = model.Status(status)
	return rec.Job(id), nil
}
