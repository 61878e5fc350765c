package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/LeventeLantos/bulk-messaging/internal/jsonfile"
	"github.com/LeventeLantos/bulk-messaging/internal/model"
)

// FileJobStore holds jobs in memory and rewrites the whole JSON file on
// Persist. The file maps job id to model.JobRecord.
type FileJobStore struct {
	path string

	mu     sync.RWMutex
	jobs   map[string]model.Job
	closed bool
}

func NewFileJobStore(path string) *FileJobStore {
	return &FileJobStore{path: path, jobs: map[string]model.Job{}}
}

func (s *FileJobStore) LoadAll(ctx context.Context) (map[string]model.Job, error) {
	var recs map[string]model.JobRecord
	if _, err := jsonfile.Load(s.path, &recs); err != nil {
		return nil, err
	}

	jobs := make(map[string]model.Job, len(recs))
	for id, r := range recs {
		jobs[id] = r.Job(id)
	}

	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()

	return copyJobs(jobs), nil
}

func (s *FileJobStore) Put(ctx context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *FileJobStore) Get(ctx context.Context, id string) (model.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok, nil
}

func (s *FileJobStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.jobs, id)
	return nil
}

func (s *FileJobStore) List(ctx context.Context) ([]model.Job, error) {
	s.mu.RLock()
	out := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	s.mu.RUnlock()

	sortJobs(out)
	return out, nil
}

// Persist rewrites the file from the in-memory map. The write lock is held
// for the whole write so two persists never interleave.
func (s *FileJobStore) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	recs := make(map[string]model.JobRecord, len(s.jobs))
	for id, j := range s.jobs {
		recs[id] = j.Record()
	}
	return jsonfile.Save(s.path, recs)
}

func (s *FileJobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyJobs(in map[string]model.Job) map[string]model.Job {
	out := make(map[string]model.Job, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortJobs(jobs []model.Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].ScheduledAt.Equal(jobs[k].ScheduledAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].ScheduledAt.Before(jobs[k].ScheduledAt)
	})
}
