package activity

import (
	"context"

	"github.com/LeventeLantos/bulk-messaging/internal/jsonfile"
	"github.com/LeventeLantos/bulk-messaging/internal/model"
)

// FileBackend keeps the log as a JSON array of {timestamp, message}.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Load(ctx context.Context) ([]model.ActivityEntry, error) {
	var recs []model.ActivityRecord
	if _, err := jsonfile.Load(b.path, &recs); err != nil {
		return nil, err
	}
	out := make([]model.ActivityEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Entry())
	}
	return out, nil
}

func (b *FileBackend) Save(ctx context.Context, entries []model.ActivityEntry) error {
	recs := make([]model.ActivityRecord, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, e.Record())
	}
	return jsonfile.Save(b.path, recs)
}
