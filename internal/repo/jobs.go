package repo

import (
	"context"
	"errors"

	"github.com/LeventeLantos/bulk-messaging/internal/model"
)

var ErrClosed = errors.New("job store closed")

// JobStore is the durable id -> job mapping. It is the single source of
// truth for pending jobs; timers are derived from it at startup.
//
// Persist must be called after every mutation. Backends that write through
// on Put/Remove implement it as a no-op.
type JobStore interface {
	LoadAll(ctx context.Context) (map[string]model.Job, error)
	Put(ctx context.Context, job model.Job) error
	Get(ctx context.Context, id string) (model.Job, bool, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Job, error)
	Persist(ctx context.Context) error
	Close() error
}
