// Package activity keeps a short, newest-first record of notable events.
package activity

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/LeventeLantos/bulk-messaging/internal/model"
)

// MaxEntries bounds the log; older entries are evicted first.
const MaxEntries = 50

// Backend stores the whole log, newest first.
type Backend interface {
	Load(ctx context.Context) ([]model.ActivityEntry, error)
	Save(ctx context.Context, entries []model.ActivityEntry) error
}

type Log struct {
	backend Backend
	clock   clockwork.Clock
	max     int

	mu      sync.Mutex
	entries []model.ActivityEntry
}

func New(backend Backend, clock clockwork.Clock) *Log {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Log{backend: backend, clock: clock, max: MaxEntries}
}

// Load replaces the in-memory log with the backend's contents.
func (l *Log) Load(ctx context.Context) error {
	entries, err := l.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load activity log: %w", err)
	}
	if len(entries) > l.max {
		entries = entries[:l.max]
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	return nil
}

// Add records msg at the current time. A backend failure is logged and the
// entry is kept in memory.
func (l *Log) Add(ctx context.Context, msg string) model.ActivityEntry {
	e := model.ActivityEntry{Timestamp: l.clock.Now().UTC(), Message: msg}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]model.ActivityEntry, 0, min(len(l.entries)+1, l.max))
	next = append(next, e)
	next = append(next, l.entries...)
	if len(next) > l.max {
		next = next[:l.max]
	}
	l.entries = next

	if err := l.backend.Save(ctx, next); err != nil {
		log.Error().Err(err).Str("message", msg).Msg("failed to persist activity log")
	}
	return e
}

func (l *Log) Addf(ctx context.Context, format string, args ...any) model.ActivityEntry {
	return l.Add(ctx, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []model.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
