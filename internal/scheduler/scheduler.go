package scheduler

import (
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/LeventeLantos/bulk-messaging/internal/model"
)

// FireFunc runs a due job. It is called on its own goroutine.
type FireFunc func(id string, job model.Job)

// Timers maps job ids to one-shot timers. The table is a cache derived from
// the job store and is never persisted.
type Timers struct {
	clock clockwork.Clock
	fire  FireFunc

	mu      sync.Mutex
	timers  map[string]clockwork.Timer
	stopped bool
}

func New(clock clockwork.Clock, fire FireFunc) (*Timers, error) {
	if fire == nil {
		return nil, errors.New("fire func must not be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timers{
		clock:  clock,
		fire:   fire,
		timers: map[string]clockwork.Timer{},
	}, nil
}

// Arm schedules job to fire at job.ScheduledAt. An overdue job fires right
// away. It reports whether a timer was armed (false means fired now).
func (t *Timers) Arm(id string, job model.Job) bool {
	delay := job.ScheduledAt.Sub(t.clock.Now())

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		log.Warn().Str("job_id", id).Msg("timers stopped, job not armed")
		return false
	}
	if prev, ok := t.timers[id]; ok {
		prev.Stop()
		delete(t.timers, id)
	}
	if delay <= 0 {
		t.mu.Unlock()
		log.Info().Str("job_id", id).Dur("overdue", -delay).Msg("job overdue, dispatching now")
		go t.safeFire(id, job)
		return false
	}
	t.timers[id] = t.clock.AfterFunc(delay, func() { t.safeFire(id, job) })
	t.mu.Unlock()

	log.Debug().Str("job_id", id).Dur("delay", delay).Time("at", job.ScheduledAt).Msg("timer armed")
	return true
}

// Cancel stops and forgets the timer for id. Unknown ids are a no-op.
func (t *Timers) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tm, ok := t.timers[id]
	if !ok {
		return false
	}
	tm.Stop()
	delete(t.timers, id)
	return true
}

// Discard forgets the handle for id once its dispatch is done.
func (t *Timers) Discard(id string) {
	t.mu.Lock()
	delete(t.timers, id)
	t.mu.Unlock()
}

// RehydrateAll arms every loaded job. Each timer is computed from the job's
// original ScheduledAt, so jobs missed during downtime fire immediately.
func (t *Timers) RehydrateAll(jobs map[string]model.Job) (armed, overdue int) {
	for id, job := range jobs {
		if t.Arm(id, job) {
			armed++
		} else {
			overdue++
		}
	}
	return armed, overdue
}

// StopAll stops every pending timer and refuses further Arm calls. Callbacks
// already running are not interrupted. It returns the number of timers stopped.
func (t *Timers) StopAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	n := 0
	for id, tm := range t.timers {
		if tm.Stop() {
			n++
		}
		delete(t.timers, id)
	}
	return n
}

func (t *Timers) Armed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[id]
	return ok
}

func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

func (t *Timers) safeFire(id string, job model.Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job_id", id).Interface("panic", r).Msg("job dispatch panic recovered")
		}
	}()

	start := t.clock.Now()
	t.fire(id, job)
	log.Debug().Str("job_id", id).Dur("duration", t.clock.Since(start)).Msg("job fire completed")
}

