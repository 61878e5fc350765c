package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/LeventeLantos/bulk-messaging/internal/activity"
	"github.com/LeventeLantos/bulk-messaging/internal/cache"
	"github.com/LeventeLantos/bulk-messaging/internal/civiltime"
	"github.com/LeventeLantos/bulk-messaging/internal/model"
	"github.com/LeventeLantos/bulk-messaging/internal/repo"
	"github.com/LeventeLantos/bulk-messaging/internal/scheduler"
)

// Messenger owns the process-wide scheduling state: the job store, the
// activity log, the timer table and the per-job locks. Create it once at
// startup and call Start before serving requests.
type Messenger struct {
	store      repo.JobStore
	activity   *activity.Log
	client     Delivery
	dispatcher *Dispatcher
	timers     *scheduler.Timers
	clock      clockwork.Clock
	locks      *keyLock

	// dispatches outlive the request that armed them
	baseCtx context.Context

	runMu    sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

type Option func(*options)

type options struct {
	clock    clockwork.Clock
	newPacer func() Pacer
	receipts cache.ReceiptCache
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithPacer(newPacer func() Pacer) Option {
	return func(o *options) { o.newPacer = newPacer }
}

// WithReceiptCache records the transport message id of every successful send.
func WithReceiptCache(c cache.ReceiptCache) Option {
	return func(o *options) { o.receipts = c }
}

func New(store repo.JobStore, activityLog *activity.Log, client Delivery, opts ...Option) (*Messenger, error) {
	if store == nil || activityLog == nil || client == nil {
		return nil, errors.New("store, activity log and client are required")
	}
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	d := NewDispatcher(client)
	if o.newPacer != nil {
		d.WithPacer(o.newPacer)
	}
	if o.receipts != nil {
		receipts, clock := o.receipts, o.clock
		d.WithHooks(func(ctx context.Context, jobID string, r model.Recipient, messageID string) error {
			return receipts.StoreSent(ctx, jobID, r.Number, messageID, clock.Now())
		})
	}

	m := &Messenger{
		store:      store,
		activity:   activityLog,
		client:     client,
		dispatcher: d,
		clock:      o.clock,
		locks:      newKeyLock(),
		baseCtx:    context.Background(),
	}
	timers, err := scheduler.New(o.clock, m.dispatch)
	if err != nil {
		return nil, err
	}
	m.timers = timers
	return m, nil
}

// Start loads the activity log and the job store and re-arms a timer for
// every stored job. Jobs whose instant passed while the process was down
// are dispatched immediately.
func (m *Messenger) Start(ctx context.Context) error {
	if err := m.activity.Load(ctx); err != nil {
		log.Error().Err(err).Msg("starting with an empty activity log")
	}

	jobs, err := m.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled jobs: %w", err)
	}

	armed, overdue := m.timers.RehydrateAll(jobs)
	log.Info().Int("armed", armed).Int("overdue", overdue).Msg("scheduled jobs restored")
	if n := armed + overdue; n > 0 {
		m.activity.Addf(ctx, "Restored %d scheduled job(s)", n)
	}
	return nil
}

type ScheduleRequest struct {
	Recipients    []model.Recipient
	Template      string
	ScheduledTime string // civil time, see civiltime.Resolve
	Timezone      string
}

// Schedule validates req, persists a new job and arms its timer.
func (m *Messenger) Schedule(ctx context.Context, req ScheduleRequest) (model.Job, error) {
	recipients, err := normalizeRecipients(req.Recipients)
	if err != nil {
		return model.Job{}, err
	}
	template, err := normalizeTemplate(req.Template)
	if err != nil {
		return model.Job{}, err
	}
	if strings.TrimSpace(req.ScheduledTime) == "" {
		return model.Job{}, invalid("scheduledTime", "scheduled time is required")
	}
	at, err := civiltime.Resolve(req.ScheduledTime)
	if err != nil {
		return model.Job{}, &ValidationError{Field: "scheduledTime", Msg: "invalid scheduled time format", Err: err}
	}
	now := m.clock.Now()
	if !at.After(now) {
		return model.Job{}, invalid("scheduledTime", "scheduled time must be in the future")
	}

	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = model.DefaultTimezone
	}
	job := model.Job{
		ID:          newJobID(now),
		Recipients:  recipients,
		Template:    template,
		ScheduledAt: at,
		Timezone:    tz,
		CreatedAt:   now.UTC(),
		Status:      model.Scheduled,
	}

	if !m.begin() {
		return model.Job{}, ErrStopped
	}
	defer m.inflight.Done()

	unlock := m.locks.Lock(job.ID)
	defer unlock()

	if err := m.store.Put(ctx, job); err != nil {
		return model.Job{}, fmt.Errorf("store job: %w", err)
	}
	m.persist(ctx)
	m.timers.Arm(job.ID, job)

	log.Info().Str("job_id", job.ID).Int("recipients", len(recipients)).Time("at", at).Msg("job scheduled")
	m.activity.Addf(ctx, "Message scheduled for %d recipient(s) at %s", len(recipients), at.Format(time.RFC3339))
	return job, nil
}

// Cancel removes a pending job. A cancel that arrives while the job is
// being dispatched waits for the dispatch and then reports ErrNotFound.
func (m *Messenger) Cancel(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	_, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	m.timers.Cancel(id)
	if err := m.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	m.persist(ctx)

	log.Info().Str("job_id", id).Msg("job cancelled")
	m.activity.Addf(ctx, "Scheduled job cancelled: %s", id)
	return nil
}

func (m *Messenger) ListScheduled(ctx context.Context) ([]model.ScheduledView, error) {
	jobs, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ScheduledView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.View())
	}
	return out, nil
}

type SendReport struct {
	Results []model.SendResult `json:"results"`
	Summary model.Summary      `json:"summary"`
}

// SendNow delivers to every recipient right away, with the same pacing as
// a scheduled dispatch. It keeps going if the caller goes away.
func (m *Messenger) SendNow(ctx context.Context, recipients []model.Recipient, template string) (SendReport, error) {
	recipients, err := normalizeRecipients(recipients)
	if err != nil {
		return SendReport{}, err
	}
	template, err = normalizeTemplate(template)
	if err != nil {
		return SendReport{}, err
	}
	if !m.client.Connected() {
		return SendReport{}, ErrTransportUnavailable
	}
	if !m.begin() {
		return SendReport{}, ErrStopped
	}
	defer m.inflight.Done()

	ctx = context.WithoutCancel(ctx)
	batchID := "now-" + newJobID(m.clock.Now())
	results, sum := m.dispatcher.Deliver(ctx, batchID, recipients, template)

	log.Info().Int("total", sum.Total).Int("success", sum.Success).Int("failed", sum.Failed).Str("batch_id", batchID).Msg("bulk send finished")
	m.activity.Addf(ctx, "Bulk send completed: %d/%d messages sent successfully.", sum.Success, sum.Total)
	return SendReport{Results: results, Summary: sum}, nil
}

func (m *Messenger) Logs() []model.ActivityEntry {
	return m.activity.Entries()
}

type Status struct {
	Connected bool `json:"connected"`
	Pending   int  `json:"pending"`
	Armed     int  `json:"armed"`
}

func (m *Messenger) Status(ctx context.Context) (Status, error) {
	jobs, err := m.store.List(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Connected: m.client.Connected(), Pending: len(jobs), Armed: m.timers.Len()}, nil
}

// dispatch runs a due job. The stored copy wins over the one captured by
// the timer; if it is gone the job was cancelled in the meantime.
func (m *Messenger) dispatch(id string, _ model.Job) {
	if !m.begin() {
		log.Warn().Str("job_id", id).Msg("shutting down, job left for the next start")
		return
	}
	defer m.inflight.Done()

	ctx := m.baseCtx
	unlock := m.locks.Lock(id)
	defer unlock()

	job, ok, err := m.store.Get(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("failed to read job at fire time")
		return
	}
	if !ok {
		log.Debug().Str("job_id", id).Msg("job no longer scheduled, skipping")
		m.timers.Discard(id)
		return
	}

	// Not retried or re-armed. The job stays stored and is picked up again
	// on the next restart.
	if !m.client.Connected() {
		log.Warn().Str("job_id", id).Msg("messaging client not connected, scheduled job skipped")
		m.activity.Addf(ctx, "Scheduled job %s skipped: messaging client not connected.", id)
		m.timers.Discard(id)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.markFailed(ctx, job, fmt.Sprint(r))
		}
	}()

	start := m.clock.Now()
	_, sum := m.dispatcher.Deliver(ctx, id, job.Recipients, job.Template)
	m.activity.Addf(ctx, "Scheduled job completed: %d/%d messages sent successfully.", sum.Success, sum.Total)

	job.Status = model.Completed
	if err := m.store.Remove(ctx, id); err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("failed to remove completed job")
	}
	m.persist(ctx)
	m.timers.Discard(id)

	log.Info().
		Str("job_id", id).
		Str("status", string(job.Status)).
		Int("total", sum.Total).
		Int("success", sum.Success).
		Int("failed", sum.Failed).
		Dur("duration", m.clock.Since(start)).
		Msg("scheduled job dispatched")
}

// Stop disarms every pending timer and waits for dispatches and immediate
// sends already running to finish. Jobs not yet due stay in the store and are
// rehydrated on the next Start. It returns ctx.Err() if ctx expires first.
func (m *Messenger) Stop(ctx context.Context) error {
	m.runMu.Lock()
	m.stopped = true
	m.runMu.Unlock()

	disarmed := m.timers.StopAll()
	log.Info().Int("disarmed", disarmed).Msg("messenger stopping, waiting for running dispatches")

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("messenger stopped")
		return nil
	case <-ctx.Done():
		log.Error().Err(ctx.Err()).Msg("messenger stop timed out with dispatches still running")
		return ctx.Err()
	}
}

// begin registers a unit of work unless Stop has been called.
func (m *Messenger) begin() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.stopped {
		return false
	}
	m.inflight.Add(1)
	return true
}

func (m *Messenger) markFailed(ctx context.Context, job model.Job, reason string) {
	job.Status = model.Failed
	log.Error().Str("job_id", job.ID).Str("reason", reason).Msg("scheduled job failed")
	if err := m.store.Put(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to record job failure")
	}
	m.persist(ctx)
	m.timers.Discard(job.ID)
	m.activity.Addf(ctx, "Scheduled job failed: %s", reason)
}

// persist flushes the store. Failures are logged and the in-memory state is
// kept, so memory may run ahead of disk until the next successful persist.
func (m *Messenger) persist(ctx context.Context) {
	if err := m.store.Persist(ctx); err != nil {
		log.Error().Err(err).Msg("failed to persist scheduled jobs")
	}
}

func newJobID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func normalizeRecipients(in []model.Recipient) ([]model.Recipient, error) {
	if len(in) == 0 {
		return nil, invalid("recipients", "recipients are required")
	}
	out := make([]model.Recipient, 0, len(in))
	for i, r := range in {
		number := strings.TrimSpace(r.Number)
		if number == "" {
			return nil, invalid("recipients", fmt.Sprintf("recipient %d has no number", i+1))
		}
		out = append(out, model.Recipient{
			Name:   norm.NFC.String(strings.TrimSpace(r.Name)),
			Number: number,
		})
	}
	return out, nil
}

func normalizeTemplate(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", invalid("messageTemplate", "message template is required")
	}
	return norm.NFC.String(s), nil
}
