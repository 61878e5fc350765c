package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/LeventeLantos/bulk-messaging/internal/model"
)

// PaceInterval is the minimum gap between two sends of the same job. The
// transport rate-limits bursts, so this is not an optimisation knob.
const PaceInterval = time.Second

// Placeholder is replaced by each recipient's name.
const Placeholder = "{name}"

// Delivery is the messaging transport.
type Delivery interface {
	Send(ctx context.Context, destination, text string) (messageID string, err error)
	Connected() bool
}

// Pacer blocks until the next send may start.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Dispatcher sends one template to a recipient list, strictly in order.
type Dispatcher struct {
	client   Delivery
	newPacer func() Pacer

	onSent func(ctx context.Context, jobID string, r model.Recipient, messageID string) error
}

func NewDispatcher(client Delivery) *Dispatcher {
	return &Dispatcher{
		client:   client,
		newPacer: intervalPacer(PaceInterval),
	}
}

// WithPacer replaces the per-run pacer factory.
func (d *Dispatcher) WithPacer(newPacer func() Pacer) *Dispatcher {
	d.newPacer = newPacer
	return d
}

func (d *Dispatcher) WithHooks(
	onSent func(ctx context.Context, jobID string, r model.Recipient, messageID string) error,
) *Dispatcher {
	d.onSent = onSent
	return d
}

// Deliver renders and sends the template to every recipient. A failed send
// is recorded and the loop moves on to the next recipient.
func (d *Dispatcher) Deliver(ctx context.Context, jobID string, recipients []model.Recipient, template string) ([]model.SendResult, model.Summary) {
	pacer := d.newPacer()
	results := make([]model.SendResult, 0, len(recipients))
	sum := model.Summary{Total: len(recipients)}

	for _, r := range recipients {
		res := model.SendResult{Name: r.Name, Number: r.Number}

		if err := pacer.Wait(ctx); err != nil {
			res.Status = model.ResultError
			res.Error = err.Error()
			sum.Failed++
			results = append(results, res)
			continue
		}

		remoteID, err := d.client.Send(ctx, r.Number, Render(template, r.Name))
		if err != nil {
			res.Status = model.ResultError
			res.Error = err.Error()
			sum.Failed++
			log.Warn().Err(err).Str("job_id", jobID).Str("number", r.Number).Msg("message send failed")
			results = append(results, res)
			continue
		}

		res.Status = model.ResultSuccess
		res.MessageID = remoteID
		sum.Success++
		results = append(results, res)

		if d.onSent != nil {
			if err := d.onSent(ctx, jobID, r, remoteID); err != nil {
				log.Debug().Err(err).Str("job_id", jobID).Msg("sent hook failed")
			}
		}
	}
	return results, sum
}

// Render substitutes every occurrence of the placeholder with name.
func Render(template, name string) string {
	return strings.ReplaceAll(template, Placeholder, name)
}

// intervalPacer builds a fresh limiter per run: the first send goes out at
// once and each following send waits for the interval.
func intervalPacer(interval time.Duration) func() Pacer {
	return func() Pacer {
		return rate.NewLimiter(rate.Every(interval), 1)
	}
}
