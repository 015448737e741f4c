package relay

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/armastats/relay/agent/internal/deadletter"
	"github.com/armastats/relay/agent/internal/transport"
	"github.com/armastats/relay/pkg/types"
)

// deadLetterTimeout bounds a single write to the dead-letter sink.
const deadLetterTimeout = 5 * time.Second

// Transport is the POST capability the worker delivers through.
type Transport interface {
	Post(ctx context.Context, url string, body []byte) (*transport.Response, error)
}

// DeadLetter receives items the worker gave up on.
type DeadLetter interface {
	Put(ctx context.Context, l deadletter.Letter) error
}

// Observer is told the outcome of every item the worker consumes.
// Observe is called from the worker goroutine and must not block.
type Observer interface {
	Observe(d types.Delivery)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(types.Delivery)

// Observe calls f(d).
func (f ObserverFunc) Observe(d types.Delivery) { f(d) }

// WorkerConfig holds the optional collaborators of a Worker.
type WorkerConfig struct {
	DeadLetter DeadLetter
	Observers  []Observer
	Now        func() time.Time // injectable for deterministic tests
}

// Worker drains a Queue, posting each item through a Transport.
type Worker struct {
	q    *Queue
	tr   Transport
	dead DeadLetter
	obs  []Observer
	now  func() time.Time
}

// NewWorker creates a Worker consuming q. Call Run in its own goroutine.
func NewWorker(q *Queue, tr Transport, cfg WorkerConfig) *Worker {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{q: q, tr: tr, dead: cfg.DeadLetter, obs: cfg.Observers, now: now}
}

// Run consumes items until the queue is closed and drained. Items pushed
// before Close are always delivery-attempted before Run returns.
func (w *Worker) Run() {
	slog.Debug("relay: worker started")
	for {
		it, ok := w.q.Pop()
		if !ok {
			slog.Info("relay: queue drained, worker stopping")
			return
		}
		w.safeDeliver(it)
	}
}

// safeDeliver keeps the consume loop alive when delivery code panics; the
// item is dropped.
func (w *Worker) safeDeliver(it Item) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("relay: delivery panicked, dropping event",
				"destination", it.Destination,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	w.deliver(it)
}

// deliver posts it once, retrying immediately a single time when the first
// attempt failed on a stale connection.
func (w *Worker) deliver(it Item) {
	start := w.now()
	resp, err := w.tr.Post(context.Background(), it.Destination, it.Payload)
	attempts := 1
	if err != nil && transport.IsStale(err) {
		slog.Debug("relay: stale connection, retrying once",
			"destination", it.Destination, "err", err)
		attempts++
		resp, err = w.tr.Post(context.Background(), it.Destination, it.Payload)
	}

	d := types.Delivery{
		Destination: it.Destination,
		Attempts:    attempts,
		Bytes:       len(it.Payload),
		At:          w.now(),
	}
	d.Duration = d.At.Sub(start)

	switch {
	case err == nil:
		d.Outcome = types.OutcomeDelivered
		if attempts > 1 {
			d.Outcome = types.OutcomeRetried
		}
		if resp != nil {
			d.StatusCode = resp.StatusCode
		}
		slog.Debug("relay: event delivered",
			"destination", it.Destination, "attempts", attempts)
	default:
		d.Outcome = types.OutcomeDropped
		d.Error = err.Error()
		logArgs := []any{"destination", it.Destination, "attempts", attempts, "err", err}
		var se *transport.StatusError
		if errors.As(err, &se) {
			d.StatusCode = se.StatusCode
			logArgs = append(logArgs, "body", se.Snippet(transport.SnippetSize))
		}
		slog.Warn("relay: delivery failed, dropping event", logArgs...)
		w.deadLetter(it, d)
	}

	w.notify(d)
}

func (w *Worker) deadLetter(it Item, d types.Delivery) {
	if w.dead == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deadLetterTimeout)
	defer cancel()

	l := deadletter.Letter{
		Destination: it.Destination,
		Payload:     string(it.Payload),
		Reason:      d.Error,
		Attempts:    d.Attempts,
		FailedAt:    d.At,
	}
	if err := w.dead.Put(ctx, l); err != nil {
		slog.Error("relay: dead-letter write failed",
			"destination", it.Destination, "err", err)
	}
}

func (w *Worker) notify(d types.Delivery) {
	for _, o := range w.obs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("relay: observer panicked", "panic", r)
				}
			}()
			o.Observe(d)
		}()
	}
}
