package organizer

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/armastats/relay/agent/internal/relay"
)

// Status strings returned to the host.
const (
	StatusOK            = "OK"
	StatusError         = "ERROR"
	StatusMissionFailed = "-1"
)

// Metrics receives counts from the dispatcher. *metrics.Registry implements it.
type Metrics interface {
	CommandCalled(name string)
	CommandFaulted()
	EventEnqueued()
	EventRejected()
	MissionRegistered()
	MissionFailed()
}

type nopMetrics struct{}

func (nopMetrics) CommandCalled(string) {}
func (nopMetrics) CommandFaulted()      {}
func (nopMetrics) EventEnqueued()       {}
func (nopMetrics) EventRejected()       {}
func (nopMetrics) MissionRegistered()   {}
func (nopMetrics) MissionFailed()       {}

// handler runs one command. ok is false when the command has no result.
type handler func(data string) (result string, ok bool)

// Option configures an Organizer.
type Option func(*Organizer)

// WithEndpoint sets the initial backend endpoint, as if "setup" had been called.
func WithEndpoint(endpoint string) Option {
	return func(o *Organizer) {
		if endpoint != "" {
			o.sess.setEndpoint(endpoint)
		}
	}
}

// WithClock overrides the clock used to timestamp events.
func WithClock(now func() time.Time) Option {
	return func(o *Organizer) { o.now = now }
}

// WithMetrics installs the dispatcher's metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *Organizer) { o.metrics = m }
}

// WithDeadLetter hands events the worker drops to d.
func WithDeadLetter(d relay.DeadLetter) Option {
	return func(o *Organizer) { o.workerCfg.DeadLetter = d }
}

// WithObserver adds an observer of delivery outcomes.
func WithObserver(obs relay.Observer) Option {
	return func(o *Organizer) { o.workerCfg.Observers = append(o.workerCfg.Observers, obs) }
}

// WithRegisterTimeout bounds the synchronous mission registration POST.
// Zero leaves it to the transport's own timeout.
func WithRegisterTimeout(d time.Duration) Option {
	return func(o *Organizer) { o.registerTimeout = d }
}

// Organizer dispatches host commands. Calls are serialised by an internal
// mutex; the host is expected to call from one thread anyway.
type Organizer struct {
	mu       sync.Mutex
	sess     session
	commands map[string]handler

	tr              relay.Transport
	queue           *relay.Queue
	workerCfg       relay.WorkerConfig
	done            chan struct{}
	metrics         Metrics
	now             func() time.Time
	registerTimeout time.Duration
}

// New creates an Organizer posting through tr and starts its relay worker.
func New(tr relay.Transport, opts ...Option) *Organizer {
	o := &Organizer{
		tr:      tr,
		queue:   relay.NewQueue(),
		done:    make(chan struct{}),
		metrics: nopMetrics{},
		now:     time.Now,
	}
	o.commands = map[string]handler{
		"setup":   o.setup,
		"echo":    o.echo,
		"mission": o.mission,
		"event":   o.event,
	}
	for _, opt := range opts {
		opt(o)
	}

	w := relay.NewWorker(o.queue, tr, o.workerCfg)
	go func() {
		defer close(o.done)
		w.Run()
	}()
	return o
}

// Call runs the command called name with data. ok is false when there is no
// result: for "setup", for unknown commands, and when the handler faulted.
func (o *Organizer) Call(name, data string) (result string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("organizer: command panicked",
				"command", name,
				"panic", r,
				"stack", string(debug.Stack()))
			o.metrics.CommandFaulted()
			result, ok = "", false
		}
	}()

	h, found := o.commands[name]
	if !found {
		slog.Debug("organizer: ignoring unknown command", "command", name)
		return "", false
	}
	o.metrics.CommandCalled(name)
	return h(data)
}

// QueueLen returns the number of events waiting for the worker.
func (o *Organizer) QueueLen() int {
	return o.queue.Len()
}

// Endpoint returns the configured endpoint and whether one is set.
func (o *Organizer) Endpoint() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.endpoint, o.sess.hasEndpoint
}

// MissionID returns the currently registered mission id, 0 before registration.
func (o *Organizer) MissionID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.missionID
}

func (o *Organizer) setup(data string) (string, bool) {
	o.sess.setEndpoint(data)
	slog.Info("organizer: endpoint configured", "endpoint", data)
	return "", false
}

func (o *Organizer) echo(data string) (string, bool) {
	return data, true
}
