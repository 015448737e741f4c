package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/armastats/relay/pkg/types"
)

// Metric names exposed by the registry.
const (
	CommandsTotal           = "relay_commands_total"
	CommandFaultsTotal      = "relay_command_faults_total"
	EventsEnqueuedTotal     = "relay_events_enqueued_total"
	EventsRejectedTotal     = "relay_events_rejected_total"
	DeliveriesTotal         = "relay_deliveries_total"
	MissionsRegisteredTotal = "relay_missions_registered_total"
	MissionFailuresTotal    = "relay_mission_failures_total"
	QueueDepth              = "relay_queue_depth"
)

// Registry holds the relay's collectors on a private prometheus registry, so
// several instances (one per test) never collide on the global one.
type Registry struct {
	reg *prometheus.Registry

	commands   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	faults     prometheus.Counter
	enqueued   prometheus.Counter
	rejected   prometheus.Counter
	registered prometheus.Counter
	failedReg  prometheus.Counter

	depthOnce sync.Once
	mu        sync.Mutex
	depth     func() int
}

// New creates a Registry with every relay collector registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: CommandsTotal,
			Help: "Commands dispatched, by command name.",
		}, []string{"command"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: DeliveriesTotal,
			Help: "Queued events consumed by the worker, by result.",
		}, []string{"result"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: CommandFaultsTotal,
			Help: "Faults caught at the dispatch boundary.",
		}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: EventsEnqueuedTotal,
			Help: "Events accepted onto the relay queue.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: EventsRejectedTotal,
			Help: "Events rejected before enqueue.",
		}),
		registered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MissionsRegisteredTotal,
			Help: "Successful mission registrations.",
		}),
		failedReg: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MissionFailuresTotal,
			Help: "Failed mission registrations.",
		}),
	}
	r.reg.MustRegister(
		r.commands, r.deliveries,
		r.faults, r.enqueued, r.rejected, r.registered, r.failedReg,
	)
	return r
}

// CommandCalled counts one dispatched command.
func (r *Registry) CommandCalled(name string) {
	r.commands.WithLabelValues(name).Inc()
}

// CommandFaulted counts one fault caught at the dispatch boundary.
func (r *Registry) CommandFaulted() { r.faults.Inc() }

// EventEnqueued counts one event accepted onto the queue.
func (r *Registry) EventEnqueued() { r.enqueued.Inc() }

// EventRejected counts one event refused before enqueue.
func (r *Registry) EventRejected() { r.rejected.Inc() }

// MissionRegistered counts one successful mission registration.
func (r *Registry) MissionRegistered() { r.registered.Inc() }

// MissionFailed counts one failed mission registration.
func (r *Registry) MissionFailed() { r.failedReg.Inc() }

// SetQueueDepthFunc installs the source of the queue depth gauge. The gauge is
// registered on the first call; later calls only swap the source.
func (r *Registry) SetQueueDepthFunc(f func() int) {
	r.mu.Lock()
	r.depth = f
	r.mu.Unlock()

	r.depthOnce.Do(func() {
		r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: QueueDepth,
			Help: "Events waiting for the relay worker.",
		}, r.queueDepth))
	})
}

func (r *Registry) queueDepth() float64 {
	r.mu.Lock()
	f := r.depth
	r.mu.Unlock()
	if f == nil {
		return 0
	}
	return float64(f())
}

// Observe counts a delivery outcome reported by the relay worker.
func (r *Registry) Observe(d types.Delivery) {
	r.deliveries.WithLabelValues(d.Outcome).Inc()
}

// Gather returns the current values as metric families sorted by name.
// Labeled families with no observations yet are omitted.
func (r *Registry) Gather() []*dto.MetricFamily {
	mfs, err := r.reg.Gather()
	if err != nil {
		slog.Error("metrics: gather failed", "err", err)
	}
	return mfs
}

// WriteText encodes the current values in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	for _, mf := range r.Gather() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the registry at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
