package organizer

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/armastats/relay/agent/internal/relay"
)

// timestampField is set on every event at enqueue time, replacing any value
// the caller supplied.
const timestampField = "timestamp"

// event stamps a JSON object, renders its destination and queues it for the
// worker. It never waits for delivery.
func (o *Organizer) event(data string) (string, bool) {
	reject := func(msg string, args ...any) (string, bool) {
		slog.Warn("organizer: event rejected: "+msg, args...)
		o.metrics.EventRejected()
		return StatusError, true
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return reject("not a json object", "err", err)
	}
	if fields == nil {
		return reject("not a json object", "err", "null")
	}

	ts, err := json.Marshal(o.now().UTC().Format(time.RFC3339))
	if err != nil {
		return reject("encode timestamp", "err", err)
	}
	fields[timestampField] = ts

	payload, err := json.Marshal(fields)
	if err != nil {
		return reject("encode event", "err", err)
	}

	if !o.sess.hasEndpoint {
		return reject("no endpoint configured")
	}

	it := relay.Item{Destination: o.sess.eventsURL(), Payload: payload}
	if err := o.queue.Push(it); err != nil {
		return reject("queue unavailable", "err", err)
	}
	o.metrics.EventEnqueued()
	return StatusOK, true
}
