package types

import "time"

// Delivery outcomes reported by the relay worker.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetried   = "retried" // delivered on the one-shot retry
	OutcomeDropped   = "dropped"
)

// Delivery describes the final outcome of one queued event.
type Delivery struct {
	Destination string        `json:"destination"`
	Outcome     string        `json:"outcome"`
	Attempts    int           `json:"attempts"`
	StatusCode  int           `json:"status_code,omitempty"`
	Error       string        `json:"error,omitempty"`
	Bytes       int           `json:"bytes"`
	Duration    time.Duration `json:"duration_ns"`
	At          time.Time     `json:"at"`
}

// Delivered reports whether the event reached the backend.
func (d Delivery) Delivered() bool {
	return d.Outcome == OutcomeDelivered || d.Outcome == OutcomeRetried
}
