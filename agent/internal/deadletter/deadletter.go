// Package deadletter keeps events the relay worker gave up on.
//
// Both sinks are bounded: MemorySink is a ring that evicts the oldest letter
// when full, RedisSink pushes onto a list and trims it to capacity. Neither
// retries or replays. The agent's diagnostics listener serves List at
// /deadletters.
package deadletter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/armastats/relay/agent/internal/config"
)

// Letter is one dropped event together with why it was dropped.
type Letter struct {
	Destination string    `json:"destination"`
	Payload     string    `json:"payload"`
	Reason      string    `json:"reason"`
	Attempts    int       `json:"attempts"`
	FailedAt    time.Time `json:"failed_at"`
}

// Sink stores dropped letters.
type Sink interface {
	Put(ctx context.Context, l Letter) error
	List(ctx context.Context) ([]Letter, error)
	Close() error
}

// New returns the sink selected by cfg, or nil when dead-lettering is off.
func New(cfg config.DeadLetterConfig) (Sink, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemorySink(cfg.Capacity), nil
	case "redis":
		return NewRedisSink(&redis.Options{Addr: cfg.RedisAddr}, cfg.Key, cfg.Capacity), nil
	default:
		return nil, fmt.Errorf("deadletter: unknown backend %q", cfg.Backend)
	}
}

// MemorySink is a fixed-capacity ring of letters, oldest evicted first.
type MemorySink struct {
	mu      sync.Mutex
	buf     []Letter
	start   int
	n       int
	evicted int
}

// NewMemorySink creates a MemorySink holding at most capacity letters.
func NewMemorySink(capacity int) *MemorySink {
	if capacity < 1 {
		capacity = 1
	}
	return &MemorySink{buf: make([]Letter, capacity)}
}

// Put stores l, evicting the oldest letter when the ring is full.
func (m *MemorySink) Put(_ context.Context, l Letter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n == len(m.buf) {
		m.buf[m.start] = l
		m.start = (m.start + 1) % len(m.buf)
		m.evicted++
		return nil
	}
	m.buf[(m.start+m.n)%len(m.buf)] = l
	m.n++
	return nil
}

// List returns the retained letters, oldest first.
func (m *MemorySink) List(_ context.Context) ([]Letter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Letter, m.n)
	for i := 0; i < m.n; i++ {
		out[i] = m.buf[(m.start+i)%len(m.buf)]
	}
	return out, nil
}

// Evicted returns how many letters were pushed out by newer ones.
func (m *MemorySink) Evicted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}

// Close is a no-op.
func (m *MemorySink) Close() error { return nil }
