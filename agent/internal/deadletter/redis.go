package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink keeps letters in a redis list, newest at the head, trimmed to
// capacity on every write.
type RedisSink struct {
	client   *redis.Client
	key      string
	capacity int64
}

// NewRedisSink creates a RedisSink. No connection is made until the first Put.
func NewRedisSink(opts *redis.Options, key string, capacity int) *RedisSink {
	if capacity < 1 {
		capacity = 1
	}
	return &RedisSink{
		client:   redis.NewClient(opts),
		key:      key,
		capacity: int64(capacity),
	}
}

// Put pushes l onto the list and trims the list to capacity atomically.
func (r *RedisSink) Put(ctx context.Context, l Letter) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("deadletter: encode letter: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deadletter: redis push: %w", err)
	}
	return nil
}

// List returns the retained letters, oldest first.
func (r *RedisSink) List(ctx context.Context) ([]Letter, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, r.capacity-1).Result()
	if err != nil {
		return nil, fmt.Errorf("deadletter: redis range: %w", err)
	}
	out := make([]Letter, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var l Letter
		if err := json.Unmarshal([]byte(raw[i]), &l); err != nil {
			return nil, fmt.Errorf("deadletter: decode letter: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

// Close releases the redis connection pool.
func (r *RedisSink) Close() error {
	return r.client.Close()
}
