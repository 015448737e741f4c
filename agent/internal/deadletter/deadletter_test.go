package deadletter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/armastats/relay/agent/internal/config"
)

func letter(i int) Letter {
	return Letter{
		Destination: fmt.Sprintf("http://backend/missions/%d/events", i),
		Payload:     `{"foo":"bar"}`,
		Reason:      "transport: unexpected status 500",
		Attempts:    1,
		FailedAt:    time.Unix(int64(i), 0).UTC(),
	}
}

func TestMemorySink_KeepsOrder(t *testing.T) {
	s := NewMemorySink(5)
	for i := 0; i < 3; i++ {
		if err := s.Put(context.Background(), letter(i)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	got, _ := s.List(context.Background())
	if len(got) != 3 {
		t.Fatalf("List: got %d letters, want 3", len(got))
	}
	for i, l := range got {
		if l.Destination != letter(i).Destination {
			t.Errorf("letter[%d]: got %q", i, l.Destination)
		}
	}
}

func TestMemorySink_EvictsOldest(t *testing.T) {
	s := NewMemorySink(3)
	for i := 0; i < 5; i++ {
		_ = s.Put(context.Background(), letter(i))
	}

	got, _ := s.List(context.Background())
	if len(got) != 3 {
		t.Fatalf("List: got %d letters, want 3", len(got))
	}
	for i, want := range []int{2, 3, 4} {
		if got[i].Destination != letter(want).Destination {
			t.Errorf("letter[%d]: got %q, want %q", i, got[i].Destination, letter(want).Destination)
		}
	}
	if s.Evicted() != 2 {
		t.Errorf("Evicted: got %d, want 2", s.Evicted())
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DeadLetterConfig
		wantNil bool
		wantErr bool
	}{
		{"none", config.DeadLetterConfig{Backend: "none"}, true, false},
		{"empty", config.DeadLetterConfig{}, true, false},
		{"memory", config.DeadLetterConfig{Backend: "memory", Capacity: 10}, false, false},
		{"redis", config.DeadLetterConfig{Backend: "redis", Capacity: 10, RedisAddr: "127.0.0.1:6379", Key: "k"}, false, false},
		{"unknown", config.DeadLetterConfig{Backend: "kafka"}, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("New: err = %v, wantErr %v", err, tc.wantErr)
			}
			if (s == nil) != tc.wantNil {
				t.Fatalf("New: sink = %v, wantNil %v", s, tc.wantNil)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}

func TestRedisSink_UnreachableServer(t *testing.T) {
	s := NewRedisSink(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	}, "relay:test", 10)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Put(ctx, letter(1)); err == nil {
		t.Fatal("Put against unreachable redis: expected error")
	}
}
