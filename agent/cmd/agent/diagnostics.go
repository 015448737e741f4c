package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/armastats/relay/agent/internal/deadletter"
	"github.com/armastats/relay/agent/internal/metrics"
	"github.com/armastats/relay/agent/internal/tap"
)

// deadLetterListTimeout bounds one read of the dead-letter sink.
const deadLetterListTimeout = 5 * time.Second

// deadLetterLister is the read side of a dead-letter sink.
type deadLetterLister interface {
	List(ctx context.Context) ([]deadletter.Letter, error)
}

// newDiagnosticsMux mounts /metrics, /ws/tap and /healthz, plus /deadletters
// when dead is non-nil.
func newDiagnosticsMux(reg *metrics.Registry, hub *tap.Hub, dead deadLetterLister) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.Handle("/ws/tap", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if dead != nil {
		mux.Handle("/deadletters", deadLettersHandler(dead))
	}
	return mux
}

// deadLettersHandler serves the retained letters as a JSON array, oldest
// first. Ring sinks also report how many letters they evicted.
func deadLettersHandler(dead deadLetterLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), deadLetterListTimeout)
		defer cancel()

		letters, err := dead.List(ctx)
		if err != nil {
			slog.Error("diagnostics: list dead letters", "err", err)
			http.Error(w, "dead-letter sink unavailable", http.StatusBadGateway)
			return
		}
		if letters == nil {
			letters = []deadletter.Letter{}
		}
		w.Header().Set("Content-Type", "application/json")
		if ev, ok := dead.(interface{ Evicted() int }); ok {
			w.Header().Set("X-Dead-Letters-Evicted", strconv.Itoa(ev.Evicted()))
		}
		if err := json.NewEncoder(w).Encode(letters); err != nil {
			slog.Warn("diagnostics: write dead letters", "err", err)
		}
	}
}

// startDiagnostics serves the diagnostics mux on addr. It returns nil when
// addr is empty.
func startDiagnostics(addr string, reg *metrics.Registry, hub *tap.Hub, dead deadLetterLister) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newDiagnosticsMux(reg, hub, dead),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("diagnostics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("diagnostics server stopped", "err", err)
		}
	}()
	return srv
}
