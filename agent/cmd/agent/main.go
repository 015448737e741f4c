package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armastats/relay/agent/internal/config"
	"github.com/armastats/relay/agent/internal/deadletter"
	"github.com/armastats/relay/agent/internal/logging"
	"github.com/armastats/relay/agent/internal/metrics"
	"github.com/armastats/relay/agent/internal/organizer"
	"github.com/armastats/relay/agent/internal/tap"
	"github.com/armastats/relay/agent/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file (.yaml or .toml); empty uses defaults")
	drainTimeout := flag.Duration("drain-timeout", 10*time.Second, "how long to wait for queued events on shutdown")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, level, logOut, err := logging.Setup(cfg.Log)
	if err != nil {
		slog.Error("failed to configure logging", "err", err)
		os.Exit(1)
	}
	defer logOut.Close()
	slog.SetDefault(logger)

	slog.Info("relay agent starting",
		"config", *configPath,
		"endpoint", cfg.Relay.Endpoint,
		"auth_mode", cfg.Relay.Auth.Mode,
		"dead_letter", cfg.Relay.DeadLetter.Backend,
		"diagnostics", cfg.Diagnostics.ListenAddr,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tr, err := transport.New(cfg.Relay)
	if err != nil {
		slog.Error("failed to build transport", "err", err)
		os.Exit(1)
	}

	dead, err := deadletter.New(cfg.Relay.DeadLetter)
	if err != nil {
		slog.Error("failed to build dead-letter sink", "err", err)
		os.Exit(1)
	}

	reg := metrics.New()
	hub := tap.New()

	opts := []organizer.Option{
		organizer.WithEndpoint(cfg.Relay.Endpoint),
		organizer.WithMetrics(reg),
		organizer.WithObserver(reg),
		organizer.WithObserver(hub),
	}
	if dead != nil {
		opts = append(opts, organizer.WithDeadLetter(dead))
	}
	org := organizer.New(tr, opts...)
	reg.SetQueueDepthFunc(org.QueueLen)

	// Hot reload only adjusts verbosity; transport and sinks keep their
	// startup settings.
	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
				lvl, err := logging.ParseLevel(updated.Log.Level)
				if err != nil {
					slog.Warn("config: ignoring log level", "err", err)
					return
				}
				level.Set(lvl)
				slog.Info("log level updated", "level", lvl.String())
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	diag := startDiagnostics(cfg.Diagnostics.ListenAddr, reg, hub, dead)

	serveHost(ctx, os.Stdin, os.Stdout, org, cfg.Host.OutputSize)

	slog.Info("relay agent shutting down", "queued", org.QueueLen())

	drainCtx, drainCancel := context.WithTimeout(context.Background(), *drainTimeout)
	defer drainCancel()
	if err := org.Shutdown(drainCtx); err != nil {
		slog.Warn("relay worker did not drain in time",
			"queued", org.QueueLen(), "err", err)
	}

	hub.Close()
	if diag != nil {
		diag.Shutdown(drainCtx) //nolint:errcheck
	}
	if dead != nil {
		if err := dead.Close(); err != nil {
			slog.Warn("dead-letter sink close failed", "err", err)
		}
	}
	slog.Info("relay agent stopped")
}
