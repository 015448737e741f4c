package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/armastats/relay/agent/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseLevel(tc.raw)
			if err != nil {
				t.Fatalf("ParseLevel(%q): %v", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud): expected error")
	}
}

func TestSetup_WritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	cfg := config.Default().Log
	cfg.File = path

	logger, _, closer, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	logger.Info("relay: hello", "mission", 7)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"relay: hello"`) {
		t.Errorf("log file missing JSON record: %s", data)
	}
}

func TestSetup_LevelVarIsLive(t *testing.T) {
	cfg := config.Default().Log
	cfg.Level = "error"

	logger, level, closer, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer closer.Close()

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at error level")
	}
	level.Set(slog.LevelDebug)
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after LevelVar change")
	}
}

func TestSetup_UnknownFormat(t *testing.T) {
	cfg := config.Default().Log
	cfg.Format = "xml"
	if _, _, _, err := Setup(cfg); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
