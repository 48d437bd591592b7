package core

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestClockFuncNilFallsBackToUTCNow(t *testing.T) {
	var clock ClockFunc
	now := clock.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", now.Location())
	}
	if since := time.Since(now); since < 0 || since > time.Minute {
		t.Fatalf("expected roughly current time, got %v", now)
	}
}

func TestClockFuncNormalizesToUTC(t *testing.T) {
	zone := time.FixedZone("CEST", 2*60*60)
	fixed := time.Date(2024, 5, 20, 12, 30, 0, 0, zone)
	clock := ClockFunc(func() time.Time { return fixed })

	got := clock.Now()
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
	if !got.Equal(fixed) {
		t.Fatalf("normalization must not shift the instant: %v vs %v", got, fixed)
	}
}

func TestNewSlogLoggerRoutesLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Debug("debug line", "k", "v")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line", "error", "boom")

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "debug line", "k=v", "level=INFO", "level=WARN", "level=ERROR", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestNewSlogLoggerNilUsesDefault(t *testing.T) {
	logger := NewSlogLogger(nil)
	if logger == nil {
		t.Fatalf("expected logger")
	}
	logger.Debug("discarded by default level")
}
