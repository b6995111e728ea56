package mlog

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func captureHandler(t *testing.T) (*lineHandler, *os.File, func() string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	h := &lineHandler{out: w, level: slog.LevelDebug}
	return h, w, func() string {
		w.Close()
		var buf bytes.Buffer
		buf.ReadFrom(r)
		return buf.String()
	}
}

func TestLineHandlerFormatsTargetAndLevel(t *testing.T) {
	h, _, read := captureHandler(t)
	h2 := h.WithAttrs([]slog.Attr{slog.String(targetKey, "DrumBot")})

	r := slog.NewRecord(time.Time{}, slog.LevelWarn, "stealing string", 0)
	r.AddAttrs(slog.Uint64("note", 45))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := read()
	want := "[warn@DrumBot]:\nstealing string note=45\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLineHandlerDefaultsTargetWhenUnnamed(t *testing.T) {
	h, _, read := captureHandler(t)

	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "hello", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := read(); !strings.Contains(got, "@mechsync]") {
		t.Fatalf("expected default target mechsync, got %q", got)
	}
}

func TestLevelFromEnvDefaultsToInfo(t *testing.T) {
	t.Setenv("RUST_LOG", "")
	if got := levelFromEnv(); got != slog.LevelInfo {
		t.Fatalf("levelFromEnv() = %v, want info", got)
	}
}

func TestLevelFromEnvTraceMapsToDebug(t *testing.T) {
	t.Setenv("RUST_LOG", "trace")
	if got := levelFromEnv(); got != slog.LevelDebug {
		t.Fatalf("levelFromEnv() = %v, want debug", got)
	}
}

func TestNewBuildsALogger(t *testing.T) {
	t.Setenv("RUST_LOG", "debug")
	log := New()
	if log == nil {
		t.Fatalf("New() returned nil")
	}
	Named(log, "test").Info("ready")
}
