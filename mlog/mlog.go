// Package mlog builds the process-wide slog.Logger, formatting lines the
// way the prototype's tracing setup did: "[<level>@<target>]:\n<message>".
package mlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// targetKey is the slog attribute key a Named logger carries; lineHandler
// reads it back out to build the "@<target>" half of the line prefix.
const targetKey = "target"

// levelFromEnv reads RUST_LOG (kept under its original name; renaming it
// would silently break existing launch scripts for no behavioral gain) and
// maps it onto an slog.Level. Unset or unrecognized values default to info.
// "trace" has no slog level below Debug, so it maps to Debug.
func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("RUST_LOG"))) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds an *slog.Logger whose line format is
// "[<level>@<target>]:\n<message>", with <target> carried as a "target"
// attribute set by Named, mirroring the prototype's info!(target: "...", ...)
// macro calls. Level is taken from RUST_LOG, defaulting to info.
func New() *slog.Logger {
	return slog.New(&lineHandler{out: os.Stdout, level: levelFromEnv()})
}

// Named returns a child logger whose lines render target in place of
// "mechsync". Every dispatch node calls this once at construction, the same
// role the teacher's pkg/logger.InitLogger/GetLogger split plays for a
// single global logger: here each node gets its own named view instead.
func Named(log *slog.Logger, target string) *slog.Logger {
	return log.With(slog.String(targetKey, target))
}

// lineHandler is a minimal slog.Handler producing exactly
// "[<level>@<target>]:\n<message>" plus any structured attributes rendered
// as trailing "key=value" pairs — the prototype's tracing output carried
// neither timestamp nor caller, so this doesn't either.
type lineHandler struct {
	out   *os.File
	level slog.Level
	attrs []slog.Attr
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	target := "mechsync"
	var fields []slog.Attr
	for _, a := range h.attrs {
		if a.Key == targetKey {
			target = a.Value.String()
			continue
		}
		fields = append(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == targetKey {
			target = a.Value.String()
			return true
		}
		fields = append(fields, a)
		return true
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s@%s]:\n%s", levelString(r.Level), target, r.Message)
	for _, a := range fields {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value.Any())
	}
	sb.WriteByte('\n')

	_, err := h.out.WriteString(sb.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &lineHandler{out: h.out, level: h.level, attrs: next}
}

func (h *lineHandler) WithGroup(string) slog.Handler {
	return h
}

func levelString(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "debug"
	case l < slog.LevelWarn:
		return "info"
	case l < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
