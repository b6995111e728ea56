package console

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/anfrih/mechsync/config"
	"github.com/anfrih/mechsync/instruments"
	"github.com/anfrih/mechsync/node"
)

func testGraph() config.Graph {
	return config.Graph{
		"bass":  node.NewHandle(instruments.NewMechBass(slog.New(slog.DiscardHandler))),
		"align": node.NewHandle(node.NewDelay(250 * time.Millisecond)),
	}
}

func TestHandlerNodesListsSortedNames(t *testing.T) {
	h := New(testGraph())
	var sb strings.Builder
	if err := h.ProcessCommand(&sb, "nodes"); err != nil {
		t.Fatalf("ProcessCommand: %v", err)
	}
	if got := sb.String(); got != "align\nbass\n" {
		t.Fatalf("nodes output = %q, want sorted align,bass", got)
	}
}

func TestHandlerShowMechBass(t *testing.T) {
	h := New(testGraph())
	var sb strings.Builder
	if err := h.ProcessCommand(&sb, "show bass"); err != nil {
		t.Fatalf("ProcessCommand: %v", err)
	}
	if !strings.Contains(sb.String(), "string 0:") {
		t.Fatalf("expected per-string output, got %q", sb.String())
	}
}

func TestHandlerShowDelay(t *testing.T) {
	h := New(testGraph())
	var sb strings.Builder
	if err := h.ProcessCommand(&sb, "show align"); err != nil {
		t.Fatalf("ProcessCommand: %v", err)
	}
	if !strings.Contains(sb.String(), "250ms") {
		t.Fatalf("expected delay output to mention 250ms, got %q", sb.String())
	}
}

func TestHandlerShowUnknownNode(t *testing.T) {
	h := New(testGraph())
	var sb strings.Builder
	if err := h.ProcessCommand(&sb, "show nope"); err == nil {
		t.Fatalf("expected error for unknown node")
	}
}

func TestHandlerUnknownCommand(t *testing.T) {
	h := New(testGraph())
	var sb strings.Builder
	if err := h.ProcessCommand(&sb, "frobnicate"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestHandlerEmptyLineIsNoOp(t *testing.T) {
	h := New(testGraph())
	var sb strings.Builder
	if err := h.ProcessCommand(&sb, "   "); err != nil {
		t.Fatalf("ProcessCommand on blank line: %v", err)
	}
	if sb.String() != "" {
		t.Fatalf("expected no output for blank line, got %q", sb.String())
	}
}
