package script

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anfrih/mechsync/message"
	"github.com/anfrih/mechsync/node"
)

type recordingNode struct {
	calls []message.Message
}

func (r *recordingNode) Call(msg message.Message) { r.calls = append(r.calls, msg) }
func (r *recordingNode) Bind(*node.Handle)         {}
func (r *recordingNode) Delay() time.Duration      { return 0 }

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "transform.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writeScript: %v", err)
	}
	return path
}

func TestScriptedNodeTransposesNote(t *testing.T) {
	path := writeScript(t, `
function call(instruction, channel, note, velocity)
  return instruction, channel, note + 12, velocity, 0
end
`)
	n, err := New("fx", path, 10*time.Millisecond, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()

	target := &recordingNode{}
	n.Bind(node.NewHandle(target))

	n.Call(message.Message{Instruction: message.InstructionNoteOn, Note: 40, Velocity: 90})

	if len(target.calls) != 1 {
		t.Fatalf("expected 1 forwarded message, got %d", len(target.calls))
	}
	if got := target.calls[0].Note; got != 52 {
		t.Fatalf("forwarded note = %d, want 52", got)
	}
}

func TestScriptedNodeMetersDelay(t *testing.T) {
	path := writeScript(t, `
function call(instruction, channel, note, velocity)
  return instruction, channel, note, velocity, 0.03
end
`)
	n, err := New("fx", path, 0, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()

	target := &recordingNode{}
	n.Bind(node.NewHandle(target))

	start := time.Now()
	n.Call(message.Message{Instruction: message.InstructionNoteOn, Note: 40, Velocity: 90})
	elapsed := time.Since(start)

	if elapsed < 25*time.Millisecond {
		t.Fatalf("elapsed %v, want >= ~30ms budget", elapsed)
	}
}

func TestScriptedNodeMissingCallFunctionFailsToLoad(t *testing.T) {
	path := writeScript(t, `x = 1`)
	_, err := New("fx", path, 0, slog.New(slog.DiscardHandler))
	if err == nil {
		t.Fatalf("expected New to fail for script without call()")
	}
}

func TestScriptedNodeRuntimeErrorDropsMessage(t *testing.T) {
	path := writeScript(t, `
function call(instruction, channel, note, velocity)
  error("boom")
end
`)
	n, err := New("fx", path, 0, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()

	target := &recordingNode{}
	n.Bind(node.NewHandle(target))

	n.Call(message.Message{Instruction: message.InstructionNoteOn, Note: 40, Velocity: 90})

	if len(target.calls) != 0 {
		t.Fatalf("expected message to be dropped on script error, got %+v", target.calls)
	}
}

func TestScriptedNodeDelayIsDuration(t *testing.T) {
	path := writeScript(t, `
function call(instruction, channel, note, velocity)
  return instruction, channel, note, velocity, 0
end
`)
	n, err := New("fx", path, 77*time.Millisecond, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()

	if n.Delay() != 77*time.Millisecond {
		t.Fatalf("Delay() = %v, want 77ms", n.Delay())
	}
}
