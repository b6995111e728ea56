package node

import (
	"testing"
	"time"

	"github.com/anfrih/mechsync/message"
)

func TestDelaySleepsThenForwards(t *testing.T) {
	d := NewDelay(20 * time.Millisecond)
	target := &recordingNode{}
	d.Bind(NewHandle(target))

	msg := message.Message{Note: 60, Velocity: 100, Instruction: message.InstructionNoteOn}
	start := time.Now()
	d.Call(msg)
	elapsed := time.Since(start)

	if elapsed < 20*time.Millisecond {
		t.Fatalf("Call returned after %v, want >= 20ms", elapsed)
	}
	if len(target.calls) != 1 || target.calls[0] != msg {
		t.Fatalf("expected forwarded message, got %+v", target.calls)
	}
	if d.Delay() != 20*time.Millisecond {
		t.Fatalf("Delay() = %v, want 20ms", d.Delay())
	}
}

func TestDebugForwardsUnconditionally(t *testing.T) {
	log := testLogger()
	d := NewDebug("probe", log)
	target := &recordingNode{}
	d.Bind(NewHandle(target))

	msg := message.Message{Note: 1}
	d.Call(msg)

	if len(target.calls) != 1 {
		t.Fatalf("expected message forwarded, got %+v", target.calls)
	}
	if d.Delay() != 0 {
		t.Fatalf("Debug.Delay() should be 0, got %v", d.Delay())
	}
}
