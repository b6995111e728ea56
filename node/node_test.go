package node

import (
	"runtime"
	"testing"
	"time"

	"github.com/anfrih/mechsync/message"
)

type recordingNode struct {
	calls []message.Message
}

func (r *recordingNode) Call(msg message.Message) { r.calls = append(r.calls, msg) }
func (r *recordingNode) Bind(*Handle)              {}
func (r *recordingNode) Delay() time.Duration      { return 0 }

func TestOptChildMissingIsLegal(t *testing.T) {
	var c OptChild
	// Should return cleanly, no panic, no-op.
	c.Call(message.Message{Note: 60})
}

func TestOptChildForwards(t *testing.T) {
	var c OptChild
	target := &recordingNode{}
	h := NewHandle(target)
	c.Bind(h)

	msg := message.Message{Instruction: message.InstructionNoteOn, Note: 60, Velocity: 100}
	c.Call(msg)

	if len(target.calls) != 1 || target.calls[0] != msg {
		t.Fatalf("expected message to be forwarded, got %+v", target.calls)
	}
}

func TestOptChildExpiredEdgeDropsSilently(t *testing.T) {
	// Simulates S6: a child whose strong owner has gone away (no one but the
	// edge held it). Call must return cleanly without panicking.
	var c OptChild
	func() {
		h := NewHandle(&recordingNode{})
		c.Bind(h)
		// h goes out of scope here with no other strong reference.
	}()

	// Force a GC cycle so the weak pointer has a chance to clear. This is a
	// best-effort nudge — weak.Pointer.Value() is documented as eventually
	// observing collection, and the call path must be crash-free regardless
	// of whether the target has actually been collected yet.
	runtime.GC()
	runtime.GC()

	c.Call(message.Message{Note: 1})
}

func TestOptChildRebind(t *testing.T) {
	var c OptChild
	first := &recordingNode{}
	second := &recordingNode{}
	c.Bind(NewHandle(first))
	c.Bind(NewHandle(second))

	c.Call(message.Message{Note: 5})

	if len(first.calls) != 0 {
		t.Fatalf("first child should not have been called after rebind, got %+v", first.calls)
	}
	if len(second.calls) != 1 {
		t.Fatalf("second child should have received the message, got %+v", second.calls)
	}
}
