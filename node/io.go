package node

import (
	"log/slog"
	"time"

	"github.com/anfrih/mechsync/message"
	"github.com/anfrih/mechsync/midiio"
	"github.com/anfrih/mechsync/mlog"
)

// Input is the graph's entry point: an OS virtual MIDI input plus the
// single outgoing edge its callback fans out through. Call from inside the
// graph is a documented no-op — Inputs are sources, never sinks.
type Input struct {
	log  *slog.Logger
	conn *midiio.VirtualInput
	next *OptChild
}

// NewInput registers a virtual MIDI input named name and wires its byte
// callback to spawn a fresh goroutine per frame that calls through child,
// so the platform MIDI thread never blocks on downstream sleeps.
func NewInput(name string, log *slog.Logger) (*Input, error) {
	named := mlog.Named(log, name)
	in := &Input{log: named, next: &OptChild{}}

	conn, err := midiio.OpenVirtualInput(name, func(frame midiio.RawFrame) {
		msg, err := message.FromBytes(frame.Data)
		if err != nil {
			named.Warn("dropping malformed frame", "error", err)
			return
		}
		go in.next.Call(msg)
	})
	if err != nil {
		return nil, err
	}
	in.conn = conn
	return in, nil
}

// Call is a no-op: Input is a source and is never dispatched to from
// within the graph.
func (in *Input) Call(message.Message) {}

func (in *Input) Bind(h *Handle)       { in.next.Bind(h) }
func (in *Input) Delay() time.Duration { return 0 }

// Close tears down the OS connection first, which stops the callback before
// anything else can observe a half-torn-down Input.
func (in *Input) Close() error {
	return in.conn.Close()
}

// Output is the graph's terminal node: serializes to 3 bytes and sends to
// an OS virtual MIDI output. Bind is a documented no-op — nothing follows
// an Output.
type Output struct {
	log  *slog.Logger
	conn *midiio.VirtualOutput
}

// NewOutput opens a virtual MIDI output named name.
func NewOutput(name string, log *slog.Logger) (*Output, error) {
	conn, err := midiio.OpenVirtualOutput(name)
	if err != nil {
		return nil, err
	}
	return &Output{log: mlog.Named(log, name), conn: conn}, nil
}

func (o *Output) Call(msg message.Message) {
	if err := o.conn.Send(msg.Bytes()); err != nil {
		o.log.Warn("send failed, dropping message", "error", err)
	}
}

// Bind is a no-op: Output has no downstream edge.
func (o *Output) Bind(*Handle)         {}
func (o *Output) Delay() time.Duration { return 0 }

// Close closes the OS connection.
func (o *Output) Close() error {
	return o.conn.Close()
}
