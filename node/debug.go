package node

import (
	"log/slog"
	"time"

	"github.com/anfrih/mechsync/message"
	"github.com/anfrih/mechsync/mlog"
)

// Debug is a passthrough node that logs every message it sees before
// forwarding it unconditionally. It never sleeps and contributes nothing to
// end-to-end latency.
type Debug struct {
	log  *slog.Logger
	next OptChild
}

// NewDebug creates a Debug node; name becomes the logger's target field
// (see mlog's custom handler).
func NewDebug(name string, log *slog.Logger) *Debug {
	return &Debug{log: mlog.Named(log, name)}
}

func (d *Debug) Call(msg message.Message) {
	d.log.Debug("received",
		"instruction", msg.Instruction,
		"channel", msg.Channel,
		"note", msg.Note,
		"velocity", msg.Velocity,
	)
	d.next.Call(msg)
}

func (d *Debug) Bind(h *Handle)        { d.next.Bind(h) }
func (d *Debug) Delay() time.Duration { return 0 }
