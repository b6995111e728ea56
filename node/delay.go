package node

import (
	"time"

	"github.com/anfrih/mechsync/message"
)

// Delay sleeps for a fixed duration, then forwards unchanged. Whether that
// duration is a straight increment or the resolved remainder of an
// "is_total" absolute delay is decided entirely at graph-build time in the
// config package; by the time a Delay node exists, duration is just a
// number of nanoseconds to sleep.
type Delay struct {
	duration time.Duration
	next     OptChild
}

// NewDelay creates a Delay node that sleeps for duration before forwarding.
func NewDelay(duration time.Duration) *Delay {
	return &Delay{duration: duration}
}

func (d *Delay) Call(msg message.Message) {
	time.Sleep(d.duration)
	d.next.Call(msg)
}

func (d *Delay) Bind(h *Handle)       { d.next.Bind(h) }
func (d *Delay) Delay() time.Duration { return d.duration }
