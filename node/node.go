// Package node defines the graph's polymorphic processing element and the
// weak-edge forwarding primitive every node chains through.
package node

import (
	"sync"
	"time"
	"weak"

	"github.com/anfrih/mechsync/message"
)

// Node is the capability set every graph element implements. Delay is read
// at graph-build time (for delay propagation) and by the introspection
// console, never per message; it must not be expensive or stateful.
type Node interface {
	Call(msg message.Message)
	Bind(child *Handle)
	Delay() time.Duration
}

// Handle is the Graph's strong, heap-stable box around one Node. Every edge
// in the graph holds only a weak.Pointer[Handle], never a Handle directly,
// so a Handle with no remaining strong owner (normally the Graph is its only
// one) can be collected and edges into it quietly go missing rather than
// keep it alive. This is the
// Go-native analogue of the prototype's Weak<dyn Node>.
type Handle struct {
	Node Node
}

// NewHandle boxes n for insertion into a Graph.
func NewHandle(n Node) *Handle {
	return &Handle{Node: n}
}

// OptChild is a mutable, interior-synchronized slot holding at most one weak
// edge to a child node. A zero-value OptChild has no child and is a legal,
// inert sink.
type OptChild struct {
	mu    sync.RWMutex
	child weak.Pointer[Handle]
}

// Bind installs h as the child, overwriting any previous edge. Safe for
// concurrent use with Call.
func (c *OptChild) Bind(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.child = weak.Make(h)
}

// Call forwards msg to the child if it is still alive. The read lock is
// held only long enough to copy the weak pointer; the downstream Call runs
// outside any lock so a slow/sleeping child never serializes siblings or
// blocks a future Bind.
func (c *OptChild) Call(msg message.Message) {
	c.mu.RLock()
	wp := c.child
	c.mu.RUnlock()

	if h := wp.Value(); h != nil {
		h.Node.Call(msg)
	}
}
