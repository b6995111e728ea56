package config

import "github.com/anfrih/mechsync/node"

// Graph is the live, built node topology: every declared node by name,
// already bound to its declared next. Out-degree is at most 1 per node,
// edges are the weak pointers inside each node's own OptChild — Graph
// itself holds the only strong references (node.Handle values), matching
// the "Graph owns, edges are weak" resource model.
type Graph map[string]*node.Handle

// Closer is implemented by nodes that hold an OS resource (virtual MIDI
// ports, a Lua state) that must be released on shutdown.
type Closer interface {
	Close() error
}
