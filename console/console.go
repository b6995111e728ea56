// Package console is a read-only live-graph introspection REPL: it never
// mutates topology, only reads per-node state under the same brief
// read-locks the dispatch path itself takes.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/anfrih/mechsync/config"
	"github.com/anfrih/mechsync/instruments"
	"github.com/anfrih/mechsync/node"
)

// IsTerminal reports whether stdin is a TTY, the same detection the CLI
// uses to decide whether to offer an interactive console at all.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// Handler answers console commands against a built graph. It holds no
// lock of its own: every command reads through to the node's own
// synchronized snapshot accessors.
type Handler struct {
	graph config.Graph
}

// New creates a Handler bound to a live graph.
func New(graph config.Graph) *Handler {
	return &Handler{graph: graph}
}

// ProcessCommand parses and executes a single command line, writing its
// output to w.
func (h *Handler) ProcessCommand(w io.Writer, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "nodes":
		return h.handleNodes(w, parts)
	case "show":
		return h.handleShow(w, parts)
	case "help":
		return h.handleHelp(w, parts)
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (h *Handler) handleNodes(w io.Writer, parts []string) error {
	if len(parts) != 1 {
		return fmt.Errorf("usage: nodes")
	}
	names := make([]string, 0, len(h.graph))
	for name := range h.graph {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

func (h *Handler) handleShow(w io.Writer, parts []string) error {
	if len(parts) != 2 {
		return fmt.Errorf("usage: show <name>")
	}
	name := parts[1]
	handle, ok := h.graph[name]
	if !ok {
		return fmt.Errorf("no such node: %s", name)
	}

	switch n := handle.Node.(type) {
	case *instruments.MechBass:
		for _, s := range n.Snapshot() {
			fmt.Fprintf(w, "string %d: playing=%v note=%d pan_sleep=%v\n", s.String, s.Playing, s.Note, s.PanSleep)
		}
	case *instruments.DrumBot:
		for _, a := range n.Snapshot() {
			fmt.Fprintf(w, "arm %d: played=%v last_played=%d ts=%v\n", a.Arm, a.Played, a.LastPlayed, a.Ts)
		}
	case *node.Delay:
		fmt.Fprintf(w, "delay: %v\n", n.Delay())
	default:
		fmt.Fprintf(w, "%s: %T (delay=%v)\n", name, handle.Node, handle.Node.Delay())
	}
	return nil
}

func (h *Handler) handleHelp(w io.Writer, parts []string) error {
	fmt.Fprint(w, `Available commands:
  nodes          List every node name in the graph
  show <name>    Dump a node's current state
  help           Show this help message
  quit           Exit the console
`)
	return nil
}

// ReadLoop runs an interactive line-reading session against in until "quit"
// or EOF. It is meant to be started on its own goroutine alongside the
// dispatch graph.
func (h *Handler) ReadLoop(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "mechsync> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(strings.ToLower(line)) == "quit" {
			return nil
		}
		if err := h.ProcessCommand(out, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}
