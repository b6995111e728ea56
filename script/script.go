// Package script implements the optional embedded Lua transform node.
package script

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/anfrih/mechsync/message"
	"github.com/anfrih/mechsync/mlog"
	"github.com/anfrih/mechsync/node"
)

// callFn is the name of the global Lua function every script must define.
const callFn = "call"

// ScriptFailure wraps any error raised while loading or invoking a script's
// call function. Load failures are returned by New; failures inside
// Node.Call are logged and never propagated past it.
type ScriptFailure struct {
	Node string
	Err  error
}

func (f *ScriptFailure) Error() string {
	return fmt.Sprintf("script %s: %v", f.Node, f.Err)
}

func (f *ScriptFailure) Unwrap() error { return f.Err }

// Node runs a Lua transform on every message it receives: the script's
// call(instruction, channel, note, velocity) function returns a rewritten
// message plus a delay in seconds, and Node sleeps out duration+delay
// before forwarding (or drops the message on any script error).
type Node struct {
	log      *slog.Logger
	name     string
	duration time.Duration

	mu   sync.Mutex // an *lua.LState is not goroutine-safe
	ls   *lua.LState
	next node.OptChild
}

// New loads source (a path to a .lua file) and returns a Node that runs it
// once per message. duration is the script's declared base cost, the same
// role DelayNode's constant plays, and is added to whatever delay_seconds
// the script itself returns.
func New(name, source string, duration time.Duration, log *slog.Logger) (*Node, error) {
	body, err := os.ReadFile(source)
	if err != nil {
		return nil, &ScriptFailure{Node: name, Err: err}
	}

	ls := lua.NewState()
	if err := ls.DoString(string(body)); err != nil {
		ls.Close()
		return nil, &ScriptFailure{Node: name, Err: err}
	}
	if fn := ls.GetGlobal(callFn); fn.Type() != lua.LTFunction {
		ls.Close()
		return nil, &ScriptFailure{Node: name, Err: fmt.Errorf("script does not define global function %q", callFn)}
	}

	return &Node{
		log:      mlog.Named(log, name),
		name:     name,
		duration: duration,
		ls:       ls,
	}, nil
}

// Call invokes the script's call function, meters wall-clock elapsed time
// against duration+delay_seconds, sleeps out the remainder, then forwards
// the rewritten message. Any Lua error is a ScriptFailure: logged, message
// dropped, no panic escapes.
func (n *Node) Call(msg message.Message) {
	start := time.Now()

	out, delay, err := n.invoke(msg)
	if err != nil {
		n.log.Warn("script failure, dropping message", "error", err)
		return
	}

	budget := n.duration + delay
	if remaining := budget - time.Since(start); remaining > 0 {
		time.Sleep(remaining)
	}

	n.next.Call(out)
}

func (n *Node) invoke(msg message.Message) (message.Message, time.Duration, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fn := n.ls.GetGlobal(callFn)
	err := n.ls.CallByParam(lua.P{
		Fn:      fn,
		NRet:    5,
		Protect: true,
	},
		lua.LNumber(msg.Instruction),
		lua.LNumber(msg.Channel),
		lua.LNumber(msg.Note),
		lua.LNumber(msg.Velocity),
	)
	if err != nil {
		return message.Message{}, 0, &ScriptFailure{Node: n.name, Err: err}
	}
	defer n.ls.Pop(5)

	top := n.ls.GetTop()
	vals := make([]lua.LValue, 5)
	for i := range vals {
		vals[i] = n.ls.Get(top - 4 + i)
	}

	toUint8 := func(v lua.LValue) (uint8, error) {
		num, ok := v.(lua.LNumber)
		if !ok {
			return 0, fmt.Errorf("expected number, got %s", v.Type())
		}
		return uint8(num), nil
	}

	instr, err1 := toUint8(vals[0])
	ch, err2 := toUint8(vals[1])
	note, err3 := toUint8(vals[2])
	vel, err4 := toUint8(vals[3])
	delaySecs, ok := vals[4].(lua.LNumber)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || !ok {
		return message.Message{}, 0, &ScriptFailure{Node: n.name, Err: fmt.Errorf("call() returned malformed values")}
	}

	out := message.Message{Instruction: instr, Channel: ch, Note: note, Velocity: vel}
	return out, time.Duration(float64(delaySecs) * float64(time.Second)), nil
}

func (n *Node) Bind(h *node.Handle)  { n.next.Bind(h) }
func (n *Node) Delay() time.Duration { return n.duration }

// Close releases the underlying Lua state.
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ls.Close()
}
