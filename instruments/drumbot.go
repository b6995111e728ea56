package instruments

import (
	"log/slog"
	"sync"
	"time"

	"github.com/anfrih/mechsync/message"
	"github.com/anfrih/mechsync/mlog"
	"github.com/anfrih/mechsync/node"
)

// DrumbotDelay is DrumBot's declared Delay(): it never sleeps internally,
// but downstream DelayNodes must absorb this much alignment time, so graph
// builds that chain a DelayNode after a DrumBot see it in the delay
// accumulator.
const DrumbotDelay = 2 * time.Second

// KickNote is the fixed outgoing note for the kick range (incoming 35 or
// 36), which bypasses arm assignment entirely.
const KickNote = 36

// NotePair maps one incoming note to one outgoing note for a single arm.
type NotePair struct {
	In, Out uint8
}

type arm struct {
	mu         sync.RWMutex
	mapping    []NotePair // immutable after construction
	played     bool       // false until this arm has ever been claimed
	lastPlayed uint8
	ts         time.Time
}

func newArm(mapping []NotePair) *arm {
	return &arm{mapping: mapping}
}

// get returns the outgoing note mapped from key, if this arm covers it.
func (a *arm) get(key uint8) (uint8, bool) {
	for _, p := range a.mapping {
		if p.In == key {
			return p.Out, true
		}
	}
	return 0, false
}

// sticky reports whether this arm last played note and is thus the
// preferred arm to play it again.
func (a *arm) sticky(note uint8) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.played && a.lastPlayed == note
}

func (a *arm) snapshot() (played bool, lastPlayed uint8, ts time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.played, a.lastPlayed, a.ts
}

// claim marks this arm as the one that just played note, refreshing its
// LRU timestamp whether this is a fresh assignment or a sticky repeat.
func (a *arm) claim(note uint8, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.played = true
	a.lastPlayed = note
	a.ts = now
}

// DrumBot is the multi-arm drum dispatcher. Arms are sticky: a repeated
// note reuses whichever arm last played it; a new note goes to the
// least-recently-used arm capable of playing it.
type DrumBot struct {
	log  *slog.Logger
	arms []*arm
	next node.OptChild
}

// NewDrumBot constructs a DrumBot with one arm per mapping list.
func NewDrumBot(mappings [][]NotePair, log *slog.Logger) *DrumBot {
	d := &DrumBot{log: mlog.Named(log, "DrumBot")}
	for _, m := range mappings {
		d.arms = append(d.arms, newArm(m))
	}
	return d
}

func (d *DrumBot) Call(msg message.Message) {
	if !msg.IsNoteOn() {
		return
	}

	if msg.Note == 35 || msg.Note == 36 {
		d.log.Debug("kick")
		d.next.Call(msg.WithNote(KickNote))
		return
	}

	// Sticky reuse: an arm already sitting on this note plays it again,
	// and doing so refreshes its LRU timestamp like any other claim.
	for i, a := range d.arms {
		if a.sticky(msg.Note) {
			if out, ok := a.get(msg.Note); ok {
				a.claim(msg.Note, time.Now())
				d.log.Debug("sticky arm", "note", msg.Note, "arm", i)
				d.next.Call(msg.WithNote(out))
				return
			}
		}
	}

	// Otherwise, the least-recently-used capable arm. Arms never yet
	// claimed sort before any claimed arm, oldest unclaimed first.
	type candidate struct {
		idx    int
		a      *arm
		played bool
		ts     time.Time
	}
	var candidates []candidate
	for i, a := range d.arms {
		if _, ok := a.get(msg.Note); ok {
			played, _, ts := a.snapshot()
			candidates = append(candidates, candidate{idx: i, a: a, played: played, ts: ts})
		}
	}
	if len(candidates) > 0 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			switch {
			case best.played && !c.played:
				best = c
			case best.played == c.played && c.ts.Before(best.ts):
				best = c
			}
		}
		now := time.Now()
		best.a.claim(msg.Note, now)
		out, _ := best.a.get(msg.Note)
		d.log.Debug("lru arm", "note", msg.Note, "arm", best.idx)
		d.next.Call(msg.WithNote(out))
		return
	}

	d.log.Warn("no arm can play note, passing through", "note", msg.Note)
	d.next.Call(msg)
}

func (d *DrumBot) Bind(h *node.Handle)  { d.next.Bind(h) }
func (d *DrumBot) Delay() time.Duration { return DrumbotDelay }

// ArmState is a point-in-time snapshot for introspection.
type ArmState struct {
	Arm        int
	Played     bool
	LastPlayed uint8
	Ts         time.Time
	Mapping    []NotePair
}

// Snapshot returns the current state of every arm.
func (d *DrumBot) Snapshot() []ArmState {
	out := make([]ArmState, len(d.arms))
	for i, a := range d.arms {
		played, last, ts := a.snapshot()
		out[i] = ArmState{Arm: i, Played: played, LastPlayed: last, Ts: ts, Mapping: a.mapping}
	}
	return out
}
