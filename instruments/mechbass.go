// Package instruments holds the two stateful per-instrument dispatchers:
// MechBass (fretted-string panning model) and DrumBot (LRU arm assignment).
package instruments

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/anfrih/mechsync/message"
	"github.com/anfrih/mechsync/mlog"
	"github.com/anfrih/mechsync/node"
)

// Equal-temperament panning-time model constants, per the canonical reading
// of the prototype's several conflicting MechBass variants (spec.md §9 Open
// Question): pre-sleep equals MaxPan - panTime(dist), note-off waits for
// the same pan-sleep as its note-on, and the forwarded channel is the
// assigned string index.
const (
	temperament = 12.0
	linearComp  = 0.515936
	expComp     = 0.515920
	quadComp    = 0.125675

	// Frets is the number of playable frets per string (including the open
	// string), so a string plays notes in [tuning, tuning+Frets).
	Frets = 13
)

// Tuning is the open-string MIDI note for each of the 4 strings, low to
// high index but high to low pitch (string 0 is the highest open note).
var Tuning = [4]uint8{43, 38, 33, 28}

// noteDistance is the absolute difference of equal-temperament string
// ratios between two fret offsets from the nut.
func noteDistance(a, b int) float64 {
	aRatio := math.Pow(2, -float64(a)/temperament)
	bRatio := math.Pow(2, -float64(b)/temperament)
	return math.Abs(aRatio - bRatio)
}

// panTime converts a fret-distance into a panning duration in seconds.
func panTime(dist float64) float64 {
	return linearComp*math.Pow(dist, expComp) + quadComp*dist*dist
}

// MaxPan is the longest possible pan on a string: traveling the full fret
// board. Every dispatched note is padded so its total latency equals this,
// regardless of how far the carriage actually has to travel.
var MaxPan = time.Duration(panTime(noteDistance(0, Frets)) * float64(time.Second))

type stringState struct {
	mu       sync.RWMutex
	playing  bool
	note     uint8
	panSleep time.Duration
	deadline time.Time // ts + panSleep, the instant this string's carriage settles
}

func (s *stringState) snapshot() (playing bool, note uint8, panSleep time.Duration, deadline time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing, s.note, s.panSleep, s.deadline
}

func (s *stringState) setPlaying(note uint8, panSleep time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	s.note = note
	s.panSleep = panSleep
	s.deadline = now.Add(panSleep)
}

func (s *stringState) clearPlaying(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.deadline = now.Add(s.panSleep)
}

// MechBass is the 4-string bass dispatcher. Each string's state is guarded
// by its own lock; dispatch reads a snapshot, computes outside any lock,
// then commits with a brief exclusive lock — never across the eventual
// sleep.
type MechBass struct {
	log     *slog.Logger
	strings [4]*stringState
	next    node.OptChild
}

// NewMechBass constructs a MechBass with all 4 strings initially silent.
func NewMechBass(log *slog.Logger) *MechBass {
	b := &MechBass{log: mlog.Named(log, "MechBass")}
	for i := range b.strings {
		b.strings[i] = &stringState{note: Tuning[i]}
	}
	return b
}

// panningDelay computes the sleep needed so that this note's onset on
// channel lands exactly MaxPan after dispatch began, regardless of how far
// the carriage must travel from its previous note.
func (b *MechBass) panningDelay(note uint8, channel int) time.Duration {
	_, prevNote, _, _ := b.strings[channel].snapshot()
	prevOffset := int(prevNote) - int(Tuning[channel])
	curOffset := int(note) - int(Tuning[channel])
	dist := noteDistance(prevOffset, curOffset)
	sleep := MaxPan - time.Duration(panTime(dist)*float64(time.Second))
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

// dispatchChannel picks a string for note per spec.md §4.5:
//  1. candidates = strings whose open range covers note
//  2. sorted by panning-sleep descending (closest string first)
//  3. first free candidate whose previous deadline is no later than the
//     end of this note's pan-sleep
//  4. otherwise steal any string with Tuning[s] <= note, logging a warning
func (b *MechBass) dispatchChannel(note uint8) (int, time.Duration) {
	now := time.Now()

	type candidate struct {
		idx      int
		panSleep time.Duration
	}
	var candidates []candidate
	for s := 0; s < 4; s++ {
		if Tuning[s] <= note && note < Tuning[s]+Frets {
			candidates = append(candidates, candidate{idx: s, panSleep: b.panningDelay(note, s)})
		}
	}
	// Descending pan-sleep == ascending pan distance == closest string first.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].panSleep > candidates[j-1].panSleep; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	for _, c := range candidates {
		playing, _, _, deadline := b.strings[c.idx].snapshot()
		if !playing && !deadline.After(now.Add(c.panSleep)) {
			return c.idx, c.panSleep
		}
	}

	// No free candidate: steal any string whose tuning is low enough,
	// regardless of fret-range upper bound (matches the prototype's
	// fallback loop).
	for s := 0; s < 4; s++ {
		if Tuning[s] <= note {
			_, victimNote, _, _ := b.strings[s].snapshot()
			delay := b.panningDelay(note, s)
			b.log.Warn("stealing string",
				"victim_note", victimNote,
				"note", note,
				"string", s,
			)
			return s, delay
		}
	}

	// Unreachable for any note >= Tuning[3], which covers the full MIDI
	// range above the lowest open string; fall back to string 0 to stay
	// total.
	return 0, b.panningDelay(note, 0)
}

// findPlaying returns the unique string currently playing note, if any.
func (b *MechBass) findPlaying(note uint8) (int, time.Duration, bool) {
	for s := 0; s < 4; s++ {
		playing, playingNote, panSleep, _ := b.strings[s].snapshot()
		if playing && playingNote == note {
			return s, panSleep, true
		}
	}
	return 0, 0, false
}

// Call implements Node. Non note-on/off messages are ignored.
func (b *MechBass) Call(msg message.Message) {
	now := time.Now()

	var channel int
	var panSleep time.Duration

	if msg.IsNoteOn() {
		channel, panSleep = b.dispatchChannel(msg.Note)
		b.strings[channel].setPlaying(msg.Note, panSleep, now)
		b.log.Debug("downbeat", "note", msg.Note, "string", channel)
	} else if msg.IsNoteOff() {
		ch, delay, found := b.findPlaying(msg.Note)
		if !found {
			b.log.Warn("note-off without matching note-on", "note", msg.Note)
			return
		}
		channel, panSleep = ch, delay
		b.strings[channel].clearPlaying(now)
		b.log.Debug("release", "note", msg.Note, "string", channel)
	} else {
		return
	}

	time.Sleep(panSleep)

	out := msg.WithChannel(uint8(channel))
	b.next.Call(out)
}

func (b *MechBass) Bind(h *node.Handle) { b.next.Bind(h) }
func (b *MechBass) Delay() time.Duration { return MaxPan }

// StringState is a point-in-time, read-only snapshot for introspection
// (the console package).
type StringState struct {
	String   int
	Playing  bool
	Note     uint8
	PanSleep time.Duration
}

// Snapshot returns the current state of all 4 strings.
func (b *MechBass) Snapshot() [4]StringState {
	var out [4]StringState
	for i, s := range b.strings {
		playing, note, panSleep, _ := s.snapshot()
		out[i] = StringState{String: i, Playing: playing, Note: note, PanSleep: panSleep}
	}
	return out
}
