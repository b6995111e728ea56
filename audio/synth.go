// Package audio is an external collaborator like midiio: a terminal graph
// node that renders live MIDI instead of forwarding it, backed by a
// software SoundFont synthesizer and a continuous PCM output stream.
package audio

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/anfrih/mechsync/message"
	"github.com/anfrih/mechsync/mlog"
	"github.com/anfrih/mechsync/node"
)

// SampleRate matches the rate go-meltysynth renders at elsewhere in this
// codebase's lineage (the teacher's pkg/vm/audio.MIDIStream uses the same
// constant for the same reason: it's meltysynth's own comfortable default).
const SampleRate = 44100

const (
	channelCount  = 2
	bytesPerFrame = channelCount * 2 // 16-bit stereo
)

// ErrNoSoundFont is returned by NewSynthOutput when soundFontPath is empty.
var ErrNoSoundFont = fmt.Errorf("audio: SoundFont path is required")

// SynthOutput is a terminal node (Bind is a no-op, same contract as
// node.Output) that plays every note-on/note-off it receives through an
// in-process software synthesizer instead of an OS MIDI port. It exists for
// auditioning a graph's output without a second physical or virtual
// instrument attached.
type SynthOutput struct {
	log    *slog.Logger
	synth  *meltysynth.Synthesizer
	ctx    *oto.Context
	player *oto.Player

	mu sync.Mutex
}

// NewSynthOutput loads the SoundFont at soundFontPath and opens a live
// stereo PCM stream rendered from it. The returned node's Call feeds note
// events straight into the synthesizer; a background reader continuously
// pulls rendered samples into the platform's audio output.
func NewSynthOutput(name, soundFontPath string, log *slog.Logger) (*SynthOutput, error) {
	if soundFontPath == "" {
		return nil, ErrNoSoundFont
	}

	data, err := os.ReadFile(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("audio: read SoundFont: %w", err)
	}
	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("audio: parse SoundFont: %w", err)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("audio: create synthesizer: %w", err)
	}

	s := &SynthOutput{log: mlog.Named(log, name), synth: synth}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: open output context: %w", err)
	}
	<-ready

	s.ctx = ctx
	s.player = ctx.NewPlayer(&synthReader{s: s})
	s.player.Play()

	return s, nil
}

// synthReader adapts SynthOutput's synthesizer to io.Reader, the same shape
// as the teacher's MIDIStream.Read: render float32 L/R buffers, clamp, and
// interleave into little-endian int16 stereo.
type synthReader struct {
	s *SynthOutput
}

func (r *synthReader) Read(p []byte) (int, error) {
	samples := len(p) / bytesPerFrame
	if samples == 0 {
		return 0, nil
	}

	left := make([]float32, samples)
	right := make([]float32, samples)

	r.s.mu.Lock()
	r.s.synth.Render(left, right)
	r.s.mu.Unlock()

	for i := 0; i < samples; i++ {
		l := int16(clamp(left[i]) * 32767)
		rr := int16(clamp(right[i]) * 32767)
		off := i * bytesPerFrame
		p[off] = byte(l)
		p[off+1] = byte(l >> 8)
		p[off+2] = byte(rr)
		p[off+3] = byte(rr >> 8)
	}
	return samples * bytesPerFrame, nil
}

func clamp(v float32) float32 {
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	default:
		return v
	}
}

// Call implements node.Node: note-on/off messages drive the synthesizer
// directly. Everything else is silently ignored, same as the instrument
// dispatchers upstream of it.
func (s *SynthOutput) Call(msg message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case msg.IsNoteOn():
		s.synth.NoteOn(int32(msg.Channel), int32(msg.Note), int32(msg.Velocity))
	case msg.IsNoteOff():
		s.synth.NoteOff(int32(msg.Channel), int32(msg.Note))
	default:
		s.log.Debug("ignoring non-note message", "instruction", msg.Instruction)
	}
}

// Bind is a no-op: SynthOutput is a sink, same contract as node.Output.
func (s *SynthOutput) Bind(*node.Handle) {}

// Delay is zero: rendering happens on the background output stream, never
// on the dispatch goroutine that calls Call.
func (s *SynthOutput) Delay() time.Duration { return 0 }

// Close silences every voice. The output stream is not closed: the player
// keeps pulling (now silent) samples from the synthesizer.
func (s *SynthOutput) Close() error {
	s.mu.Lock()
	s.synth.NoteOffAll(true)
	s.mu.Unlock()
	return nil
}
