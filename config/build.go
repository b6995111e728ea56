package config

import (
	"log/slog"
	"time"

	"github.com/anfrih/mechsync/audio"
	"github.com/anfrih/mechsync/instruments"
	"github.com/anfrih/mechsync/node"
	"github.com/anfrih/mechsync/script"
)

// Build runs the two-pass graph construction: pass 1 instantiates every
// node in declaration order, propagating the delay accumulator as it
// goes; pass 2 binds each node to its declared next. Specs must declare
// parents before children — the builder never reorders them.
func Build(doc Document, log *slog.Logger) (Graph, []Closer, error) {
	graph := make(Graph, len(doc))
	delays := make(map[string]time.Duration, len(doc))
	var closers []Closer

	for i := range doc {
		spec := doc[i]
		if spec.Name == "" {
			return nil, nil, configErr("", "entry %d: missing required field %q", i, "name")
		}
		if _, dup := graph[spec.Name]; dup {
			return nil, nil, configErr(spec.Name, "duplicate node name")
		}

		accumulated := delays[spec.Name]

		n, closer, err := instantiate(spec, accumulated, log)
		if err != nil {
			return nil, nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}

		graph[spec.Name] = node.NewHandle(n)

		if spec.Next != "" {
			total := accumulated + n.Delay()
			if cur, ok := delays[spec.Next]; !ok || total > cur {
				delays[spec.Next] = total
			}
		}
	}

	for i := range doc {
		spec := doc[i]
		if spec.Next == "" {
			continue
		}
		child, ok := graph[spec.Next]
		if !ok {
			return nil, nil, configErr(spec.Name, "unknown next target %q", spec.Next)
		}
		graph[spec.Name].Node.Bind(child)
	}

	return graph, closers, nil
}

// instantiate builds the concrete node.Node for one spec. accumulated is
// the upstream delay that has already reached this node, per the pass-1
// accumulator — only DelayNode's is_total mode reads it.
func instantiate(spec NodeSpec, accumulated time.Duration, log *slog.Logger) (node.Node, Closer, error) {
	switch spec.Type {
	case "Input":
		in, err := node.NewInput(spec.Name, log)
		if err != nil {
			return nil, nil, configErr(spec.Name, "open input: %w", err)
		}
		return in, in, nil

	case "Output":
		out, err := node.NewOutput(spec.Name, log)
		if err != nil {
			return nil, nil, configErr(spec.Name, "open output: %w", err)
		}
		return out, out, nil

	case "MechBass":
		return instruments.NewMechBass(log), nil, nil

	case "DrumBot":
		f, err := spec.decodeArmsFields()
		if err != nil {
			return nil, nil, configErr(spec.Name, "decode arms: %w", err)
		}
		mappings := make([][]instruments.NotePair, len(f.Arms))
		for i, arm := range f.Arms {
			pairs := make([]instruments.NotePair, len(arm))
			for j, pair := range arm {
				pairs[j] = instruments.NotePair{In: pair[0], Out: pair[1]}
			}
			mappings[i] = pairs
		}
		return instruments.NewDrumBot(mappings, log), nil, nil

	case "DebugNode":
		return node.NewDebug(spec.Name, log), nil, nil

	case "SynthOutput":
		f, err := spec.decodeSynthFields()
		if err != nil {
			return nil, nil, configErr(spec.Name, "decode soundfont field: %w", err)
		}
		if f.SoundFont == "" {
			return nil, nil, configErr(spec.Name, "missing required field %q", "soundfont")
		}
		sout, err := audio.NewSynthOutput(spec.Name, f.SoundFont, log)
		if err != nil {
			return nil, nil, configErr(spec.Name, "open synth output: %w", err)
		}
		return sout, sout, nil

	case "DelayNode":
		f, err := spec.decodeDelayFields()
		if err != nil {
			return nil, nil, configErr(spec.Name, "decode duration: %w", err)
		}
		duration := f.durationDur()
		if f.IsTotal {
			effective := duration - accumulated
			if effective < 0 {
				return nil, nil, configErr(spec.Name, "previous duration longer than total")
			}
			duration = effective
		}
		return node.NewDelay(duration), nil, nil

	case "ScriptedNode":
		f, err := spec.decodeDelayFields()
		if err != nil {
			return nil, nil, configErr(spec.Name, "decode script fields: %w", err)
		}
		if f.Source == "" {
			return nil, nil, configErr(spec.Name, "missing required field %q", "source")
		}
		sn, err := script.New(spec.Name, f.Source, f.durationDur(), log)
		if err != nil {
			return nil, nil, configErr(spec.Name, "load script: %w", err)
		}
		return sn, scriptCloser{sn}, nil

	default:
		return nil, nil, configErr(spec.Name, "unknown node type %q", spec.Type)
	}
}

// scriptCloser adapts script.Node's void Close to the Closer interface.
type scriptCloser struct{ n *script.Node }

func (c scriptCloser) Close() error {
	c.n.Close()
	return nil
}
