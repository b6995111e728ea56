package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// NodeSpec is one entry in the top-level YAML sequence. Only name, type,
// and next are common to every node type; everything else is type-specific
// and is kept as a raw yaml.Node so it can be validated and decoded once
// the node's type is known, at factory-call time — the same reason the
// prototype's config types hand-roll Deserialize instead of relying on
// plain struct tags.
type NodeSpec struct {
	Name string
	Type string
	Next string

	raw yaml.Node
}

// UnmarshalYAML decodes the common fields eagerly and stashes the whole
// mapping node for later, type-specific decoding.
func (s *NodeSpec) UnmarshalYAML(node *yaml.Node) error {
	var common struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
		Next string `yaml:"next"`
	}
	if err := node.Decode(&common); err != nil {
		return err
	}
	s.Name = common.Name
	s.Type = common.Type
	s.Next = common.Next
	s.raw = *node
	return nil
}

// delayFields are the fields specific to type: DelayNode / ScriptedNode
// (both declare a duration), decoded on demand.
type delayFields struct {
	Duration float64 `yaml:"duration"`
	IsTotal  bool    `yaml:"is_total"`
	Source   string  `yaml:"source"`
}

func (s *NodeSpec) decodeDelayFields() (delayFields, error) {
	var f delayFields
	err := s.raw.Decode(&f)
	return f, err
}

func (f delayFields) durationDur() time.Duration {
	return time.Duration(f.Duration * float64(time.Second))
}

// armsFields are the fields specific to type: DrumBot.
type armsFields struct {
	Arms [][][2]uint8 `yaml:"arms"`
}

func (s *NodeSpec) decodeArmsFields() (armsFields, error) {
	var f armsFields
	err := s.raw.Decode(&f)
	return f, err
}

// synthFields are the fields specific to type: SynthOutput.
type synthFields struct {
	SoundFont string `yaml:"soundfont"`
}

func (s *NodeSpec) decodeSynthFields() (synthFields, error) {
	var f synthFields
	err := s.raw.Decode(&f)
	return f, err
}

// Document is the top-level YAML shape: a bare sequence of node specs.
type Document []NodeSpec

// ParseDocument parses raw YAML bytes into a Document.
func ParseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return doc, nil
}
