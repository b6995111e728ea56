// Package midiio is the thin, real wrapper around OS virtual MIDI port
// plumbing. It is an external collaborator in MechSync's design: the graph
// execution core treats it purely as "a byte callback in, a send primitive
// out" and never reaches past this package into the driver itself.
package midiio

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the RtMIDI-backed driver
)

// RawFrame is delivered once per incoming MIDI message, exactly as the OS
// driver handed it to us, alongside a driver-supplied timestamp in
// milliseconds since port open. MechSync only ever looks at the first three
// bytes; anything else (2-byte system messages, sysex) is the documented
// limitation upstream in the node package.
type RawFrame struct {
	Data    []byte
	Millis  int32
}

// RawCallback is invoked on the platform's MIDI thread. Implementations
// must not block; MechSync's node.Input immediately spawns a goroutine and
// returns.
type RawCallback func(frame RawFrame)

// virtualDriver is satisfied by drivers (rtmididrv included) that can create
// OS-visible virtual ports rather than merely opening existing ones.
type virtualDriver interface {
	drivers.Driver
	OpenVirtualIn(name string) (drivers.In, error)
	OpenVirtualOut(name string) (drivers.Out, error)
}

func defaultVirtualDriver() (virtualDriver, error) {
	drv := midi.DefaultDriver()
	if drv == nil {
		return nil, fmt.Errorf("midiio: no default MIDI driver registered")
	}
	vdrv, ok := drv.(virtualDriver)
	if !ok {
		return nil, fmt.Errorf("midiio: driver %T does not support virtual ports", drv)
	}
	return vdrv, nil
}

// VirtualInput is a MIDI input backed by a freshly created OS virtual port.
type VirtualInput struct {
	port  drivers.In
	stopF func()
}

// OpenVirtualInput registers a new virtual MIDI input named name and wires
// cb to fire on every inbound frame.
func OpenVirtualInput(name string, cb RawCallback) (*VirtualInput, error) {
	vdrv, err := defaultVirtualDriver()
	if err != nil {
		return nil, err
	}
	in, err := vdrv.OpenVirtualIn(name)
	if err != nil {
		return nil, fmt.Errorf("midiio: open virtual input %q: %w", name, err)
	}

	stop, err := midi.ListenTo(in, func(data []byte, millis int32) {
		cb(RawFrame{Data: data, Millis: millis})
	}, midi.UseSysEx())
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("midiio: listen on %q: %w", name, err)
	}

	return &VirtualInput{port: in, stopF: stop}, nil
}

// Close tears down the listener and the OS connection. The listener is
// stopped first so no further callbacks can fire while the port closes.
func (v *VirtualInput) Close() error {
	if v.stopF != nil {
		v.stopF()
	}
	return v.port.Close()
}

// VirtualOutput is a MIDI output backed by a freshly created OS virtual
// port. Send is safe for concurrent use; the underlying driver connection
// is not.
type VirtualOutput struct {
	mu   sync.Mutex
	port drivers.Out
	send func(msg midi.Message) error
}

// OpenVirtualOutput registers a new virtual MIDI output named name.
func OpenVirtualOutput(name string) (*VirtualOutput, error) {
	vdrv, err := defaultVirtualDriver()
	if err != nil {
		return nil, err
	}
	out, err := vdrv.OpenVirtualOut(name)
	if err != nil {
		return nil, fmt.Errorf("midiio: open virtual output %q: %w", name, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("midiio: sender for %q: %w", name, err)
	}
	return &VirtualOutput{port: out, send: send}, nil
}

// Send transmits a raw 3-byte frame.
func (o *VirtualOutput) Send(frame [3]byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.send(midi.Message(frame[:]))
}

// Close closes the OS connection.
func (o *VirtualOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.port.Close()
}
