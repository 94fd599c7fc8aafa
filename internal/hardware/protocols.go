package hardware

import (
	"fmt"

	"github.com/trainmaster/server/internal/hardware/cbusascii"
	"github.com/trainmaster/server/internal/hardware/dinamoframe"
)

// DinamoProtocol is the Protocol implementation for the length-prefixed
// binary accessory-bus wire format (internal/hardware/dinamoframe). Its
// handshake asks for the protocol version and only transitions the
// Kernel to Started once a matching reply arrives.
type DinamoProtocol struct {
	RequestVersion []byte // the exact version-query payload this device expects
	OnFrame        func(payload []byte)

	expectVersionReply bool
}

func (p *DinamoProtocol) OnConnect(k *Kernel) error {
	frame, err := dinamoframe.Encode(p.RequestVersion)
	if err != nil {
		return fmt.Errorf("dinamoframe: encode version request: %w", err)
	}
	p.expectVersionReply = true
	return k.Send(frame)
}

func (p *DinamoProtocol) HandleFrame(frame []byte, k *Kernel) error {
	payload, err := dinamoframe.Decode(frame)
	if err != nil {
		return err
	}
	if p.expectVersionReply {
		p.expectVersionReply = false
		k.Started()
	}
	if p.OnFrame != nil {
		p.OnFrame(payload)
	}
	return nil
}

// CBusASCIIProtocol is the Protocol implementation for the CAN-over-ASCII
// wire format (internal/hardware/cbusascii). Unlike Dinamo it has no
// formal version handshake on the wire: the Kernel is considered Started
// as soon as the transport is up and the first frame has been exchanged
// in either direction.
type CBusASCIIProtocol struct {
	QueryID uint16
	OnFrame func(f cbusascii.Frame)

	started bool
}

func (p *CBusASCIIProtocol) OnConnect(k *Kernel) error {
	frame := cbusascii.Encode(cbusascii.Frame{ID: p.QueryID, Remote: true})
	if err := k.Send(frame); err != nil {
		return err
	}
	k.Started()
	p.started = true
	return nil
}

func (p *CBusASCIIProtocol) HandleFrame(frame []byte, k *Kernel) error {
	f, err := cbusascii.Decode(frame)
	if err != nil {
		return err
	}
	if !p.started {
		k.Started()
		p.started = true
	}
	if p.OnFrame != nil {
		p.OnFrame(f)
	}
	return nil
}
