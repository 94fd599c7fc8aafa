// Package output models the addressable outputs and inputs a world's
// devices (turnouts, signals, direction controls, ...) are mapped onto,
// and the channel-level actions a Kernel is told to perform to realize a
// requested device state.
package output

import "fmt"

// Type names the shape of a single addressable output channel.
type Type uint8

const (
	TypeSingle   Type = iota // one on/off channel
	TypePair                 // two complementary channels (e.g. relay coil pair)
	TypeAspect               // one multi-value channel carrying a signal aspect code
	TypeECoSState            // vendor-specific multi-value accessory state channel
)

// SingleAction is the action performed on a TypeSingle output.
type SingleAction uint8

const (
	SingleActionOff SingleAction = iota
	SingleActionOn
	SingleActionToggle
	SingleActionPulse
)

// PairAction is the action performed on a TypePair output.
type PairAction uint8

const (
	PairActionFirst PairAction = iota
	PairActionSecond
	PairActionBoth
	PairActionNeither
)

// PairValue is the last-known read-back state of a TypePair output.
type PairValue uint8

const (
	PairValueUndefined PairValue = iota
	PairValueFirst
	PairValueSecond
	PairValueBoth
	PairValueNeither
)

// Address identifies one channel on one hardware interface.
type Address struct {
	InterfaceID string
	Channel     uint32
}

func (a Address) String() string { return fmt.Sprintf("%s:%d", a.InterfaceID, a.Channel) }

// Map is a single device's binding to one or more hardware channels, plus
// the per-device-state action table used to drive them.
type Map struct {
	Type      Type
	Addresses []Address

	// single action table keyed by requested device sub-state, e.g.
	// board.TurnoutPositionLeft -> SingleActionOn.
	singleActions map[uint8]SingleAction
	pairActions   map[uint8]PairAction
	aspectCodes   map[uint8]uint16
}

func NewSingleMap(addr Address) *Map {
	return &Map{Type: TypeSingle, Addresses: []Address{addr}, singleActions: map[uint8]SingleAction{}}
}

func NewPairMap(addr Address) *Map {
	return &Map{Type: TypePair, Addresses: []Address{addr}, pairActions: map[uint8]PairAction{}}
}

func NewAspectMap(addrs ...Address) *Map {
	return &Map{Type: TypeAspect, Addresses: addrs, aspectCodes: map[uint8]uint16{}}
}

// BindSingle records which SingleAction realizes a given device
// sub-state (e.g. turnout position straight/thrown).
func (m *Map) BindSingle(state uint8, action SingleAction) { m.singleActions[state] = action }

// BindPair records which PairAction realizes a given device sub-state.
func (m *Map) BindPair(state uint8, action PairAction) { m.pairActions[state] = action }

// BindAspect records the vendor-specific numeric code a signal aspect
// maps onto.
func (m *Map) BindAspect(state uint8, code uint16) { m.aspectCodes[state] = code }

// SingleActionFor returns the action bound to state, if any.
func (m *Map) SingleActionFor(state uint8) (SingleAction, bool) {
	a, ok := m.singleActions[state]
	return a, ok
}

// PairActionFor returns the action bound to state, if any.
func (m *Map) PairActionFor(state uint8) (PairAction, bool) {
	a, ok := m.pairActions[state]
	return a, ok
}

// AspectCodeFor returns the numeric code bound to aspect state, if any.
func (m *Map) AspectCodeFor(state uint8) (uint16, bool) {
	c, ok := m.aspectCodes[state]
	return c, ok
}
