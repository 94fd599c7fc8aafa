package output

// InputType names the physical sensing mechanism an InputMapItem reads.
type InputType uint8

const (
	InputTypeOccupyDetector InputType = iota // current-sense block occupancy
	InputTypeReedSwitch                      // discrete point/position sensor
)

// OccupancyPolicy decides a block's occupied/free reading from the raw
// bits of every InputMapItem wired to it. Pluggable because prototypes
// differ on how to treat a block with multiple overlapping detectors
// (e.g. require all vs. any to report clear).
type OccupancyPolicy interface {
	Resolve(bits []bool) (occupied bool)
}

// AnyOccupiedPolicy reports the block occupied if any wired input is set
// (current-sense detectors: a single active circuit means a train is
// present somewhere in the block).
type AnyOccupiedPolicy struct{}

func (AnyOccupiedPolicy) Resolve(bits []bool) bool {
	for _, b := range bits {
		if b {
			return true
		}
	}
	return false
}

// AllClearPolicy treats each wired bit as a "clear" reading rather than
// an "occupied" one (reed switches at a block's boundary report true
// while the track there is unobstructed) and reports the block occupied
// unless every wired input currently reads clear.
type AllClearPolicy struct{}

func (AllClearPolicy) Resolve(bits []bool) bool {
	for _, b := range bits {
		if !b {
			return true
		}
	}
	return false
}

// Input is a single addressable input channel.
type Input struct {
	InterfaceID string
	Channel     uint32
}

// InputMapItem binds one or more hardware Input channels to a board
// device (typically a Block, for occupancy) through an OccupancyPolicy.
type InputMapItem struct {
	Type    InputType
	Inputs  []Input
	Policy  OccupancyPolicy
	state   map[Input]bool
}

func NewInputMapItem(t InputType, policy OccupancyPolicy, inputs ...Input) *InputMapItem {
	if policy == nil {
		policy = AnyOccupiedPolicy{}
	}
	m := &InputMapItem{Type: t, Inputs: inputs, Policy: policy, state: map[Input]bool{}}
	for _, in := range inputs {
		m.state[in] = false
	}
	return m
}

// SetBit updates the raw reading of one wired Input channel and returns
// the item's resolved occupied/clear value after the update.
func (m *InputMapItem) SetBit(in Input, value bool) bool {
	m.state[in] = value
	return m.Resolve()
}

// Resolve returns the item's occupied/clear value for however many
// channels are presently wired.
func (m *InputMapItem) Resolve() bool {
	bits := make([]bool, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		bits = append(bits, m.state[in])
	}
	return m.Policy.Resolve(bits)
}
