// Package signal computes the aspect a Signal should display from its
// board.SignalPath: the sequence of blocks and turnouts ahead of it. Each
// Computer implements one national/house signalling convention; all of
// them share the same evaluate-on-change wiring via Watch.
package signal

import "github.com/trainmaster/server/internal/board"

// Computer determines the board.Aspect a signal should display given its
// SignalPath. Implementations must be side-effect free: Watch is
// responsible for writing the result back to the Signal. Stop reports
// the kind's own Stop aspect, used by Watch to enforce the
// requireReservation safety layer uniformly across kinds.
type Computer interface {
	DetermineAspect(path *board.SignalPath) board.Aspect
	Stop() board.Aspect
}

// Watch subscribes path to re-evaluate sig's aspect via computer whenever
// a block or signal ahead changes or sig's own reservation changes, and
// runs one evaluation immediately. On every evaluation it applies the
// requireReservation safety layer on top of computer's result: when the
// path requires a reservation, the aspect is pre-empted to Stop unless
// sig currently holds a reserved BlockPath. The returned function stops
// watching and releases the path's subscriptions.
func Watch(sig *board.Signal, path *board.SignalPath, computer Computer) func() {
	evaluate := func() {
		aspect := computer.DetermineAspect(path)
		if path.RequireReservation && !sig.HasReservedPath() {
			aspect = computer.Stop()
		}
		sig.SetAspect(aspect)
	}
	path.OnChange(evaluate)
	unsubReservation := sig.OnReservationChanged(evaluate)
	evaluate()
	return func() {
		unsubReservation()
		path.Release()
	}
}

// Two-aspect signal: either a train may proceed, or it must stop.
const (
	TwoAspectStop    board.Aspect = 0
	TwoAspectProceed board.Aspect = 1
)

// TwoAspectComputer displays Stop unless the very next block is free (and
// no reservation is required), or the signal holds a reservation that
// claims that exact block, ignoring anything beyond it.
type TwoAspectComputer struct{}

func (TwoAspectComputer) DetermineAspect(path *board.SignalPath) board.Aspect {
	nodes := path.NextBlockNodes(1)
	if len(nodes) == 0 {
		return TwoAspectStop
	}
	if proceedableBlock(path, nodes[0]) {
		return TwoAspectProceed
	}
	return TwoAspectStop
}

func (TwoAspectComputer) Stop() board.Aspect { return TwoAspectStop }

// proceedableBlock implements the shared next-block rule both the 2-aspect
// and 3-aspect computers use for their nearest block: clear (Free or
// Unknown) when no reservation is required of this path, or Reserved with
// the signal holding a reservation whose destination is this exact block.
func proceedableBlock(path *board.SignalPath, node *board.SignalPathNode) bool {
	state := node.Block.State()
	if !path.RequireReservation && blockClear(state) {
		return true
	}
	if state == board.BlockStateReserved && path.Signal.HasReservedPathTo(node.Block) {
		return true
	}
	return false
}

// Three-aspect signal: Stop, Caution (next block clear, one beyond it
// isn't) or Clear (at least two blocks ahead are clear).
const (
	ThreeAspectStop    board.Aspect = 0
	ThreeAspectCaution board.Aspect = 1
	ThreeAspectClear   board.Aspect = 2
)

// ThreeAspectComputer looks two blocks ahead: Clear needs the first block
// proceedable and either the second block free or reserved by an outbound
// path from the first block to it (or, failing that, a next signal
// already showing Proceed/Clear); Caution covers every other case where
// the first block is proceedable on its own.
type ThreeAspectComputer struct{}

func (ThreeAspectComputer) DetermineAspect(path *board.SignalPath) board.Aspect {
	nodes, nextSignal := path.NextBlockNodesAndSignal(2)
	if len(nodes) == 0 || !proceedableBlock(path, nodes[0]) {
		return ThreeAspectStop
	}

	if len(nodes) > 1 {
		second := nodes[1]
		reservedOnward := nodes[0].Block.ReservedPath() != nil && nodes[0].Block.ReservedPath().ToBlock == second.Block
		if blockClear(second.Block.State()) || reservedOnward {
			return ThreeAspectClear
		}
	}

	if nextSignal != nil {
		if a := nextSignal.Signal.Aspect(); a == ThreeAspectClear || a == ThreeAspectCaution {
			return ThreeAspectClear
		}
	}

	return ThreeAspectCaution
}

func (ThreeAspectComputer) Stop() board.Aspect { return ThreeAspectStop }

func blockClear(s board.BlockState) bool {
	return s == board.BlockStateFree || s == board.BlockStateUnknown
}

// Italian signal aspects are a bitfield composite matching the
// historical FS (Ferrovie dello Stato) lamp combinations: each bit is an
// independently lit lamp, and the named constants below are the
// combinations the prototype actually wires up (not every bit
// combination is meaningful).
const (
	ItalianViaLibera            board.Aspect = 1 << 0 // proceed, no restriction
	ItalianViaImpedita          board.Aspect = 1 << 1 // stop
	ItalianDeviata              board.Aspect = 1 << 2 // diverging route taken
	ItalianRiduzione30          board.Aspect = 1 << 3 // reduce to 30
	ItalianRiduzione60          board.Aspect = 1 << 4 // reduce to 60
	ItalianRiduzione100         board.Aspect = 1 << 5 // reduce to 100
	ItalianAvvisoRiduzione30    board.Aspect = 1 << 6 // next signal shows reduce-to-30
	ItalianAvvisoRiduzione60    board.Aspect = 1 << 7 // next signal shows reduce-to-60
	ItalianAvvisoRiduzione100   board.Aspect = 1 << 8 // next signal shows reduce-to-100
	ItalianBinarioIngombroTronco board.Aspect = 1 << 9 // short track-circuit occupied beyond the signal

	// Composite aspects as actually displayed by a 3-lamp Italian
	// low/high signal: full proceed, proceed-with-reduction, and stop.
	ItalianVialiberaComposite              = ItalianViaLibera
	ItalianViaLiberaDeviataComposite        = ItalianViaLibera | ItalianDeviata | ItalianRiduzione30
	ItalianAvvisoRiduzione60Composite       = ItalianViaLibera | ItalianAvvisoRiduzione60
	ItalianAvvisoRiduzione30Composite       = ItalianViaLibera | ItalianAvvisoRiduzione30
	ItalianViaImpeditaComposite             = ItalianViaImpedita
	ItalianViaImpeditaBinarioIngombroComposite = ItalianViaImpedita | ItalianBinarioIngombroTronco
)

// ItalianComputer implements the FS-style composite aspect: it reduces
// speed progressively over two blocks ahead and carries an advance
// warning of the aspect the next signal is itself displaying.
type ItalianComputer struct {
	// Deviating reports whether the route this signal protects diverges
	// at the next turnout, adding Deviata + Riduzione30 to the result.
	Deviating func() bool
}

func (c ItalianComputer) DetermineAspect(path *board.SignalPath) board.Aspect {
	block, nextSignal := path.NextBlockOrSignal()
	if block == nil {
		if nextSignal == nil {
			return ItalianViaImpedita
		}
		return adviseFrom(nextSignal.Signal.Aspect())
	}
	if !blockClear(block.Block.State()) {
		return ItalianViaImpedita
	}

	aspect := ItalianViaLibera
	if c.Deviating != nil && c.Deviating() {
		aspect |= ItalianDeviata | ItalianRiduzione30
	}

	states := path.BlockStates(2)
	if len(states) > 1 && !blockClear(states[1]) {
		aspect |= ItalianRiduzione60
	}

	if _, sig := path.NextBlockOrSignal(); sig != nil {
		aspect |= adviseFrom(sig.Signal.Aspect()) &^ ItalianViaLibera
	}
	return aspect
}

func (ItalianComputer) Stop() board.Aspect { return ItalianViaImpedita }

// adviseFrom converts a downstream signal's own displayed composite
// aspect into the "avviso" (advance warning) bits this signal should add
// to its own.
func adviseFrom(next board.Aspect) board.Aspect {
	switch {
	case next&ItalianViaImpedita != 0:
		return ItalianViaLibera | ItalianAvvisoRiduzione30
	case next&ItalianRiduzione30 != 0:
		return ItalianViaLibera | ItalianAvvisoRiduzione30
	case next&ItalianRiduzione60 != 0:
		return ItalianViaLibera | ItalianAvvisoRiduzione60
	case next&ItalianRiduzione100 != 0:
		return ItalianViaLibera | ItalianAvvisoRiduzione100
	default:
		return ItalianViaLibera
	}
}

// AnticipationOnlyComputer is used by a signal that exists purely to
// repeat ("anticipate") the aspect of the next real signal ahead, never
// examining block occupancy of its own.
type AnticipationOnlyComputer struct {
	Inner Computer
}

func (c AnticipationOnlyComputer) DetermineAspect(path *board.SignalPath) board.Aspect {
	_, sig := path.NextBlockOrSignal()
	if sig == nil {
		return ItalianViaImpedita
	}
	return adviseFrom(sig.Signal.Aspect())
}

func (AnticipationOnlyComputer) Stop() board.Aspect { return ItalianViaImpedita }
