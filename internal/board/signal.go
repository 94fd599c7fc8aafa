package board

// SignalKind selects which aspect computer a Signal uses, set at
// construction time and immutable afterward.
type SignalKind uint8

const (
	SignalKindTwoAspect SignalKind = iota
	SignalKindThreeAspect
	SignalKindItalian
)

// Aspect is an opaque signal aspect code. Its meaning depends on the
// Signal's SignalKind; internal/signal defines the named constants for
// each kind and the logic that computes them from a SignalPath.
type Aspect uint16

// ReservationRequirement configures whether a Signal's aspect computation
// demands that the signal itself hold a reserved BlockPath before it will
// show anything but Stop. Auto is resolved once per SignalPath build from
// the presence of a turnout ahead of the signal (see BuildSignalPath);
// Yes/No are explicit overrides that ignore the topology.
type ReservationRequirement uint8

const (
	ReservationAuto ReservationRequirement = iota
	ReservationRequired
	ReservationNotRequired
)

// Signal is the board-level representation of a signal tile: an
// addressable Node plus the currently displayed Aspect. The aspect
// computers in internal/signal write to it via SetAspect after
// evaluating the signal's SignalPath.
type Signal struct {
	Node             NodeID
	Kind             SignalKind
	AnticipationOnly bool
	Requirement      ReservationRequirement

	aspect          Aspect
	onAspectChanged map[int]func(Aspect)
	nextSubID       int

	reservedPath         *BlockPath
	onReservationChanged map[int]func()
	nextReservationSubID int

	onExternalChange  map[int]func(Aspect)
	nextExternalSubID int
}

func NewSignal(node NodeID, kind SignalKind) *Signal {
	return &Signal{Node: node, Kind: kind}
}

func (s *Signal) Aspect() Aspect { return s.aspect }

// SetAspect updates the displayed aspect and notifies subscribers if it
// changed.
func (s *Signal) SetAspect(a Aspect) {
	if a == s.aspect {
		return
	}
	s.aspect = a
	for _, fn := range s.onAspectChanged {
		fn(a)
	}
}

// OnAspectChanged registers a callback invoked whenever SetAspect changes
// the displayed aspect. Used by signal nodes in SignalPath trees to react
// to an upstream signal's aspect without polling. The returned function
// removes the subscription.
func (s *Signal) OnAspectChanged(fn func(Aspect)) func() {
	if s.onAspectChanged == nil {
		s.onAspectChanged = map[int]func(Aspect){}
	}
	id := s.nextSubID
	s.nextSubID++
	s.onAspectChanged[id] = fn
	return func() { delete(s.onAspectChanged, id) }
}

// ReservedPath returns the BlockPath this signal currently holds a
// reservation notification for, or nil if it holds none.
func (s *Signal) ReservedPath() *BlockPath { return s.reservedPath }

// HasReservedPath reports whether the signal currently holds any reserved
// BlockPath, the hasReservedPath() predicate the requireReservation
// safety layer pre-empts on.
func (s *Signal) HasReservedPath() bool { return s.reservedPath != nil }

// HasReservedPathTo reports whether the signal's currently held reserved
// BlockPath's destination is block.
func (s *Signal) HasReservedPathTo(block *Block) bool {
	return s.reservedPath != nil && block != nil && s.reservedPath.ToBlock == block
}

// SetReservedPath records p as the BlockPath this signal is notified
// about by interlocking.Reserve/Release, and notifies anything watching
// the signal's aspect that it should re-evaluate. Called with nil to
// clear the reservation on Release.
func (s *Signal) SetReservedPath(p *BlockPath) {
	if s.reservedPath == p {
		return
	}
	s.reservedPath = p
	for _, fn := range s.onReservationChanged {
		fn()
	}
}

// OnReservationChanged registers a callback invoked whenever
// SetReservedPath changes the signal's held reservation. Used by
// internal/signal's Watch to re-evaluate a signal's aspect as soon as it
// gains or loses its reserved path, rather than only on block-state
// changes. The returned function removes the subscription.
func (s *Signal) OnReservationChanged(fn func()) func() {
	if s.onReservationChanged == nil {
		s.onReservationChanged = map[int]func(){}
	}
	id := s.nextReservationSubID
	s.nextReservationSubID++
	s.onReservationChanged[id] = fn
	return func() { delete(s.onReservationChanged, id) }
}

// ObserveExternalChange subscribes to hardware feedback reporting the
// signal's actually displayed aspect, independent of the aspect last
// commanded via SetAspect. It is how an anti-regression watcher learns
// that a signal's lamps no longer show what interlocking commanded. The
// returned function removes the subscription.
func (s *Signal) ObserveExternalChange(fn func(Aspect)) func() {
	if s.onExternalChange == nil {
		s.onExternalChange = map[int]func(Aspect){}
	}
	id := s.nextExternalSubID
	s.nextExternalSubID++
	s.onExternalChange[id] = fn
	return func() { delete(s.onExternalChange, id) }
}

// ReportExternalChange is called by the hardware feedback layer whenever
// it observes the signal's actually displayed aspect. It never mutates
// Aspect itself; subscribers decide what a mismatch with the commanded
// aspect means.
func (s *Signal) ReportExternalChange(a Aspect) {
	for _, fn := range s.onExternalChange {
		fn(a)
	}
}
