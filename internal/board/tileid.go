package board

// TileID identifies the kind of a tile placed on the board. The numeric
// values mirror the wire-stable identifiers used by the board persistence
// and network protocols: renumbering any of these breaks saved boards.
type TileID uint16

const (
	TileIDNone TileID = 0

	// Rail tiles: straight track and curves.
	TileIDRailStraight TileID = 1
	TileIDRailCurve45  TileID = 2
	TileIDRailCurve90  TileID = 3

	// Crossings.
	TileIDRailCross45 TileID = 4
	TileIDRailCross90 TileID = 5

	// Turnouts.
	TileIDRailTurnoutLeft45     TileID = 6
	TileIDRailTurnoutRight45    TileID = 7
	TileIDRailTurnoutWye        TileID = 8
	TileIDRailTurnout3Way       TileID = 9
	TileIDRailTurnoutSingleSlip TileID = 10
	TileIDRailTurnoutDoubleSlip TileID = 11

	// Signals.
	TileIDRailSignal2Aspect TileID = 12
	TileIDRailSignal3Aspect TileID = 13

	TileIDRailBufferStop TileID = 14
	TileIDRailSensor     TileID = 15
	TileIDRailBlock      TileID = 16

	TileIDRailTurnoutLeft90      TileID = 17
	TileIDRailTurnoutRight90     TileID = 18
	TileIDRailTurnoutLeftCurved  TileID = 19
	TileIDRailTurnoutRightCurved TileID = 20

	TileIDRailBridge45Left  TileID = 21
	TileIDRailBridge45Right TileID = 22
	TileIDRailBridge90      TileID = 23
	TileIDRailTunnel        TileID = 24

	TileIDRailOneWay           TileID = 25
	TileIDRailDirectionControl TileID = 26

	// Non-rail tiles.
	TileIDPushButton TileID = 27

	TileIDRailLink      TileID = 28
	TileIDRailDecoupler TileID = 29
	TileIDRailNXButton  TileID = 30

	TileIDLabel  TileID = 31
	TileIDSwitch TileID = 32

	TileIDReservedForFutureExpansion TileID = 1023
)

// IsRail reports whether a tile kind participates in the rail network,
// i.e. carries Link slots that BlockPath/SignalPath traverse.
func (t TileID) IsRail() bool {
	switch t {
	case TileIDRailStraight, TileIDRailCurve45, TileIDRailCurve90,
		TileIDRailCross45, TileIDRailCross90,
		TileIDRailTurnoutLeft45, TileIDRailTurnoutRight45, TileIDRailTurnoutWye, TileIDRailTurnout3Way,
		TileIDRailTurnoutSingleSlip, TileIDRailTurnoutDoubleSlip,
		TileIDRailSignal2Aspect, TileIDRailSignal3Aspect,
		TileIDRailBufferStop, TileIDRailSensor, TileIDRailBlock,
		TileIDRailTurnoutLeft90, TileIDRailTurnoutRight90, TileIDRailTurnoutLeftCurved, TileIDRailTurnoutRightCurved,
		TileIDRailBridge45Left, TileIDRailBridge45Right, TileIDRailBridge90, TileIDRailTunnel,
		TileIDRailOneWay, TileIDRailDirectionControl,
		TileIDRailLink, TileIDRailDecoupler, TileIDRailNXButton:
		return true
	default:
		return false
	}
}

// IsRailCross reports whether the tile is one of the crossing variants,
// which have four Link slots arranged as two independent through-routes.
func (t TileID) IsRailCross() bool {
	return t == TileIDRailCross45 || t == TileIDRailCross90
}

// IsRailTurnout reports whether the tile is any turnout variant.
func (t TileID) IsRailTurnout() bool {
	switch t {
	case TileIDRailTurnoutLeft45, TileIDRailTurnoutLeft90, TileIDRailTurnoutLeftCurved,
		TileIDRailTurnoutRight45, TileIDRailTurnoutRight90, TileIDRailTurnoutRightCurved,
		TileIDRailTurnoutWye, TileIDRailTurnout3Way, TileIDRailTurnoutSingleSlip, TileIDRailTurnoutDoubleSlip:
		return true
	default:
		return false
	}
}

// IsRailBridge reports whether the tile is a bridge variant (a rail tile
// that visually/physically crosses over another without connecting).
func (t TileID) IsRailBridge() bool {
	return t == TileIDRailBridge45Left || t == TileIDRailBridge45Right || t == TileIDRailBridge90
}

// IsRailSignal reports whether the tile is either signal variant.
func (t TileID) IsRailSignal() bool {
	return t == TileIDRailSignal2Aspect || t == TileIDRailSignal3Aspect
}

func (t TileID) String() string {
	switch t {
	case TileIDNone:
		return "None"
	case TileIDRailStraight:
		return "RailStraight"
	case TileIDRailCurve45:
		return "RailCurve45"
	case TileIDRailCurve90:
		return "RailCurve90"
	case TileIDRailTurnoutLeft45:
		return "RailTurnoutLeft45"
	case TileIDRailTurnoutLeft90:
		return "RailTurnoutLeft90"
	case TileIDRailTurnoutLeftCurved:
		return "RailTurnoutLeftCurved"
	case TileIDRailTurnoutRight45:
		return "RailTurnoutRight45"
	case TileIDRailTurnoutRight90:
		return "RailTurnoutRight90"
	case TileIDRailTurnoutRightCurved:
		return "RailTurnoutRightCurved"
	case TileIDRailTurnoutWye:
		return "RailTurnoutWye"
	case TileIDRailTurnout3Way:
		return "RailTurnout3Way"
	case TileIDRailTurnoutSingleSlip:
		return "RailTurnoutSingleSlip"
	case TileIDRailTurnoutDoubleSlip:
		return "RailTurnoutDoubleSlip"
	case TileIDRailCross45:
		return "RailCross45"
	case TileIDRailCross90:
		return "RailCross90"
	case TileIDRailSignal2Aspect:
		return "RailSignal2Aspect"
	case TileIDRailSignal3Aspect:
		return "RailSignal3Aspect"
	case TileIDRailBlock:
		return "RailBlock"
	case TileIDRailSensor:
		return "RailSensor"
	case TileIDRailDirectionControl:
		return "RailDirectionControl"
	case TileIDRailLink:
		return "RailLink"
	case TileIDRailBufferStop:
		return "RailBufferStop"
	case TileIDRailOneWay:
		return "RailOneWay"
	case TileIDRailDecoupler:
		return "RailDecoupler"
	case TileIDRailNXButton:
		return "RailNXButton"
	case TileIDRailBridge45Left:
		return "RailBridge45Left"
	case TileIDRailBridge45Right:
		return "RailBridge45Right"
	case TileIDRailBridge90:
		return "RailBridge90"
	case TileIDRailTunnel:
		return "RailTunnel"
	case TileIDPushButton:
		return "PushButton"
	case TileIDLabel:
		return "Label"
	case TileIDSwitch:
		return "Switch"
	default:
		return "Unknown"
	}
}
