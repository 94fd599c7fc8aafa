package board

import "fmt"

// Rotation is one of the eight 45-degree placement rotations of a tile.
type Rotation uint8

const (
	Rotation0 Rotation = iota
	Rotation45
	Rotation90
	Rotation135
	Rotation180
	Rotation225
	Rotation270
	Rotation315
)

// TileData is the packed on-board representation of a tile: a 16-bit
// header, an 8-bit size and an 8-bit opaque state byte used by the tile's
// own device logic (turnout position, signal aspect, sensor bit, ...).
//
// header layout (little bit 0 first):
//
//	bits 0:   active flag
//	bits 1-3: rotation (0..7, 45 degree steps)
//	bits 4-15: TileID
//
// size layout:
//
//	bits 0-3: width-1  (0 => 1 tile wide)
//	bits 4-7: height-1 (0 => 1 tile tall)
type TileData struct {
	header uint16
	size   uint8
	state  uint8
}

// NewTileData packs a tile header/size/state triple.
func NewTileData(id TileID, rotation Rotation, active bool, width, height uint8) TileData {
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}
	var header uint16
	header = uint16(id) << 4
	header |= uint16(rotation&0x7) << 1
	if active {
		header |= 1
	}
	size := ((height - 1) << 4) | ((width - 1) & 0x0F)
	return TileData{header: header, size: size}
}

func (t TileData) TileID() TileID     { return TileID(t.header >> 4) }
func (t TileData) Rotation() Rotation { return Rotation((t.header >> 1) & 0x7) }
func (t TileData) Active() bool       { return t.header&0x1 != 0 }
func (t TileData) Width() uint8       { return (t.size & 0x0F) + 1 }
func (t TileData) Height() uint8      { return (t.size >> 4) + 1 }
func (t TileData) State() uint8       { return t.state }

func (t TileData) WithState(state uint8) TileData {
	t.state = state
	return t
}

func (t TileData) WithActive(active bool) TileData {
	if active {
		t.header |= 1
	} else {
		t.header &^= 1
	}
	return t
}

func (t TileData) WithRotation(r Rotation) TileData {
	t.header = (t.header &^ 0x000E) | (uint16(r&0x7) << 1)
	return t
}

// Encode serializes the tile into its 4-byte wire form: header (LE),
// size, state.
func (t TileData) Encode() [4]byte {
	return [4]byte{
		byte(t.header),
		byte(t.header >> 8),
		t.size,
		t.state,
	}
}

// DecodeTileData parses the 4-byte wire form produced by Encode.
func DecodeTileData(b [4]byte) TileData {
	return TileData{
		header: uint16(b[0]) | uint16(b[1])<<8,
		size:   b[2],
		state:  b[3],
	}
}

func (t TileData) String() string {
	return fmt.Sprintf("%s[%dx%d active=%v rot=%d state=%#02x]", t.TileID(), t.Width(), t.Height(), t.Active(), t.Rotation(), t.state)
}
