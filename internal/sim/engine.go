package sim

import (
	"context"
	"math"
	"sync"
	"time"
)

// TrackSegment is one length of simulated track a Vehicle can occupy,
// identified by the sensor address that reports occupancy of it.
type TrackSegment struct {
	SensorAddress uint32
	LengthMM      float64
}

// Vehicle is one simulated piece of rolling stock: its position is
// expressed as a segment index plus an offset in millimetres from the
// start of that segment.
type Vehicle struct {
	Address      uint16
	SpeedStepsMax uint8
	MaxSpeedMMPS  float64 // simulated top speed in mm/s at full throttle

	segment   int
	offsetMM  float64
	speedStep uint8
	forward   bool
}

// Position returns the vehicle's current segment index and offset.
func (v *Vehicle) Position() (segment int, offsetMM float64) { return v.segment, v.offsetMM }

func (v *Vehicle) speedMMPS() float64 {
	if v.SpeedStepsMax == 0 {
		return 0
	}
	frac := float64(v.speedStep) / float64(v.SpeedStepsMax)
	mmps := frac * v.MaxSpeedMMPS
	if !v.forward {
		mmps = -mmps
	}
	return mmps
}

// Engine ticks every simulated Vehicle along a closed sequence of
// TrackSegments, emitting SensorChanged messages on segment boundary
// crossings.
type Engine struct {
	mu       sync.Mutex
	segments []TrackSegment
	vehicles map[uint16]*Vehicle
	occupied map[int]map[uint16]bool

	TickInterval time.Duration
	powerOn      bool

	Out chan []byte
	In  chan []byte
}

// NewEngine constructs a simulator over a fixed, closed sequence of
// TrackSegments (segment i's end connects to segment i+1's start, and
// the last wraps to the first).
func NewEngine(segments []TrackSegment) *Engine {
	return &Engine{
		segments:     segments,
		vehicles:     map[uint16]*Vehicle{},
		occupied:     map[int]map[uint16]bool{},
		TickInterval: 100 * time.Millisecond,
		Out:          make(chan []byte, 64),
		In:           make(chan []byte, 64),
	}
}

// AddVehicle places v at the start of segment 0.
func (e *Engine) AddVehicle(v *Vehicle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vehicles[v.Address] = v
	e.markOccupied(0, v.Address, true)
}

// Run drives the tick loop and the inbound command channel until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-e.In:
			e.handleCommand(raw)
		case <-ticker.C:
			e.tick(e.TickInterval)
		}
	}
}

func (e *Engine) handleCommand(raw []byte) {
	msg, err := Decode(raw)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch m := msg.(type) {
	case Power:
		e.powerOn = m.PowerOn
	case LocomotiveSpeedDirection:
		if v, ok := e.vehicles[m.Address]; ok {
			v.speedStep = m.Speed
			v.forward = m.Direction
		}
	}
}

func (e *Engine) tick(dt time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.powerOn || len(e.segments) == 0 {
		return
	}
	seconds := dt.Seconds()
	for _, v := range e.vehicles {
		delta := v.speedMMPS() * seconds
		if delta == 0 {
			continue
		}
		e.advance(v, delta)
	}
}

func (e *Engine) advance(v *Vehicle, deltaMM float64) {
	n := len(e.segments)
	for deltaMM != 0 {
		seg := e.segments[v.segment]
		newOffset := v.offsetMM + deltaMM
		switch {
		case newOffset < 0:
			deltaMM = newOffset
			e.markOccupied(v.segment, v.Address, false)
			v.segment = (v.segment - 1 + n) % n
			v.offsetMM = e.segments[v.segment].LengthMM
			e.markOccupied(v.segment, v.Address, true)
		case newOffset > seg.LengthMM:
			deltaMM = newOffset - seg.LengthMM
			e.markOccupied(v.segment, v.Address, false)
			v.segment = (v.segment + 1) % n
			v.offsetMM = 0
			e.markOccupied(v.segment, v.Address, true)
		default:
			v.offsetMM = newOffset
			deltaMM = 0
		}
		if math.Abs(deltaMM) < 1e-9 {
			deltaMM = 0
		}
	}
}

func (e *Engine) markOccupied(segment int, vehicle uint16, occupied bool) {
	set, ok := e.occupied[segment]
	if !ok {
		set = map[uint16]bool{}
		e.occupied[segment] = set
	}
	wasOccupied := len(set) > 0
	if occupied {
		set[vehicle] = true
	} else {
		delete(set, vehicle)
	}
	nowOccupied := len(set) > 0
	if wasOccupied != nowOccupied {
		msg := SensorChanged{Address: e.segments[segment].SensorAddress, Occupied: nowOccupied}
		select {
		case e.Out <- msg.Encode():
		default:
		}
	}
}
