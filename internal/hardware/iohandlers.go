package hardware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.bug.st/serial"
)

// FrameSplitter splits a byte stream into discrete frames, mirroring
// bufio.SplitFunc but named for this package's vocabulary.
type FrameSplitter = func(data []byte, atEOF bool) (advance int, token []byte, err error)

// TCPHandler is an IOHandler for a plain TCP accessory-bus connection,
// grounded on the reconnect-and-serve loop of the AMI connector: dial,
// hand a buffered reader to a caller-supplied frame splitter, and
// surface any read/write error via onError so the owning Interface can
// reconnect.
type TCPHandler struct {
	Addr    string
	Split   FrameSplitter
	Dialer  net.Dialer

	mu   sync.Mutex
	conn net.Conn
}

func NewTCPHandler(addr string, split FrameSplitter) *TCPHandler {
	return &TCPHandler{Addr: addr, Split: split, Dialer: net.Dialer{Timeout: 5 * time.Second}}
}

func (h *TCPHandler) Start(ctx context.Context, onReceive func([]byte), onError func(error)) error {
	conn, err := h.Dialer.DialContext(ctx, "tcp", h.Addr)
	if err != nil {
		return fmt.Errorf("hardware: dial %s: %w", h.Addr, err)
	}
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 4096), 1<<20)
		if h.Split != nil {
			scanner.Split(h.Split)
		}
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			frame := append([]byte(nil), scanner.Bytes()...)
			onReceive(frame)
		}
		if err := scanner.Err(); err != nil && onError != nil {
			onError(fmt.Errorf("hardware: tcp read: %w", err))
		} else if onError != nil {
			onError(fmt.Errorf("hardware: tcp connection closed"))
		}
	}()
	return nil
}

func (h *TCPHandler) Send(frame []byte) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return ErrNotOnline
	}
	_, err := conn.Write(frame)
	return err
}

func (h *TCPHandler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}

// UDPHandler is an IOHandler for datagram-oriented accessory buses and
// the simulator's discovery/telemetry protocol.
type UDPHandler struct {
	LocalAddr  string
	RemoteAddr string

	mu   sync.Mutex
	conn *net.UDPConn
	raddr *net.UDPAddr
}

func NewUDPHandler(localAddr, remoteAddr string) *UDPHandler {
	return &UDPHandler{LocalAddr: localAddr, RemoteAddr: remoteAddr}
}

func (h *UDPHandler) Start(ctx context.Context, onReceive func([]byte), onError func(error)) error {
	laddr, err := net.ResolveUDPAddr("udp", h.LocalAddr)
	if err != nil {
		return fmt.Errorf("hardware: resolve local %s: %w", h.LocalAddr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("hardware: listen udp %s: %w", h.LocalAddr, err)
	}
	h.mu.Lock()
	h.conn = conn
	if h.RemoteAddr != "" {
		h.raddr, err = net.ResolveUDPAddr("udp", h.RemoteAddr)
		if err != nil {
			h.mu.Unlock()
			conn.Close()
			return fmt.Errorf("hardware: resolve remote %s: %w", h.RemoteAddr, err)
		}
	}
	h.mu.Unlock()

	go func() {
		buf := make([]byte, 2048)
		for {
			n, raddr, err := conn.ReadFromUDP(buf)
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err != nil {
				if onError != nil {
					onError(fmt.Errorf("hardware: udp read: %w", err))
				}
				return
			}
			h.mu.Lock()
			if h.raddr == nil {
				h.raddr = raddr
			}
			h.mu.Unlock()
			frame := append([]byte(nil), buf[:n]...)
			onReceive(frame)
		}
	}()
	return nil
}

func (h *UDPHandler) Send(frame []byte) error {
	h.mu.Lock()
	conn, raddr := h.conn, h.raddr
	h.mu.Unlock()
	if conn == nil || raddr == nil {
		return ErrNotOnline
	}
	_, err := conn.WriteToUDP(frame, raddr)
	return err
}

func (h *UDPHandler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}

// SerialHandler is an IOHandler for a direct serial/USB accessory-bus
// connection (e.g. an Arduino-based command station).
type SerialHandler struct {
	Port  string
	Baud  int
	Split FrameSplitter

	mu   sync.Mutex
	port serial.Port
}

func NewSerialHandler(port string, baud int, split FrameSplitter) *SerialHandler {
	return &SerialHandler{Port: port, Baud: baud, Split: split}
}

func (h *SerialHandler) Start(ctx context.Context, onReceive func([]byte), onError func(error)) error {
	mode := &serial.Mode{BaudRate: h.Baud}
	p, err := serial.Open(h.Port, mode)
	if err != nil {
		return fmt.Errorf("hardware: open serial %s: %w", h.Port, err)
	}
	h.mu.Lock()
	h.port = p
	h.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(p)
		if h.Split != nil {
			scanner.Split(h.Split)
		}
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			onReceive(append([]byte(nil), scanner.Bytes()...))
		}
		if onError != nil {
			onError(fmt.Errorf("hardware: serial closed"))
		}
	}()
	return nil
}

func (h *SerialHandler) Send(frame []byte) error {
	h.mu.Lock()
	p := h.port
	h.mu.Unlock()
	if p == nil {
		return ErrNotOnline
	}
	_, err := p.Write(frame)
	return err
}

func (h *SerialHandler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.port == nil {
		return nil
	}
	err := h.port.Close()
	h.port = nil
	return err
}

// SimulationHandler is an in-process IOHandler that exchanges frames
// directly with a simulated peer (internal/sim.Engine) instead of real
// hardware, for running a world without any physical devices attached.
type SimulationHandler struct {
	ToSim   chan []byte
	FromSim chan []byte

	log *zap.Logger
}

func NewSimulationHandler(toSim, fromSim chan []byte) *SimulationHandler {
	return &SimulationHandler{ToSim: toSim, FromSim: fromSim, log: zap.NewNop()}
}

func (h *SimulationHandler) Start(ctx context.Context, onReceive func([]byte), onError func(error)) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-h.FromSim:
				if !ok {
					if onError != nil {
						onError(fmt.Errorf("hardware: simulation channel closed"))
					}
					return
				}
				onReceive(frame)
			}
		}
	}()
	return nil
}

func (h *SimulationHandler) Send(frame []byte) error {
	select {
	case h.ToSim <- frame:
		return nil
	default:
		return fmt.Errorf("hardware: simulation channel full")
	}
}

func (h *SimulationHandler) Stop() error { return nil }
