package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/trainmaster/server/backend/config"
	"github.com/trainmaster/server/internal/board"
	"github.com/trainmaster/server/internal/hardware"
	"github.com/trainmaster/server/internal/hardware/cbusascii"
	"github.com/trainmaster/server/internal/hardware/dinamoframe"
	"github.com/trainmaster/server/internal/interlocking"
	"github.com/trainmaster/server/internal/script"
	"github.com/trainmaster/server/internal/script/store"
	signalkit "github.com/trainmaster/server/internal/signal"
	"github.com/trainmaster/server/internal/sim"
	"github.com/trainmaster/server/internal/web"
)

var buildTime = ""

// layout names a demo board's addressable devices by the names scripts
// and logging use, since Board itself only indexes turnouts/signals by
// NodeID.
type layout struct {
	board    *board.Board
	blocks   map[string]*board.Block
	signals  map[string]*board.Signal
	turnouts map[string]*board.Turnout
	nx       map[string]*board.NXButton
}

func main() {
	configFile := flag.String("config", "", "Path to config file (default: search ./config.yaml, data/config.yaml, etc.)")
	flag.Parse()

	cfg := config.Load(*configFile)

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	lay := buildDemoLayout()
	watchSignals(lay)

	nxMgr := interlocking.NewNXManager()
	nxMgr.Guard = &interlocking.RegressionGuard{
		Log:                        logger,
		CorrectOutputPosWhenLocked: cfg.CorrectOutputPosWhenLocked,
		Action:                     interlocking.ParseExtOutputChangeAction(cfg.ExtOutputChangeAction),
		Escalate: &interlocking.Escalator{
			EmergencyStopTrain: func(tr *board.Train) {
				logger.Warn("emergency-stopping train after unrecovered external state change", zap.String("train", tr.ID))
			},
			EmergencyStopWorld: func() {
				logger.Error("emergency-stopping the world after unrecovered external state change")
			},
			PowerOffWorld: func() {
				logger.Error("powering off the world after unrecovered external state change")
			},
		},
		CommandTurnout: func(t *board.Turnout, want board.TurnoutPosition) {
			if err := t.ForceCommand(want); err != nil {
				logger.Warn("anti-regression re-command failed", zap.String("turnout", t.Node.String()), zap.Error(err))
			}
		},
	}

	var interfaces []*hardware.Interface
	for _, ic := range cfg.Interfaces {
		iface, err := buildInterface(ic, logger)
		if err != nil {
			logger.Warn("skipping misconfigured interface", zap.String("id", ic.ID), zap.Error(err))
			continue
		}
		interfaces = append(interfaces, iface)
	}
	supervisor := hardware.NewSupervisor(interfaces...)
	supervisor.Start()
	logger.Info("hardware interfaces starting", zap.Int("count", len(interfaces)))

	var simEngine *sim.Engine
	var simCancel context.CancelFunc
	if cfg.Simulator.Enabled {
		simEngine = sim.NewEngine([]sim.TrackSegment{
			{SensorAddress: 1, LengthMM: 3000},
			{SensorAddress: 2, LengthMM: 3000},
		})
		if cfg.Simulator.TickMillis > 0 {
			simEngine.TickInterval = time.Duration(cfg.Simulator.TickMillis) * time.Millisecond
		}
		var simCtx context.Context
		simCtx, simCancel = context.WithCancel(context.Background())
		go simEngine.Run(simCtx)
		logger.Info("simulator engine started", zap.String("listen_addr", cfg.Simulator.ListenAddr))
	}

	var scriptStore *store.Store
	var sandboxes []*script.Sandbox
	if cfg.Script.Enabled {
		scriptStore, err = store.Open(cfg.Script.VarsPath)
		if err != nil {
			logger.Warn("failed to open script persistent-variable store", zap.Error(err))
		} else {
			sandboxes = loadScripts(cfg.Script.Dir, lay, nxMgr, scriptStore, logger)
			logger.Info("scripts loaded", zap.Int("count", len(sandboxes)))
		}
	}

	hub := web.NewHub(lay.board, interfaces)
	for _, blk := range lay.blocks {
		hub.WatchBlock(blk)
	}
	for name, sig := range lay.signals {
		hub.WatchSignal(name, sig)
	}
	for _, iface := range interfaces {
		hub.WatchInterface(iface)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/ws", hub.HandleWS())

	heartbeatCtx, heartbeatCancel := context.WithCancel(context.Background())
	go hub.HeartbeatLoop(heartbeatCtx, 5*time.Second)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 10 * time.Second, WriteTimeout: 15 * time.Second}

	go func() {
		logger.Info("trainmaster starting", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("build", buildTime))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, shutting down")

	heartbeatCancel()
	if simCancel != nil {
		simCancel()
	}
	for _, sb := range sandboxes {
		if err := sb.Stop(); err != nil {
			logger.Warn("script stop error", zap.String("script", sb.Name), zap.Error(err))
		}
	}
	if scriptStore != nil {
		if err := scriptStore.Close(); err != nil {
			logger.Warn("script store close error", zap.Error(err))
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer stopCancel()
	if err := supervisor.Stop(stopCtx); err != nil {
		logger.Warn("hardware supervisor stop error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if err := srv.Close(); err != nil {
			logger.Warn("server close error", zap.Error(err))
		}
	}
	logger.Info("server stopped cleanly")
}

// buildDemoLayout constructs a small three-block layout (approach, main,
// siding) with a turnout and a protecting signal, standing in for the persisted-world
// layout format this repo deliberately leaves out of scope: everything
// downstream (interlocking, signalling, scripting, the websocket feed)
// works the same whether the Board came from this function or a future
// layout loader.
func buildDemoLayout() *layout {
	b := board.NewBoard()
	lay := &layout{
		board:    b,
		blocks:   map[string]*board.Block{},
		signals:  map[string]*board.Signal{},
		turnouts: map[string]*board.Turnout{},
		nx:       map[string]*board.NXButton{},
	}

	approach := b.AddBlock("approach")
	mainBlock := b.AddBlock("main")
	siding := b.AddBlock("siding")
	lay.blocks["approach"] = approach
	lay.blocks["main"] = mainBlock
	lay.blocks["siding"] = siding

	sig := b.AddSignal(board.SignalKindTwoAspect)
	lay.signals["home"] = sig

	turnout := b.AddTurnout(board.TileIDRailTurnoutLeft45)
	lay.turnouts["points"] = turnout

	entry := b.AddNXButton()
	exit := b.AddNXButton()
	lay.nx["approach-entry"] = entry
	lay.nx["main-exit"] = exit

	connections := []struct {
		a, bEnd board.Endpoint
	}{
		{board.Endpoint{Node: approach.Node, Slot: int(board.BlockSideB)}, board.Endpoint{Node: sig.Node, Slot: 0}},
		{board.Endpoint{Node: sig.Node, Slot: 1}, board.Endpoint{Node: turnout.Node, Slot: 0}},
		{board.Endpoint{Node: turnout.Node, Slot: 1}, board.Endpoint{Node: mainBlock.Node, Slot: int(board.BlockSideA)}},
		{board.Endpoint{Node: turnout.Node, Slot: 2}, board.Endpoint{Node: siding.Node, Slot: int(board.BlockSideA)}},
	}
	for _, c := range connections {
		if _, err := b.Connect(c.a, c.bEnd); err != nil {
			panic(fmt.Sprintf("demo layout: connect %+v <-> %+v: %v", c.a, c.bEnd, err))
		}
	}

	paths, err := board.FindBlockPaths(b, approach, board.BlockSideB)
	if err != nil {
		panic(fmt.Sprintf("demo layout: path discovery from approach: %v", err))
	}
	for _, p := range paths {
		if p.ToBlock == mainBlock {
			p.NXButtonFrom = entry
			p.NXButtonTo = exit
		}
		approach.AddPath(p)
	}

	return lay
}

func watchSignals(lay *layout) {
	for _, sig := range lay.signals {
		path := lay.board.SignalPath(sig, 2)
		computer := signalkit.TwoAspectComputer{}
		signalkit.Watch(sig, path, computer)
	}
}

func buildInterface(ic config.InterfaceConfig, logger *zap.Logger) (*hardware.Interface, error) {
	var io hardware.IOHandler
	switch ic.Type {
	case "tcp":
		split := dinamoframe.Split
		if ic.Protocol == "cbusascii" {
			split = cbusascii.Split
		}
		io = hardware.NewTCPHandler(ic.Address, split)
	case "serial":
		split := dinamoframe.Split
		if ic.Protocol == "cbusascii" {
			split = cbusascii.Split
		}
		io = hardware.NewSerialHandler(ic.Address, ic.BaudRate, split)
	case "simulation":
		toSim := make(chan []byte, 64)
		fromSim := make(chan []byte, 64)
		io = hardware.NewSimulationHandler(toSim, fromSim)
	default:
		return nil, fmt.Errorf("unknown interface type %q", ic.Type)
	}

	var proto hardware.Protocol
	switch ic.Protocol {
	case "cbusascii":
		proto = &hardware.CBusASCIIProtocol{}
	case "dinamo", "":
		proto = &hardware.DinamoProtocol{RequestVersion: []byte{0x00}}
	default:
		return nil, fmt.Errorf("unknown interface protocol %q", ic.Protocol)
	}

	kernel := hardware.NewKernel(io, proto)
	return hardware.NewInterface(ic.ID, kernel, logger), nil
}

// worldAdapter is the restricted surface scripts see, wired to the
// actual demo layout's named devices. It also holds the NX manager, but
// none of its methods makes route requests. It implements script.World.
type worldAdapter struct {
	lay    *layout
	nxMgr  *interlocking.NXManager
	logger *zap.Logger
}

func (w *worldAdapter) GetBlockState(name string) (string, bool) {
	blk, ok := w.lay.blocks[name]
	if !ok {
		return "", false
	}
	return blk.State().String(), true
}

func (w *worldAdapter) SetTurnoutPosition(name, position string) error {
	t, ok := w.lay.turnouts[name]
	if !ok {
		return fmt.Errorf("no such turnout %q", name)
	}
	pos, err := parseTurnoutPosition(position)
	if err != nil {
		return err
	}
	return t.ForceCommand(pos)
}

func (w *worldAdapter) SetSignalAspect(name, aspect string) error {
	sig, ok := w.lay.signals[name]
	if !ok {
		return fmt.Errorf("no such signal %q", name)
	}
	a, err := strconv.ParseUint(aspect, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid aspect %q: %w", aspect, err)
	}
	sig.SetAspect(board.Aspect(a))
	return nil
}

func (w *worldAdapter) Log(level, message string) {
	switch level {
	case "error":
		w.logger.Error(message)
	case "warning":
		w.logger.Warn(message)
	case "debug":
		w.logger.Debug(message)
	default:
		w.logger.Info(message)
	}
}

func parseTurnoutPosition(s string) (board.TurnoutPosition, error) {
	switch s {
	case "straight":
		return board.TurnoutPositionStraight, nil
	case "left":
		return board.TurnoutPositionLeft, nil
	case "right":
		return board.TurnoutPositionRight, nil
	case "curved":
		return board.TurnoutPositionCurved, nil
	case "crossover":
		return board.TurnoutPositionCrossover, nil
	default:
		return board.TurnoutPositionUnknown, fmt.Errorf("unknown turnout position %q", s)
	}
}

// loadScripts compiles and starts every *.js file in dir as its own
// Sandbox sharing one worldAdapter and persistent-variable store.
func loadScripts(dir string, lay *layout, nxMgr *interlocking.NXManager, st *store.Store, logger *zap.Logger) []*script.Sandbox {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read scripts directory", zap.String("dir", dir), zap.Error(err))
		}
		return nil
	}

	world := &worldAdapter{lay: lay, nxMgr: nxMgr, logger: logger}

	var sandboxes []*script.Sandbox
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".js" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		source, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("failed to read script", zap.String("path", path), zap.Error(err))
			continue
		}
		name := entry.Name()
		sb := script.NewSandbox(name, world, st, logger)
		if err := sb.Start(string(source)); err != nil {
			logger.Warn("script failed to start", zap.String("script", name), zap.Error(err))
			continue
		}
		sandboxes = append(sandboxes, sb)
	}
	return sandboxes
}
