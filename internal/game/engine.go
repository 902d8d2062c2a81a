package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// tickSampleEvery controls how often tick events reach the event log
const tickSampleEvery = 30

// InputSource feeds queued commands into the orchestrator at the start of
// a tick. It returns how many commands were applied.
type InputSource interface {
	Drain(o *Orchestrator) int
}

// TickStats is reported after every tick
type TickStats struct {
	Duration time.Duration
	Phase    Phase
	Inputs   int
	Signals  int
}

// EngineConfig configures the driver loop
type EngineConfig struct {
	TickRate int
	Limits   SnapshotLimits
}

// DefaultEngineConfig returns 30 TPS with default snapshot limits
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{TickRate: 30, Limits: DefaultLimits}
}

// Engine is the host driver: it owns the orchestrator and calls Update
// once per tick, either from its own ticker goroutine or through Step.
type Engine struct {
	mu   sync.Mutex
	orch *Orchestrator

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}

	inputs   InputSource
	onSignal func(Signal)
	onTick   func(TickStats)

	snapshotPool *SnapshotPool
	eventLog     *EventLog
	tickCount    uint64
}

// NewEngine wraps orch in a driver loop
func NewEngine(cfg EngineConfig, orch *Orchestrator) *Engine {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 30
	}
	if cfg.Limits == (SnapshotLimits{}) {
		cfg.Limits = DefaultLimits
	}
	e := &Engine{
		orch:         orch,
		tickRate:     cfg.TickRate,
		snapshotPool: NewSnapshotPool(cfg.Limits),
		eventLog:     NewEventLog(),
	}
	e.produceSnapshot(0)
	return e
}

// SetInputs attaches the command source drained every tick
func (e *Engine) SetInputs(src InputSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = src
}

// SetCallbacks sets the per-signal and per-tick hooks. Both run on the
// tick goroutine with the engine locked and must not block.
func (e *Engine) SetCallbacks(onSignal func(Signal), onTick func(TickStats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSignal = onSignal
	e.onTick = onTick
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))

	go e.loop(e.ticker, e.stopChan, e.done)

	log.Info().Int("tps", e.tickRate).Msg("🎮 loop engine started")
}

func (e *Engine) loop(ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	dt := 1.0 / float64(e.tickRate)
	for {
		select {
		case <-ticker.C:
			e.Step(dt)
		case <-stop:
			return
		}
	}
}

// Stop stops the game loop and waits for the running tick to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	done := e.done
	e.mu.Unlock()

	<-done
	log.Info().Msg("🛑 loop engine stopped")
}

// Running reports whether the ticker goroutine is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Step runs exactly one tick of dt seconds
func (e *Engine) Step(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step(dt)
}

func (e *Engine) step(dt float64) {
	start := time.Now()
	e.tickCount++

	applied := 0
	if e.inputs != nil {
		applied = e.inputs.Drain(e.orch)
	}

	e.orch.Update(dt)

	signals := e.orch.DrainSignals()
	for _, s := range signals {
		e.eventLog.EmitSignal(e.tickCount, s)
		if e.onSignal != nil {
			e.onSignal(s)
		}
	}

	if e.tickCount%tickSampleEvery == 0 {
		live, ghost := e.orch.Live(), e.orch.Ghost()
		e.eventLog.EmitSimple(EventTypeTick, e.tickCount, TickPayload{
			DeltaTimeNs: int64(dt * 1e9),
			Phase:       e.orch.Phase(),
			Remaining:   e.orch.Clock().Remaining(),
			Live:        live.Pose.Position,
			Ghost:       ghost.Pose.Position,
		})
	}

	e.produceSnapshot(e.tickCount)

	if e.onTick != nil {
		e.onTick(TickStats{
			Duration: time.Since(start),
			Phase:    e.orch.Phase(),
			Inputs:   applied,
			Signals:  len(signals),
		})
	}
}

// Do runs fn with exclusive access to the orchestrator, between ticks
func (e *Engine) Do(fn func(o *Orchestrator)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.orch)
	e.produceSnapshot(e.tickCount)
}

// GetSnapshot returns the latest published snapshot without taking the
// engine lock
func (e *Engine) GetSnapshot() Snapshot {
	snap, _ := e.snapshotPool.AcquireRead()
	return snap
}

func (e *Engine) produceSnapshot(tick uint64) {
	o := e.orch
	snap := e.snapshotPool.AcquireWrite()
	limits := e.snapshotPool.GetLimits()

	snap.Tick = tick
	snap.Phase = o.Phase()
	snap.Remaining = o.Clock().Remaining()
	snap.HUD = o.HUD()
	snap.EndReason = o.EndReason()
	snap.Attempt = o.Attempt()
	snap.Live = o.Live()
	snap.Ghost = o.Ghost()
	snap.Camera = o.Camera()
	snap.Following = o.Following()
	snap.Spawn = o.Spawn()
	snap.FrameCount = o.Recorder().Log().Len()
	if fl := o.FrameLog(); fl != nil && o.Phase() != PhaseRecording {
		snap.FrameCount = fl.Len()
	}
	snap.PlaybackIndex = 0
	if pb := o.Playback(); pb != nil {
		snap.PlaybackIndex = pb.Index()
	}
	snap.Transition = 0
	if t := o.Transition(); t != nil {
		snap.Transition = t.Progress()
	}

	snap.Room = ""
	snap.Puzzle = 0
	if r := o.Room(); r != nil {
		snap.Room = r.ID
		if r.Puzzle != nil {
			snap.Puzzle = r.Puzzle.State()
		}
		for _, d := range r.Doors {
			if len(snap.Doors) >= limits.MaxDoors {
				break
			}
			snap.Doors = append(snap.Doors, DoorSnapshot{ID: d.ID, Position: d.Pose.Position, Locked: d.Locked()})
		}
		for _, k := range r.Keys {
			if len(snap.Keys) >= limits.MaxKeys {
				break
			}
			snap.Keys = append(snap.Keys, KeySnapshot{ID: k.ID, Position: k.Pose.Position, Collected: k.Collected()})
		}
		for _, b := range r.Behaviors {
			m, ok := b.(*MovingPlatform)
			if !ok || len(snap.Platforms) >= limits.MaxPlatforms {
				continue
			}
			snap.Platforms = append(snap.Platforms, PlatformSnapshot{ID: m.ID, Position: m.Pose.Position, Enabled: m.Enabled()})
		}
	}

	e.snapshotPool.PublishWrite()
}

// FrameSamples returns a copy of the last frozen recording
func (e *Engine) FrameSamples() []FrameSample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orch.FrameLog().Samples()
}

// RoomInfo describes a room for listings
type RoomInfo struct {
	ID            RoomID  `json:"id"`
	Active        bool    `json:"active"`
	GhostSpawn    Vec3    `json:"ghostSpawn"`
	PhaseDuration float64 `json:"phaseDuration"`
	Regions       int     `json:"regions"`
	HasPuzzle     bool    `json:"hasPuzzle"`
}

// Rooms lists every room sorted by ID
func (e *Engine) Rooms() []RoomInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	rooms := e.orch.Rooms()
	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomInfo{
			ID:            r.ID,
			Active:        r.Active(),
			GhostSpawn:    r.GhostSpawn,
			PhaseDuration: r.PhaseDuration,
			Regions:       len(r.Regions),
			HasPuzzle:     r.Puzzle != nil,
		})
	}
	return out
}

// Stats returns loop counters for monitoring
func (e *Engine) Stats() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]interface{}{
		"ticks":    e.tickCount,
		"tickRate": e.tickRate,
		"running":  e.running,
		"phase":    e.orch.Phase().String(),
	}
}

// TickRate returns the configured ticks per second
func (e *Engine) TickRate() int {
	return e.tickRate
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}
