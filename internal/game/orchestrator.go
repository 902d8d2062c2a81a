package game

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options tunes the orchestrator. Zero values are usable but
// DefaultOptions matches the shipped feel.
type Options struct {
	TransitionDuration float64 // room-to-room ease, seconds
	CameraOffset       Vec3    // camera follow offset from the followed entity
	FallLimitY         float64 // live entity below this Y ends the attempt; 0 disables
	RevealDelay        float64 // delay before the reset hint shows
	NoticeDuration     float64 // how long the door notice stays up
}

// DefaultOptions returns the standard tuning
func DefaultOptions() Options {
	return Options{
		TransitionDuration: 1.0,
		CameraOffset:       Vec3{X: 0, Y: 10, Z: -10},
		FallLimitY:         -5,
		RevealDelay:        1.0,
		NoticeDuration:     2.0,
	}
}

type inputKind uint8

const (
	inBegin inputKind = iota + 1
	inForceSwitch
	inRegion
	inKey
	inReset
	inRoom
	inPose
)

type pendingInput struct {
	kind   inputKind
	tag    EntityTag
	region RegionID
	key    EntityID
	room   RoomID
	pose   Pose
}

// Orchestrator is the top-level time-loop state machine. It is the only
// owner of the current room, the shared spawn point and the active
// recording/playback. Not safe for concurrent use; Engine serializes access.
type Orchestrator struct {
	opts Options

	rooms     map[RoomID]*Room
	lifecycle *RoomLifecycle
	registry  *ReplayableRegistry
	recorder  *Recorder
	playback  *Playback
	clock     *CountdownClock
	lastLog   *FrameLog

	live, ghost Actor
	camera      Vec3
	follow      EntityTag

	phase     Phase
	spawn     Vec3
	endReason string
	attempt   string
	ticks     uint64

	pending     []pendingInput
	goalReached bool
	forceSwitch bool
	fell        bool

	transition *RoomTransition
	tasks      []Task
	hud        HUD

	out outbox
}

// NewOrchestrator creates an orchestrator with no rooms. Add rooms, then
// call Start.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		opts:     opts,
		rooms:    make(map[RoomID]*Room),
		registry: NewReplayableRegistry(),
		recorder: NewRecorder(),
		clock:    &CountdownClock{},
		phase:    PhaseIdle,
		follow:   TagGhost,
		live:     Actor{Tag: TagLive},
		ghost:    Actor{Tag: TagGhost, Active: true},
	}
	o.lifecycle = NewRoomLifecycle(&o.out)
	return o
}

// AddRoom registers a room and its replayable entities. Returns false for
// a nil room or a duplicate ID.
func (o *Orchestrator) AddRoom(r *Room) bool {
	if r == nil {
		return false
	}
	if _, ok := o.rooms[r.ID]; ok {
		log.Warn().Str("room", string(r.ID)).Msg("duplicate room ignored")
		return false
	}
	o.rooms[r.ID] = r
	for _, e := range r.Replayables() {
		if !o.registry.Register(e) {
			log.Debug().Str("entity", string(e.EntityID())).Msg("replayable already registered")
		}
	}
	if r.Puzzle != nil {
		r.Puzzle.bind(&o.out)
	}
	return true
}

// Start activates the first room and places the ghost at its spawn. It
// only works once.
func (o *Orchestrator) Start(id RoomID) bool {
	if o.lifecycle.Current() != nil {
		log.Debug().Msg("orchestrator already started")
		return false
	}
	r, ok := o.rooms[id]
	if !ok {
		log.Warn().Str("room", string(id)).Msg("start: unknown room")
		return false
	}
	o.lifecycle.Activate(r)
	o.spawn = r.GhostSpawn
	o.placeGhost(r.GhostSpawn)
	o.setControl(&o.ghost, true)
	o.setFollow(TagGhost)
	return true
}

// Begin requests Idle -> Recording with spawn as the shared spawn point
func (o *Orchestrator) Begin(spawn Vec3) {
	o.pending = append(o.pending, pendingInput{kind: inBegin, pose: PoseAt(spawn)})
}

// ForceSwitch requests an early Recording -> Playback
func (o *Orchestrator) ForceSwitch() {
	o.pending = append(o.pending, pendingInput{kind: inForceSwitch})
}

// EnteredRegion reports that an entity entered a trigger region
func (o *Orchestrator) EnteredRegion(tag EntityTag, id RegionID) {
	o.pending = append(o.pending, pendingInput{kind: inRegion, tag: tag, region: id})
}

// KeyCollected reports that a key pickup was taken
func (o *Orchestrator) KeyCollected(id EntityID) {
	o.pending = append(o.pending, pendingInput{kind: inKey, key: id})
}

// ManualReset requests a restart of the current room
func (o *Orchestrator) ManualReset() {
	o.pending = append(o.pending, pendingInput{kind: inReset})
}

// ChangeRoom requests a move to another room
func (o *Orchestrator) ChangeRoom(id RoomID) {
	o.pending = append(o.pending, pendingInput{kind: inRoom, room: id})
}

// SetPose reports the host-simulated pose of an entity
func (o *Orchestrator) SetPose(tag EntityTag, p Pose) {
	o.pending = append(o.pending, pendingInput{kind: inPose, tag: tag, pose: p})
}

// Update runs one tick: apply inputs, advance clocks and recordings,
// then evaluate phase transitions.
func (o *Orchestrator) Update(dt float64) {
	o.ticks++

	inputs := o.pending
	o.pending = nil
	for _, in := range inputs {
		o.apply(in)
	}

	expired := o.clock.Tick(dt)
	if r := o.lifecycle.Current(); r != nil {
		r.tick(dt)
	}
	switch o.phase {
	case PhaseRecording:
		o.recorder.Tick(o.ghost.Pose)
	case PhasePlayback:
		if o.playback != nil {
			p := o.playback.Tick()
			o.ghost.Pose = p
			o.out.emit(Signal{Kind: SignalMoveEntity, Tag: TagGhost, Pose: &p})
		}
	}
	o.advanceTransition(dt)
	o.advanceTasks(dt)

	switch o.phase {
	case PhaseRecording:
		if expired || o.forceSwitch {
			o.enterPlayback()
		}
	case PhasePlayback:
		switch {
		case o.goalReached:
			o.complete()
		case o.fell:
			o.timeOut(EndFell)
		case expired:
			o.timeOut(EndTimer)
		}
	}
	o.goalReached = false
	o.forceSwitch = false
	o.fell = false

	if o.transition == nil {
		o.camera = o.followed().Pose.Position.Add(o.opts.CameraOffset)
	}
	o.hud.Remaining = o.clock.RemainingSeconds()
}

func (o *Orchestrator) apply(in pendingInput) {
	switch in.kind {
	case inBegin:
		o.begin(in.pose.Position)
	case inForceSwitch:
		if o.phase != PhaseRecording {
			log.Debug().Stringer("phase", o.phase).Msg("force switch ignored")
			return
		}
		o.forceSwitch = true
	case inRegion:
		o.enteredRegion(in.tag, in.region)
	case inKey:
		o.collectKey(in.key)
	case inReset:
		o.manualReset()
	case inRoom:
		o.changeRoom(in.room)
	case inPose:
		o.setPose(in.tag, in.pose)
	}
}

func (o *Orchestrator) begin(spawn Vec3) bool {
	if o.phase != PhaseIdle || o.transition != nil {
		log.Debug().Stringer("phase", o.phase).Msg("begin ignored")
		return false
	}
	r := o.lifecycle.Current()
	if r == nil {
		log.Debug().Msg("begin ignored: no active room")
		return false
	}
	o.spawn = spawn
	o.startRecording(r)
	return true
}

// startRecording is shared by begin and manual reset. The ghost is the
// controlled entity while the live entity waits for Playback.
func (o *Orchestrator) startRecording(r *Room) {
	r.rewind()
	o.recorder.Start()
	o.clock.Start(r.PhaseDuration)
	o.attempt = uuid.NewString()
	o.endReason = ""
	o.live.Active = false
	o.setControl(&o.live, false)
	o.setControl(&o.ghost, true)
	o.setFollow(TagGhost)
	o.setPhase(PhaseRecording)
}

func (o *Orchestrator) enterPlayback() {
	r := o.lifecycle.Current()
	if r == nil {
		log.Debug().Msg("playback skipped: no active room")
		return
	}

	frozen := o.recorder.Stop()
	o.lastLog = frozen

	// entities rewind before anything is placed for Playback
	o.registry.ResetAll()
	if r.Puzzle != nil {
		r.Puzzle.Reset()
	}
	o.clearNotices()

	o.playback = &Playback{}
	o.playback.Init(frozen, o.spawn)

	o.live.Active = true
	o.placeLive(o.spawn)
	o.setControl(&o.live, true)

	o.setControl(&o.ghost, false)
	o.placeGhost(o.spawn)
	if !o.ghost.IgnoresCollision {
		o.ghost.IgnoresCollision = true
		o.live.IgnoresCollision = true
		o.out.emit(Signal{Kind: SignalIgnoreCollision, Enabled: true})
	}

	o.setFollow(TagLive)
	o.clock.Start(r.PhaseDuration)
	o.setPhase(PhasePlayback)
}

func (o *Orchestrator) complete() {
	o.clock.Stop()
	o.endReason = ""
	o.setControl(&o.live, false)
	o.hud.Status = StatusComplete
	o.setPhase(PhaseComplete)
	o.scheduleResetHint()
}

func (o *Orchestrator) timeOut(reason string) {
	o.clock.Stop()
	o.endReason = reason
	o.setControl(&o.live, false)
	if reason == EndFell {
		o.out.emit(Signal{Kind: SignalRestartLevel, Room: o.roomID()})
	}
	o.hud.Status = StatusTimedOut
	o.setPhase(PhaseTimedOut)
	o.scheduleResetHint()
}

func (o *Orchestrator) scheduleResetHint() {
	o.tasks = append(o.tasks, NewDelayTask(o.opts.RevealDelay, func() {
		if o.phase.Ended() {
			o.hud.ResetHint = HintReset
		}
	}))
}

func (o *Orchestrator) manualReset() bool {
	if !o.phase.Ended() {
		log.Debug().Stringer("phase", o.phase).Msg("manual reset ignored")
		return false
	}
	r := o.lifecycle.Current()
	if r == nil {
		log.Debug().Msg("manual reset ignored: no active room")
		return false
	}

	o.resetWorld()
	o.lifecycle.Activate(r)
	o.out.emit(Signal{Kind: SignalResetRoom, Room: r.ID})

	o.placeGhost(o.spawn)
	o.startRecording(r)
	return true
}

// resetWorld rewinds entities and drops all per-attempt state
func (o *Orchestrator) resetWorld() {
	o.registry.ResetAll()
	o.recorder.Reset()
	o.clock.Reset()
	o.playback = nil
	if r := o.lifecycle.Current(); r != nil && r.Puzzle != nil {
		r.Puzzle.Reset()
	}
	o.tasks = nil
	o.hud = HUD{}
	o.ghost.IgnoresCollision = false
	o.live.IgnoresCollision = false
}

func (o *Orchestrator) changeRoom(id RoomID) bool {
	midTransition := o.phase == PhaseIdle && o.transition != nil
	if !o.phase.Ended() && !midTransition {
		log.Debug().Stringer("phase", o.phase).Msg("room change ignored")
		return false
	}
	target, ok := o.rooms[id]
	if !ok {
		log.Debug().Str("room", string(id)).Msg("room change ignored: unknown room")
		return false
	}

	liveFrom, ghostFrom, camFrom := o.live.Pose.Position, o.ghost.Pose.Position, o.camera
	if o.transition != nil {
		liveFrom, ghostFrom, camFrom = o.transition.Positions()
	}

	o.resetWorld()
	o.lifecycle.Activate(target)
	if target.Puzzle != nil {
		target.Puzzle.Reset()
	}
	o.spawn = target.GhostSpawn
	o.endReason = ""

	o.setControl(&o.live, false)
	o.setControl(&o.ghost, false)
	o.setFollow(TagGhost)
	o.transition = NewRoomTransition(target, o.opts.TransitionDuration, liveFrom, ghostFrom, camFrom, o.opts.CameraOffset, &o.out)
	if o.phase != PhaseIdle {
		o.setPhase(PhaseIdle)
	}
	return true
}

func (o *Orchestrator) advanceTransition(dt float64) {
	t := o.transition
	if t == nil {
		return
	}
	done := t.Advance(dt)
	live, ghost, cam := t.Positions()
	o.live.Pose.Position = live
	o.ghost.Pose.Position = ghost
	o.camera = cam
	if !done {
		return
	}
	o.transition = nil
	o.live.Active = false
	o.setControl(&o.ghost, true)
	log.Info().Str("room", string(t.Room.ID)).Msg("🚪 room transition finished")
}

func (o *Orchestrator) advanceTasks(dt float64) {
	kept := o.tasks[:0]
	for _, t := range o.tasks {
		if !t.Advance(dt) {
			kept = append(kept, t)
		}
	}
	o.tasks = kept
}

func (o *Orchestrator) enteredRegion(tag EntityTag, id RegionID) {
	r := o.lifecycle.Current()
	if r == nil {
		log.Debug().Msg("region event ignored: no active room")
		return
	}
	reg, ok := r.Regions[id]
	if !ok {
		log.Debug().Str("region", string(id)).Msg("region event ignored: unknown region")
		return
	}

	switch reg.Kind {
	case RegionGoal:
		if tag != TagLive || o.phase != PhasePlayback {
			return
		}
		if reg.Door != nil && reg.Door.Locked() {
			return
		}
		o.goalReached = true
	case RegionKey:
		if reg.Key == nil || !o.keysLive() || !reg.Key.Collect() {
			return
		}
		o.registerKey(r, reg.Key)
	case RegionRoomBoundary:
		if tag == TagLive && o.phase == PhaseComplete {
			o.changeRoom(reg.TargetRoom)
		}
	case RegionButton:
		if tag != TagGhost || o.phase != PhaseIdle || o.transition != nil || reg.Button == nil {
			return
		}
		if reg.Button.Press() {
			o.begin(reg.Button.Pose.Position)
		}
	case RegionPlate:
		if tag != TagGhost || reg.Plate == nil {
			return
		}
		if o.phase != PhaseRecording && o.phase != PhasePlayback {
			return
		}
		if reg.Plate.Trigger() {
			o.out.emit(Signal{Kind: SignalDoorUnlocked, Entity: reg.Plate.Door.ID})
			o.hud.DoorNotice = NoticeDoorUnlocked
			o.tasks = append(o.tasks, NewDelayTask(o.opts.NoticeDuration, func() {
				o.hud.DoorNotice = ""
			}))
		}
	}
}

func (o *Orchestrator) collectKey(id EntityID) {
	r := o.lifecycle.Current()
	if r == nil {
		return
	}
	for _, k := range r.Keys {
		if k.ID == id {
			if o.keysLive() && k.Collect() {
				o.registerKey(r, k)
			}
			return
		}
	}
	log.Debug().Str("key", string(id)).Msg("key event ignored: unknown key")
}

// keysLive reports whether a pickup counts right now. Outside an attempt
// the key stays in place.
func (o *Orchestrator) keysLive() bool {
	return o.phase == PhaseRecording || o.phase == PhasePlayback
}

func (o *Orchestrator) registerKey(r *Room, k *KeyPickup) {
	if r.Puzzle == nil {
		log.Debug().Str("room", string(r.ID)).Msg("key collected in room without puzzle")
		return
	}
	remaining := o.clock.Remaining()
	if o.phase == PhasePlayback {
		o.hud.KeyNotice = fmt.Sprintf("Ghost collected key at: %ds", ceilSeconds(remaining))
	}
	// the clock stops on unlock only once the live entity is acting,
	// otherwise Recording could never expire
	if r.Puzzle.OnKeyCollected(k.ID, remaining) == PuzzleMatched && o.phase == PhasePlayback {
		o.clock.Stop()
	}
}

func (o *Orchestrator) setPose(tag EntityTag, p Pose) {
	switch tag {
	case TagGhost:
		if !o.ghost.ControlEnabled {
			return
		}
		o.ghost.Pose = p
	case TagLive:
		if !o.live.Active || !o.live.ControlEnabled {
			return
		}
		o.live.Pose = p
		if o.phase == PhasePlayback && o.opts.FallLimitY != 0 && p.Position.Y < o.opts.FallLimitY {
			o.fell = true
		}
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	from := o.phase
	o.phase = p
	o.out.emit(Signal{Kind: SignalPhaseChanged, Room: o.roomID(), From: from, Phase: p})
	log.Info().
		Str("room", string(o.roomID())).
		Stringer("from", from).
		Stringer("to", p).
		Msg("⏱️ phase changed")
}

func (o *Orchestrator) setControl(a *Actor, on bool) {
	if a.ControlEnabled == on {
		return
	}
	a.ControlEnabled = on
	o.out.emit(Signal{Kind: SignalControlEnabled, Tag: a.Tag, Enabled: on})
}

func (o *Orchestrator) setFollow(tag EntityTag) {
	o.follow = tag
	o.out.emit(Signal{Kind: SignalCameraFollow, Tag: tag})
}

func (o *Orchestrator) placeGhost(at Vec3) {
	o.ghost.Pose = PoseAt(at)
	p := o.ghost.Pose
	o.out.emit(Signal{Kind: SignalMoveEntity, Tag: TagGhost, Pose: &p})
}

func (o *Orchestrator) placeLive(at Vec3) {
	o.live.Pose = PoseAt(at)
	p := o.live.Pose
	o.out.emit(Signal{Kind: SignalMoveEntity, Tag: TagLive, Pose: &p})
}

func (o *Orchestrator) clearNotices() {
	o.hud.KeyNotice = ""
	o.hud.DoorNotice = ""
}

func (o *Orchestrator) followed() *Actor {
	if o.follow == TagLive {
		return &o.live
	}
	return &o.ghost
}

func (o *Orchestrator) roomID() RoomID {
	if r := o.lifecycle.Current(); r != nil {
		return r.ID
	}
	return ""
}

// DrainSignals returns and clears the signals emitted since the last call
func (o *Orchestrator) DrainSignals() []Signal {
	return o.out.drain()
}

// Phase returns the current phase
func (o *Orchestrator) Phase() Phase { return o.phase }

// Room returns the active room, or nil
func (o *Orchestrator) Room() *Room { return o.lifecycle.Current() }

// Rooms returns all rooms sorted by ID
func (o *Orchestrator) Rooms() []*Room {
	out := make([]*Room, 0, len(o.rooms))
	for _, r := range o.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HUD returns the display values
func (o *Orchestrator) HUD() HUD { return o.hud }

// Live returns the live entity state
func (o *Orchestrator) Live() Actor { return o.live }

// Ghost returns the ghost state
func (o *Orchestrator) Ghost() Actor { return o.ghost }

// Camera returns the camera follow target position
func (o *Orchestrator) Camera() Vec3 { return o.camera }

// Following returns the entity the camera follows
func (o *Orchestrator) Following() EntityTag { return o.follow }

// Spawn returns the shared spawn point
func (o *Orchestrator) Spawn() Vec3 { return o.spawn }

// Clock exposes the countdown for reading
func (o *Orchestrator) Clock() *CountdownClock { return o.clock }

// Recorder exposes the recorder for reading
func (o *Orchestrator) Recorder() *Recorder { return o.recorder }

// Playback returns the active playback, or nil outside Playback
func (o *Orchestrator) Playback() *Playback { return o.playback }

// FrameLog returns the last frozen recording, or nil
func (o *Orchestrator) FrameLog() *FrameLog { return o.lastLog }

// Registry exposes the replayable registry
func (o *Orchestrator) Registry() *ReplayableRegistry { return o.registry }

// Transition returns the running room transition, or nil
func (o *Orchestrator) Transition() *RoomTransition { return o.transition }

// EndReason says why the last attempt timed out ("timer" or "fell")
func (o *Orchestrator) EndReason() string { return o.endReason }

// Attempt returns the ID of the current recording attempt
func (o *Orchestrator) Attempt() string { return o.attempt }

// Ticks returns how many updates have run
func (o *Orchestrator) Ticks() uint64 { return o.ticks }
