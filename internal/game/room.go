package game

import "github.com/rs/zerolog/log"

// RoomID identifies a room
type RoomID string

// RegionID identifies a trigger region
type RegionID string

// RegionKind says what entering a region means
type RegionKind uint8

const (
	RegionGoal RegionKind = iota
	RegionKey
	RegionRoomBoundary
	RegionButton
	RegionPlate
)

// String returns the region kind name used in level files
func (k RegionKind) String() string {
	switch k {
	case RegionGoal:
		return "goal"
	case RegionKey:
		return "key"
	case RegionRoomBoundary:
		return "boundary"
	case RegionButton:
		return "button"
	case RegionPlate:
		return "plate"
	default:
		return "unknown"
	}
}

// ParseRegionKind is the inverse of String
func ParseRegionKind(s string) (RegionKind, bool) {
	switch s {
	case "goal":
		return RegionGoal, true
	case "key":
		return RegionKey, true
	case "boundary":
		return RegionRoomBoundary, true
	case "button":
		return RegionButton, true
	case "plate":
		return RegionPlate, true
	}
	return 0, false
}

// Region is a trigger volume. Detection happens in the host's physics;
// the core only receives "entity entered region" events.
type Region struct {
	ID   RegionID
	Kind RegionKind

	Key        *KeyPickup     // RegionKey
	Door       *Door          // RegionGoal: optional gate
	Button     *TimerButton   // RegionButton
	Plate      *PressurePlate // RegionPlate
	TargetRoom RoomID         // RegionRoomBoundary
}

// Behavior is an entity whose activity follows its room
type Behavior interface {
	SetEnabled(bool)
	Enabled() bool
}

// Ticking is a behavior that advances every tick while enabled
type Ticking interface {
	Behavior
	Tick(dt float64)
}

// Rewinder is a behavior with its own clock. Rewind returns it to time
// zero without touching its registration snapshot.
type Rewinder interface {
	Rewind()
}

// Room is the smallest independently activatable section of a level
type Room struct {
	ID            RoomID
	GhostSpawn    Vec3
	PhaseDuration float64

	Behaviors []Behavior
	Regions   map[RegionID]*Region
	Keys      []*KeyPickup
	Doors     []*Door
	Puzzle    *SyncPuzzle

	active bool
}

// NewRoom creates an inactive room
func NewRoom(id RoomID, spawn Vec3, phaseDuration float64) *Room {
	return &Room{
		ID:            id,
		GhostSpawn:    spawn,
		PhaseDuration: phaseDuration,
		Regions:       make(map[RegionID]*Region),
	}
}

// Active reports whether this is the live room
func (r *Room) Active() bool {
	return r.active
}

// AddBehavior adds e to the room's behavior set
func (r *Room) AddBehavior(e Behavior) {
	r.Behaviors = append(r.Behaviors, e)
}

// AddRegion registers a trigger region
func (r *Room) AddRegion(reg *Region) {
	r.Regions[reg.ID] = reg
}

// Replayables lists every resettable entity the room owns
func (r *Room) Replayables() []Replayable {
	out := make([]Replayable, 0, len(r.Behaviors))
	for _, b := range r.Behaviors {
		if rp, ok := b.(Replayable); ok {
			out = append(out, rp)
		}
	}
	return out
}

func (r *Room) setBehaviors(on bool) {
	for _, b := range r.Behaviors {
		b.SetEnabled(on)
	}
}

// tick advances ticking behaviors; disabled ones ignore it
func (r *Room) tick(dt float64) {
	for _, b := range r.Behaviors {
		if t, ok := b.(Ticking); ok {
			t.Tick(dt)
		}
	}
}

// rewind puts timed behaviors back at their start so a recording and its
// playback see the same motion
func (r *Room) rewind() {
	for _, b := range r.Behaviors {
		if rw, ok := b.(Rewinder); ok {
			rw.Rewind()
		}
	}
}

// RoomLifecycle keeps at most one room active
type RoomLifecycle struct {
	current *Room
	out     *outbox
}

// NewRoomLifecycle creates a lifecycle with no active room. Enable and
// disable signals go to out (may be nil).
func NewRoomLifecycle(out *outbox) *RoomLifecycle {
	return &RoomLifecycle{out: out}
}

// Activate freezes the previously active room and enables r in the same
// step. Activating the already-active room changes nothing.
func (l *RoomLifecycle) Activate(r *Room) {
	if r == nil {
		log.Debug().Msg("room activate skipped: nil room")
		return
	}
	if l.current == r && r.active {
		return
	}
	if l.current != nil && l.current != r {
		l.Deactivate(l.current)
	}

	r.active = true
	r.setBehaviors(true)
	l.current = r
	l.out.emit(Signal{Kind: SignalBehaviorsEnabled, Room: r.ID, Enabled: true})
	log.Info().Str("room", string(r.ID)).Msg("🚪 room activated")
}

// Deactivate disables r's behaviors without activating a replacement
func (l *RoomLifecycle) Deactivate(r *Room) {
	if r == nil || !r.active {
		return
	}
	r.active = false
	r.setBehaviors(false)
	if l.current == r {
		l.current = nil
	}
	l.out.emit(Signal{Kind: SignalBehaviorsEnabled, Room: r.ID, Enabled: false})
}

// Current returns the active room, or nil
func (l *RoomLifecycle) Current() *Room {
	return l.current
}
