package game

// EntityTag is the closed set of actors that can trip regions
type EntityTag uint8

const (
	TagLive EntityTag = iota + 1
	TagGhost
)

// String returns the tag name
func (t EntityTag) String() string {
	switch t {
	case TagLive:
		return "player"
	case TagGhost:
		return "ghost"
	default:
		return "none"
	}
}

// MarshalText renders the tag by name in JSON
func (t EntityTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseEntityTag is the inverse of String
func ParseEntityTag(s string) (EntityTag, bool) {
	switch s {
	case "player", "live":
		return TagLive, true
	case "ghost":
		return TagGhost, true
	}
	return 0, false
}

// SignalKind classifies an output emitted by the core
type SignalKind uint8

const (
	SignalPhaseChanged SignalKind = iota + 1
	SignalBehaviorsEnabled
	SignalMoveEntity
	SignalMoveCamera
	SignalCameraFollow
	SignalIgnoreCollision
	SignalControlEnabled
	SignalDoorUnlocked
	SignalKeyReset
	SignalPuzzleResolved
	SignalRestartLevel
	SignalResetRoom
)

var signalNames = map[SignalKind]string{
	SignalPhaseChanged:     "phase_changed",
	SignalBehaviorsEnabled: "behaviors_enabled",
	SignalMoveEntity:       "move_entity",
	SignalMoveCamera:       "move_camera",
	SignalCameraFollow:     "camera_follow",
	SignalIgnoreCollision:  "ignore_collision",
	SignalControlEnabled:   "control_enabled",
	SignalDoorUnlocked:     "door_unlocked",
	SignalKeyReset:         "key_reset",
	SignalPuzzleResolved:   "puzzle_resolved",
	SignalRestartLevel:     "restart_level",
	SignalResetRoom:        "reset_room",
}

// String returns the wire name of the signal kind
func (k SignalKind) String() string {
	if s, ok := signalNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the kind by name in JSON
func (k SignalKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Signal is a request or notification for the collaborators around the
// core: renderer, physics, camera, UI. Only the fields relevant to Kind
// are set.
type Signal struct {
	Kind    SignalKind  `json:"kind"`
	Room    RoomID      `json:"room,omitempty"`
	Tag     EntityTag   `json:"tag,omitempty"`
	Entity  EntityID    `json:"entity,omitempty"`
	Pose    *Pose       `json:"pose,omitempty"`
	Target  *Vec3       `json:"target,omitempty"`
	From    Phase       `json:"from,omitempty"`
	Phase   Phase       `json:"phase,omitempty"`
	Puzzle  PuzzleState `json:"puzzle,omitempty"`
	Enabled bool        `json:"enabled,omitempty"`
}

// outbox collects signals emitted during a tick
type outbox struct {
	signals []Signal
}

func (o *outbox) emit(s Signal) {
	if o == nil {
		return
	}
	o.signals = append(o.signals, s)
}

func (o *outbox) drain() []Signal {
	out := o.signals
	o.signals = nil
	return out
}
