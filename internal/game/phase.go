package game

// Phase is the time-loop state shared by the live entity and its ghost
type Phase uint8

const (
	PhaseIdle Phase = iota + 1
	PhaseRecording
	PhasePlayback
	PhaseComplete
	PhaseTimedOut
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhasePlayback:
		return "playback"
	case PhaseComplete:
		return "complete"
	case PhaseTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Ended reports whether the attempt is over and waits for a reset or a
// room change
func (p Phase) Ended() bool {
	return p == PhaseComplete || p == PhaseTimedOut
}

// HUD strings
const (
	StatusComplete     = "Level Complete!"
	StatusTimedOut     = "Timer Ran Out!"
	HintReset          = "Press R to Reset Room"
	NoticeDoorUnlocked = "Door Unlocked"
)

// End reasons for a TimedOut attempt
const (
	EndTimer = "timer"
	EndFell  = "fell"
)

// HUD holds the display values the UI layer renders
type HUD struct {
	Remaining  int    `json:"remaining"`
	Status     string `json:"status,omitempty"`
	KeyNotice  string `json:"keyNotice,omitempty"`
	DoorNotice string `json:"doorNotice,omitempty"`
	ResetHint  string `json:"resetHint,omitempty"`
}

// Actor is the live entity or the ghost as the core sees it
type Actor struct {
	Tag              EntityTag `json:"tag"`
	Pose             Pose      `json:"pose"`
	Active           bool      `json:"active"`
	ControlEnabled   bool      `json:"controlEnabled"`
	IgnoresCollision bool      `json:"ignoresCollision"`
}
