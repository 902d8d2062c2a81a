package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // sampled tick boundary
	EventTypePhase
	EventTypeKey
	EventTypePuzzle
	EventTypeRoom
	EventTypeReset
	EventTypeSignal
)

// EventVersion for backwards compatibility when reading old logs
const EventVersion uint8 = 1

// Event is one line of the JSONL event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`
	TickNum   uint64          `json:"tickNum"`
	RunID     string          `json:"runId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypePhase:
		return "phase"
	case EventTypeKey:
		return "key"
	case EventTypePuzzle:
		return "puzzle"
	case EventTypeRoom:
		return "room"
	case EventTypeReset:
		return "reset"
	case EventTypeSignal:
		return "signal"
	default:
		return "unknown"
	}
}

// MarshalText writes the type by name
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TickPayload is written every few ticks
type TickPayload struct {
	DeltaTimeNs int64   `json:"deltaTimeNs"`
	Phase       Phase   `json:"phase"`
	Remaining   float64 `json:"remaining"`
	Live        Vec3    `json:"live"`
	Ghost       Vec3    `json:"ghost"`
}

// PhasePayload describes a phase change
type PhasePayload struct {
	Room    RoomID `json:"room"`
	From    Phase  `json:"from"`
	To      Phase  `json:"to"`
	Reason  string `json:"reason,omitempty"`
	Attempt string `json:"attempt,omitempty"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload any) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, payload any) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Payload:   EncodePayload(payload),
	}
}

// eventTypeFor maps a signal to the log category it is recorded under.
// Per-tick movement signals are not logged; tick samples cover them.
func eventTypeFor(k SignalKind) (EventType, bool) {
	switch k {
	case SignalPhaseChanged:
		return EventTypePhase, true
	case SignalDoorUnlocked, SignalPuzzleResolved:
		return EventTypePuzzle, true
	case SignalKeyReset:
		return EventTypeKey, true
	case SignalBehaviorsEnabled:
		return EventTypeRoom, true
	case SignalResetRoom, SignalRestartLevel:
		return EventTypeReset, true
	case SignalMoveEntity, SignalMoveCamera:
		return EventTypeUnknown, false
	default:
		return EventTypeSignal, true
	}
}
