package game

import "github.com/rs/zerolog/log"

// PuzzleState is the sync puzzle's resolution
type PuzzleState uint8

const (
	PuzzleNone PuzzleState = iota + 1
	PuzzleOneCollected
	PuzzleMatched
	PuzzleMismatched
)

// String returns the state name
func (s PuzzleState) String() string {
	switch s {
	case PuzzleNone:
		return "none"
	case PuzzleOneCollected:
		return "one_collected"
	case PuzzleMatched:
		return "matched"
	case PuzzleMismatched:
		return "mismatched"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON
func (s PuzzleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// KeyEvent records when (in remaining whole seconds) a key was taken
type KeyEvent struct {
	KeyID                    EntityID `json:"keyId"`
	CollectedAtRemainingTime int      `json:"collectedAtRemainingTime"`
}

// SyncPuzzle opens its door when two keys are collected at the same
// displayed countdown value. Which key comes first does not matter.
type SyncPuzzle struct {
	Door *Door
	Keys []*KeyPickup

	state  PuzzleState
	events []KeyEvent
	out    *outbox
}

// NewSyncPuzzle links a door and its keys
func NewSyncPuzzle(door *Door, keys ...*KeyPickup) *SyncPuzzle {
	return &SyncPuzzle{
		Door:   door,
		Keys:   keys,
		state:  PuzzleNone,
		events: make([]KeyEvent, 0, 2),
	}
}

// bind points the puzzle at the orchestrator's outbox
func (p *SyncPuzzle) bind(out *outbox) {
	p.out = out
}

// OnKeyCollected captures remaining (rounded up to whole seconds) for
// keyID. Once two distinct keys are in, the puzzle resolves: equal times
// unlock the door, unequal times put both keys back. Nothing happens
// after a match.
func (p *SyncPuzzle) OnKeyCollected(keyID EntityID, remaining float64) PuzzleState {
	if p.state == PuzzleMatched {
		return p.state
	}
	for _, ev := range p.events {
		if ev.KeyID == keyID {
			return p.state
		}
	}

	p.events = append(p.events, KeyEvent{
		KeyID:                    keyID,
		CollectedAtRemainingTime: ceilSeconds(remaining),
	})
	if len(p.events) < 2 {
		p.state = PuzzleOneCollected
		return p.state
	}

	first, second := p.events[0], p.events[1]
	if first.CollectedAtRemainingTime == second.CollectedAtRemainingTime {
		p.state = PuzzleMatched
		if p.Door != nil && p.Door.Unlock() {
			p.out.emit(Signal{Kind: SignalDoorUnlocked, Entity: p.Door.ID})
		}
		log.Info().Int("at", first.CollectedAtRemainingTime).Msg("🔑 keys synchronized, door unlocked")
	} else {
		p.state = PuzzleMismatched
		p.resetKeys()
		log.Info().
			Int("first", first.CollectedAtRemainingTime).
			Int("second", second.CollectedAtRemainingTime).
			Msg("🔑 keys out of sync, resetting")
	}
	p.out.emit(Signal{Kind: SignalPuzzleResolved, Puzzle: p.state})
	return p.state
}

func (p *SyncPuzzle) resetKeys() {
	p.events = p.events[:0]
	for _, k := range p.Keys {
		k.ResetKey()
		p.out.emit(Signal{Kind: SignalKeyReset, Entity: k.ID})
	}
}

// Reset clears captured times, returns keys and relocks the door
func (p *SyncPuzzle) Reset() {
	p.state = PuzzleNone
	p.events = p.events[:0]
	for _, k := range p.Keys {
		k.ResetKey()
	}
	if p.Door != nil {
		p.Door.Lock()
	}
}

// State returns the current resolution
func (p *SyncPuzzle) State() PuzzleState {
	return p.state
}

// Events returns the captured key events
func (p *SyncPuzzle) Events() []KeyEvent {
	out := make([]KeyEvent, len(p.events))
	copy(out, p.events)
	return out
}
