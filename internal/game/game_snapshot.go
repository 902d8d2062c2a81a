package game

import (
	"sync"
	"sync/atomic"
	"time"
)

// SnapshotLimits caps the per-snapshot entity slices
type SnapshotLimits struct {
	MaxDoors     int
	MaxKeys      int
	MaxPlatforms int
}

// DefaultLimits is enough for any hand-authored room
var DefaultLimits = SnapshotLimits{
	MaxDoors:     16,
	MaxKeys:      16,
	MaxPlatforms: 32,
}

// DoorSnapshot is an immutable door state
type DoorSnapshot struct {
	ID       EntityID `json:"id"`
	Position Vec3     `json:"position"`
	Locked   bool     `json:"locked"`
}

// KeySnapshot is an immutable key state
type KeySnapshot struct {
	ID        EntityID `json:"id"`
	Position  Vec3     `json:"position"`
	Collected bool     `json:"collected"`
}

// PlatformSnapshot is an immutable moving platform state
type PlatformSnapshot struct {
	ID       EntityID `json:"id"`
	Position Vec3     `json:"position"`
	Enabled  bool     `json:"enabled"`
}

// Snapshot is a complete immutable view of the loop for readers outside
// the tick goroutine
type Snapshot struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick"`

	Phase     Phase   `json:"phase"`
	Room      RoomID  `json:"room"`
	Remaining float64 `json:"remaining"`
	HUD       HUD     `json:"hud"`
	EndReason string  `json:"endReason,omitempty"`
	Attempt   string  `json:"attempt,omitempty"`

	Live      Actor     `json:"live"`
	Ghost     Actor     `json:"ghost"`
	Camera    Vec3      `json:"camera"`
	Following EntityTag `json:"following"`
	Spawn     Vec3      `json:"spawn"`

	FrameCount    int         `json:"frameCount"`
	PlaybackIndex int         `json:"playbackIndex"`
	Puzzle        PuzzleState `json:"puzzle,omitempty"`
	Transition    float64     `json:"transition"`

	Doors     []DoorSnapshot     `json:"doors"`
	Keys      []KeySnapshot      `json:"keys"`
	Platforms []PlatformSnapshot `json:"platforms"`
}

// clone copies s so the caller owns every slice
func (s *Snapshot) clone() Snapshot {
	out := *s
	out.Doors = append([]DoorSnapshot(nil), s.Doors...)
	out.Keys = append([]KeySnapshot(nil), s.Keys...)
	out.Platforms = append([]PlatformSnapshot(nil), s.Platforms...)
	return out
}

type snapshotSlot struct {
	mu   sync.RWMutex
	snap Snapshot
}

// SnapshotPool is a triple buffer: the tick writes one slot while readers
// copy the last published one. Slices keep their capacity between ticks.
type SnapshotPool struct {
	slots    [3]snapshotSlot
	limits   SnapshotLimits
	writeIdx uint32 // atomic - producer index
	readIdx  uint32 // atomic - consumer index
	sequence uint64 // atomic - monotonic sequence
	written  atomic.Bool
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits SnapshotLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}
	for i := range pool.slots {
		pool.slots[i].snap = Snapshot{
			Doors:     make([]DoorSnapshot, 0, limits.MaxDoors),
			Keys:      make([]KeySnapshot, 0, limits.MaxKeys),
			Platforms: make([]PlatformSnapshot, 0, limits.MaxPlatforms),
		}
	}
	return pool
}

// AcquireWrite locks the next write slot (producer only). It must be
// followed by PublishWrite.
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	slot := &p.slots[idx]
	slot.mu.Lock()

	snap := &slot.snap
	snap.Doors = snap.Doors[:0]
	snap.Keys = snap.Keys[:0]
	snap.Platforms = snap.Platforms[:0]
	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()
	return snap
}

// PublishWrite releases the write slot and makes it the one readers see
func (p *SnapshotPool) PublishWrite() {
	idx := atomic.LoadUint32(&p.writeIdx)
	p.slots[idx%3].mu.Unlock()
	atomic.StoreUint32(&p.readIdx, idx)
	p.written.Store(true)
}

// AcquireRead returns a copy of the latest published snapshot. ok is
// false before the first publish.
func (p *SnapshotPool) AcquireRead() (Snapshot, bool) {
	if !p.written.Load() {
		return Snapshot{}, false
	}
	slot := &p.slots[atomic.LoadUint32(&p.readIdx)%3]
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	return slot.snap.clone(), true
}

// GetLimits returns the slice caps
func (p *SnapshotPool) GetLimits() SnapshotLimits {
	return p.limits
}
