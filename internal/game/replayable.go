package game

// EntityID identifies a world entity (prop, key, door, platform...)
type EntityID string

// ReplayableSnapshot is the state an entity returns to on every reset
type ReplayableSnapshot struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
	Active   bool `json:"active"`
}

// Replayable is anything the registry can rewind
type Replayable interface {
	EntityID() EntityID
	Capture() ReplayableSnapshot
	Restore(ReplayableSnapshot)
}

// Prop is the base resettable entity. Richer entities embed it and
// override Restore to clear their own state as well.
type Prop struct {
	ID     EntityID
	Pose   Pose
	Active bool

	// enabled is owned by RoomLifecycle, not by resets
	enabled bool
}

// NewProp creates an active prop at p
func NewProp(id EntityID, p Vec3) Prop {
	return Prop{ID: id, Pose: PoseAt(p), Active: true}
}

// EntityID implements Replayable
func (p *Prop) EntityID() EntityID { return p.ID }

// Capture implements Replayable
func (p *Prop) Capture() ReplayableSnapshot {
	return ReplayableSnapshot{
		Position: p.Pose.Position,
		Rotation: p.Pose.Rotation,
		Active:   p.Active,
	}
}

// Restore implements Replayable
func (p *Prop) Restore(s ReplayableSnapshot) {
	p.Pose = Pose{Position: s.Position, Rotation: s.Rotation}
	p.Active = s.Active
}

// SetEnabled implements Behavior
func (p *Prop) SetEnabled(on bool) { p.enabled = on }

// Enabled implements Behavior
func (p *Prop) Enabled() bool { return p.enabled }

type registryEntry struct {
	entity   Replayable
	snapshot ReplayableSnapshot
}

// ReplayableRegistry captures each entity's state once, at registration,
// and rewinds every registered entity to it on ResetAll.
type ReplayableRegistry struct {
	entries []registryEntry
	index   map[EntityID]int
}

// NewReplayableRegistry creates an empty registry
func NewReplayableRegistry() *ReplayableRegistry {
	return &ReplayableRegistry{index: make(map[EntityID]int)}
}

// Register captures e's snapshot. Registering an ID twice is ignored and
// returns false; the first snapshot stays authoritative.
func (r *ReplayableRegistry) Register(e Replayable) bool {
	if e == nil {
		return false
	}
	id := e.EntityID()
	if _, ok := r.index[id]; ok {
		return false
	}
	r.index[id] = len(r.entries)
	r.entries = append(r.entries, registryEntry{entity: e, snapshot: e.Capture()})
	return true
}

// Unregister forgets an entity; later resets leave it alone
func (r *ReplayableRegistry) Unregister(id EntityID) {
	i, ok := r.index[id]
	if !ok {
		return
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.entries); j++ {
		r.index[r.entries[j].entity.EntityID()] = j
	}
}

// ResetAll restores every registered entity from its snapshot and
// returns how many were restored
func (r *ReplayableRegistry) ResetAll() int {
	for _, e := range r.entries {
		e.entity.Restore(e.snapshot)
	}
	return len(r.entries)
}

// Snapshot returns the stored snapshot for id
func (r *ReplayableRegistry) Snapshot(id EntityID) (ReplayableSnapshot, bool) {
	i, ok := r.index[id]
	if !ok {
		return ReplayableSnapshot{}, false
	}
	return r.entries[i].snapshot, true
}

// Len returns the number of registered entities
func (r *ReplayableRegistry) Len() int {
	return len(r.entries)
}
