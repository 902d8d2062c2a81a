package game

import "math"

// KeyPickup is one of the two sync-puzzle keys. Either entity may collect it.
type KeyPickup struct {
	Prop
	collected bool
}

// NewKeyPickup creates a collectible key at p
func NewKeyPickup(id EntityID, p Vec3) *KeyPickup {
	return &KeyPickup{Prop: NewProp(id, p)}
}

// Collect marks the key taken and hides it. Returns false if it was
// already taken or is not in the world.
func (k *KeyPickup) Collect() bool {
	if k.collected || !k.Active {
		return false
	}
	k.collected = true
	k.Active = false
	return true
}

// ResetKey makes the key collectible again
func (k *KeyPickup) ResetKey() {
	k.collected = false
	k.Active = true
}

// Collected reports whether the key has been picked up
func (k *KeyPickup) Collected() bool {
	return k.collected
}

// Restore implements Replayable
func (k *KeyPickup) Restore(s ReplayableSnapshot) {
	k.Prop.Restore(s)
	k.collected = false
}

// Door blocks a goal until unlocked
type Door struct {
	Prop
	locked      bool
	startLocked bool
}

// NewDoor creates a door; locked is also the state resets return to
func NewDoor(id EntityID, p Vec3, locked bool) *Door {
	return &Door{Prop: NewProp(id, p), locked: locked, startLocked: locked}
}

// Unlock opens the door. Returns false if it was already open.
func (d *Door) Unlock() bool {
	if !d.locked {
		return false
	}
	d.locked = false
	return true
}

// Lock closes the door
func (d *Door) Lock() {
	d.locked = true
}

// Locked reports whether the door blocks passage
func (d *Door) Locked() bool {
	return d.locked
}

// Restore implements Replayable
func (d *Door) Restore(s ReplayableSnapshot) {
	d.Prop.Restore(s)
	d.locked = d.startLocked
}

// TimerButton starts a recording when the ghost steps on it. Its
// position becomes the shared spawn point.
type TimerButton struct {
	Prop
}

// NewTimerButton creates an armed button at p
func NewTimerButton(id EntityID, p Vec3) *TimerButton {
	return &TimerButton{Prop: NewProp(id, p)}
}

// Press disarms the button. Returns false if it was already pressed.
func (b *TimerButton) Press() bool {
	if !b.Active {
		return false
	}
	b.Active = false
	return true
}

// PressurePlate unlocks a linked door the first time the ghost crosses it
type PressurePlate struct {
	Prop
	Door     *Door
	unlocked bool
}

// NewPressurePlate creates a plate at p linked to door
func NewPressurePlate(id EntityID, p Vec3, door *Door) *PressurePlate {
	return &PressurePlate{Prop: NewProp(id, p), Door: door}
}

// Trigger unlocks the linked door once and removes the plate. Returns
// false when already used or when no door is linked.
func (pp *PressurePlate) Trigger() bool {
	if pp.unlocked || pp.Door == nil {
		return false
	}
	pp.Door.Unlock()
	pp.unlocked = true
	pp.Active = false
	return true
}

// Restore implements Replayable
func (pp *PressurePlate) Restore(s ReplayableSnapshot) {
	pp.Prop.Restore(s)
	pp.unlocked = false
}

// MovingPlatform oscillates around its start point. It only advances
// while its room has it enabled.
type MovingPlatform struct {
	Prop
	Distance float64
	Speed    float64
	AlongX   bool
	AlongZ   bool

	origin  Vec3
	phase   float64
	elapsed float64
}

// NewMovingPlatform creates a platform at p. reverse starts it moving
// towards negative X/Z.
func NewMovingPlatform(id EntityID, p Vec3, distance, speed float64, alongX, alongZ, reverse bool) *MovingPlatform {
	m := &MovingPlatform{
		Prop:     NewProp(id, p),
		Distance: distance,
		Speed:    speed,
		AlongX:   alongX,
		AlongZ:   alongZ,
		origin:   p,
	}
	if reverse {
		m.phase = math.Pi
	}
	return m
}

// Tick advances the platform by dt seconds
func (m *MovingPlatform) Tick(dt float64) {
	if !m.Enabled() {
		return
	}
	m.elapsed += dt
	m.Pose.Position = m.offsetAt(m.elapsed)
}

func (m *MovingPlatform) offsetAt(t float64) Vec3 {
	d := math.Sin(t*m.Speed+m.phase) * m.Distance
	p := m.origin
	if m.AlongX {
		p.X += d
	}
	if m.AlongZ {
		p.Z += d
	}
	return p
}

// Rewind implements Rewinder
func (m *MovingPlatform) Rewind() {
	m.elapsed = 0
	m.Pose.Position = m.offsetAt(0)
}

// Restore implements Replayable. Local time rewinds too, so the platform
// replays the same motion it had during the recording.
func (m *MovingPlatform) Restore(s ReplayableSnapshot) {
	m.Prop.Restore(s)
	m.elapsed = 0
}
