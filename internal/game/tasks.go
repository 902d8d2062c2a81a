package game

// Task is a multi-tick operation advanced by the driver tick instead of
// blocking it. Advance returns true once the task has finished.
type Task interface {
	Advance(dt float64) bool
}

// RoomTransition eases the live and ghost entities to a new room's spawn
// point while the camera follow target eases to spawn + camera offset.
type RoomTransition struct {
	Room     *Room
	Duration float64

	liveFrom, ghostFrom, camFrom Vec3
	target, camTarget            Vec3
	progress                     float64

	out *outbox
}

// NewRoomTransition starts a transition to room. A non-positive duration
// completes on the first Advance.
func NewRoomTransition(room *Room, duration float64, live, ghost, cam, camOffset Vec3, out *outbox) *RoomTransition {
	return &RoomTransition{
		Room:      room,
		Duration:  duration,
		liveFrom:  live,
		ghostFrom: ghost,
		camFrom:   cam,
		target:    room.GhostSpawn,
		camTarget: room.GhostSpawn.Add(camOffset),
		out:       out,
	}
}

// Advance moves progress forward by dt and emits the eased positions
func (t *RoomTransition) Advance(dt float64) bool {
	if t.Duration <= 0 {
		t.progress = 1
	} else {
		t.progress = clamp01(t.progress + dt/t.Duration)
	}

	k := EaseInOut(t.progress)
	live := PoseAt(t.liveFrom.Lerp(t.target, k))
	ghost := PoseAt(t.ghostFrom.Lerp(t.target, k))
	cam := t.camFrom.Lerp(t.camTarget, k)

	t.out.emit(Signal{Kind: SignalMoveEntity, Tag: TagLive, Pose: &live})
	t.out.emit(Signal{Kind: SignalMoveEntity, Tag: TagGhost, Pose: &ghost})
	t.out.emit(Signal{Kind: SignalMoveCamera, Target: &cam})
	return t.progress >= 1
}

// Progress returns the completed fraction in [0, 1]
func (t *RoomTransition) Progress() float64 {
	return t.progress
}

// Positions returns where the live entity, ghost and camera currently are
func (t *RoomTransition) Positions() (live, ghost, cam Vec3) {
	k := EaseInOut(t.progress)
	return t.liveFrom.Lerp(t.target, k), t.ghostFrom.Lerp(t.target, k), t.camFrom.Lerp(t.camTarget, k)
}

// DelayTask runs fn once after delay seconds of ticks
type DelayTask struct {
	remaining float64
	fn        func()
}

// NewDelayTask schedules fn
func NewDelayTask(delay float64, fn func()) *DelayTask {
	return &DelayTask{remaining: delay, fn: fn}
}

// Advance implements Task
func (d *DelayTask) Advance(dt float64) bool {
	d.remaining -= dt
	if d.remaining > 0 {
		return false
	}
	if d.fn != nil {
		d.fn()
	}
	return true
}
