package game

// Playback replays a frozen frame log shifted so that it starts at the
// current spawn point. It is single-use: replaying again needs a new Init.
type Playback struct {
	log    *FrameLog
	offset Vec3
	index  int
	last   Pose
	ready  bool
}

// Init binds the frames and computes the spawn offset. An empty log is
// valid: the offset is zero and the ghost holds at the spawn point.
func (p *Playback) Init(log *FrameLog, spawn Vec3) {
	p.log = log
	p.index = 0
	p.offset = Vec3{}
	p.last = PoseAt(spawn)
	p.ready = true

	if log.Len() > 0 {
		p.offset = spawn.Sub(log.At(0).Position)
	}
}

// Tick returns the next replayed pose and advances. Past the end of the
// log it keeps returning the last pose (the ghost freezes in place).
func (p *Playback) Tick() Pose {
	if !p.ready || p.index >= p.log.Len() {
		return p.last
	}

	s := p.log.At(p.index)
	p.last = Pose{
		Position: s.Position.Add(p.offset),
		Rotation: s.Rotation,
	}
	p.index++
	return p.last
}

// Offset returns the spawn offset applied to every sample
func (p *Playback) Offset() Vec3 {
	return p.offset
}

// Index returns how many samples have been replayed
func (p *Playback) Index() int {
	return p.index
}

// Finished reports whether every sample has been replayed
func (p *Playback) Finished() bool {
	return p.ready && p.index >= p.log.Len()
}

// Current returns the last pose Tick produced without advancing
func (p *Playback) Current() Pose {
	return p.last
}
