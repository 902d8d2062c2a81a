package game

// FrameSample is one recorded pose. Immutable once appended.
type FrameSample struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
	Tick     int  `json:"tick"`
}

// Pose returns the sample as a pose
func (s FrameSample) Pose() Pose {
	return Pose{Position: s.Position, Rotation: s.Rotation}
}

// FrameLog is an append-only sequence of samples. Once frozen it rejects
// further appends, so a log handed to Playback can never change under it.
type FrameLog struct {
	samples []FrameSample
	frozen  bool
}

// NewFrameLog creates an empty, writable log
func NewFrameLog() *FrameLog {
	return &FrameLog{samples: make([]FrameSample, 0, 600)}
}

// Append adds a sample. Returns false if the log is frozen.
func (l *FrameLog) Append(s FrameSample) bool {
	if l.frozen {
		return false
	}
	l.samples = append(l.samples, s)
	return true
}

// Freeze makes the log read-only
func (l *FrameLog) Freeze() {
	l.frozen = true
}

// Frozen reports whether the log is read-only
func (l *FrameLog) Frozen() bool {
	return l.frozen
}

// Len returns the number of samples
func (l *FrameLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.samples)
}

// At returns sample i
func (l *FrameLog) At(i int) FrameSample {
	return l.samples[i]
}

// Samples returns a copy of the recorded samples
func (l *FrameLog) Samples() []FrameSample {
	if l == nil {
		return nil
	}
	out := make([]FrameSample, len(l.samples))
	copy(out, l.samples)
	return out
}

// Recorder appends one sample per Tick while active. It has no clock of
// its own; the caller decides cadence and duration.
type Recorder struct {
	log    *FrameLog
	active bool
}

// NewRecorder creates an idle recorder with an empty log
func NewRecorder() *Recorder {
	return &Recorder{log: NewFrameLog()}
}

// Start discards the previous log and begins appending to a fresh one.
// Logs returned by earlier Stop calls are left untouched.
func (r *Recorder) Start() {
	r.log = NewFrameLog()
	r.active = true
}

// Tick appends the pose as the next sample. No-op when not started.
func (r *Recorder) Tick(p Pose) {
	if !r.active {
		return
	}
	r.log.Append(FrameSample{
		Position: p.Position,
		Rotation: p.Rotation,
		Tick:     r.log.Len(),
	})
}

// Stop freezes the current log and returns it. Calling Stop on an idle
// recorder returns the last log unchanged.
func (r *Recorder) Stop() *FrameLog {
	r.active = false
	r.log.Freeze()
	return r.log
}

// Reset drops the current log without starting a new recording
func (r *Recorder) Reset() {
	r.log = NewFrameLog()
	r.active = false
}

// Active reports whether the recorder is appending
func (r *Recorder) Active() bool {
	return r.active
}

// Log returns the log currently being written (or the last frozen one)
func (r *Recorder) Log() *FrameLog {
	return r.log
}
