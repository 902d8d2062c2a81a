package game

// CountdownClock is a decrementing timer that reports expiry exactly once
// per Start.
type CountdownClock struct {
	remaining float64
	armed     bool
	listeners []func()
}

// Start arms the clock with duration seconds. Negative durations are
// treated as zero, which expires on the next Tick.
func (c *CountdownClock) Start(duration float64) {
	if duration < 0 {
		duration = 0
	}
	c.remaining = duration
	c.armed = true
}

// Stop disarms the clock without firing
func (c *CountdownClock) Stop() {
	c.armed = false
}

// Reset zeroes the clock and disarms it
func (c *CountdownClock) Reset() {
	c.remaining = 0
	c.armed = false
}

// Tick subtracts dt while armed. When remaining crosses zero it clamps to
// zero, disarms, notifies listeners and returns true.
func (c *CountdownClock) Tick(dt float64) bool {
	if !c.armed {
		return false
	}

	c.remaining -= dt
	if c.remaining > 0 {
		return false
	}

	c.remaining = 0
	c.armed = false
	for _, fn := range c.listeners {
		fn()
	}
	return true
}

// OnExpired subscribes fn to expiry notifications
func (c *CountdownClock) OnExpired(fn func()) {
	c.listeners = append(c.listeners, fn)
}

// Remaining returns the remaining time in seconds (never negative)
func (c *CountdownClock) Remaining() float64 {
	return c.remaining
}

// RemainingSeconds returns remaining time rounded up to whole seconds
func (c *CountdownClock) RemainingSeconds() int {
	return ceilSeconds(c.remaining)
}

// Armed reports whether the clock is counting down
func (c *CountdownClock) Armed() bool {
	return c.armed
}
