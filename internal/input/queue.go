package input

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"ghost-loop/internal/game"
)

// Queue buffers commands from HTTP and websocket goroutines until the
// engine drains them at the start of a tick. Enqueue never blocks: when
// the buffer is full the command is dropped and counted.
type Queue struct {
	commands chan Command
	limiter  *Limiter

	// Metrics
	enqueued    atomic.Uint64
	applied     atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int
	Limiter    LimiterConfig
}

// DefaultQueueConfig returns sensible defaults for production
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256,
		Limiter:    DefaultLimiterConfig(),
	}
}

// NewQueue creates a command queue
func NewQueue(config QueueConfig) *Queue {
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	return &Queue{
		commands: make(chan Command, config.BufferSize),
		limiter:  NewLimiter(config.Limiter),
	}
}

// Enqueue adds a command. Returns false if it was rate limited or the
// queue is full.
func (q *Queue) Enqueue(cmd Command) bool {
	if !q.limiter.Allow(cmd.Source) {
		return false
	}
	cmd.ReceivedAt = time.Now()

	select {
	case q.commands <- cmd:
		q.enqueued.Add(1)
		return true
	default:
		dropped := q.dropped.Add(1)
		if dropped%100 == 1 {
			log.Warn().
				Str("source", cmd.Source).
				Stringer("kind", cmd.Kind).
				Uint64("dropped", dropped).
				Msg("⚠️ input queue full, dropping command")
		}
		return false
	}
}

// Drain applies every command that was queued when the call started, in
// FIFO order. Commands arriving during the drain wait for the next tick.
func (q *Queue) Drain(o *game.Orchestrator) int {
	n := len(q.commands)
	for i := 0; i < n; i++ {
		cmd := <-q.commands
		q.updateAvgWaitTime(time.Since(cmd.ReceivedAt))
		cmd.Apply(o)
	}
	q.applied.Add(uint64(n))
	return n
}

// updateAvgWaitTime updates exponential moving average
func (q *Queue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// EMA with alpha = 0.1
	q.avgWaitTime.Store((current*9 + waitTime.Nanoseconds()) / 10)
}

// Stats returns current queue statistics
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Applied:        q.applied.Load(),
		Dropped:        q.dropped.Load(),
		Limited:        q.limiter.Limited(),
		Pending:        uint64(len(q.commands)),
		BufferSize:     uint64(cap(q.commands)),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(len(q.commands)) / float64(cap(q.commands)) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Applied        uint64  `json:"applied"`
	Dropped        uint64  `json:"dropped"`
	Limited        uint64  `json:"limited"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
