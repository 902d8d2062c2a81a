package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Circular buffer size
	MaxEventsPerSec    = 2000                   // Global rate limit
	BatchFlushSize     = 64                     // Events per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
)

// EventLog provides bounded, rate-limited JSONL event logging. Emit never
// blocks the tick: when the ring is full the oldest event is dropped.
type EventLog struct {
	runID string

	mu        sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64
	readHead  uint64
	sequence  uint64

	limiter *rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
	writtenCount atomic.Uint64
}

// NewEventLog creates an event log stamped with a fresh run ID
func NewEventLog() *EventLog {
	return &EventLog{
		runID:    uuid.NewString(),
		limiter:  rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan: make(chan struct{}),
	}
}

// RunID identifies this process run in every written event
func (el *EventLog) RunID() string {
	return el.runID
}

// Start begins the async writer goroutine. An empty path buffers events
// without writing them anywhere.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open event log %s: %w", filePath, err)
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(1)
	go el.writerLoop()

	log.Info().Str("path", filePath).Str("run", el.runID).Msg("📝 event log started")
	return nil
}

// Stop flushes what is buffered and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			if err := el.file.Close(); err != nil {
				log.Warn().Err(err).Msg("event log close failed")
			}
			el.file = nil
		}
		el.fileMu.Unlock()
	})
}

// Emit adds an event. Returns false if the log is not running or the
// event was rate limited.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.limiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	if el.writeHead-el.readHead >= EventBufferSize {
		// rolling window: oldest goes
		el.readHead++
		el.droppedCount.Add(1)
	}
	el.sequence++
	event.Sequence = el.sequence
	event.RunID = el.runID
	el.buffer[el.writeHead%EventBufferSize] = event
	el.writeHead++
	el.mu.Unlock()

	el.totalCount.Add(1)
	return true
}

// EmitSimple builds and emits an event in one call
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, payload any) bool {
	return el.Emit(NewEvent(eventType, tickNum, payload))
}

// EmitSignal records a core signal under its log category
func (el *EventLog) EmitSignal(tickNum uint64, s Signal) bool {
	t, ok := eventTypeFor(s.Kind)
	if !ok {
		return false
	}
	return el.EmitSimple(t, tickNum, s)
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
		el.readHead++
	}
	return batch
}

// flushBatch writes events to disk (append-only, newline-delimited JSON)
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	w := bufio.NewWriter(el.file)
	enc := json.NewEncoder(w)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			log.Warn().Err(err).Stringer("type", event.Type).Msg("event encode failed")
			continue
		}
		el.writtenCount.Add(1)
	}
	if err := w.Flush(); err != nil {
		log.Warn().Err(err).Msg("event log flush failed")
	}
}

// GetStats returns counters for monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	el.mu.Lock()
	pending := el.writeHead - el.readHead
	el.mu.Unlock()

	return map[string]interface{}{
		"run":     el.runID,
		"total":   el.totalCount.Load(),
		"dropped": el.droppedCount.Load(),
		"written": el.writtenCount.Load(),
		"pending": pending,
		"running": el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return el.droppedCount.Load()
}

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return el.totalCount.Load()
}
