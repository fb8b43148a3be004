package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/loghealer/healthmon/internal/logger"
)

// DefaultBufferSize is the capacity of the async event channel.
const DefaultBufferSize = 1000

// Bus is an async pub/sub for engine events. Publish never blocks: events go
// to a buffered channel drained by a single worker, so the probe pipeline is
// never held up by slow subscribers. Events are dropped when the buffer is full.
type Bus struct {
	handlers []Handler
	mu       sync.RWMutex
	eventCh  chan *Event
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
	log      logger.Logger
}

// NewBus creates a bus and starts its worker. A bufferSize <= 0 uses DefaultBufferSize.
func NewBus(bufferSize int, log logger.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	b := &Bus{
		eventCh: make(chan *Event, bufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		log:     log.Module("events"),
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler for all events.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an event. Events published after Stop are discarded.
func (b *Bus) Publish(event *Event) {
	if b == nil || event == nil {
		return
	}
	select {
	case <-b.stopCh:
		return
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	default:
		if b.dropped.Add(1)%100 == 1 {
			b.log.Warn("event buffer full, dropping events",
				logger.String("kind", string(event.Kind)),
				logger.Uint64("dropped_total", b.dropped.Load()))
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Stop drains queued events and shuts down the worker. Safe to call multiple times.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	<-b.doneCh
}

func (b *Bus) processLoop() {
	defer close(b.doneCh)
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event *Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall keeps the worker alive when a handler panics.
func (b *Bus) safeCall(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				logger.String("kind", string(event.Kind)),
				logger.Any("panic", r))
		}
	}()
	handler(event)
}
