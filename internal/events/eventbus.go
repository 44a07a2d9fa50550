package events

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/trolltrack/trolltrack/internal/logger"
)

// EventBus provides asynchronous event processing with non-blocking guarantees
type EventBus struct {
	eventChan chan Event

	bufferSize int
	workers    int

	wg      sync.WaitGroup
	running atomic.Bool

	// mu guards consumers and the closing of eventChan
	mu        sync.RWMutex
	consumers []EventConsumer
	closed    bool

	stats EventBusStats

	logger logger.Logger
}

// Config holds event bus configuration
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 256,
		Workers:    2,
	}
}

// NewEventBus creates an event bus and starts its workers.
func NewEventBus(config *Config, log logger.Logger) *EventBus {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	eb := &EventBus{
		eventChan:  make(chan Event, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    config.Workers,
		logger:     log.Module("events"),
	}
	eb.start()

	eb.logger.Debug("event bus initialized",
		logger.Int("buffer_size", config.BufferSize),
		logger.Int("workers", config.Workers))

	return eb
}

// RegisterConsumer adds a new event consumer
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return fmt.Errorf("event bus is shut down")
	}
	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)
	eb.logger.Debug("registered event consumer", logger.String("consumer", consumer.Name()))
	return nil
}

// TryPublish attempts to publish an event without blocking.
// Returns true if the event was accepted, false if dropped.
func (eb *EventBus) TryPublish(event Event) bool {
	if eb == nil || !eb.running.Load() {
		return false
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed || len(eb.consumers) == 0 {
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		eb.logger.Debug("event dropped due to full buffer",
			logger.String("type", string(event.Type)),
			logger.String("source", event.Source))
		return false
	}
}

func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}
	for i := range eb.workers {
		eb.wg.Go(func() {
			eb.worker(i)
		})
	}
}

// worker drains the channel until it is closed by Shutdown
func (eb *EventBus) worker(id int) {
	log := eb.logger.With(logger.Int("worker_id", id))
	for event := range eb.eventChan {
		eb.processEvent(event, log)
	}
}

// processEvent sends the event to all interested consumers
func (eb *EventBus) processEvent(event Event, log logger.Logger) {
	eb.mu.RLock()
	consumers := slices.Clone(eb.consumers)
	eb.mu.RUnlock()

	for _, consumer := range consumers {
		if types := consumer.Types(); types != nil && !slices.Contains(types, event.Type) {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("type", string(event.Type)))
				}
			}()

			if err := consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
				log.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.Error(err),
					logger.String("type", string(event.Type)))
				return
			}
			atomic.AddUint64(&eb.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown stops accepting events and waits for queued events to be
// delivered, or for ctx to end.
func (eb *EventBus) Shutdown(ctx context.Context) error {
	if eb == nil {
		return nil
	}

	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return nil
	}
	eb.closed = true
	eb.running.Store(false)
	close(eb.eventChan)
	eb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.logger.Debug("event bus shutdown complete")
		return nil
	case <-ctx.Done():
		eb.logger.Warn("event bus shutdown timeout exceeded")
		return fmt.Errorf("event bus shutdown: %w", ctx.Err())
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}
	return EventBusStats{
		EventsReceived:  atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
