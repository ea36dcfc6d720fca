package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is a structured record of something that happened during a run.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Driver is the driver type involved, if applicable.
	Driver string `json:"driver,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeRunStarted    = "run.started"
	EventTypeRunCompleted  = "run.completed"
	EventTypeRunFailed     = "run.failed"
	EventTypeCalcCompleted = "calc.completed"
	EventTypeCalcFailed    = "calc.failed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles one event.
type EventSubscriber func(event Event)

// EventFilter reports whether an event should be delivered.
type EventFilter func(event Event) bool

// Publish errors.
var (
	ErrPublisherClosed = errors.New("event publisher is shut down")
	ErrEventDropped    = errors.New("event buffer full, event dropped")
)

// EventPublisher fans events out to subscribers. In synchronous mode
// subscribers run on the publishing goroutine, in subscription order. In
// asynchronous mode events are buffered and delivered in batches by one
// background goroutine; a full buffer drops the event instead of blocking the
// run that produced it.
type EventPublisher struct {
	config EventsConfig
	buffer chan Event

	mu          sync.RWMutex
	subscribers map[uint64]subscriberEntry
	nextID      uint64
	filters     []EventFilter

	dropped  atomic.Uint64
	closed   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a publisher. A disabled publisher accepts and
// discards every event.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{
		config:      cfg,
		subscribers: make(map[uint64]subscriberEntry),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	if !cfg.Enabled || !cfg.EnableAsync {
		close(ep.done)
		return ep, nil
	}

	if ep.config.MaxBatchSize <= 0 {
		ep.config.MaxBatchSize = 1
	}
	ep.buffer = make(chan Event, cfg.BufferSize)
	go ep.processEvents()
	return ep, nil
}

// Publish stamps the event with an ID and timestamp when missing, applies the
// global filters and delivers it.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}
	if ep.closed.Load() {
		return ErrPublisherClosed
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if !ep.config.EnableAsync {
		ep.deliverEvent(event)
		return nil
	}

	// Shutdown takes the write lock before stopping the drain loop, so an
	// event enqueued under the read lock is always drained.
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	if ep.closed.Load() {
		return ErrPublisherClosed
	}
	select {
	case ep.buffer <- event:
		return nil
	default:
		ep.dropped.Add(1)
		return ErrEventDropped
	}
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(runID, optimizer string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		Source:  "optimize",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s started with optimizer %s", runID, optimizer),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"optimizer": optimizer,
		},
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(runID string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRunCompleted,
		Source:  "optimize",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s completed", runID),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishRunFailed publishes a run failed event.
func (ep *EventPublisher) PublishRunFailed(runID, class, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunFailed,
		Source:  "optimize",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"class":  class,
			"reason": reason,
		},
	})
}

// PublishCalcCompleted publishes an evaluation completed event.
func (ep *EventPublisher) PublishCalcCompleted(runID, driver string, energy float64, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeCalcCompleted,
		Source:  "adapter",
		RunID:   runID,
		Driver:  driver,
		Message: fmt.Sprintf("calc_new on %s returned energy %g", driver, energy),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"energy":   energy,
			"duration": duration.Seconds(),
		},
	})
}

// PublishCalcFailed publishes an evaluation failed event.
func (ep *EventPublisher) PublishCalcFailed(runID, driver, class, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeCalcFailed,
		Source:  "adapter",
		RunID:   runID,
		Driver:  driver,
		Message: fmt.Sprintf("calc_new on %s failed: %s", driver, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"class":  class,
			"reason": reason,
		},
	})
}

// Subscribe registers a subscriber and returns a function that removes it.
// A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) (unsubscribe func()) {
	ep.mu.Lock()
	id := ep.nextID
	ep.nextID++
	ep.subscribers[id] = subscriberEntry{subscriber: subscriber, filter: filter}
	ep.mu.Unlock()

	return func() {
		ep.mu.Lock()
		delete(ep.subscribers, id)
		ep.mu.Unlock()
	}
}

// AddFilter adds a filter applied to every event before any subscriber.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.filters = append(ep.filters, filter)
}

// Dropped returns the number of events lost to a full buffer.
func (ep *EventPublisher) Dropped() uint64 { return ep.dropped.Load() }

// processEvents batches buffered events and delivers them when the batch is
// full, when the flush interval elapses, or on shutdown.
func (ep *EventPublisher) processEvents() {
	defer close(ep.done)

	var tick <-chan time.Time
	if ep.config.FlushInterval > 0 {
		ticker := time.NewTicker(ep.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize {
				flush()
			}
		case <-tick:
			flush()
		case <-ep.stop:
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliverEvent runs subscribers in subscription order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	ids := make([]uint64, 0, len(ep.subscribers))
	for id := range ep.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	entries := make([]subscriberEntry, len(ids))
	for i, id := range ids {
		entries[i] = ep.subscribers[id]
	}
	ep.mu.RUnlock()

	for _, entry := range entries {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown rejects further events, delivers the buffered ones and waits for
// the delivery goroutine, bounded by ctx. It may be called more than once.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.mu.Lock()
	ep.closed.Store(true)
	ep.mu.Unlock()
	ep.stopOnce.Do(func() { close(ep.stop) })

	select {
	case <-ep.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown: %w", ctx.Err())
	}
}

func levelRank(level string) int {
	switch level {
	case EventLevelWarning:
		return 1
	case EventLevelError:
		return 2
	default:
		return 0
	}
}

// FilterByLevel accepts events at minLevel or above.
func FilterByLevel(minLevel string) EventFilter {
	floor := levelRank(minLevel)
	return func(event Event) bool {
		return levelRank(event.Level) >= floor
	}
}

// FilterByType accepts events of the given types.
func FilterByType(types ...string) EventFilter {
	accept := make(map[string]bool, len(types))
	for _, t := range types {
		accept[t] = true
	}
	return func(event Event) bool {
		return accept[event.Type]
	}
}

// FilterByRunID accepts events of one run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}
