// Package async decouples event publishing from the engine's hot path with a
// bounded queue drained by background workers.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/logger"
)

var (
	defaultNumWorkers     uint = 1
	defaultQueueSize      uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Config is the configuration for the asynchronous publisher.
type Config struct {
	// Publisher receives every dequeued event.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers. A single worker keeps
	// global event order.
	NumWorkers uint

	// QueueSize is the capacity of the buffered event channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds each delivery to the inner publisher.
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Publisher enqueues events and delivers them in the background. Events
// are dropped when the queue is full.
type Publisher struct {
	config *Config
	queue  chan *eventstream.Event
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewPublisher creates the publisher and starts its workers.
func NewPublisher(c *Config) (*Publisher, error) {
	if c.Publisher == nil {
		return nil, errors.New("async publisher requires an inner publisher")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Publisher{
		config: c,
		queue:  make(chan *eventstream.Event, c.QueueSize),
		logger: logger.OrNop(c.Logger),
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Publish enqueues the event without blocking. It returns ErrQueueFull when
// the event is dropped.
func (p *Publisher) Publish(_ context.Context, event *eventstream.Event) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return eventstream.ErrClosed
	}

	select {
	case p.queue <- event:
		return nil
	default:
		p.dropped.Add(1)
		p.logger.Error("event not queued, queue full, event dropped",
			"event_type", event.EventType,
			"event_id", event.EventID,
		)
		return eventstream.ErrQueueFull
	}
}

// Close stops accepting events, waits for queued events to drain and closes
// the inner publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.config.Publisher.Close()
}

// Stats reports delivered, dropped and failed event counts.
func (p *Publisher) Stats() (published, dropped, failed uint64) {
	return p.published.Load(), p.dropped.Load(), p.failed.Load()
}

func (p *Publisher) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("event worker started", "worker_id", id)

	for event := range p.queue {
		p.deliver(event)
	}

	p.logger.Debug("event worker stopped", "worker_id", id)
}

func (p *Publisher) deliver(event *eventstream.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.Publish(ctx, event); err != nil {
		p.failed.Add(1)
		p.logger.Warn("event delivery failed",
			"event_type", event.EventType,
			"event_id", event.EventID,
			"error", err,
		)
		return
	}
	p.published.Add(1)
}
