package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/kafka"
)

// Publisher ships a batch of events. *kafka.Producer and *LocalPublisher
// implement it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig sizes the buffer and batching of a Collector.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events off the request path and publishes them in
// batches of BatchSize or every FlushInterval, whichever comes first. Track
// never blocks: when the buffer is full the event is dropped and counted.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	events    chan SearchEvent
	onDrop    func()
	dropped   atomic.Int64
	logger    *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewCollector builds a collector. onDrop may be nil.
func NewCollector(publisher Publisher, cfg CollectorConfig, onDrop func()) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		events:    make(chan SearchEvent, cfg.BufferSize),
		onDrop:    onDrop,
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the flush loop. It exits when ctx is cancelled or Close is
// called, publishing whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("analytics batch publish failed", "events", len(batch), "error", err)
		}
		batch = make([]kafka.Event, 0, c.cfg.BatchSize)
	}

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				c.final(flush)
				return
			}
			batch = append(batch, kafka.Event{Key: ev.Key(), Value: ev})
			if len(batch) >= c.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
		drain:
			for {
				select {
				case ev, ok := <-c.events:
					if !ok {
						break drain
					}
					batch = append(batch, kafka.Event{Key: ev.Key(), Value: ev})
				default:
					break drain
				}
			}
			c.final(flush)
			return
		}
	}
}

func (c *Collector) final(flush func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	flush(ctx)
}

// Track enqueues ev without blocking.
func (c *Collector) Track(ev SearchEvent) {
	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
		if c.onDrop != nil {
			c.onDrop()
		}
		c.logger.Debug("analytics event dropped (buffer full)")
	}
}

// Dropped reports how many events Track discarded.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the final flush. It must follow
// Start, and Track must not be called after it.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.events) })
	<-c.done
}
