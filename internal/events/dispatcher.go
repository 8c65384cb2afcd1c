package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/extracurricular/internal/domain"
)

var (
	// ErrQueueFull is returned by Publish when the dispatch queue has no room.
	ErrQueueFull = errors.New("event queue full")
	// ErrDispatcherStopped is returned by Publish once shutdown has begun.
	ErrDispatcherStopped = errors.New("event dispatcher stopped")
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
}

// DispatcherConfig contains tunables for the Dispatcher.
type DispatcherConfig struct {
	BufferSize      int
	BatchSize       int
	FlushInterval   time.Duration
	ShutdownTimeout time.Duration // Upper bound on the final flush.
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	return c
}

// Dispatcher queues roster changes and delivers them to Kafka in batches.
type Dispatcher struct {
	writer           messageWriter
	cfg              DispatcherConfig
	logger           *zap.Logger
	shutdownComplete chan struct{}

	mu      sync.RWMutex // guards stopped and sends on queue
	stopped bool
	queue   chan kafka.Message
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(writer messageWriter, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		writer:           writer,
		cfg:              cfg,
		queue:            make(chan kafka.Message, cfg.BufferSize),
		logger:           logger.Named("events"),
		shutdownComplete: make(chan struct{}),
	}
}

// PublishParticipantChanged implements domain.EventPublisher. It never blocks.
func (d *Dispatcher) PublishParticipantChanged(ctx context.Context, change domain.ParticipantChange) error {
	msg, err := encodeMessage(change)
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		droppedCounter.Inc()
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		droppedCounter.Inc()
		return ErrQueueFull
	}
}

// Start runs the delivery loop until ctx is cancelled, then flushes whatever is
// still queued. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	// In-flight batches must not be cut short by shutdown; the writer's own
	// timeouts bound each call.
	deliverCtx := context.WithoutCancel(ctx)

	batch := make([]kafka.Message, 0, d.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			d.flushRemaining(batch)
			return
		case msg := <-d.queue:
			batch = append(batch, msg)
			if len(batch) >= d.cfg.BatchSize {
				d.deliver(deliverCtx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				d.deliver(deliverCtx, batch)
				batch = batch[:0]
			}
		}
	}
}

// Wait waits until the dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) flushRemaining(batch []kafka.Message) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

drain:
	for {
		select {
		case msg := <-d.queue:
			batch = append(batch, msg)
		default:
			break drain
		}
	}
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
	defer cancel()
	for start := 0; start < len(batch); start += d.cfg.BatchSize {
		end := min(start+d.cfg.BatchSize, len(batch))
		d.deliver(ctx, batch[start:end])
	}
}

func (d *Dispatcher) deliver(ctx context.Context, batch []kafka.Message) {
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.writer.WriteMessages(ctx, batch...); err != nil {
		failedCounter.Add(float64(len(batch)))
		d.logger.Error("event delivery failed", zap.Int("batch_size", len(batch)), zap.Error(err))
		return
	}
	deliveredCounter.Add(float64(len(batch)))
	d.logger.Debug("events delivered", zap.Int("batch_size", len(batch)))
}
