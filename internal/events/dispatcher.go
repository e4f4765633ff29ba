package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("event dispatcher closed")
)

const (
	defaultQueueSize       = 256
	defaultDeliveryTimeout = 30 * time.Second
	defaultDrainTimeout    = 5 * time.Second
)

type DispatchConfig struct {
	// QueueSize bounds events waiting for delivery; Publish drops beyond it.
	QueueSize int
	// DeliveryTimeout bounds one sink Publish call, retries included.
	DeliveryTimeout time.Duration
	// DrainTimeout bounds how long Close keeps delivering queued events.
	DrainTimeout time.Duration
}

// Dispatcher hands events to a sink from a background goroutine so callers
// never wait on delivery. Publish only enqueues.
type Dispatcher struct {
	sink    Publisher
	logger  logrus.FieldLogger
	timeout time.Duration
	drain   time.Duration

	queue  chan Event
	done   chan struct{}
	base   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	closed   bool
	once     sync.Once
	closeErr error
}

func NewDispatcher(sink Publisher, logger logrus.FieldLogger, cfg DispatchConfig) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	drain := cfg.DrainTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}

	base, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:    sink,
		logger:  logger.WithField("component", "events"),
		timeout: timeout,
		drain:   drain,
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
		base:    base,
		cancel:  cancel,
	}
	go d.run()
	return d
}

// Publish enqueues the event. The context is not used for delivery, which
// outlives the caller's request.
func (d *Dispatcher) Publish(_ context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(d.base, d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.sink.Publish(ctx, event); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"elapsed":    time.Since(start).String(),
		}).Warn("event not delivered")
		return
	}
	d.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	}).Debug("event delivered")
}

// Close stops accepting events, delivers what is queued within the drain
// timeout, abandons the rest and closes the sink.
func (d *Dispatcher) Close() error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		timer := time.NewTimer(d.drain)
		defer timer.Stop()
		select {
		case <-d.done:
		case <-timer.C:
			d.logger.WithField("pending", len(d.queue)).Warn("event drain timed out, abandoning queued events")
			d.cancel()
			<-d.done
		}
		d.cancel()
		d.closeErr = d.sink.Close()
	})
	return d.closeErr
}
