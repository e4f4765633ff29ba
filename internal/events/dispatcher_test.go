package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/pixelanime/internal/logging"
)

// blockingSink holds every Publish until release is closed or the delivery
// context ends.
type blockingSink struct {
	release chan struct{}

	mu        sync.Mutex
	delivered []string
	ctxErrs   []error
	closed    bool
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{})}
}

func (s *blockingSink) Publish(ctx context.Context, event Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		s.mu.Lock()
		s.ctxErrs = append(s.ctxErrs, ctx.Err())
		s.mu.Unlock()
		return ctx.Err()
	}
	s.mu.Lock()
	s.delivered = append(s.delivered, event.ID)
	s.mu.Unlock()
	return nil
}

func (s *blockingSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *blockingSink) snapshot() ([]string, []error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...), append([]error(nil), s.ctxErrs...), s.closed
}

func TestDispatcherPublishDoesNotWaitForSink(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(sink, logging.Discard(), DispatchConfig{QueueSize: 4, DrainTimeout: time.Second})

	start := time.Now()
	for range 3 {
		require.NoError(t, d.Publish(context.Background(), sampleEvent()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(sink.release)
	require.NoError(t, d.Close())
	delivered, _, closed := sink.snapshot()
	assert.Len(t, delivered, 3)
	assert.True(t, closed)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(sink, logging.Discard(), DispatchConfig{QueueSize: 1, DrainTimeout: 20 * time.Millisecond})

	var full bool
	for range 10 {
		if err := d.Publish(context.Background(), sampleEvent()); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	assert.True(t, full)

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Publish(context.Background(), sampleEvent()), ErrClosed)
}

func TestDispatcherDetachesFromCallerContext(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(sink, logging.Discard(), DispatchConfig{DrainTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Publish(ctx, sampleEvent()))
	cancel()

	close(sink.release)
	require.NoError(t, d.Close())
	delivered, ctxErrs, _ := sink.snapshot()
	assert.Len(t, delivered, 1)
	assert.Empty(t, ctxErrs)
}

func TestDispatcherCloseAbandonsStuckDeliveries(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(sink, logging.Discard(), DispatchConfig{
		DeliveryTimeout: time.Hour,
		DrainTimeout:    20 * time.Millisecond,
	})
	require.NoError(t, d.Publish(context.Background(), sampleEvent()))
	require.NoError(t, d.Publish(context.Background(), sampleEvent()))

	start := time.Now()
	require.NoError(t, d.Close())
	assert.Less(t, time.Since(start), 2*time.Second)

	delivered, ctxErrs, closed := sink.snapshot()
	assert.Empty(t, delivered)
	assert.NotEmpty(t, ctxErrs)
	assert.True(t, closed)
	require.NoError(t, d.Close())
}

func TestDispatcherBoundsEachDelivery(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(sink, logging.Discard(), DispatchConfig{DeliveryTimeout: 10 * time.Millisecond, DrainTimeout: time.Second})
	require.NoError(t, d.Publish(context.Background(), sampleEvent()))
	require.NoError(t, d.Close())

	_, ctxErrs, _ := sink.snapshot()
	require.Len(t, ctxErrs, 1)
	assert.ErrorIs(t, ctxErrs[0], context.DeadlineExceeded)
}
