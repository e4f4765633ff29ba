package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/dunamismax/pixelanime/internal/logging"
	"github.com/dunamismax/pixelanime/internal/queue"
	"github.com/dunamismax/pixelanime/internal/retention"
)

type fakeSweeper struct {
	res   retention.Result
	err   error
	calls int
}

func (f *fakeSweeper) Sweep(context.Context) (retention.Result, error) {
	f.calls++
	return f.res, f.err
}

func newTestServer(sw sweeper) *Server {
	return &Server{
		logger:  logging.Discard(),
		sweeper: sw,
		metrics: newMetrics(),
		tracer:  otel.Tracer("test"),
	}
}

func TestHandleSweepRecordsMetrics(t *testing.T) {
	sw := &fakeSweeper{res: retention.Result{Scanned: 4, Deleted: 3, Failed: 1}}
	s := newTestServer(sw)

	task, err := queue.NewSweepTask(queue.SweepPayload{Reason: "schedule"})
	require.NoError(t, err)
	require.NoError(t, s.handleSweep(context.Background(), task))

	assert.Equal(t, 1, sw.calls)
	assert.Equal(t, 3.0, testutil.ToFloat64(s.metrics.artifactsDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.artifactsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.sweepsTotal.WithLabelValues("schedule", "succeeded")))
}

func TestHandleSweepPropagatesFailure(t *testing.T) {
	s := newTestServer(&fakeSweeper{err: errors.New("index unavailable")})

	task, err := queue.NewSweepTask(queue.SweepPayload{Reason: "startup"})
	require.NoError(t, err)
	require.Error(t, s.handleSweep(context.Background(), task))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.sweepsTotal.WithLabelValues("startup", "failed")))
}

func TestHandleSweepSkipsRetryOnBadPayload(t *testing.T) {
	s := newTestServer(&fakeSweeper{})

	err := s.handleSweep(context.Background(), asynq.NewTask(queue.TypeArtifactSweep, []byte("not-json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
