package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelanime/internal/config"
	"github.com/dunamismax/pixelanime/internal/queue"
	"github.com/dunamismax/pixelanime/internal/retention"
	"github.com/dunamismax/pixelanime/internal/telemetry"
)

type sweeper interface {
	Sweep(ctx context.Context) (retention.Result, error)
}

// Server consumes maintenance tasks and owns the periodic sweep schedule.
type Server struct {
	logger    logrus.FieldLogger
	server    *asynq.Server
	scheduler *asynq.Scheduler
	queueName string
	schedule  string
	sweeper   sweeper
	metrics   *metrics
	tracer    trace.Tracer
}

func NewServer(
	logger logrus.FieldLogger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	schedule string,
	sw sweeper,
) (*Server, error) {
	if sw == nil {
		return nil, fmt.Errorf("sweeper is required")
	}
	logger = logger.WithField("component", "worker")

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: max(1, workerCfg.Concurrency),
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.WithFields(logrus.Fields{
						"task":  task.Type(),
						"retry": fmt.Sprintf("%d/%d", retried, maxRetry),
					}).WithError(err).Error("task failed")
				}),
			},
		),
		scheduler: asynq.NewScheduler(queueCfg.RedisClientOpt(), &asynq.SchedulerOpts{
			LogLevel: asynq.WarnLevel,
		}),
		queueName: queueCfg.Name,
		schedule:  schedule,
		sweeper:   sw,
		metrics:   newMetrics(),
		tracer:    otel.Tracer(telemetry.TracerName + "/worker"),
	}
	return s, nil
}

func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeArtifactSweep, s.handleSweep)
	return mux
}

// Run registers the periodic sweep and blocks until a termination signal.
func (s *Server) Run() error {
	if s.schedule != "" {
		entryID, err := queue.RegisterSweepSchedule(s.scheduler, s.schedule, s.queueName)
		if err != nil {
			return fmt.Errorf("register sweep schedule: %w", err)
		}
		if err := s.scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer s.scheduler.Shutdown()
		s.logger.WithFields(logrus.Fields{"entry_id": entryID, "schedule": s.schedule}).Info("sweep scheduled")
	}
	return s.server.Run(s.Mux())
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleSweep(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	status := "failed"

	payload, err := queue.ParseSweepPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	reason := payload.Reason
	if reason == "" {
		reason = "manual"
	}

	ctx, span := s.tracer.Start(ctx, "worker.artifact_sweep", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(attribute.String("sweep.reason", reason))
	defer span.End()
	defer func() {
		s.metrics.sweepDuration.Observe(time.Since(startedAt).Seconds())
		s.metrics.sweepsTotal.WithLabelValues(reason, status).Inc()
	}()

	res, err := s.sweeper.Sweep(ctx)
	s.metrics.artifactsDeleted.Add(float64(res.Deleted))
	s.metrics.artifactsFailed.Add(float64(res.Failed))
	span.SetAttributes(
		attribute.Int("sweep.deleted", res.Deleted),
		attribute.Int("sweep.failed", res.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep failed")
		return fmt.Errorf("sweep artifacts: %w", err)
	}

	status = "succeeded"
	s.metrics.lastSweep.SetToCurrentTime()
	span.SetStatus(codes.Ok, "swept")
	return nil
}
