package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dunamismax/pixelanime/internal/config"
	"github.com/dunamismax/pixelanime/internal/logging"
	"github.com/dunamismax/pixelanime/internal/queue"
	"github.com/dunamismax/pixelanime/internal/retention"
	"github.com/dunamismax/pixelanime/internal/storage"
	"github.com/dunamismax/pixelanime/internal/store"
	"github.com/dunamismax/pixelanime/internal/telemetry"
	"github.com/dunamismax/pixelanime/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logrus.WithError(err).Fatal("configure logging")
	}
	log := logger.WithField("service", "worker")

	if cfg.Database.IndexBackend != "postgres" {
		log.Fatal("retention worker requires ARTIFACT_INDEX=postgres; a memory index is swept by the api process")
	}
	if cfg.Retention.MaxAge <= 0 {
		log.Fatal("retention disabled (RETENTION_MAX_AGE=0), nothing to run")
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName + "-worker",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("setup tracing")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	artifacts, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("open artifact storage")
	}
	index, closeIndex, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("open artifact index")
	}
	defer closeIndex()

	sweeper := retention.NewSweeper(artifacts, index, cfg.Retention.MaxAge, cfg.Retention.BatchSize, log)
	srv, err := worker.NewServer(log, cfg.Queue, cfg.Worker, cfg.Retention.Schedule, sweeper)
	if err != nil {
		log.WithError(err).Fatal("build worker")
	}

	client := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	if err := client.EnqueueSweep(ctx, "startup"); err != nil {
		log.WithError(err).Warn("startup sweep not enqueued")
	}
	if err := client.Close(); err != nil {
		log.WithError(err).Warn("queue client close failed")
	}

	if cfg.Worker.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", srv.MetricsHandler())
		metricsServer := &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server failed")
			}
		}()
		defer metricsServer.Close()
	}

	log.WithFields(logrus.Fields{
		"concurrency": cfg.Worker.Concurrency,
		"queue":       cfg.Queue.Name,
		"redis":       cfg.Queue.RedisAddr,
		"max_age":     cfg.Retention.MaxAge,
		"schedule":    cfg.Retention.Schedule,
	}).Info("starting worker")

	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("worker failed")
	}
}
