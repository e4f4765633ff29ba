package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/dunamismax/pixelanime/internal/api"
	"github.com/dunamismax/pixelanime/internal/codec"
	"github.com/dunamismax/pixelanime/internal/colorspace"
	"github.com/dunamismax/pixelanime/internal/config"
	"github.com/dunamismax/pixelanime/internal/events"
	"github.com/dunamismax/pixelanime/internal/logging"
	"github.com/dunamismax/pixelanime/internal/ocr"
	"github.com/dunamismax/pixelanime/internal/pipeline"
	"github.com/dunamismax/pixelanime/internal/ratelimit"
	"github.com/dunamismax/pixelanime/internal/retention"
	"github.com/dunamismax/pixelanime/internal/storage"
	"github.com/dunamismax/pixelanime/internal/store"
	"github.com/dunamismax/pixelanime/internal/stylize"
	"github.com/dunamismax/pixelanime/internal/telemetry"
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
	log := logger.WithField("service", "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName,
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
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	if err := codec.Startup(); err != nil {
		log.WithError(err).Fatal("start image runtime")
	}
	defer codec.Shutdown()
	imageCodec, err := codec.New()
	if err != nil {
		log.WithError(err).Fatal("build codec")
	}

	artifacts, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("open artifact storage")
	}
	index, closeIndex, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("open artifact index")
	}
	defer func() {
		if err := closeIndex(); err != nil {
			log.WithError(err).Warn("artifact index close failed")
		}
	}()

	publisher, err := events.NewPublisher(events.Config{
		Sink:          cfg.Events.Sink,
		WebhookURL:    cfg.Events.WebhookURL,
		WebhookSecret: cfg.Events.WebhookSecret,
		KafkaBrokers:  cfg.Events.KafkaBrokers,
		KafkaTopic:    cfg.Events.KafkaTopic,
		Logger:        log,
	})
	if err != nil {
		log.WithError(err).Fatal("build event publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("event publisher close failed")
		}
	}()

	metrics := api.NewMetrics()
	extractor := ocr.NewExtractor(nil, cfg.OCR.Languages, log)
	processor, err := pipeline.NewProcessor(pipeline.Dependencies{
		Codec:     imageCodec,
		Storage:   artifacts,
		Index:     index,
		Colors:    colorspace.NewTransformer(log, colorspace.WithObserver(metrics.ObserveTransform)),
		OCR:       extractor,
		Stylizer:  loadStylizer(ctx, cfg.Stylize, log),
		Publisher: publisher,
		Logger:    log,
	})
	if err != nil {
		log.WithError(err).Fatal("build pipeline")
	}

	opts := []api.Option{
		api.WithMetrics(metrics),
		api.WithTracer(otel.Tracer(telemetry.TracerName + "/api")),
	}
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()
		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			log.WithError(err).Fatal("build rate limiter")
		}
		opts = append(opts, api.WithRateLimiter(limiter, cfg.RateLimit.ClientHeader))
	}

	// A memory index only exists in this process, so retention runs here.
	if cfg.Database.IndexBackend == "memory" && cfg.Retention.MaxAge > 0 {
		interval, err := retention.IntervalFromSchedule(cfg.Retention.Schedule)
		if err != nil {
			log.WithError(err).Warn("in-process retention needs an @every schedule, using 1h")
			interval = time.Hour
		}
		sweeper := retention.NewSweeper(artifacts, index, cfg.Retention.MaxAge, cfg.Retention.BatchSize, log)
		go sweeper.Run(ctx, interval)
	}

	app := api.NewServer(log, processor, opts...)
	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":          cfg.API.Addr,
			"storage":       cfg.Storage.Backend,
			"index":         cfg.Database.IndexBackend,
			"ocr_engine":    extractor.EngineName(),
			"models_loaded": processor.ModelsLoaded(),
		}).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
}

func loadStylizer(ctx context.Context, cfg config.StylizeConfig, log logrus.FieldLogger) stylize.Stylizer {
	if cfg.Endpoint == "" {
		log.Info("no inference endpoint configured, style transfer disabled")
		return stylize.Disabled{}
	}
	client, err := stylize.NewInferenceClient(stylize.ClientConfig{
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		log.WithError(err).Error("inference client unusable, style transfer disabled")
		return stylize.Disabled{}
	}

	adapter := stylize.NewAdapter(client, log, stylize.WithSize(cfg.Size))
	loadCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	_ = adapter.Load(loadCtx)
	return adapter
}
