package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/monitor"
	"mercator-hq/conduit/pkg/routing"
	"mercator-hq/conduit/pkg/server"
	"mercator-hq/conduit/pkg/telemetry/health"
	"mercator-hq/conduit/pkg/telemetry/metrics"
	"mercator-hq/conduit/pkg/telemetry/tracing"
	"mercator-hq/conduit/pkg/usage/recorder"
	"mercator-hq/conduit/pkg/usage/retention"
	"mercator-hq/conduit/pkg/usage/storage"
)

// app holds the components of a running router. Optional components are
// nil when disabled by configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	engine    *routing.Engine
	store     storage.Backend
	recorder  *recorder.Recorder
	scheduler *retention.Scheduler
	collector *metrics.Collector
	tracer    *tracing.Tracer
	health    *health.Checker
	handler   http.Handler

	sub        *monitor.Subscription
	stopFollow context.CancelFunc
	waitFollow func()
}

// newApp wires the engine and its telemetry from configuration. Nothing is
// started; see start.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer

	store, err := storage.Open(cfg.Usage)
	if err != nil {
		a.close(context.Background())
		return nil, fmt.Errorf("failed to open usage store: %w", err)
	}
	a.store = store

	opts := []routing.Option{routing.WithTracer(tracer.Tracer("conduit/routing"))}
	if store != nil {
		a.recorder = recorder.New(store, recorder.Config{
			AsyncBuffer:  cfg.Usage.Recorder.AsyncBuffer,
			WriteTimeout: cfg.Usage.Recorder.WriteTimeout,
		})
		opts = append(opts, routing.WithUsageSink(a.recorder))
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		a.collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
		opts = append(opts, routing.WithObserver(a.collector))
		if a.recorder != nil {
			a.collector.RegisterRecorder(a.recorder.Stats)
		}
	}

	engine, err := routing.Build(cfg, logger, opts...)
	if err != nil {
		a.close(context.Background())
		return nil, err
	}
	a.engine = engine

	a.health = health.New(cfg.Telemetry.Health.CheckTimeout)
	a.health.RegisterCheck("providers",
		health.ProvidersCheck(cfg.Telemetry.Health.MinAvailableProviders, engine.AvailableProviders))
	if store != nil {
		a.health.RegisterCheck("usage_store", health.StorageCheck(store.Count))
	}

	handlerOpts := server.HandlerOptions{
		Health:  a.health,
		Version: health.VersionHandler(Version, GitCommit, BuildDate),
	}
	if tracer.Enabled() {
		handlerOpts.Middleware = tracer.Middleware
	}
	if a.collector != nil {
		handlerOpts.Metrics = a.collector.Handler()
	}
	a.handler = server.NewHandler(server.NewAPI(engine, store, logger), cfg.Telemetry, handlerOpts, logger)

	return a, nil
}

// start launches the background work: the metrics follower, the probe loop
// and the retention scheduler.
func (a *app) start(ctx context.Context) error {
	if a.collector != nil {
		a.sub = a.engine.Subscribe(monitor.DefaultSubscriptionBuffer)
		a.collector.SyncHealth(a.engine.GetAllHealth())

		followCtx, cancel := context.WithCancel(ctx)
		a.stopFollow = cancel
		a.waitFollow = a.collector.Follow(followCtx, a.sub)
	}

	if a.cfg.Routing.Probe.Enabled {
		a.engine.Monitor().StartProbing(a.cfg.Routing.Probe.Interval)
	}

	if a.store != nil {
		pruner := retention.NewPruner(a.store, retention.Config{
			RetentionDays: a.cfg.Usage.Retention.Days,
			PruneSchedule: a.cfg.Usage.Retention.PruneSchedule,
		}, nil)
		a.scheduler = retention.NewScheduler(pruner)
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		if next := a.scheduler.NextRun(); next != nil {
			a.logger.Debug("usage retention scheduled", "next_run", next)
		}
	}
	return nil
}

// reload applies a changed configuration file to the running engine.
func (a *app) reload(cfg *config.Config) {
	if err := a.engine.ApplyConfig(cfg); err != nil {
		a.logger.Warn("configuration reload rejected", "error", err)
		return
	}
	a.logger.Info("configuration reloaded",
		"strategy", cfg.Routing.Strategy,
		"providers", len(cfg.Providers),
	)
}

// close stops background work and releases resources in reverse order of
// creation. Pending usage events are flushed before the store is closed.
func (a *app) close(ctx context.Context) error {
	var errs []error

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.engine != nil {
		a.engine.Monitor().StopProbing()
	}
	if a.stopFollow != nil {
		a.stopFollow()
		a.waitFollow()
		a.sub.Close()
	}
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close usage store: %w", err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
		}
	}
	return errors.Join(errs...)
}
