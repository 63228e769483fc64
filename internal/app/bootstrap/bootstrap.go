package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	linkworkers "adreel/contexts/ads-accounts/link-service/application/workers"
	"adreel/internal/platform/config"
	"adreel/internal/platform/httpserver"
	"adreel/internal/platform/messaging"
	"adreel/internal/platform/metrics"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const dedupPurgeInterval = time.Hour

type APIApp struct {
	server   *httpserver.Server
	backends *Backends
	logger   *slog.Logger
}

type WorkerApp struct {
	backends       *Backends
	relays         []messaging.OutboxRelay
	linkPoller     linkworkers.PendingLinkPoller
	dedupPurger    dedupPurger
	closePublisher func()
	pollInterval   time.Duration
	linkInterval   time.Duration
	logger         *slog.Logger
}

// AdminApp exposes the wired platform to operator commands.
type AdminApp struct {
	Platform Platform
	Logger   *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	backends, err := OpenBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()
	platform := Assemble(cfg, backends, registry, logger)
	server := httpserver.New(httpserver.Modules{
		Campaigns: platform.Campaigns,
		Payments:  platform.Payments,
		Webhooks:  platform.Webhooks,
		Links:     platform.Links,
	}, registry, logger, normalizeAddr(cfg.HTTPPort))

	return &APIApp{
		server:   server,
		backends: backends,
		logger:   logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	backends, err := OpenBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var publisher messaging.Publisher
	closePublisher := func() {}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := messaging.NewKafka(cfg.KafkaBrokers, cfg.ServiceName+"-worker", logger)
		if err != nil {
			_ = backends.Close()
			return nil, err
		}
		publisher = kafka
		closePublisher = kafka.Close
	} else {
		logger.Warn("no kafka brokers configured, audit events stay in process",
			"event", "bootstrap_worker_memory_bus",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		publisher = messaging.NewMemoryBus(logger)
	}

	platform := Assemble(cfg, backends, nil, logger)
	app := &WorkerApp{
		backends:       backends,
		relays:         outboxRelays(backends, publisher, cfg.TopicPrefix, logger),
		linkPoller:     platform.Links.Poller,
		closePublisher: closePublisher,
		pollInterval:   cfg.WorkerPollInterval,
		linkInterval:   cfg.LinkPollInterval,
		logger:         logger,
	}
	if purger, ok := backends.Dedup.(dedupPurger); ok {
		app.dedupPurger = purger
	}
	return app, nil
}

func BuildAdmin(ctx context.Context) (*AdminApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "adminctl")
	backends, err := OpenBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &AdminApp{
		Platform: Assemble(cfg, backends, nil, logger),
		Logger:   logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	}
}

func (a *APIApp) Close() error {
	return a.backends.Close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.pollInterval <= 0 {
		w.pollInterval = 5 * time.Second
	}
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"link_poll_interval", w.linkInterval.String(),
	)

	var lastLinkPoll, lastPurge time.Time
	for {
		w.runCycle(ctx, &lastLinkPoll, &lastPurge)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle keeps going after a failed step; each step leaves its work
// pending for the next cycle.
func (w *WorkerApp) runCycle(ctx context.Context, lastLinkPoll *time.Time, lastPurge *time.Time) {
	for _, relay := range w.relays {
		if _, err := relay.RunOnce(ctx); err != nil {
			w.logCycleError(relay.Name+"_outbox_relay", err)
		}
	}

	now := time.Now()
	if now.Sub(*lastLinkPoll) >= w.linkInterval {
		*lastLinkPoll = now
		if _, err := w.linkPoller.RunOnce(ctx); err != nil {
			w.logCycleError("link_poller", err)
		}
	}
	if w.dedupPurger != nil && now.Sub(*lastPurge) >= dedupPurgeInterval {
		*lastPurge = now
		if _, err := w.dedupPurger.PurgeExpired(ctx); err != nil {
			w.logCycleError("webhook_dedup_purge", err)
		}
	}
}

func (w *WorkerApp) logCycleError(step string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	w.logger.Error("worker step failed",
		"event", "bootstrap_worker_step_failed",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"step", step,
		"error", err.Error(),
	)
}

func (w *WorkerApp) Close() error {
	w.closePublisher()
	return w.backends.Close()
}

func (a *AdminApp) Close() error {
	return a.Platform.Backends.Close()
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
