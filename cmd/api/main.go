package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/config"
	"github.com/hamed0406/sitepulse/internal/domain"
	"github.com/hamed0406/sitepulse/internal/evaluate"
	"github.com/hamed0406/sitepulse/internal/httpapi"
	apimw "github.com/hamed0406/sitepulse/internal/httpapi/middleware"
	"github.com/hamed0406/sitepulse/internal/live"
	"github.com/hamed0406/sitepulse/internal/logging"
	"github.com/hamed0406/sitepulse/internal/notify"
	"github.com/hamed0406/sitepulse/internal/peripheral"
	"github.com/hamed0406/sitepulse/internal/probe"
	"github.com/hamed0406/sitepulse/internal/repo"
	"github.com/hamed0406/sitepulse/internal/repo/memory"
	"github.com/hamed0406/sitepulse/internal/repo/postgres"
	"github.com/hamed0406/sitepulse/internal/scheduler"
)

func main() {
	cfg := config.Load()
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Stdout: cfg.LogStdout})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.EndpointsFile != "" {
		f, err := config.LoadEndpoints(cfg.EndpointsFile)
		if err != nil {
			return err
		}
		seed(ctx, logger, store, f, cfg.Check)
	}

	dispatcher := notify.NewDispatcher(logger, channels(logger, cfg), cfg.NotifyWorkers, cfg.NotifyQueue, 15*time.Second)
	defer dispatcher.Close()

	hub := live.New(logger, cfg.AllowedOrigins)

	side := peripheral.NewRunner(logger, cfg.PeripheralTTL, cfg.PeripheralConcurrency,
		peripheral.NewDNSCheck(3*time.Second),
		peripheral.NewTLSCheck(5*time.Second, 30),
	)
	defer side.Close()

	runner := scheduler.NewRunner(logger, store, probe.NewProber(probe.NewHTTPProbe()), evaluate.DefaultRules(),
		scheduler.Windows{Baseline: cfg.BaselineWindow, Uptime: cfg.UptimeWindow})
	runner.Notifier = dispatcher
	runner.Publisher = hub
	runner.Peripherals = side

	sched := scheduler.New(logger, store, runner, scheduler.Config{
		BatchSize:    cfg.BatchSize,
		BatchPause:   cfg.BatchPause,
		CycleTimeout: cfg.CycleTimeout,
	})
	if err := sched.Start(cfg.CheckInterval); err != nil {
		return err
	}

	api := httpapi.NewServer(logger, store, runner, hub)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.Options{
			Keys:           apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
			AllowedOrigins: cfg.AllowedOrigins,
			PublicRPM:      cfg.PublicRPM,
			PublicBurst:    cfg.PublicBurst,
			AdminRPM:       cfg.AdminRPM,
			AdminBurst:     cfg.AdminBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		logger.Info("api_shutdown_requested")
	case err := <-errc:
		stopScheduler(sched)
		return err
	}

	stopScheduler(sched)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	return nil
}

// stopScheduler bounds the wait for in-flight checks; whatever is left is
// cut off when the process exits.
func stopScheduler(s *scheduler.Scheduler) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = s.Stop(ctx)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Gateway, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("store_memory")
		return memory.New(cfg.Check), func() {}, nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, cfg.Check, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	logger.Info("store_postgres")
	return pg, pg.Close, nil
}

// channels only includes configured webhooks; a nil *Slack inside Multi
// would not compare equal to a nil Channel.
func channels(logger *zap.Logger, cfg config.Config) notify.Channel {
	var m notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		m = append(m, s)
	}
	if d := notify.NewDiscord(cfg.DiscordWebhookURL); d != nil {
		m = append(m, d)
	}
	if len(m) == 0 {
		logger.Warn("notify_no_channels")
	}
	return m
}

func seed(ctx context.Context, logger *zap.Logger, store repo.EndpointStore, f *config.EndpointsFile, defaults domain.CheckConfig) {
	for _, w := range f.Workspaces {
		if err := store.SetWorkspaceConfig(ctx, domain.WorkspaceID(w.ID), w.CheckConfig(defaults)); err != nil {
			logger.Warn("seed_workspace_error", zap.String("workspace_id", w.ID), zap.Error(err))
		}
	}
	added := 0
	for _, spec := range f.Endpoints {
		e := spec.Endpoint()
		e.CreatedAt = time.Now().UTC()
		switch err := store.AddEndpoint(ctx, &e); {
		case err == nil:
			added++
		case errors.Is(err, repo.ErrDuplicate):
			logger.Debug("seed_endpoint_exists", zap.String("url", e.URL))
		default:
			logger.Warn("seed_endpoint_error", zap.String("url", e.URL), zap.Error(err))
		}
	}
	logger.Info("seed_done", zap.Int("added", added), zap.Int("listed", len(f.Endpoints)))
}
