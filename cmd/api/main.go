package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/reachability/internal/aggregator"
	"github.com/hamed0406/reachability/internal/bootstrap"
	"github.com/hamed0406/reachability/internal/config"
	"github.com/hamed0406/reachability/internal/httpapi"
	"github.com/hamed0406/reachability/internal/logging"
	"github.com/hamed0406/reachability/internal/notify"
	"github.com/hamed0406/reachability/internal/repo/memory"
	"github.com/hamed0406/reachability/internal/submit"
	"github.com/hamed0406/reachability/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogDir, "api", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.NewBroker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	cache := memory.NewResultCache(cfg.CacheSize)
	hub := httpapi.NewHub(logger)
	observers := []aggregator.Observer{hub}

	var alerter *notify.Alerter
	if slack := notify.NewSlack(cfg.SlackWebhookURL); slack != nil {
		alerter = notify.NewAlerter(logger, memory.NewAlertStore(), slack, notify.AlerterConfig{
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
		})
		observers = append(observers, alerter)
	}

	agg := aggregator.New(b, cache, logger, cfg.ResultGroup, "api-"+worker.DefaultID(), observers...)
	svc := submit.New(b, logger)
	api := httpapi.NewServer(logger, svc, agg, hub, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SubmitRPM:      cfg.SubmitRPM,
		SubmitBurst:    cfg.SubmitBurst,
		RecentLimit:    cfg.RecentLimit,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.String("broker", cfg.Broker))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return agg.Run(gctx) })
	if alerter != nil {
		g.Go(func() error { return alerter.Run(gctx) })
	}
	if cfg.Broker == config.BrokerMemory {
		// Single-process mode: nothing else can consume the requests topic.
		w := worker.New(logger, b, b, bootstrap.Registry(cfg),
			cfg.WorkerGroup, cfg.WorkerID, cfg.WorkerConcurrency, cfg.JobTimeout)
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("api_shutdown")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
