package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hamed0406/reachability/internal/bootstrap"
	"github.com/hamed0406/reachability/internal/config"
	"github.com/hamed0406/reachability/internal/logging"
	"github.com/hamed0406/reachability/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.Broker != config.BrokerRedis {
		return errors.New("standalone workers need BROKER=redis; BROKER=memory runs workers inside the api process")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogDir, "worker", cfg.LogLevel)
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

	w := worker.New(logger, b, b, bootstrap.Registry(cfg),
		cfg.WorkerGroup, cfg.WorkerID, cfg.WorkerConcurrency, cfg.JobTimeout)
	return w.Run(ctx)
}
