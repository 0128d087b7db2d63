package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"lala/internal/config"
	"lala/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		log.Fatalf("start daemon: %v", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- d.Wait() }()

	select {
	case <-ctx.Done():
		logger.Info("lalad shutting down")
	case err := <-waitErr:
		if err != nil {
			logger.Error("daemon task failed", logging.Error(err))
		}
	}
}
