package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outpoot/editmash-hub/internal/config"
	"github.com/outpoot/editmash-hub/internal/hubserver"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to configuration file")
	flag.Parse()

	logger := log.New(os.Stdout, "editmash-hub: ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}

	srv, err := hubserver.New(cfg, logger)
	if err != nil {
		logger.Fatalf("create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
}
