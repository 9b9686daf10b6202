// Package main provides the entry point for the media tag server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/upnorway/sanity-plugin-media/internal/di"
	"github.com/upnorway/sanity-plugin-media/internal/di/providers"
	"github.com/upnorway/sanity-plugin-media/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	workers := do.MustInvoke[*providers.WorkersHandle](injector)

	// Wait for shutdown signal, or for a worker loop to fail
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		log.Info("Shutting down server gracefully...")
	case <-workers.Done():
		log.Error("Tag workers stopped unexpectedly", "error", workers.Err())
		exitCode = 1
	}

	// The DI container shuts services down in reverse dependency order:
	// HTTP server, workers, then the document store and search index.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
		exitCode = 1
	}

	log.Info("Server stopped")
	os.Exit(exitCode)
}
