// Package main provides the entry point for the activity catalog server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/di"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/di/providers"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	// Get logger for shutdown messages
	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Shutdown all services in reverse order
	// The DI container handles shutdown order automatically
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// Database and suggest index need explicit shutdown since they use wrapper types
	if storeHandle, err := do.Invoke[*providers.StoreHandle](injector); err == nil {
		log.Info("Closing database...")
		if err := storeHandle.Shutdown(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}

	if indexHandle, err := do.Invoke[*providers.SuggestIndexHandle](injector); err == nil {
		log.Info("Closing suggest index...")
		if err := indexHandle.Shutdown(); err != nil {
			log.Error("Failed to close suggest index", "error", err)
		}
	}

	log.Info("Catalog server stopped")
}
