// Package di provides dependency injection configuration for the catalog server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/config"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/di/providers"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/normalize"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/pipeline"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/reconcile"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSuggestIndex)

	// Ingestion layer
	do.Provide(injector, providers.ProvideFetcher)
	do.Provide(injector, providers.ProvideFallbackExtractor)
	do.Provide(injector, providers.ProvideNormalizer)
	do.Provide(injector, providers.ProvideReconciler)
	do.Provide(injector, providers.ProvidePipeline)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle
// management. This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SuggestIndexHandle](injector)

	_ = do.MustInvoke[*fetch.Fetcher](injector)
	_ = do.MustInvoke[*providers.FallbackExtractor](injector)
	_ = do.MustInvoke[*normalize.Normalizer](injector)
	_ = do.MustInvoke[*reconcile.Reconciler](injector)
	_ = do.MustInvoke[*pipeline.Runner](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Rebuild the suggest index if lost or versioned away
	providers.TriggerSuggestReindexIfNeeded(injector)

	return nil
}
