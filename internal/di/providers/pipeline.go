package providers

import (
	"github.com/samber/do/v2"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/config"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/extract/llm"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/normalize"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/pipeline"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/ratelimit"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/reconcile"
)

// ProvideFetcher provides the document fetcher. The browser strategy is
// only attached when headless rendering is enabled.
func ProvideFetcher(i do.Injector) (*fetch.Fetcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	fetchCfg := fetch.Config{
		HTTP:    fetch.NewHTTPStrategy(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		Limiter: ratelimit.New(cfg.Fetch.PolitenessRPS, cfg.Fetch.PolitenessBurst),
		Policy: fetch.RetryPolicy{
			MaxAttempts: cfg.Fetch.RetryMaxAttempts,
			BaseDelay:   cfg.Fetch.RetryBaseDelay,
		},
		Logger: log,
	}
	if cfg.Fetch.BrowserEnabled {
		fetchCfg.Browser = fetch.NewBrowserStrategy(cfg.Fetch.Timeout)
	}

	return fetch.New(fetchCfg), nil
}

// FallbackExtractor carries the optional model-assisted extractor. The
// Extractor is nil when the fallback is disabled by configuration.
type FallbackExtractor struct {
	*llm.Extractor
}

// ProvideFallbackExtractor provides the model-assisted extraction fallback.
func ProvideFallbackExtractor(i do.Injector) (*FallbackExtractor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.LLM.Enabled {
		log.Info("Model-assisted extraction disabled")
		return &FallbackExtractor{}, nil
	}

	client := llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model)
	extractor := llm.NewExtractor(client, cfg.LLM.MaxDocumentChars, log)
	log.Info("Model-assisted extraction enabled", "model", cfg.LLM.Model)

	return &FallbackExtractor{Extractor: extractor}, nil
}

// ProvideNormalizer provides the candidate normalizer.
func ProvideNormalizer(i do.Injector) (*normalize.Normalizer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return normalize.New(normalize.Config{
		FreeAdmissionVenues: cfg.Normalize.FreeAdmissionVenues,
		DefaultTimezone:     cfg.Normalize.DefaultTimezone,
		VenueKeyTolerance:   cfg.Normalize.VenueKeyTolerance,
	}), nil
}

// ProvideReconciler provides the catalog reconciler.
func ProvideReconciler(i do.Injector) (*reconcile.Reconciler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	normalizer := do.MustInvoke[*normalize.Normalizer](i)

	r := reconcile.New(storeHandle.Store, log)
	r.SetReviewThreshold(cfg.Reconcile.ConfidenceThreshold)
	r.SetVenueMatcher(normalizer)
	return r, nil
}

// ProvidePipeline provides the ingestion runner.
func ProvidePipeline(i do.Injector) (*pipeline.Runner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	fetcher := do.MustInvoke[*fetch.Fetcher](i)
	fallback := do.MustInvoke[*FallbackExtractor](i)
	normalizer := do.MustInvoke[*normalize.Normalizer](i)
	reconciler := do.MustInvoke[*reconcile.Reconciler](i)

	runnerCfg := pipeline.Config{
		Fetcher:         fetcher,
		Normalizer:      normalizer,
		Reconciler:      reconciler,
		Store:           storeHandle.Store,
		Logger:          log,
		RetentionWindow: cfg.Reconcile.RetentionWindow,
		BrowserEnabled:  cfg.Fetch.BrowserEnabled,
	}
	if fallback.Extractor != nil {
		runnerCfg.Fallback = fallback.Extractor
	}

	return pipeline.New(runnerCfg), nil
}
