// Package main provides the ingestion command for the activity catalog.
// It runs one ingestion pass per source: fetch, extract, normalize, and
// reconcile into the catalog, then refreshes the suggest index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/adapter"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/config"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/extract/llm"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/normalize"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/pipeline"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/ratelimit"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/reconcile"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/search"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store/sqlite"
)

// maxConcurrentSources bounds parallel source runs. Politeness is
// per-host, so cross-source parallelism stays safe.
const maxConcurrentSources = 4

func main() {
	// Ingest flags must be registered before LoadConfig calls flag.Parse.
	sourceFlag := flag.String("source", "all", "Source to ingest, or 'all'")
	dryRun := flag.Bool("dry-run", false, "Fetch, extract, and normalize without persisting")
	snapshots := flag.Bool("snapshots", false, "Write every fetched document to the snapshot directory")
	replay := flag.String("replay", "", "Replay extraction against a saved HTML file instead of fetching")
	listSources := flag.Bool("list", false, "List registered sources and exit")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *listSources {
		for _, name := range adapter.Names() {
			fmt.Println(name)
		}
		return
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	os.Exit(run(cfg, log, *sourceFlag, *dryRun, *snapshots, *replay))
}

func run(cfg *config.Config, log *logger.Logger, source string, dryRun, snapshots bool, replay string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := sqlite.Open(cfg.Data.DatabasePath, log)
	if err != nil {
		log.Error("Open database failed", "error", err.Error())
		return 1
	}
	defer st.Close()

	// Runs left open by a crashed ingest count as failed.
	if closed, err := st.CloseStaleRuns(ctx, time.Now().UTC().Add(-cfg.Reconcile.StaleRunTimeout)); err != nil {
		log.Warn("Closing stale runs failed", "error", err.Error())
	} else if closed > 0 {
		log.Info("Closed stale ingestion runs", "count", closed)
	}

	normalizer := normalize.New(normalize.Config{
		FreeAdmissionVenues: cfg.Normalize.FreeAdmissionVenues,
		DefaultTimezone:     cfg.Normalize.DefaultTimezone,
		VenueKeyTolerance:   cfg.Normalize.VenueKeyTolerance,
	})

	reconciler := reconcile.New(st, log)
	reconciler.SetReviewThreshold(cfg.Reconcile.ConfidenceThreshold)
	reconciler.SetVenueMatcher(normalizer)

	runnerCfg := pipeline.Config{
		Fetcher:         newFetcher(cfg, log),
		Normalizer:      normalizer,
		Reconciler:      reconciler,
		Store:           st,
		Logger:          log,
		RetentionWindow: cfg.Reconcile.RetentionWindow,
		BrowserEnabled:  cfg.Fetch.BrowserEnabled,
		DryRun:          dryRun,
	}
	if snapshots {
		runnerCfg.SnapshotDir = cfg.Data.SnapshotPath
	}
	if cfg.LLM.Enabled {
		client := llm.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model)
		runnerCfg.Fallback = llm.NewExtractor(client, cfg.LLM.MaxDocumentChars, log)
	}
	runner := pipeline.New(runnerCfg)

	if replay != "" {
		if source == "all" {
			log.Error("Replay needs a single -source")
			return 1
		}
		report, err := runner.RunSnapshot(ctx, source, replay)
		if err != nil {
			log.Error("Replay failed", "source", source, "error", err.Error())
			return 1
		}
		printReport(report)
		return 0
	}

	names := adapter.Names()
	if source != "all" {
		names = []string{source}
	}

	var mu sync.Mutex
	reports := make([]*pipeline.Report, 0, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSources)
	for _, name := range names {
		g.Go(func() error {
			report, err := runner.RunSource(gctx, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}

	exit := 0
	if err := g.Wait(); err != nil {
		log.Error("Ingestion aborted", "error", err.Error())
		exit = 1
	}

	failed := 0
	for _, report := range reports {
		printReport(report)
		if report.Failed() {
			failed++
		}
	}
	if failed > 0 {
		log.Warn("Some runs failed", "failed", failed, "total", len(reports))
		exit = 1
	}

	if !dryRun && len(reports) > 0 {
		if err := refreshSuggestIndex(ctx, cfg, st, log); err != nil {
			log.Error("Suggest index refresh failed", "error", err.Error())
			exit = 1
		}
	}

	return exit
}

func newFetcher(cfg *config.Config, log *logger.Logger) *fetch.Fetcher {
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
	return fetch.New(fetchCfg)
}

func refreshSuggestIndex(ctx context.Context, cfg *config.Config, st *sqlite.Store, log *logger.Logger) error {
	index, err := search.Open(search.Options{
		Path:   cfg.Data.SearchIndexPath,
		Logger: log,
	})
	if err != nil {
		return err
	}
	defer index.Close()

	n, err := search.Reindex(ctx, st, index)
	if err != nil {
		return err
	}
	log.Info("Suggest index refreshed", "documents", n)
	return nil
}

func printReport(r *pipeline.Report) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Printf("%s%s: %s, found %d, saved %d, rejected %d\n",
		r.Source, mode, r.Status, r.Found, r.Saved, r.Rejected)
	for _, e := range r.Errors {
		fmt.Printf("  - %s\n", strings.TrimSpace(e))
	}
}
