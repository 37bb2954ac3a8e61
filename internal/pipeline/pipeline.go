// Package pipeline orchestrates one ingestion run per source: fetch every
// listing document, extract candidates (deterministic parser first, model
// fallback when it comes up short), normalize, and reconcile into the
// catalog under a tracked run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/adapter"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/extract"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/extract/llm"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/normalize"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/reconcile"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
)

// cancelMarker is recorded in the run's error bundle when a run is cut
// short by cooperative cancellation.
const cancelMarker = "run cancelled"

// Fallback is the model-assisted extractor consulted when deterministic
// parsing yields nothing usable.
type Fallback interface {
	Extract(ctx context.Context, doc *fetch.Document, hints llm.Hints) ([]domain.Candidate, error)
}

// Report summarizes one source run for the caller.
type Report struct {
	Source   string
	RunID    string
	Status   domain.RunStatus
	Found    int
	Saved    int
	Rejected int
	Errors   []string
	DryRun   bool
}

// Failed reports whether the run closed failed.
func (r *Report) Failed() bool { return r.Status == domain.RunFailed }

// Config assembles a Runner.
type Config struct {
	Fetcher    *fetch.Fetcher
	Fallback   Fallback // nil disables the model fallback
	Normalizer *normalize.Normalizer
	Reconciler *reconcile.Reconciler
	Store      store.Store
	Logger     *logger.Logger

	// RetentionWindow drives the expiry pass after each run. Zero or
	// negative skips the pass.
	RetentionWindow time.Duration
	// BrowserEnabled allows a render retry when a static fetch parses to
	// nothing.
	BrowserEnabled bool
	// SnapshotDir, when set, receives a copy of every fetched document.
	SnapshotDir string
	// DryRun executes fetch, extract, and normalize but skips all
	// persistence.
	DryRun bool
}

// Runner executes ingestion runs.
type Runner struct {
	cfg Config
	log *logger.Logger
}

// New creates a Runner.
func New(cfg Config) *Runner {
	log := cfg.Logger
	if log == nil {
		log = logger.Noop()
	}
	return &Runner{cfg: cfg, log: log}
}

// RunSource executes one run for the named source.
func (r *Runner) RunSource(ctx context.Context, name string) (*Report, error) {
	a, err := adapter.Get(name)
	if err != nil {
		return nil, err
	}
	return r.RunAdapter(ctx, a)
}

// RunAdapter executes one run for the given adapter. Documents are
// processed strictly in order; cancellation is honored between documents,
// never mid-document. The run record is closed exactly once, even on
// panic.
func (r *Runner) RunAdapter(ctx context.Context, a adapter.Adapter) (report *Report, err error) {
	report = &Report{Source: a.Name(), DryRun: r.cfg.DryRun}

	var run *domain.IngestionRun
	var src *domain.Source
	if !r.cfg.DryRun {
		src, _, err = r.cfg.Store.GetOrCreateSourceByName(ctx, a.Name(), a.BaseURL(), a.Name())
		if err != nil {
			return nil, fmt.Errorf("seed source %s: %w", a.Name(), err)
		}
		run = &domain.IngestionRun{SourceID: src.ID}
		if err := r.cfg.Store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("start run for %s: %w", a.Name(), err)
		}
		report.RunID = run.ID

		// Close the run no matter how this function exits.
		defer func() {
			if p := recover(); p != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("panic: %v", p))
				report.Status = domain.RunFailed
				r.finish(run.ID, report)
				panic(p)
			}
			r.finish(run.ID, report)
		}()
	}

	report.Status = r.processDocuments(ctx, a, src, report)

	// A non-positive retention window would put the cutoff at or past now
	// and expire the rows this very run wrote, so it disables the pass.
	if !r.cfg.DryRun && report.Status == domain.RunSuccess && r.cfg.RetentionWindow > 0 {
		if _, err := r.cfg.Reconciler.ExpireStale(ctx, src.ID, r.cfg.RetentionWindow); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("expiry pass: %v", err))
		}
	}

	return report, nil
}

// processDocuments walks the adapter's documents and returns the terminal
// run status. A permanent failure on the entry document or the store going
// away fails the run; later per-document failures are recorded and skipped.
func (r *Runner) processDocuments(ctx context.Context, a adapter.Adapter, src *domain.Source, report *Report) domain.RunStatus {
	requests := a.Requests()
	seen := make(map[seenKey]bool)
	sourceID := ""
	runID := ""
	if src != nil {
		sourceID = src.ID
		runID = report.RunID
	}

	docsFailed := 0
	for i, req := range requests {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, cancelMarker)
			return domain.RunFailed
		}

		doc, err := r.fetchDocument(ctx, a, req, i)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			if ctx.Err() != nil {
				report.Errors = append(report.Errors, cancelMarker)
				return domain.RunFailed
			}
			if i == 0 {
				// Entry document failure aborts the source.
				return domain.RunFailed
			}
			docsFailed++
			continue
		}

		candidates := r.extractCandidates(ctx, a, req, doc, report)
		normalized := r.normalizeCandidates(candidates, seen, sourceID, report)
		report.Found += len(normalized)

		if r.cfg.DryRun || len(normalized) == 0 {
			continue
		}

		result, err := r.cfg.Reconciler.Reconcile(ctx, sourceID, runID, normalized)
		if result != nil {
			report.Saved += result.Inserted + result.Updated
			report.Rejected += result.Rejected
			report.Errors = append(report.Errors, result.Errors...)
		}
		if err != nil {
			// Store failure or cancellation is fatal to the run.
			if ctx.Err() != nil {
				report.Errors = append(report.Errors, cancelMarker)
			} else {
				report.Errors = append(report.Errors, fmt.Sprintf("reconcile: %v", err))
			}
			return domain.RunFailed
		}
	}

	if docsFailed > 0 && report.Found == 0 {
		// Every follow-up document failed and the entry page produced
		// nothing either.
		return domain.RunFailed
	}

	return domain.RunSuccess
}

// fetchDocument retrieves one document, falling back to the rendered
// browser strategy when the static page cannot be fetched.
func (r *Runner) fetchDocument(ctx context.Context, a adapter.Adapter, req fetch.Request, index int) (*fetch.Document, error) {
	doc, err := r.cfg.Fetcher.Fetch(ctx, req)
	if err != nil && !req.RenderJS && r.cfg.BrowserEnabled && ctx.Err() == nil {
		r.log.Warn("static fetch failed, retrying rendered",
			"source", a.Name(), "url", req.URL, "error", err.Error())
		rendered := req
		rendered.RenderJS = true
		doc, err = r.cfg.Fetcher.Fetch(ctx, rendered)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}

	r.snapshot(a.Name(), index, doc)
	return doc, nil
}

// extractCandidates runs the deterministic parser and, when it fails or
// comes in under the source's confidence threshold, the model fallback.
// Low-but-nonzero deterministic candidates are kept alongside the fallback
// set; the reconciler merges them field by field.
func (r *Runner) extractCandidates(ctx context.Context, a adapter.Adapter, req fetch.Request, doc *fetch.Document, report *Report) []domain.Candidate {
	candidates, parseErr := a.Parse(doc)
	if parseErr != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("parse %s: %v", doc.URL, parseErr))
		r.log.Warn("deterministic parse failed", "source", a.Name(), "url", doc.URL, "error", parseErr.Error())
	}

	// A static page that parses to nothing may render its listings
	// client-side. Try once through the browser before the model.
	if len(candidates) == 0 && parseErr == nil && doc.Strategy == "http" && r.cfg.BrowserEnabled {
		renderReq := req
		renderReq.RenderJS = true
		rendered, err := r.cfg.Fetcher.Fetch(ctx, renderReq)
		if err == nil {
			candidates, parseErr = a.Parse(rendered)
			if parseErr != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("parse rendered %s: %v", doc.URL, parseErr))
			}
		}
	}

	for i := range candidates {
		if candidates[i].FieldConfidence == nil {
			extract.Score(&candidates[i])
		}
	}

	if !r.needsFallback(a, candidates, parseErr) || r.cfg.Fallback == nil {
		return candidates
	}

	venue := a.Venue()
	hints := llm.Hints{
		SourceName: a.Name(),
		VenueName:  venue.Name,
		City:       venue.City,
		State:      venue.State,
		Timezone:   r.cfg.Normalizer.Timezone(),
	}
	fallbackCandidates, err := r.cfg.Fallback.Extract(ctx, doc, hints)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("fallback %s: %v", doc.URL, err))
		r.log.Warn("model fallback failed", "source", a.Name(), "url", doc.URL, "error", err.Error())
		return candidates
	}
	r.log.Info("model fallback produced candidates",
		"source", a.Name(), "url", doc.URL, "count", len(fallbackCandidates))

	return append(candidates, fallbackCandidates...)
}

// needsFallback decides whether the deterministic pass was good enough.
func (r *Runner) needsFallback(a adapter.Adapter, candidates []domain.Candidate, parseErr error) bool {
	if parseErr != nil || len(candidates) == 0 {
		return true
	}
	threshold := a.ConfidenceThreshold()
	for _, c := range candidates {
		if c.Confidence >= threshold {
			return false
		}
	}
	return true
}

// seenKey scopes in-run dedup to one extraction method. A fallback
// candidate for an occurrence the deterministic parser already produced
// still reaches the reconciler, whose upsert merges the two sightings
// field by field.
type seenKey struct {
	key    domain.DedupKey
	method domain.ExtractionMethod
}

// normalizeCandidates runs the pure normalization pass and drops in-run
// duplicates so a page listing the same occurrence twice counts once.
func (r *Runner) normalizeCandidates(candidates []domain.Candidate, seen map[seenKey]bool, sourceID string, report *Report) []domain.Candidate {
	normalized := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		nc, err := r.cfg.Normalizer.Candidate(c)
		if err != nil {
			report.Rejected++
			report.Errors = append(report.Errors, fmt.Sprintf("normalize %q: %v", c.Title, err))
			continue
		}
		sk := seenKey{key: nc.Key(sourceID), method: nc.ExtractionMethod}
		if seen[sk] {
			continue
		}
		seen[sk] = true
		normalized = append(normalized, nc)
	}
	return normalized
}

// snapshot writes the raw document body for offline replay.
func (r *Runner) snapshot(source string, index int, doc *fetch.Document) {
	if r.cfg.SnapshotDir == "" {
		return
	}
	if err := os.MkdirAll(r.cfg.SnapshotDir, 0o755); err != nil {
		r.log.Warn("snapshot dir", "error", err.Error())
		return
	}
	name := fmt.Sprintf("%s-%02d.html", source, index)
	if err := os.WriteFile(filepath.Join(r.cfg.SnapshotDir, name), doc.Body, 0o644); err != nil {
		r.log.Warn("snapshot write", "source", source, "url", doc.URL, "error", err.Error())
	}
}

// finish closes the run record with the report's terminal state. Errors
// closing the run are logged, not returned; the report already carries the
// outcome.
func (r *Runner) finish(runID string, report *Report) {
	status := report.Status
	if status != domain.RunSuccess && status != domain.RunFailed {
		status = domain.RunFailed
	}
	errText := strings.Join(report.Errors, "; ")

	// The run record outlives the caller's context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.cfg.Store.FinishRun(ctx, runID, status, report.Found, report.Saved, errText); err != nil {
		r.log.Error("close run", "run_id", runID, "error", err.Error())
	}
}

// RunSnapshot replays one saved document through the full extraction path
// for the named source. Nothing is persisted; the report carries what the
// document would have contributed.
func (r *Runner) RunSnapshot(ctx context.Context, name, path string) (*Report, error) {
	a, err := adapter.Get(name)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	doc := &fetch.Document{
		URL:         a.BaseURL(),
		Body:        body,
		ContentType: "text/html",
		FetchedAt:   time.Now().UTC(),
		Strategy:    "snapshot",
	}

	report := &Report{Source: a.Name(), DryRun: true, Status: domain.RunSuccess}
	candidates := r.extractCandidates(ctx, a, fetch.Request{URL: doc.URL}, doc, report)
	normalized := r.normalizeCandidates(candidates, make(map[seenKey]bool), "", report)
	report.Found = len(normalized)
	return report, nil
}
