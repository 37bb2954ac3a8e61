package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/config"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the catalog database.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.Data.DatabasePath, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Runs left open by a crashed ingest are closed as failed at startup.
	closed, err := db.CloseStaleRuns(ctx, time.Now().UTC().Add(-cfg.Reconcile.StaleRunTimeout))
	if err != nil {
		log.Warn("Closing stale runs failed", "error", err.Error())
	} else if closed > 0 {
		log.Info("Closed stale ingestion runs", "count", closed)
	}

	count, _ := db.CountActivities(ctx)
	log.Info("Database initialized", "path", cfg.Data.DatabasePath, "activities", count)

	return &StoreHandle{Store: db}, nil
}
