package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/config"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/search"
)

// SuggestIndexHandle wraps the suggest index with shutdown capability.
type SuggestIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SuggestIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSuggestIndex provides the Bleve typeahead index.
func ProvideSuggestIndex(i do.Injector) (*SuggestIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.Open(search.Options{
		Path:   cfg.Data.SearchIndexPath,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocCount()
	log.Info("Suggest index initialized", "documents", docCount)

	return &SuggestIndexHandle{Index: index}, nil
}

// TriggerSuggestReindexIfNeeded rebuilds an empty suggest index from the
// catalog. Should be called after the store and index are wired.
func TriggerSuggestReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SuggestIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.DocCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	activityCount, err := storeHandle.CountActivities(ctx)
	if err != nil || activityCount == 0 {
		return
	}

	log.Info("Suggest index is empty but catalog has activities, triggering reindex",
		"activities", activityCount)

	go func() {
		n, err := search.Reindex(context.Background(), storeHandle.Store, indexHandle.Index)
		if err != nil {
			log.Error("Suggest reindex failed", "error", err.Error())
			return
		}
		log.Info("Suggest reindex completed", "documents", n)
	}()
}
