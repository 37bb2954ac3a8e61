package search

import (
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
)

// Index wraps a Bleve index with the catalog's suggest operations.
//
// All public methods are safe for concurrent use. The mutex protects
// against index corruption during rebuild.
type Index struct {
	index bleve.Index
	path  string
	log   *logger.Logger
	mu    sync.RWMutex
}

// Options configures the suggest index.
type Options struct {
	// Path is the on-disk location of the index directory.
	Path string
	// Logger defaults to a no-op logger when nil.
	Logger *logger.Logger
}

// mappingVersion is incremented whenever the index mapping changes,
// triggering an automatic rebuild on startup when the version on disk
// does not match.
const mappingVersion = "1"

// Open creates or opens the suggest index. A corrupted index or one built
// with an outdated mapping is removed and recreated; the caller reindexes
// from the store afterwards when DocCount is zero.
func Open(opts Options) (*Index, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	indexPath := opts.Path
	versionPath := indexPath + ".version"

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil {
			log.Info("suggest index has no version file, rebuilding",
				"new_version", mappingVersion)
			needsRebuild = true
		} else if string(existingVersion) != mappingVersion {
			log.Info("suggest index mapping version changed, rebuilding",
				"old_version", string(existingVersion),
				"new_version", mappingVersion)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			log.Warn("failed to open existing suggest index, recreating",
				"path", indexPath, "error", err.Error())
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			log.Warn("failed to write suggest index version file", "error", writeErr.Error())
		}
		log.Info("created suggest index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		log.Info("opened suggest index", "path", indexPath)
	}

	return &Index{
		index: index,
		path:  indexPath,
		log:   log,
	}, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument indexes a single activity document, replacing any
// previous version under the same ID.
func (s *Index) IndexDocument(doc *Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments indexes multiple documents in batches. Much faster than
// IndexDocument in a loop when reindexing after a run.
func (s *Index) IndexDocuments(docs []*Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(docs); i += batchSize {
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteDocument removes an activity from the index.
func (s *Index) DeleteDocument(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocCount returns the number of indexed activities.
func (s *Index) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and creates a fresh empty one. The caller
// reindexes from the store afterwards. Acquires an exclusive lock and
// blocks all other operations while it runs.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.log.Info("rebuilt suggest index", "path", s.path)

	return nil
}
