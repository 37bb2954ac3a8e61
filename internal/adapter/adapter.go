// Package adapter holds the per-source crawl adapters. Each adapter knows
// which listing pages its museum publishes, how to parse them into activity
// candidates, and nothing else; fetching, normalization, and persistence
// live elsewhere in the pipeline.
package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
)

// Adapter is a single crawl source.
type Adapter interface {
	// Name is the stable source identifier, e.g. "met_teens_free_workshops".
	Name() string
	// BaseURL is the site root the source's activities live under.
	BaseURL() string
	// Venue is the physical venue this source's activities happen at,
	// used to hint the model-assisted fallback.
	Venue() domain.Venue
	// Requests lists the documents to fetch for one run of this source.
	Requests() []fetch.Request
	// Parse extracts activity candidates from one fetched document.
	// An empty slice with a nil error means the page held nothing relevant;
	// an error means the page could not be understood at all, which is the
	// signal to try the model-assisted fallback.
	Parse(doc *fetch.Document) ([]domain.Candidate, error)
	// ConfidenceThreshold is the candidate confidence below which the
	// pipeline consults the model-assisted fallback for this source.
	ConfidenceThreshold() float64
}

// DefaultConfidenceThreshold suits sources whose listings are parsed
// deterministically; adapters override per source when their pages are
// flakier.
const DefaultConfidenceThreshold = 0.5

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Adapter)
)

// Register adds an adapter to the registry. Duplicate names panic; they
// are a programming error caught at init time.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[a.Name()]; exists {
		panic(fmt.Sprintf("adapter %q registered twice", a.Name()))
	}
	registry[a.Name()] = a
}

// Get returns the adapter with the given name.
func Get(name string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return a, nil
}

// All returns every registered adapter, sorted by name for stable run order.
func All() []Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Adapter, 0, len(registry))
	for _, a := range registry {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the registered source names, sorted.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.Name()
	}
	return names
}

func init() {
	Register(NewMetAdapter())
	Register(NewMoMAAdapter(AudienceTeens))
	Register(NewMoMAAdapter(AudienceKids))
	Register(NewMFAAdapter())
	Register(NewWhitneyAdapter())
}
