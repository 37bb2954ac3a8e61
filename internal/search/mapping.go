package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for activity documents.
// Titles get English stemming for word-level matches; venue and city use
// the simple analyzer so prefix queries see lowercased whole tokens
// without stemming artifacts ("whitney" must match "Whitney").
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	venueFieldMapping := bleve.NewTextFieldMapping()
	venueFieldMapping.Analyzer = simple.Name
	venueFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("venue_name", venueFieldMapping)

	cityFieldMapping := bleve.NewTextFieldMapping()
	cityFieldMapping.Analyzer = simple.Name
	cityFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("city", cityFieldMapping)

	stateFieldMapping := bleve.NewTextFieldMapping()
	stateFieldMapping.Analyzer = keyword.Name
	stateFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("state", stateFieldMapping)

	typeFieldMapping := bleve.NewTextFieldMapping()
	typeFieldMapping.Analyzer = keyword.Name
	typeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("activity_type", typeFieldMapping)

	// Keyword analyzer keeps compound tags intact (e.g. "drop-in").
	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	startAtFieldMapping := bleve.NewNumericFieldMapping()
	startAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("start_at", startAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
