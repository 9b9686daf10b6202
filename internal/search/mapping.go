package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for tag documents.
//
// Tag names are short labels, so they are analyzed without stemming:
//  1. "name" uses the simple analyzer (lowercased letter runs) for word and
//     prefix matching
//  2. "name_exact" keeps the whole lowercased name for exact lookups
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = simple.Name
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	exactFieldMapping := bleve.NewTextFieldMapping()
	exactFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("name_exact", exactFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	idFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
