// Package catalog provides a full-text index over entity names and
// descriptions so callers can discover exact identifiers before writing
// queries against them.
package catalog

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/musubu/internal/hdql"
)

// Hit is one catalog search result.
type Hit struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// Catalog is an in-memory Bleve index keyed by entity key.
type Catalog struct {
	index bleve.Index
}

// indexedEntity is the document shape handed to Bleve.
type indexedEntity struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// New creates an empty in-memory catalog.
func New() (*Catalog, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a query for
	// the exact word always matches.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("type", keywordFieldMapping)
	im.AddDocumentMapping("entity", docMapping)
	im.DefaultType = "entity"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	return &Catalog{index: index}, nil
}

// Index adds or replaces an entity in the catalog.
func (c *Catalog) Index(e hdql.Entity) error {
	return c.index.Index(e.Key(), indexedEntity{
		Type:        e.Type,
		Name:        e.Name,
		Description: e.Description,
	})
}

// IndexAll adds a batch of entities.
func (c *Catalog) IndexAll(entities []hdql.Entity) error {
	batch := c.index.NewBatch()
	for _, e := range entities {
		if err := batch.Index(e.Key(), indexedEntity{
			Type:        e.Type,
			Name:        e.Name,
			Description: e.Description,
		}); err != nil {
			return err
		}
	}
	return c.index.Batch(batch)
}

// Delete removes an entity from the catalog by key.
func (c *Catalog) Delete(key string) error {
	return c.index.Delete(key)
}

// Search runs a free-text match over names and descriptions, optionally
// restricted to one entity type, and returns up to limit hits best first.
func (c *Catalog) Search(text, entityType string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	var q blevequery.Query = bleve.NewMatchQuery(text)
	if entityType != "" {
		tq := bleve.NewTermQuery(entityType)
		tq.SetField("type")
		q = bleve.NewConjunctionQuery(q, tq)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	results, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	hits := make([]Hit, len(results.Hits))
	for i, hit := range results.Hits {
		hits[i] = Hit{Key: hit.ID, Score: hit.Score}
	}
	return hits, nil
}

// Count returns the number of indexed entities.
func (c *Catalog) Count() (uint64, error) {
	return c.index.DocCount()
}

// Close releases the index.
func (c *Catalog) Close() error {
	return c.index.Close()
}
