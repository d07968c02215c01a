package catalog

import (
	"testing"

	"github.com/hyperjump/musubu/internal/hdql"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	err = c.IndexAll([]hdql.Entity{
		{Type: "persona", Name: "developer", Description: "writes and ships production software"},
		{Type: "persona", Name: "designer", Description: "shapes the product experience"},
		{Type: "solution", Name: "search", Description: "full text search across documents"},
		{Type: "solution", Name: "alerts", Description: "notify on anomalies"},
	})
	if err != nil {
		t.Fatalf("IndexAll failed: %v", err)
	}
	return c
}

func TestCatalogSearch(t *testing.T) {
	c := newTestCatalog(t)

	hits, err := c.Search("software", "", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Key != "persona:developer" {
		t.Errorf("got %v, want persona:developer", hits)
	}

	hits, err = c.Search("nonexistent", "", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %v", hits)
	}
}

func TestCatalogSearchByType(t *testing.T) {
	c := newTestCatalog(t)

	// "search" appears in a solution name; restricting to persona excludes it.
	hits, err := c.Search("search", "persona", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, h := range hits {
		if h.Key == "solution:search" {
			t.Errorf("type filter leaked: %v", hits)
		}
	}

	hits, err = c.Search("search", "solution", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Key != "solution:search" {
		t.Errorf("got %v, want solution:search", hits)
	}
}

func TestCatalogDelete(t *testing.T) {
	c := newTestCatalog(t)
	if err := c.Delete("solution:alerts"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	hits, err := c.Search("anomalies", "", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted entity still indexed: %v", hits)
	}
	count, err := c.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 entities, got %d", count)
	}
}
