package store

import (
	"math"
	"reflect"
	"testing"

	"github.com/hyperjump/musubu/internal/hdc"
	"github.com/hyperjump/musubu/internal/hdql"
)

func seedEntities() []hdql.Entity {
	return []hdql.Entity{
		{Type: "persona", Name: "developer"},
		{Type: "persona", Name: "designer"},
		{Type: "solution", Name: "search", Attributes: map[string]float64{"outcome_coverage": 0.9}},
		{Type: "solution", Name: "dashboard"},
		{Type: "outcome", Name: "fast_results"},
	}
}

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	s := New(256, hdc.L2, nil)
	s.AddAll(seedEntities())
	return s
}

func names(entities []hdql.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Name
	}
	return out
}

func TestStoreLookup(t *testing.T) {
	s := newSeededStore(t)

	got, err := s.Lookup("persona", "developer")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "developer" {
		t.Errorf("got %v", got)
	}

	got, err = s.Lookup("persona", "nobody")
	if err != nil {
		t.Fatalf("unknown identifier must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
}

func TestStoreOrdering(t *testing.T) {
	s := newSeededStore(t)
	all, err := s.AllEntities()
	if err != nil {
		t.Fatalf("AllEntities failed: %v", err)
	}
	want := []string{"developer", "designer", "search", "dashboard", "fast_results"}
	if got := names(all); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Re-adding keeps the original position.
	s.Add(hdql.Entity{Type: "persona", Name: "developer", Description: "updated"})
	all, _ = s.AllEntities()
	if got := names(all); !reflect.DeepEqual(got, want) {
		t.Errorf("re-add changed order: got %v, want %v", got, want)
	}
	if all[0].Description != "updated" {
		t.Error("re-add must replace the stored entity")
	}
	if s.Len() != len(want) {
		t.Errorf("expected %d entities, got %d", len(want), s.Len())
	}
}

func TestStoreRemove(t *testing.T) {
	s := newSeededStore(t)
	s.Remove("persona:designer")
	if _, ok := s.Get("persona:designer"); ok {
		t.Error("entity still present after Remove")
	}
	if _, ok := s.Vector("persona:designer"); ok {
		t.Error("vector still present after Remove")
	}
	s.Remove("persona:nobody") // no-op
	if s.Len() != 4 {
		t.Errorf("expected 4 entities, got %d", s.Len())
	}
}

func TestStoreVectorDeterminism(t *testing.T) {
	a := newSeededStore(t)
	b := newSeededStore(t)
	va, _ := a.Vector("solution:search")
	vb, _ := b.Vector("solution:search")
	if !reflect.DeepEqual(va, vb) {
		t.Error("same key must embed identically across stores")
	}
	norm := 0.0
	for _, x := range va {
		norm += x * x
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-9 {
		t.Errorf("expected unit vector, norm %v", math.Sqrt(norm))
	}
}

func TestStoreTypes(t *testing.T) {
	s := newSeededStore(t)
	want := []string{"outcome", "persona", "solution"}
	if got := s.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRelationSimilarity(t *testing.T) {
	s := newSeededStore(t)
	dev, _ := s.Get("persona:developer")

	self, err := s.RelationSimilarity(dev, dev)
	if err != nil {
		t.Fatalf("RelationSimilarity failed: %v", err)
	}
	if math.Abs(self-1.0) > 1e-9 {
		t.Errorf("self similarity = %v, want 1", self)
	}

	unknown := hdql.Entity{Type: "persona", Name: "nobody"}
	score, err := s.RelationSimilarity(dev, unknown)
	if err != nil {
		t.Fatalf("RelationSimilarity failed: %v", err)
	}
	if score != 0 {
		t.Errorf("unknown entity similarity = %v, want 0", score)
	}
}

func TestFindSimilarExcludesReference(t *testing.T) {
	s := newSeededStore(t)
	ref, _ := s.Get("solution:search")

	// A permissive distance bound admits everything except the reference.
	got, err := s.FindSimilar(ref, 2.0, 0)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(got) != s.Len()-1 {
		t.Fatalf("expected %d candidates, got %d", s.Len()-1, len(got))
	}
	for _, e := range got {
		if e.Key() == ref.Key() {
			t.Error("reference entity returned as its own neighbor")
		}
	}

	// Nearest-first ordering.
	refVec, _ := s.Vector(ref.Key())
	prev := 2.0
	for _, e := range got {
		v, _ := s.Vector(e.Key())
		sim := hdc.Cosine(refVec, v)
		if sim > prev {
			t.Error("candidates not ordered nearest first")
		}
		prev = sim
	}

	top, err := s.FindSimilar(ref, 2.0, 2)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(top) != 2 {
		t.Errorf("topK=2 returned %d", len(top))
	}
}

func TestFindSimilarTightThreshold(t *testing.T) {
	s := newSeededStore(t)
	ref, _ := s.Get("solution:search")
	// Independent hash-seeded vectors are near-orthogonal, so a tight bound
	// admits nothing.
	got, err := s.FindSimilar(ref, 0.1, 0)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no neighbors within distance 0.1, got %v", names(got))
	}
}

func TestSolveAnalogy(t *testing.T) {
	s := newSeededStore(t)
	a, _ := s.Get("persona:developer")
	b, _ := s.Get("solution:search")
	c, _ := s.Get("persona:designer")

	first, err := s.SolveAnalogy(a, b, c)
	if err != nil {
		t.Fatalf("SolveAnalogy failed: %v", err)
	}
	for _, op := range []hdql.Entity{a, b, c} {
		if first.Key() == op.Key() {
			t.Errorf("analogy answered with operand %s", op.Key())
		}
	}
	second, err := s.SolveAnalogy(a, b, c)
	if err != nil {
		t.Fatalf("SolveAnalogy failed: %v", err)
	}
	if first.Key() != second.Key() {
		t.Errorf("analogy not deterministic: %s vs %s", first.Key(), second.Key())
	}
}

func TestSolveAnalogyNoCandidates(t *testing.T) {
	s := New(64, hdc.L2, nil)
	a := hdql.Entity{Type: "persona", Name: "a"}
	b := hdql.Entity{Type: "persona", Name: "b"}
	c := hdql.Entity{Type: "persona", Name: "c"}
	s.AddAll([]hdql.Entity{a, b, c})
	if _, err := s.SolveAnalogy(a, b, c); err == nil {
		t.Fatal("expected error when every entity is an operand")
	}
}

func TestStoreImplementsDatabase(t *testing.T) {
	var _ hdql.Database = (*Store)(nil)
}
