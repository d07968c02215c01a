package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/musubu/internal/hdc"
	"github.com/hyperjump/musubu/internal/hdql"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")

	s := newSeededStore(t)
	if err := s.SaveFile(path); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	loaded, err := LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.Dimensions() != s.Dimensions() {
		t.Errorf("dimensions changed: %d vs %d", loaded.Dimensions(), s.Dimensions())
	}
	if loaded.Strategy() != s.Strategy() {
		t.Errorf("strategy changed: %s vs %s", loaded.Strategy(), s.Strategy())
	}

	origAll, _ := s.AllEntities()
	loadedAll, _ := loaded.AllEntities()
	if !reflect.DeepEqual(origAll, loadedAll) {
		t.Errorf("entities changed:\n got %v\nwant %v", loadedAll, origAll)
	}

	// Rebuilt vectors must be bit-identical to the originals.
	for _, e := range origAll {
		orig, _ := s.Vector(e.Key())
		reloaded, _ := loaded.Vector(e.Key())
		if !reflect.DeepEqual(orig, reloaded) {
			t.Errorf("vector for %s diverged after reload", e.Key())
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.json"), nil); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0644)
	if _, err := LoadFile(bad, nil); err == nil {
		t.Error("expected error for malformed JSON")
	}

	zeroDims := filepath.Join(dir, "zero.json")
	os.WriteFile(zeroDims, []byte(`{"dimensions": 0, "strategy": "l2", "entities": []}`), 0644)
	if _, err := LoadFile(zeroDims, nil); err == nil {
		t.Error("expected error for non-positive dimensions")
	}

	badStrategy := filepath.Join(dir, "strategy.json")
	os.WriteFile(badStrategy, []byte(`{"dimensions": 64, "strategy": "median", "entities": []}`), 0644)
	if _, err := LoadFile(badStrategy, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestReplaceFrom(t *testing.T) {
	target := New(256, hdc.L2, nil)
	target.Add(hdql.Entity{Type: "persona", Name: "old"})

	replacement := newSeededStore(t)
	if err := target.ReplaceFrom(replacement); err != nil {
		t.Fatalf("ReplaceFrom failed: %v", err)
	}
	if _, ok := target.Get("persona:old"); ok {
		t.Error("old contents survived replacement")
	}
	if target.Len() != replacement.Len() {
		t.Errorf("expected %d entities, got %d", replacement.Len(), target.Len())
	}

	mismatched := New(128, hdc.L2, nil)
	if err := target.ReplaceFrom(mismatched); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
