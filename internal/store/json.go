package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/musubu/internal/hdc"
	"github.com/hyperjump/musubu/internal/hdql"
)

// snapshot is the JSON form of a store. Vectors are not serialized: they are
// a pure function of (key, dimensions, strategy) and are rebuilt on load.
type snapshot struct {
	Dimensions int           `json:"dimensions"`
	Strategy   string        `json:"strategy"`
	Entities   []hdql.Entity `json:"entities"`
}

// SaveFile writes the store as a JSON snapshot. Parent directories are
// created if missing.
func (s *Store) SaveFile(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Dimensions: s.dims,
		Strategy:   string(s.strategy),
		Entities:   make([]hdql.Entity, len(s.order)),
	}
	for i, key := range s.order {
		snap.Entities[i] = s.entities[key]
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadFile reads a JSON snapshot and builds a store from it, re-embedding
// every entity. dims <= 0 in the snapshot is rejected.
func LoadFile(path string, logger *zap.Logger) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap.Dimensions <= 0 {
		return nil, &hdc.DimensionError{Got: snap.Dimensions, Want: hdc.DefaultDimensions}
	}
	strategy, err := hdc.ParseStrategy(snap.Strategy)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	s := New(snap.Dimensions, strategy, logger)
	s.AddAll(snap.Entities)
	return s, nil
}

// ReplaceFrom atomically swaps the store contents with those of another
// store. Dimensions and strategy must agree.
func (s *Store) ReplaceFrom(other *Store) error {
	if other.dims != s.dims {
		return &hdc.DimensionError{Got: other.dims, Want: s.dims}
	}
	other.mu.RLock()
	entities := make(map[string]hdql.Entity, len(other.entities))
	vectors := make(map[string]hdc.Vector, len(other.vectors))
	order := append([]string(nil), other.order...)
	for k, v := range other.entities {
		entities[k] = v
	}
	for k, v := range other.vectors {
		vectors[k] = v
	}
	other.mu.RUnlock()

	s.mu.Lock()
	s.entities = entities
	s.vectors = vectors
	s.order = order
	s.mu.Unlock()
	return nil
}
