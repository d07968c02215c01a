// Package store implements the embedding database the query engine runs
// against: deterministic hash-seeded vectors per entity, in-memory with
// optional JSON snapshot and SQLite persistence.
package store

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/musubu/internal/hdc"
	"github.com/hyperjump/musubu/internal/hdql"
)

// Store holds entities and their embeddings. Vectors are derived from the
// entity key, so a store can always be rebuilt from entity metadata alone.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	dims     int
	strategy hdc.Strategy
	entities map[string]hdql.Entity
	vectors  map[string]hdc.Vector
	order    []string // insertion order of entity keys
	logger   *zap.Logger
}

// New creates an empty store. dims <= 0 selects hdc.DefaultDimensions. A nil
// logger disables logging.
func New(dims int, strategy hdc.Strategy, logger *zap.Logger) *Store {
	if dims <= 0 {
		dims = hdc.DefaultDimensions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dims:     dims,
		strategy: strategy,
		entities: make(map[string]hdql.Entity),
		vectors:  make(map[string]hdc.Vector),
		logger:   logger,
	}
}

// Dimensions returns the vector dimensionality of the store.
func (s *Store) Dimensions() int { return s.dims }

// Strategy returns the normalization strategy of the store.
func (s *Store) Strategy() hdc.Strategy { return s.strategy }

// Len returns the number of entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Add inserts or replaces an entity and embeds it. Re-adding an existing key
// keeps its original position.
func (s *Store) Add(e hdql.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(e)
}

// AddAll inserts a batch of entities under one lock.
func (s *Store) AddAll(entities []hdql.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		s.addLocked(e)
	}
}

func (s *Store) addLocked(e hdql.Entity) {
	key := e.Key()
	if _, exists := s.entities[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entities[key] = e
	s.vectors[key] = hdc.Embed(key, s.dims, s.strategy)
	s.logger.Debug("entity stored",
		zap.String("key", key),
		zap.Int("dimensions", s.dims),
	)
}

// Remove deletes an entity by key. Removing an unknown key is a no-op.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[key]; !ok {
		return
	}
	delete(s.entities, key)
	delete(s.vectors, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns the entity stored under key.
func (s *Store) Get(key string) (hdql.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key]
	return e, ok
}

// Vector returns the embedding of the entity stored under key.
func (s *Store) Vector(key string) (hdc.Vector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[key]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Types returns the distinct entity types, sorted.
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var types []string
	for _, key := range s.order {
		t := s.entities[key].Type
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// Lookup implements hdql.Database. Unknown identifiers yield an empty set.
func (s *Store) Lookup(entityType, identifier string) ([]hdql.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []hdql.Entity
	for _, key := range s.order {
		e := s.entities[key]
		if e.Type == entityType && e.Name == identifier {
			out = append(out, e)
		}
	}
	return out, nil
}

// EntitiesByType implements hdql.Database.
func (s *Store) EntitiesByType(entityType string) ([]hdql.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []hdql.Entity
	for _, key := range s.order {
		if e := s.entities[key]; e.Type == entityType {
			out = append(out, e)
		}
	}
	return out, nil
}

// AllEntities implements hdql.Database. Entities come back in insertion
// order, so repeated queries see the same ordering.
func (s *Store) AllEntities() ([]hdql.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hdql.Entity, len(s.order))
	for i, key := range s.order {
		out[i] = s.entities[key]
	}
	return out, nil
}

// RelationSimilarity implements hdql.Database: the cosine similarity of the
// two entity embeddings. Independent hash-seeded vectors sit near zero, so
// only genuinely close embeddings clear the executor's relation threshold.
func (s *Store) RelationSimilarity(a, b hdql.Entity) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	va, okA := s.vectors[a.Key()]
	vb, okB := s.vectors[b.Key()]
	if !okA || !okB {
		return 0, nil
	}
	return hdc.Cosine(va, vb), nil
}

// FindSimilar implements hdql.Database. threshold is a distance bound: an
// entity qualifies when cosine similarity >= 1 - threshold. The reference
// itself is excluded. Results come back nearest first.
func (s *Store) FindSimilar(ref hdql.Entity, threshold float64, topK int) ([]hdql.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refVec, ok := s.vectors[ref.Key()]
	if !ok {
		refVec = hdc.Embed(ref.Key(), s.dims, s.strategy)
	}
	minSim := 1.0 - threshold

	type scored struct {
		key string
		sim float64
	}
	var candidates []scored
	for _, key := range s.order {
		if key == ref.Key() {
			continue
		}
		sim := hdc.Cosine(refVec, s.vectors[key])
		if sim >= minSim {
			candidates = append(candidates, scored{key: key, sim: sim})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]hdql.Entity, len(candidates))
	for i, c := range candidates {
		out[i] = s.entities[c.key]
	}
	return out, nil
}

// SolveAnalogy implements hdql.Database: "a is to b as c is to ?" answered by
// the entity nearest to normalize(c + b - a), excluding the three operands.
func (s *Store) SolveAnalogy(a, b, c hdql.Entity) (hdql.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vec := func(e hdql.Entity) hdc.Vector {
		if v, ok := s.vectors[e.Key()]; ok {
			return v
		}
		return hdc.Embed(e.Key(), s.dims, s.strategy)
	}
	va, vb, vc := vec(a), vec(b), vec(c)

	target := make(hdc.Vector, s.dims)
	for i := range target {
		target[i] = vc[i] + vb[i] - va[i]
	}
	target = hdc.NormalizeL2(target)

	exclude := map[string]bool{a.Key(): true, b.Key(): true, c.Key(): true}
	best := ""
	bestSim := -2.0
	for _, key := range s.order {
		if exclude[key] {
			continue
		}
		if sim := hdc.Cosine(target, s.vectors[key]); sim > bestSim {
			bestSim = sim
			best = key
		}
	}
	if best == "" {
		return hdql.Entity{}, fmt.Errorf("no candidate entities for analogy")
	}
	return s.entities[best], nil
}
