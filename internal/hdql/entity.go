package hdql

// Entity is a named embedded domain concept. The key "type:name" maps 1:1 to
// a vector in the embedding database.
type Entity struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Attributes  map[string]float64 `json:"attributes,omitempty"`
}

// Key returns the namespaced entity key.
func (e Entity) Key() string {
	return e.Type + ":" + e.Name
}

// Attribute returns the named attribute value, or 0 when unset.
func (e Entity) Attribute(name string) float64 {
	return e.Attributes[name]
}

// AttributedEntity pairs an entity with one extracted attribute value so a
// later filter step can compare against it.
type AttributedEntity struct {
	Entity Entity  `json:"entity"`
	Value  float64 `json:"value"`
}

// Database is the synchronous, read-only embedding store the executor
// consults. Implementations must tolerate unknown identifiers by returning
// empty result sets rather than errors.
type Database interface {
	// Lookup returns entities of the given type exactly matching identifier.
	Lookup(entityType, identifier string) ([]Entity, error)
	// EntitiesByType returns every entity of the given type.
	EntitiesByType(entityType string) ([]Entity, error)
	// AllEntities returns the full entity universe.
	AllEntities() ([]Entity, error)
	// RelationSimilarity scores how strongly a relates to b.
	RelationSimilarity(a, b Entity) (float64, error)
	// FindSimilar returns up to topK entities within the given semantic
	// distance of ref, nearest first.
	FindSimilar(ref Entity, threshold float64, topK int) ([]Entity, error)
	// SolveAnalogy answers "a is to b as c is to ?" with vector arithmetic.
	SolveAnalogy(a, b, c Entity) (Entity, error)
}
