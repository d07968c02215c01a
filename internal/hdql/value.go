package hdql

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperjump/musubu/internal/hdc"
)

// Var is an opaque handle to a slot in the execution environment. The
// compiler mints handles monotonically; a step may only reference handles
// produced by earlier steps, so plans are acyclic by construction.
type Var int

// ResultVar is the reserved slot the final collect_results step writes to.
const ResultVar Var = 0

func (v Var) String() string {
	if v == ResultVar {
		return "$result"
	}
	return fmt.Sprintf("$v%d", int(v))
}

// Value is the union of types an execution slot can hold.
type Value interface {
	isValue()
}

// VectorValue holds a raw vector.
type VectorValue struct {
	Vec hdc.Vector
}

// EntityList holds an ordered set of entities.
type EntityList []Entity

// AttributedList holds entities annotated with one attribute value each.
type AttributedList []AttributedEntity

// Scalar holds a numeric value.
type Scalar float64

// StringValue holds a string constant.
type StringValue string

// BoolValue holds a boolean constant.
type BoolValue bool

func (VectorValue) isValue()    {}
func (EntityList) isValue()     {}
func (AttributedList) isValue() {}
func (Scalar) isValue()         {}
func (StringValue) isValue()    {}
func (BoolValue) isValue()      {}

// ExecutionContext is the mutable per-run state: variable bindings, the
// human-readable reasoning trace, and named debug snapshots. A context lives
// for exactly one execution and is discarded after.
type ExecutionContext struct {
	RunID     string
	Steps     []string
	Snapshots map[string]any

	vars map[Var]Value
}

// NewExecutionContext creates a fresh context with a unique run ID.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		RunID:     uuid.NewString(),
		Snapshots: make(map[string]any),
		vars:      make(map[Var]Value),
	}
}

// Set binds a value to a variable slot.
func (c *ExecutionContext) Set(v Var, val Value) {
	c.vars[v] = val
}

// Get returns the value bound to v, if any.
func (c *ExecutionContext) Get(v Var) (Value, bool) {
	val, ok := c.vars[v]
	return val, ok
}

// Entities returns the entity list bound to v. Attributed lists are unwrapped
// to their entities; an unbound slot yields an empty list.
func (c *ExecutionContext) Entities(v Var) EntityList {
	switch val := c.vars[v].(type) {
	case EntityList:
		return val
	case AttributedList:
		out := make(EntityList, len(val))
		for i, ae := range val {
			out[i] = ae.Entity
		}
		return out
	}
	return nil
}

// AddStep appends a readable line to the reasoning trace. The trace is
// observability only and never affects control flow.
func (c *ExecutionContext) AddStep(format string, args ...any) {
	c.Steps = append(c.Steps, fmt.Sprintf(format, args...))
}

// Snapshot records a named debug value.
func (c *ExecutionContext) Snapshot(key string, value any) {
	c.Snapshots[key] = value
}
