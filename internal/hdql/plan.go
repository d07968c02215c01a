package hdql

import (
	"fmt"
	"sort"
	"strings"
)

// OpType tags one kind of plan step.
type OpType string

// The plan operation types the executor can dispatch.
const (
	OpLookup          OpType = "lookup"
	OpBindRelation    OpType = "bind_relation"
	OpLogical         OpType = "logical"
	OpFilter          OpType = "filter"
	OpSimilarity      OpType = "similarity"
	OpAnalogy         OpType = "analogy"
	OpOptimize        OpType = "optimize"
	OpFunctionCall    OpType = "function_call"
	OpAttributeAccess OpType = "attribute_access"
	OpBinaryOp        OpType = "binary_op"
	OpLiteral         OpType = "literal"
	OpCollectResults  OpType = "collect_results"
)

// Operation is a single plan step: an op type, the input handles it reads,
// the output handle it writes, and a parameter map.
type Operation struct {
	Type   OpType
	Inputs []Var
	Output Var
	Params map[string]any
}

func (op Operation) String() string {
	inputs := make([]string, len(op.Inputs))
	for i, v := range op.Inputs {
		inputs[i] = v.String()
	}
	params := make([]string, 0, len(op.Params))
	for k, v := range op.Params {
		params = append(params, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(params)
	return fmt.Sprintf("%s(%s) -> %s [%s]",
		op.Type, strings.Join(inputs, ", "), op.Output, strings.Join(params, ", "))
}

// ResultKind selects the shape of the final result, fixed at compile time.
type ResultKind string

const (
	// KindVectorQuery produces a VectorQueryResult.
	KindVectorQuery ResultKind = "vector_query"
	// KindRecommendation produces a RecommendationResult (plan contains an
	// optimize step).
	KindRecommendation ResultKind = "recommendation"
)

// Plan is a compiled, immutable execution plan: the flat ordered operation
// list plus advisory hints, flags, and a static cost estimate.
type Plan struct {
	Operations []Operation
	IndexHints []string
	Flags      map[string]bool
	Cost       float64
	Kind       ResultKind
	TopK       int

	// Symbols maps identifier names to the handles the compiler assigned
	// them, so callers can pre-bind parameters before execution.
	Symbols map[string]Var

	// Source is the AST this plan was compiled from.
	Source Node
}

// Static per-operation cost weights. There is no cardinality estimation;
// the sum is an ordering heuristic only.
var opCosts = map[OpType]float64{
	OpLookup:         1.0,
	OpFilter:         2.0,
	OpLogical:        3.0,
	OpBindRelation:   5.0,
	OpFunctionCall:   5.0,
	OpAnalogy:        8.0,
	OpSimilarity:     10.0,
	OpOptimize:       50.0,
	OpCollectResults: 1.0,
}

func operationCost(op Operation) float64 {
	if c, ok := opCosts[op.Type]; ok {
		return c
	}
	return 1.0
}

// Explain renders a human-readable description of the plan.
func (p *Plan) Explain() string {
	var b strings.Builder
	b.WriteString("Query Execution Plan\n")
	b.WriteString(strings.Repeat("=", 80) + "\n\n")
	fmt.Fprintf(&b, "Estimated Cost: %.2f\n", p.Cost)
	fmt.Fprintf(&b, "Operations: %d\n", len(p.Operations))
	fmt.Fprintf(&b, "Result Kind: %s\n\n", p.Kind)
	b.WriteString("Execution Steps:\n")
	for i, op := range p.Operations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, op)
	}
	if len(p.IndexHints) > 0 {
		b.WriteString("\nIndex Hints:\n")
		for _, hint := range p.IndexHints {
			fmt.Fprintf(&b, "  - %s\n", hint)
		}
	}
	if len(p.Flags) > 0 {
		b.WriteString("\nOptimizations:\n")
		flags := make([]string, 0, len(p.Flags))
		for flag := range p.Flags {
			flags = append(flags, flag)
		}
		sort.Strings(flags)
		for _, flag := range flags {
			fmt.Fprintf(&b, "  - %s: %v\n", flag, p.Flags[flag])
		}
	}
	return b.String()
}
