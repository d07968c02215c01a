package hdql

import "fmt"

// DefaultTopK bounds result counts when the caller does not specify a limit.
const DefaultTopK = 10

// DefaultSimilarityThreshold is the semantic distance bound used when a
// similarity node does not carry one.
const DefaultSimilarityThreshold = 0.3

// compiler lowers one AST to one plan. A fresh compiler is used per Compile
// call so handle numbering restarts at $v1.
type compiler struct {
	ops          []Operation
	next         Var
	symbols      map[string]Var
	topK         int
	simThreshold float64
}

// Compile lowers an AST into an execution plan. Every node emits exactly one
// operation (identifiers resolve to a handle without emitting), children
// first, and a trailing collect_results step writes the reserved $result
// slot. An unrecognized node variant fails compilation atomically: no
// partial plan is returned.
func Compile(root Node, topK int) (*Plan, error) {
	return compileWithOptions(root, topK, DefaultSimilarityThreshold)
}

// compileWithOptions is Compile with configurable defaults; the Engine routes
// its query settings through here.
func compileWithOptions(root Node, topK int, simThreshold float64) (*Plan, error) {
	if root == nil {
		return nil, &CompilationError{NodeType: "nil"}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if simThreshold <= 0 {
		simThreshold = DefaultSimilarityThreshold
	}
	c := &compiler{symbols: make(map[string]Var), topK: topK, simThreshold: simThreshold}

	out, err := c.compileNode(root)
	if err != nil {
		return nil, err
	}
	c.emit(Operation{
		Type:   OpCollectResults,
		Inputs: []Var{out},
		Output: ResultVar,
		Params: map[string]any{"top_k": topK},
	})

	var cost float64
	for _, op := range c.ops {
		cost += operationCost(op)
	}

	kind := KindVectorQuery
	for _, op := range c.ops {
		if op.Type == OpOptimize {
			kind = KindRecommendation
			break
		}
	}

	return &Plan{
		Operations: c.ops,
		IndexHints: selectIndexHints(c.ops),
		Flags:      map[string]bool{"parallel_execution": len(c.ops) > 3},
		Cost:       cost,
		Kind:       kind,
		TopK:       topK,
		Symbols:    c.symbols,
		Source:     root,
	}, nil
}

func (c *compiler) mint() Var {
	c.next++
	return c.next
}

func (c *compiler) emit(op Operation) {
	c.ops = append(c.ops, op)
}

func (c *compiler) compileNode(n Node) (Var, error) {
	switch node := n.(type) {
	case *Atomic:
		out := c.mint()
		c.emit(Operation{
			Type:   OpLookup,
			Output: out,
			Params: map[string]any{
				"entity_type": node.EntityType,
				"identifier":  node.Identifier,
			},
		})
		return out, nil

	case *Relational:
		left, err := c.compileNode(node.Left)
		if err != nil {
			return 0, err
		}
		right, err := c.compileNode(node.Right)
		if err != nil {
			return 0, err
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpBindRelation,
			Inputs: []Var{left, right},
			Output: out,
			Params: map[string]any{"relation_type": node.RelationType},
		})
		return out, nil

	case *Logical:
		inputs := make([]Var, 0, len(node.Operands))
		for _, operand := range node.Operands {
			v, err := c.compileNode(operand)
			if err != nil {
				return 0, err
			}
			inputs = append(inputs, v)
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpLogical,
			Inputs: inputs,
			Output: out,
			Params: map[string]any{"operator": node.Operator},
		})
		return out, nil

	case *Comparison:
		left, err := c.compileNode(node.Left)
		if err != nil {
			return 0, err
		}
		// A literal comparison value is inlined; anything else is lowered
		// and referenced by handle.
		var value any
		if lit, ok := node.Right.(*Literal); ok {
			value = lit.Value
		} else {
			right, err := c.compileNode(node.Right)
			if err != nil {
				return 0, err
			}
			value = right
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpFilter,
			Inputs: []Var{left},
			Output: out,
			Params: map[string]any{
				"operator": node.Operator,
				"value":    value,
			},
		})
		return out, nil

	case *Similarity:
		ref, err := c.compileNode(node.Reference)
		if err != nil {
			return 0, err
		}
		threshold := node.Threshold
		if threshold == 0 {
			threshold = c.simThreshold
		}
		topK := node.TopK
		if topK == 0 {
			topK = c.topK
		}
		metric := node.Metric
		if metric == "" {
			metric = "cosine"
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpSimilarity,
			Inputs: []Var{ref},
			Output: out,
			Params: map[string]any{
				"threshold": threshold,
				"top_k":     topK,
				"metric":    metric,
			},
		})
		return out, nil

	case *Analogy:
		a, err := c.compileNode(node.A)
		if err != nil {
			return 0, err
		}
		b, err := c.compileNode(node.B)
		if err != nil {
			return 0, err
		}
		cc, err := c.compileNode(node.C)
		if err != nil {
			return 0, err
		}
		inputs := []Var{a, b, cc}
		if node.D != nil {
			d, err := c.compileNode(node.D)
			if err != nil {
				return 0, err
			}
			inputs = append(inputs, d)
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpAnalogy,
			Inputs: inputs,
			Output: out,
			Params: map[string]any{},
		})
		return out, nil

	case *Optimization:
		objective, err := c.compileNode(node.Objective)
		if err != nil {
			return 0, err
		}
		inputs := []Var{objective}
		for _, constraint := range node.Constraints {
			v, err := c.compileNode(constraint)
			if err != nil {
				return 0, err
			}
			inputs = append(inputs, v)
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpOptimize,
			Inputs: inputs,
			Output: out,
			Params: map[string]any{"objective_type": node.ObjectiveType},
		})
		return out, nil

	case *FunctionCall:
		inputs := make([]Var, 0, len(node.Args))
		for _, arg := range node.Args {
			v, err := c.compileNode(arg)
			if err != nil {
				return 0, err
			}
			inputs = append(inputs, v)
		}
		kwargs := make(map[string]Var, len(node.Kwargs))
		for name, kw := range node.Kwargs {
			v, err := c.compileNode(kw)
			if err != nil {
				return 0, err
			}
			kwargs[name] = v
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpFunctionCall,
			Inputs: inputs,
			Output: out,
			Params: map[string]any{
				"function_name": node.Name,
				"kwargs":        kwargs,
			},
		})
		return out, nil

	case *Attribute:
		entity, err := c.compileNode(node.Entity)
		if err != nil {
			return 0, err
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpAttributeAccess,
			Inputs: []Var{entity},
			Output: out,
			Params: map[string]any{"attribute": node.Attr},
		})
		return out, nil

	case *BinaryOp:
		left, err := c.compileNode(node.Left)
		if err != nil {
			return 0, err
		}
		right, err := c.compileNode(node.Right)
		if err != nil {
			return 0, err
		}
		out := c.mint()
		c.emit(Operation{
			Type:   OpBinaryOp,
			Inputs: []Var{left, right},
			Output: out,
			Params: map[string]any{"operator": node.Operator},
		})
		return out, nil

	case *Literal:
		out := c.mint()
		c.emit(Operation{
			Type:   OpLiteral,
			Output: out,
			Params: map[string]any{
				"value":      node.Value,
				"value_type": node.Type,
			},
		})
		return out, nil

	case *Identifier:
		// Identifiers resolve to a handle without emitting an operation;
		// the caller binds the handle via Plan.Symbols before execution.
		if v, ok := c.symbols[node.Name]; ok {
			return v, nil
		}
		v := c.mint()
		c.symbols[node.Name] = v
		return v, nil
	}
	return 0, &CompilationError{NodeType: fmt.Sprintf("%T", n)}
}

func selectIndexHints(ops []Operation) []string {
	var hints []string
	for _, op := range ops {
		if op.Type == OpSimilarity {
			hints = append(hints, "use approximate-neighbor index for similarity search")
			break
		}
	}
	for _, op := range ops {
		if op.Type == OpLookup {
			hints = append(hints, "use hash index for exact lookups")
			break
		}
	}
	return hints
}
