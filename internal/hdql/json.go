package hdql

import (
	"encoding/json"
	"fmt"
)

// The JSON wire form of a query tree tags every object with a "node" field
// holding the NodeType. Children are nested objects; literal values keep
// their JSON type and are coerced per "value_type".

type nodeEnvelope struct {
	Node NodeType `json:"node"`

	EntityType string `json:"entity_type,omitempty"`
	Identifier string `json:"identifier,omitempty"`

	Left         json.RawMessage `json:"left,omitempty"`
	Right        json.RawMessage `json:"right,omitempty"`
	RelationType string          `json:"relation_type,omitempty"`

	Operator string            `json:"operator,omitempty"`
	Operands []json.RawMessage `json:"operands,omitempty"`

	Reference json.RawMessage `json:"reference,omitempty"`
	Threshold float64         `json:"threshold,omitempty"`
	TopK      int             `json:"top_k,omitempty"`
	Metric    string          `json:"metric,omitempty"`

	A json.RawMessage `json:"a,omitempty"`
	B json.RawMessage `json:"b,omitempty"`
	C json.RawMessage `json:"c,omitempty"`
	D json.RawMessage `json:"d,omitempty"`

	ObjectiveType string            `json:"objective_type,omitempty"`
	Objective     json.RawMessage   `json:"objective,omitempty"`
	Constraints   []json.RawMessage `json:"constraints,omitempty"`

	Name   string                     `json:"name,omitempty"`
	Args   []json.RawMessage          `json:"args,omitempty"`
	Kwargs map[string]json.RawMessage `json:"kwargs,omitempty"`

	Entity json.RawMessage `json:"entity,omitempty"`
	Attr   string          `json:"attr,omitempty"`

	Value     json.RawMessage `json:"value,omitempty"`
	ValueType LiteralType     `json:"value_type,omitempty"`
}

// UnmarshalNode decodes a JSON-encoded query tree.
func UnmarshalNode(data []byte) (Node, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode query node: %w", err)
	}

	child := func(raw json.RawMessage, field string) (Node, error) {
		if len(raw) == 0 {
			return nil, fmt.Errorf("node %q: missing %s", env.Node, field)
		}
		return UnmarshalNode(raw)
	}

	switch env.Node {
	case NodeAtomic:
		return &Atomic{EntityType: env.EntityType, Identifier: env.Identifier}, nil

	case NodeRelational:
		left, err := child(env.Left, "left")
		if err != nil {
			return nil, err
		}
		right, err := child(env.Right, "right")
		if err != nil {
			return nil, err
		}
		rel := env.RelationType
		if rel == "" {
			rel = "->"
		}
		return &Relational{Left: left, Right: right, RelationType: rel}, nil

	case NodeLogical:
		operands := make([]Node, 0, len(env.Operands))
		for _, raw := range env.Operands {
			op, err := UnmarshalNode(raw)
			if err != nil {
				return nil, err
			}
			operands = append(operands, op)
		}
		return &Logical{Operator: LogicalOp(env.Operator), Operands: operands}, nil

	case NodeComparison:
		left, err := child(env.Left, "left")
		if err != nil {
			return nil, err
		}
		right, err := child(env.Right, "right")
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Operator: env.Operator, Right: right}, nil

	case NodeSimilarity:
		ref, err := child(env.Reference, "reference")
		if err != nil {
			return nil, err
		}
		return &Similarity{Reference: ref, Threshold: env.Threshold, TopK: env.TopK, Metric: env.Metric}, nil

	case NodeAnalogy:
		a, err := child(env.A, "a")
		if err != nil {
			return nil, err
		}
		b, err := child(env.B, "b")
		if err != nil {
			return nil, err
		}
		c, err := child(env.C, "c")
		if err != nil {
			return nil, err
		}
		var d Node
		if len(env.D) > 0 {
			if d, err = UnmarshalNode(env.D); err != nil {
				return nil, err
			}
		}
		return &Analogy{A: a, B: b, C: c, D: d}, nil

	case NodeOptimization:
		objective, err := child(env.Objective, "objective")
		if err != nil {
			return nil, err
		}
		constraints := make([]Node, 0, len(env.Constraints))
		for _, raw := range env.Constraints {
			c, err := UnmarshalNode(raw)
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, c)
		}
		return &Optimization{ObjectiveType: env.ObjectiveType, Objective: objective, Constraints: constraints}, nil

	case NodeFunctionCall:
		args := make([]Node, 0, len(env.Args))
		for _, raw := range env.Args {
			a, err := UnmarshalNode(raw)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		var kwargs map[string]Node
		if len(env.Kwargs) > 0 {
			kwargs = make(map[string]Node, len(env.Kwargs))
			for k, raw := range env.Kwargs {
				v, err := UnmarshalNode(raw)
				if err != nil {
					return nil, err
				}
				kwargs[k] = v
			}
		}
		return &FunctionCall{Name: env.Name, Args: args, Kwargs: kwargs}, nil

	case NodeAttribute:
		entity, err := child(env.Entity, "entity")
		if err != nil {
			return nil, err
		}
		return &Attribute{Entity: entity, Attr: env.Attr}, nil

	case NodeBinaryOp:
		left, err := child(env.Left, "left")
		if err != nil {
			return nil, err
		}
		right, err := child(env.Right, "right")
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Left: left, Right: right, Operator: env.Operator}, nil

	case NodeLiteral:
		return decodeLiteral(env.Value, env.ValueType)

	case NodeIdentifier:
		return &Identifier{Name: env.Name}, nil
	}
	return nil, fmt.Errorf("decode query node: unknown node type %q", env.Node)
}

func decodeLiteral(raw json.RawMessage, typ LiteralType) (*Literal, error) {
	switch typ {
	case LiteralString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode string literal: %w", err)
		}
		return &Literal{Value: s, Type: typ}, nil
	case LiteralInteger:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return nil, fmt.Errorf("decode integer literal: %w", err)
		}
		return &Literal{Value: i, Type: typ}, nil
	case LiteralFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("decode float literal: %w", err)
		}
		return &Literal{Value: f, Type: typ}, nil
	case LiteralBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode boolean literal: %w", err)
		}
		return &Literal{Value: b, Type: typ}, nil
	}
	return nil, fmt.Errorf("decode literal: unknown value type %q", typ)
}

// MarshalNode encodes a query tree into its tagged JSON wire form.
func MarshalNode(n Node) ([]byte, error) {
	obj, err := nodeToJSON(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func nodeToJSON(n Node) (map[string]any, error) {
	if n == nil {
		return nil, fmt.Errorf("encode query node: nil node")
	}
	obj := map[string]any{"node": n.NodeType()}

	put := func(key string, child Node) error {
		c, err := nodeToJSON(child)
		if err != nil {
			return err
		}
		obj[key] = c
		return nil
	}

	switch node := n.(type) {
	case *Atomic:
		obj["entity_type"] = node.EntityType
		obj["identifier"] = node.Identifier
	case *Relational:
		if err := put("left", node.Left); err != nil {
			return nil, err
		}
		if err := put("right", node.Right); err != nil {
			return nil, err
		}
		obj["relation_type"] = node.RelationType
	case *Logical:
		obj["operator"] = node.Operator
		operands := make([]map[string]any, 0, len(node.Operands))
		for _, op := range node.Operands {
			c, err := nodeToJSON(op)
			if err != nil {
				return nil, err
			}
			operands = append(operands, c)
		}
		obj["operands"] = operands
	case *Comparison:
		if err := put("left", node.Left); err != nil {
			return nil, err
		}
		if err := put("right", node.Right); err != nil {
			return nil, err
		}
		obj["operator"] = node.Operator
	case *Similarity:
		if err := put("reference", node.Reference); err != nil {
			return nil, err
		}
		obj["threshold"] = node.Threshold
		obj["top_k"] = node.TopK
		obj["metric"] = node.Metric
	case *Analogy:
		if err := put("a", node.A); err != nil {
			return nil, err
		}
		if err := put("b", node.B); err != nil {
			return nil, err
		}
		if err := put("c", node.C); err != nil {
			return nil, err
		}
		if node.D != nil {
			if err := put("d", node.D); err != nil {
				return nil, err
			}
		}
	case *Optimization:
		obj["objective_type"] = node.ObjectiveType
		if err := put("objective", node.Objective); err != nil {
			return nil, err
		}
		constraints := make([]map[string]any, 0, len(node.Constraints))
		for _, c := range node.Constraints {
			cc, err := nodeToJSON(c)
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, cc)
		}
		obj["constraints"] = constraints
	case *FunctionCall:
		obj["name"] = node.Name
		args := make([]map[string]any, 0, len(node.Args))
		for _, a := range node.Args {
			c, err := nodeToJSON(a)
			if err != nil {
				return nil, err
			}
			args = append(args, c)
		}
		obj["args"] = args
		if len(node.Kwargs) > 0 {
			kwargs := make(map[string]map[string]any, len(node.Kwargs))
			for k, v := range node.Kwargs {
				c, err := nodeToJSON(v)
				if err != nil {
					return nil, err
				}
				kwargs[k] = c
			}
			obj["kwargs"] = kwargs
		}
	case *Attribute:
		if err := put("entity", node.Entity); err != nil {
			return nil, err
		}
		obj["attr"] = node.Attr
	case *BinaryOp:
		if err := put("left", node.Left); err != nil {
			return nil, err
		}
		if err := put("right", node.Right); err != nil {
			return nil, err
		}
		obj["operator"] = node.Operator
	case *Literal:
		obj["value"] = node.Value
		obj["value_type"] = node.Type
	case *Identifier:
		obj["name"] = node.Name
	default:
		return nil, fmt.Errorf("encode query node: unknown node type %T", n)
	}
	return obj, nil
}
