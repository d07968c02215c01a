package hdql

import (
	"reflect"
	"testing"
)

func TestNodeJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		root Node
	}{
		{"atomic", &Atomic{EntityType: "persona", Identifier: "developer"}},
		{"relational", &Relational{
			Left:         &Atomic{EntityType: "persona", Identifier: "developer"},
			Right:        &Atomic{EntityType: "solution", Identifier: "search"},
			RelationType: "->",
		}},
		{"nested logical", &Logical{Operator: OpAnd, Operands: []Node{
			&Atomic{EntityType: "persona", Identifier: "dev*"},
			&Logical{Operator: OpNot, Operands: []Node{
				&Atomic{EntityType: "persona", Identifier: "designer"},
			}},
		}}},
		{"comparison with literal", &Comparison{
			Left: &Attribute{
				Entity: &Atomic{EntityType: "solution", Identifier: "*"},
				Attr:   "job_frequency",
			},
			Operator: ">=",
			Right:    &Literal{Value: 0.8, Type: LiteralFloat},
		}},
		{"similarity", &Similarity{
			Reference: &Atomic{EntityType: "solution", Identifier: "search"},
			Threshold: 0.25,
			TopK:      5,
			Metric:    "cosine",
		}},
		{"analogy with d", &Analogy{
			A: &Atomic{EntityType: "persona", Identifier: "a"},
			B: &Atomic{EntityType: "solution", Identifier: "b"},
			C: &Atomic{EntityType: "persona", Identifier: "c"},
			D: &Atomic{EntityType: "solution", Identifier: "d"},
		}},
		{"optimization", &Optimization{
			ObjectiveType: "maximize",
			Objective:     &Atomic{EntityType: "solution", Identifier: "*"},
			Constraints: []Node{
				&Atomic{EntityType: "outcome", Identifier: "fast_results"},
			},
		}},
		{"function call", &FunctionCall{
			Name: "count",
			Args: []Node{&Atomic{EntityType: "persona", Identifier: "*"}},
			Kwargs: map[string]Node{
				"limit": &Literal{Value: int64(5), Type: LiteralInteger},
			},
		}},
		{"binary op", &BinaryOp{
			Left:     &Literal{Value: int64(2), Type: LiteralInteger},
			Right:    &Literal{Value: 3.5, Type: LiteralFloat},
			Operator: "*",
		}},
		{"literals", &Logical{Operator: OpOr, Operands: []Node{
			&Literal{Value: "text", Type: LiteralString},
			&Literal{Value: true, Type: LiteralBoolean},
		}}},
		{"identifier", &Identifier{Name: "candidates"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalNode(tt.root)
			if err != nil {
				t.Fatalf("MarshalNode failed: %v", err)
			}
			decoded, err := UnmarshalNode(data)
			if err != nil {
				t.Fatalf("UnmarshalNode failed: %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.root) {
				t.Errorf("round trip changed tree:\n got %#v\nwant %#v", decoded, tt.root)
			}
		})
	}
}

func TestUnmarshalRelationTypeDefault(t *testing.T) {
	data := []byte(`{
		"node": "relational",
		"left": {"node": "atomic", "entity_type": "persona", "identifier": "developer"},
		"right": {"node": "atomic", "entity_type": "solution", "identifier": "search"}
	}`)
	n, err := UnmarshalNode(data)
	if err != nil {
		t.Fatalf("UnmarshalNode failed: %v", err)
	}
	rel, ok := n.(*Relational)
	if !ok {
		t.Fatalf("expected *Relational, got %T", n)
	}
	if rel.RelationType != "->" {
		t.Errorf("expected default relation type ->, got %q", rel.RelationType)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown node", `{"node": "mystery"}`},
		{"missing child", `{"node": "similarity"}`},
		{"unknown literal type", `{"node": "literal", "value": 1, "value_type": "decimal"}`},
		{"mistyped literal", `{"node": "literal", "value": "text", "value_type": "integer"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalNode([]byte(tt.data)); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}
