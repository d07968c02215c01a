// Package hdql implements the HDQL query engine: an AST consumed from an
// external parser, a compiler that lowers it to a flat execution plan, and a
// sequential interpreter that runs the plan against an embedding database.
package hdql

// NodeType tags an AST node variant.
type NodeType string

// The known AST node variants. The compiler rejects anything else.
const (
	NodeAtomic       NodeType = "atomic"
	NodeRelational   NodeType = "relational"
	NodeLogical      NodeType = "logical"
	NodeComparison   NodeType = "comparison"
	NodeSimilarity   NodeType = "similarity"
	NodeAnalogy      NodeType = "analogy"
	NodeOptimization NodeType = "optimization"
	NodeFunctionCall NodeType = "function_call"
	NodeAttribute    NodeType = "attribute"
	NodeBinaryOp     NodeType = "binary_op"
	NodeLiteral      NodeType = "literal"
	NodeIdentifier   NodeType = "identifier"
)

// Node is one vertex of an immutable query tree. Trees are built by an
// external parser (or decoded from JSON) and never mutated by the engine.
type Node interface {
	NodeType() NodeType
}

// Atomic selects entities of a type by identifier. The identifier may carry
// glob wildcards (*, ?) or a trailing ~ for fuzzy matching.
type Atomic struct {
	EntityType string
	Identifier string
}

// Relational relates the left result set to the right one ("left -> right").
type Relational struct {
	Left         Node
	Right        Node
	RelationType string
}

// LogicalOp is a boolean set operator.
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
	OpNot LogicalOp = "NOT"
)

// Logical combines operand result sets with AND, OR or NOT.
type Logical struct {
	Operator LogicalOp
	Operands []Node
}

// Comparison filters the left result set by comparing a previously accessed
// attribute against the right expression (usually a Literal).
type Comparison struct {
	Left     Node
	Operator string // ==, !=, >, >=, <, <=
	Right    Node
}

// Similarity finds nearest neighbors of the reference result. A zero
// Threshold means the default (0.3); a zero TopK defers to the query-level
// limit; an empty Metric means cosine.
type Similarity struct {
	Reference Node
	Threshold float64
	TopK      int
	Metric    string
}

// Analogy solves "A is to B as C is to ?" (D non-nil pins the fourth term).
type Analogy struct {
	A Node
	B Node
	C Node
	D Node
}

// Optimization scores the entity universe against an objective, subject to
// advisory constraints.
type Optimization struct {
	ObjectiveType string // maximize | minimize
	Objective     Node
	Constraints   []Node
}

// FunctionCall invokes a registered engine function by name.
type FunctionCall struct {
	Name   string
	Args   []Node
	Kwargs map[string]Node
}

// Attribute annotates each entity of the inner result with a named attribute
// value for later filtering.
type Attribute struct {
	Entity Node
	Attr   string
}

// BinaryOp applies scalar arithmetic to two operands.
type BinaryOp struct {
	Left     Node
	Right    Node
	Operator string // +, -, *, /
}

// LiteralType tags the runtime type of a Literal value.
type LiteralType string

const (
	LiteralString  LiteralType = "string"
	LiteralInteger LiteralType = "integer"
	LiteralFloat   LiteralType = "float"
	LiteralBoolean LiteralType = "boolean"
)

// Literal is a constant value.
type Literal struct {
	Value any
	Type  LiteralType
}

// Identifier references a named variable supplied by the caller.
type Identifier struct {
	Name string
}

func (*Atomic) NodeType() NodeType       { return NodeAtomic }
func (*Relational) NodeType() NodeType   { return NodeRelational }
func (*Logical) NodeType() NodeType      { return NodeLogical }
func (*Comparison) NodeType() NodeType   { return NodeComparison }
func (*Similarity) NodeType() NodeType   { return NodeSimilarity }
func (*Analogy) NodeType() NodeType      { return NodeAnalogy }
func (*Optimization) NodeType() NodeType { return NodeOptimization }
func (*FunctionCall) NodeType() NodeType { return NodeFunctionCall }
func (*Attribute) NodeType() NodeType    { return NodeAttribute }
func (*BinaryOp) NodeType() NodeType     { return NodeBinaryOp }
func (*Literal) NodeType() NodeType      { return NodeLiteral }
func (*Identifier) NodeType() NodeType   { return NodeIdentifier }
