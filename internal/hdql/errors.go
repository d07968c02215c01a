package hdql

import "fmt"

// CompilationError reports an AST variant the compiler does not recognize.
// Compilation fails atomically; no partial plan is returned.
type CompilationError struct {
	NodeType string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile: unsupported node type %s", e.NodeType)
}

// ExecutionError reports a fatal condition during plan execution: an unknown
// operation type, an unregistered function, or an operand of the wrong kind.
// The run aborts; no partial result is produced.
type ExecutionError struct {
	Op     OpType
	Detail string
}

func (e *ExecutionError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("execute %s: %s", e.Op, e.Detail)
	}
	return "execute: " + e.Detail
}
