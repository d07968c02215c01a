package hdql

// Function is an engine-callable routine invoked by a function_call step.
// It receives the execution context and the operation, and returns the value
// to bind to the operation's output slot.
type Function func(ctx *ExecutionContext, op Operation) (Value, error)

// builtinFunctions is the fixed default registry. Unregistered names fail
// execution.
func builtinFunctions() map[string]Function {
	return map[string]Function{
		"count": funcCount,
	}
}

// funcCount returns the number of entities in its first argument.
func funcCount(ctx *ExecutionContext, op Operation) (Value, error) {
	if len(op.Inputs) == 0 {
		return Scalar(0), nil
	}
	return Scalar(len(ctx.Entities(op.Inputs[0]))), nil
}
