package hdql

import (
	"time"

	"go.uber.org/zap"
)

// Engine is the front door of the query pipeline: it compiles an AST and
// runs the plan against a database in one call. The database is supplied by
// the caller; the engine holds no global state.
type Engine struct {
	executor     *Executor
	topK         int
	simThreshold float64
	logger       *zap.Logger
}

// EngineOption configures optional engine settings.
type EngineOption func(*Engine)

// WithSimilarityThreshold sets the default semantic distance bound used when
// a similarity node does not carry one. Non-positive values are ignored.
func WithSimilarityThreshold(threshold float64) EngineOption {
	return func(e *Engine) {
		if threshold > 0 {
			e.simThreshold = threshold
		}
	}
}

// WithMaxEditDistance sets the fuzzy-match tolerance for identifiers ending
// in "~". Negative values are ignored; zero means exact matches only.
func WithMaxEditDistance(distance int) EngineOption {
	return func(e *Engine) {
		if distance >= 0 {
			e.executor.maxEditDistance = distance
		}
	}
}

// NewEngine creates an engine over the given database. topK <= 0 selects
// DefaultTopK. A nil logger disables logging.
func NewEngine(db Database, topK int, logger *zap.Logger, opts ...EngineOption) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		executor:     NewExecutor(db, logger),
		topK:         topK,
		simThreshold: DefaultSimilarityThreshold,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterFunction exposes a custom function to function_call steps.
func (e *Engine) RegisterFunction(name string, fn Function) {
	e.executor.RegisterFunction(name, fn)
}

// Compile lowers a query AST to a plan using the engine's query settings.
func (e *Engine) Compile(root Node) (*Plan, error) {
	return compileWithOptions(root, e.topK, e.simThreshold)
}

// CompileTopK lowers a query AST with an explicit per-query result limit;
// topK <= 0 falls back to the engine default.
func (e *Engine) CompileTopK(root Node, topK int) (*Plan, error) {
	if topK <= 0 {
		topK = e.topK
	}
	return compileWithOptions(root, topK, e.simThreshold)
}

// Query compiles and executes an AST, stamping the wall-clock execution time
// into the result.
func (e *Engine) Query(root Node) (Result, error) {
	plan, err := e.Compile(root)
	if err != nil {
		return nil, err
	}
	return e.Run(plan)
}

// Run executes an already-compiled plan.
func (e *Engine) Run(plan *Plan) (Result, error) {
	start := time.Now()
	result, err := e.executor.Execute(plan)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	switch r := result.(type) {
	case *VectorQueryResult:
		r.ExecutionTime = elapsed
	case *RecommendationResult:
		r.ExecutionTime = elapsed
	}
	e.logger.Debug("query executed",
		zap.Duration("elapsed", elapsed),
		zap.Int("operations", len(plan.Operations)),
	)
	return result, nil
}

// Explain compiles the AST and returns the rendered plan without running it.
func (e *Engine) Explain(root Node) (string, error) {
	plan, err := e.Compile(root)
	if err != nil {
		return "", err
	}
	return plan.Explain(), nil
}
