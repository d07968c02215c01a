package hdql

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// bindRelationThreshold is the minimum relation score for a (left, right)
// pair to count as related.
const bindRelationThreshold = 0.5

// optimizeLimit caps how many scored candidates an optimize step keeps.
const optimizeLimit = 10

// objectiveWeights is the fixed linear objective used by optimize steps.
var objectiveWeights = map[string]float64{
	"outcome_coverage":      1.0,
	"job_frequency":         0.5,
	"implementation_effort": -0.3,
}

// Executor runs compiled plans. It is single-threaded and strictly
// sequential: operations run in plan order, each reading handles written by
// earlier steps. Any handler failure aborts the run with no partial result.
type Executor struct {
	db              Database
	funcs           map[string]Function
	maxEditDistance int
	logger          *zap.Logger
}

// NewExecutor creates an executor bound to an embedding database. A nil
// logger disables logging.
func NewExecutor(db Database, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		db:              db,
		funcs:           builtinFunctions(),
		maxEditDistance: DefaultMaxEditDistance,
		logger:          logger,
	}
}

// RegisterFunction adds or replaces an engine function available to
// function_call steps.
func (e *Executor) RegisterFunction(name string, fn Function) {
	e.funcs[name] = fn
}

// Execute runs the plan inside a fresh ExecutionContext and returns the
// typed result selected by the plan's compile-time Kind.
func (e *Executor) Execute(plan *Plan) (Result, error) {
	ctx := NewExecutionContext()
	ctx.AddStep("executing plan with %d operations", len(plan.Operations))
	e.logger.Debug("executing plan",
		zap.String("run_id", ctx.RunID),
		zap.Int("operations", len(plan.Operations)),
		zap.Float64("estimated_cost", plan.Cost),
	)

	for i, op := range plan.Operations {
		ctx.AddStep("step %d: %s", i+1, op.Type)
		if err := e.executeOperation(op, ctx); err != nil {
			e.logger.Debug("operation failed",
				zap.String("run_id", ctx.RunID),
				zap.String("op", string(op.Type)),
				zap.Error(err),
			)
			return nil, err
		}
	}
	return e.buildResult(plan, ctx), nil
}

func (e *Executor) executeOperation(op Operation, ctx *ExecutionContext) error {
	switch op.Type {
	case OpLookup:
		return e.executeLookup(op, ctx)
	case OpBindRelation:
		return e.executeBindRelation(op, ctx)
	case OpLogical:
		return e.executeLogical(op, ctx)
	case OpFilter:
		return e.executeFilter(op, ctx)
	case OpSimilarity:
		return e.executeSimilarity(op, ctx)
	case OpAnalogy:
		return e.executeAnalogy(op, ctx)
	case OpOptimize:
		return e.executeOptimize(op, ctx)
	case OpFunctionCall:
		return e.executeFunctionCall(op, ctx)
	case OpAttributeAccess:
		return e.executeAttributeAccess(op, ctx)
	case OpBinaryOp:
		return e.executeBinaryOp(op, ctx)
	case OpLiteral:
		return e.executeLiteral(op, ctx)
	case OpCollectResults:
		return e.executeCollectResults(op, ctx)
	}
	return &ExecutionError{Op: op.Type, Detail: "unknown operation type"}
}

func (e *Executor) executeLookup(op Operation, ctx *ExecutionContext) error {
	entityType, _ := op.Params["entity_type"].(string)
	identifier, _ := op.Params["identifier"].(string)
	ctx.AddStep("looking up %s(%q)", entityType, identifier)

	var matches []Entity
	var err error
	if hasWildcard(identifier) {
		var all []Entity
		all, err = e.db.EntitiesByType(entityType)
		if err == nil {
			for _, entity := range all {
				if matchIdentifier(entity.Name, identifier, e.maxEditDistance) {
					matches = append(matches, entity)
				}
			}
		}
	} else {
		matches, err = e.db.Lookup(entityType, identifier)
	}
	if err != nil {
		return fmt.Errorf("lookup %s(%q): %w", entityType, identifier, err)
	}
	ctx.Set(op.Output, EntityList(matches))
	ctx.Snapshot(fmt.Sprintf("lookup_%s_%s", entityType, identifier), len(matches))
	return nil
}

func (e *Executor) executeBindRelation(op Operation, ctx *ExecutionContext) error {
	lefts := ctx.Entities(op.Inputs[0])
	rights := ctx.Entities(op.Inputs[1])
	ctx.AddStep("finding relationships between %d and %d entities", len(lefts), len(rights))

	type scoredPair struct {
		left  Entity
		score float64
	}
	var pairs []scoredPair
	for _, left := range lefts {
		for _, right := range rights {
			score, err := e.db.RelationSimilarity(left, right)
			if err != nil {
				return fmt.Errorf("relation similarity: %w", err)
			}
			if score > bindRelationThreshold {
				pairs = append(pairs, scoredPair{left: left, score: score})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	seen := make(map[string]bool)
	var result EntityList
	for _, p := range pairs {
		if !seen[p.left.Key()] {
			seen[p.left.Key()] = true
			result = append(result, p.left)
		}
	}
	ctx.Set(op.Output, result)
	return nil
}

func (e *Executor) executeLogical(op Operation, ctx *ExecutionContext) error {
	operator, _ := op.Params["operator"].(LogicalOp)
	ctx.AddStep("applying %s to %d operand sets", operator, len(op.Inputs))

	switch operator {
	case OpAnd:
		if len(op.Inputs) == 0 {
			ctx.Set(op.Output, EntityList(nil))
			return nil
		}
		result := ctx.Entities(op.Inputs[0])
		for _, input := range op.Inputs[1:] {
			keep := make(map[string]bool)
			for _, entity := range ctx.Entities(input) {
				keep[entity.Key()] = true
			}
			var next EntityList
			for _, entity := range result {
				if keep[entity.Key()] {
					next = append(next, entity)
				}
			}
			result = next
		}
		ctx.Set(op.Output, result)

	case OpOr:
		seen := make(map[string]bool)
		var result EntityList
		for _, input := range op.Inputs {
			for _, entity := range ctx.Entities(input) {
				if !seen[entity.Key()] {
					seen[entity.Key()] = true
					result = append(result, entity)
				}
			}
		}
		ctx.Set(op.Output, result)

	case OpNot:
		all, err := e.db.AllEntities()
		if err != nil {
			return fmt.Errorf("logical NOT: %w", err)
		}
		// NOT over a missing operand complements the empty set.
		exclude := make(map[string]bool)
		if len(op.Inputs) > 0 {
			for _, entity := range ctx.Entities(op.Inputs[0]) {
				exclude[entity.Key()] = true
			}
		}
		var result EntityList
		for _, entity := range all {
			if !exclude[entity.Key()] {
				result = append(result, entity)
			}
		}
		ctx.Set(op.Output, result)

	default:
		return &ExecutionError{Op: OpLogical, Detail: fmt.Sprintf("unknown operator %q", operator)}
	}
	return nil
}

func (e *Executor) executeFilter(op Operation, ctx *ExecutionContext) error {
	operator, _ := op.Params["operator"].(string)
	rawValue := op.Params["value"]

	threshold, err := e.resolveFilterValue(rawValue, ctx)
	if err != nil {
		return err
	}

	// Only attributed entities carry a comparable value; anything else is
	// dropped silently.
	var filtered AttributedList
	if attributed, ok := ctx.vars[op.Inputs[0]].(AttributedList); ok {
		ctx.AddStep("filtering %d entities with %s %v", len(attributed), operator, rawValue)
		for _, ae := range attributed {
			if compareScalars(ae.Value, operator, threshold) {
				filtered = append(filtered, ae)
			}
		}
	} else {
		ctx.AddStep("filtering with %s %v: no attributed candidates", operator, rawValue)
	}
	ctx.Set(op.Output, filtered)
	ctx.Snapshot("filter_result_count", len(filtered))
	return nil
}

// resolveFilterValue turns an inlined literal or a handle reference into the
// numeric comparison threshold.
func (e *Executor) resolveFilterValue(raw any, ctx *ExecutionContext) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case Var:
		if val, ok := ctx.Get(v); ok {
			if s, ok := val.(Scalar); ok {
				return float64(s), nil
			}
		}
		return 0, &ExecutionError{Op: OpFilter, Detail: fmt.Sprintf("handle %s does not hold a scalar", v)}
	}
	return 0, &ExecutionError{Op: OpFilter, Detail: fmt.Sprintf("filter value %v is not numeric", raw)}
}

func compareScalars(left float64, operator string, right float64) bool {
	switch operator {
	case "==":
		return left == right
	case "!=":
		return left != right
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "<":
		return left < right
	case "<=":
		return left <= right
	}
	return false
}

func (e *Executor) executeSimilarity(op Operation, ctx *ExecutionContext) error {
	threshold, _ := op.Params["threshold"].(float64)
	topK, _ := op.Params["top_k"].(int)
	ctx.AddStep("finding similar entities (threshold=%v, top_k=%d)", threshold, topK)

	refs := ctx.Entities(op.Inputs[0])
	if len(refs) == 0 {
		ctx.Set(op.Output, EntityList(nil))
		return nil
	}
	similar, err := e.db.FindSimilar(refs[0], threshold, topK)
	if err != nil {
		return fmt.Errorf("similarity search: %w", err)
	}
	ctx.Set(op.Output, EntityList(similar))
	ctx.Snapshot("similarity_matches", len(similar))
	return nil
}

func (e *Executor) executeAnalogy(op Operation, ctx *ExecutionContext) error {
	operands := make([]Entity, 3)
	for i := 0; i < 3; i++ {
		entities := ctx.Entities(op.Inputs[i])
		if len(entities) == 0 {
			return &ExecutionError{Op: OpAnalogy, Detail: "operand resolved to no entities"}
		}
		operands[i] = entities[0]
	}
	a, b, c := operands[0], operands[1], operands[2]
	ctx.AddStep("solving analogy: %s:%s::%s:?", a.Name, b.Name, c.Name)

	result, err := e.db.SolveAnalogy(a, b, c)
	if err != nil {
		return fmt.Errorf("solve analogy: %w", err)
	}
	ctx.Set(op.Output, EntityList{result})
	return nil
}

func (e *Executor) executeOptimize(op Operation, ctx *ExecutionContext) error {
	objectiveType, _ := op.Params["objective_type"].(string)
	ctx.AddStep("running %s optimization", objectiveType)

	candidates, err := e.db.AllEntities()
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	type scoredEntity struct {
		entity Entity
		score  float64
	}
	scored := make([]scoredEntity, len(candidates))
	for i, entity := range candidates {
		scored[i] = scoredEntity{entity: entity, score: objectiveScore(entity)}
	}
	if objectiveType == "maximize" {
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	} else {
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].score < scored[j].score })
	}
	if len(scored) > optimizeLimit {
		scored = scored[:optimizeLimit]
	}

	// Constraint inputs are computed by earlier steps but stay advisory:
	// they are not applied as hard filters.
	if len(op.Inputs) > 1 {
		ctx.AddStep("%d constraint inputs computed (advisory only)", len(op.Inputs)-1)
	}

	result := make(EntityList, len(scored))
	topScores := make(map[string]float64, len(scored))
	for i, s := range scored {
		result[i] = s.entity
		topScores[s.entity.Name] = s.score
	}
	ctx.Set(op.Output, result)
	ctx.Snapshot("optimization_scores", topScores)
	return nil
}

// objectiveScore evaluates the fixed linear objective over an entity's
// attributes.
func objectiveScore(entity Entity) float64 {
	var score float64
	for attr, weight := range objectiveWeights {
		score += weight * entity.Attribute(attr)
	}
	return score
}

func (e *Executor) executeFunctionCall(op Operation, ctx *ExecutionContext) error {
	name, _ := op.Params["function_name"].(string)
	ctx.AddStep("calling function: %s", name)

	fn, ok := e.funcs[name]
	if !ok {
		return &ExecutionError{Op: OpFunctionCall, Detail: fmt.Sprintf("unknown function %q", name)}
	}
	result, err := fn(ctx, op)
	if err != nil {
		return fmt.Errorf("function %s: %w", name, err)
	}
	ctx.Set(op.Output, result)
	return nil
}

func (e *Executor) executeAttributeAccess(op Operation, ctx *ExecutionContext) error {
	attribute, _ := op.Params["attribute"].(string)
	ctx.AddStep("accessing attribute: %s", attribute)

	entities := ctx.Entities(op.Inputs[0])
	attributed := make(AttributedList, len(entities))
	for i, entity := range entities {
		attributed[i] = AttributedEntity{Entity: entity, Value: entity.Attribute(attribute)}
	}
	ctx.Set(op.Output, attributed)
	return nil
}

func (e *Executor) executeBinaryOp(op Operation, ctx *ExecutionContext) error {
	operator, _ := op.Params["operator"].(string)

	scalar := func(v Var) (float64, error) {
		val, _ := ctx.Get(v)
		if s, ok := val.(Scalar); ok {
			return float64(s), nil
		}
		return 0, &ExecutionError{Op: OpBinaryOp, Detail: fmt.Sprintf("handle %s does not hold a scalar", v)}
	}
	left, err := scalar(op.Inputs[0])
	if err != nil {
		return err
	}
	right, err := scalar(op.Inputs[1])
	if err != nil {
		return err
	}

	var result float64
	switch operator {
	case "+":
		result = left + right
	case "-":
		result = left - right
	case "*":
		result = left * right
	case "/":
		if right == 0 {
			result = 0.0
		} else {
			result = left / right
		}
	default:
		return &ExecutionError{Op: OpBinaryOp, Detail: fmt.Sprintf("unknown operator %q", operator)}
	}
	ctx.Set(op.Output, Scalar(result))
	return nil
}

func (e *Executor) executeLiteral(op Operation, ctx *ExecutionContext) error {
	switch v := op.Params["value"].(type) {
	case float64:
		ctx.Set(op.Output, Scalar(v))
	case int:
		ctx.Set(op.Output, Scalar(v))
	case int64:
		ctx.Set(op.Output, Scalar(v))
	case string:
		ctx.Set(op.Output, StringValue(v))
	case bool:
		ctx.Set(op.Output, BoolValue(v))
	default:
		return &ExecutionError{Op: OpLiteral, Detail: fmt.Sprintf("unsupported literal %v", v)}
	}
	return nil
}

func (e *Executor) executeCollectResults(op Operation, ctx *ExecutionContext) error {
	topK, _ := op.Params["top_k"].(int)

	switch val := ctx.vars[op.Inputs[0]].(type) {
	case EntityList:
		if topK > 0 && len(val) > topK {
			val = val[:topK]
		}
		ctx.Set(ResultVar, val)
	case AttributedList:
		entities := make(EntityList, 0, len(val))
		for _, ae := range val {
			entities = append(entities, ae.Entity)
		}
		if topK > 0 && len(entities) > topK {
			entities = entities[:topK]
		}
		ctx.Set(ResultVar, entities)
	case nil:
		ctx.Set(ResultVar, EntityList(nil))
	default:
		// Scalar and string results pass through untruncated.
		ctx.Set(ResultVar, val)
	}
	return nil
}

func (e *Executor) buildResult(plan *Plan, ctx *ExecutionContext) Result {
	trace := ReasoningTrace{
		RunID:     ctx.RunID,
		Steps:     ctx.Steps,
		Snapshots: ctx.Snapshots,
		PlanText:  plan.Explain(),
	}
	if plan.Kind == KindRecommendation {
		return buildRecommendationResult(ctx.Entities(ResultVar), trace)
	}
	return buildVectorQueryResult(ctx.Entities(ResultVar), trace)
}

func buildVectorQueryResult(entities EntityList, trace ReasoningTrace) *VectorQueryResult {
	result := &VectorQueryResult{
		Matches:    make([]EntityMatch, 0, len(entities)),
		Confidence: make([]float64, 0, len(entities)),
		Trace:      trace,
	}
	for _, entity := range entities {
		// Per-match distance and similarity are placeholders; they are not
		// recomputed from the underlying vectors.
		description := entity.Description
		if description == "" {
			description = entity.Name
		}
		result.Matches = append(result.Matches, EntityMatch{
			Entity:      entity,
			Distance:    0.0,
			Similarity:  1.0,
			Explanation: fmt.Sprintf("matched %s: %s", entity.Type, description),
		})
		result.Confidence = append(result.Confidence, 1.0)
	}
	return result
}

func buildRecommendationResult(entities EntityList, trace ReasoningTrace) *RecommendationResult {
	result := &RecommendationResult{Trace: trace}
	for i, entity := range entities {
		if i >= optimizeLimit {
			break
		}
		score := 1.0 - float64(i)*0.05
		if i == 0 {
			result.Recommendations = append(result.Recommendations, Recommendation{
				Entity:    entity,
				Score:     score,
				Rationale: "high score based on weighted objectives",
				Metrics: map[string]float64{
					"outcome_coverage":      entity.Attribute("outcome_coverage"),
					"implementation_effort": entity.Attribute("implementation_effort"),
				},
			})
			result.ObjectiveValue = score
		} else {
			result.Alternatives = append(result.Alternatives, Alternative{
				Entity:    entity,
				Score:     score,
				TradeOffs: "lower priority alternative",
			})
		}
	}
	// Fixed 3-vs-rest split standing in for a real dominance analysis.
	frontier := 3
	if frontier > len(entities) {
		frontier = len(entities)
	}
	result.TradeOffs = TradeOffAnalysis{
		Summary:        "trade-off between coverage and effort",
		ParetoFrontier: append([]Entity(nil), entities[:frontier]...),
		Dominated:      append([]Entity(nil), entities[frontier:]...),
	}
	return result
}
