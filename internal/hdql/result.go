package hdql

import (
	"fmt"
	"strings"
	"time"
)

// ReasoningTrace is the human-readable record of one execution: ordered
// steps, named debug snapshots, and the rendered plan. Debugging aid only.
type ReasoningTrace struct {
	RunID     string         `json:"run_id"`
	Steps     []string       `json:"steps"`
	Snapshots map[string]any `json:"snapshots,omitempty"`
	PlanText  string         `json:"plan,omitempty"`
}

// Explain renders the trace for display.
func (t ReasoningTrace) Explain() string {
	var b strings.Builder
	b.WriteString("Query Execution Trace:\n\n")
	for i, step := range t.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if len(t.Snapshots) > 0 {
		b.WriteString("\nIntermediate Results:\n")
		for key, value := range t.Snapshots {
			fmt.Fprintf(&b, "  %s: %v\n", key, value)
		}
	}
	return b.String()
}

// Result is either a *VectorQueryResult or a *RecommendationResult, chosen
// by the plan's compile-time ResultKind.
type Result interface {
	Kind() ResultKind
}

// EntityMatch is one matching entity in a vector query result.
type EntityMatch struct {
	Entity      Entity  `json:"entity"`
	Distance    float64 `json:"distance"`
	Similarity  float64 `json:"similarity"`
	Explanation string  `json:"explanation"`
}

// Score returns the normalized match score (higher is better).
func (m EntityMatch) Score() float64 { return m.Similarity }

// VectorQueryResult is the result of a non-optimization query.
type VectorQueryResult struct {
	Matches       []EntityMatch  `json:"matches"`
	Confidence    []float64      `json:"confidence_scores"`
	Trace         ReasoningTrace `json:"reasoning"`
	ExecutionTime time.Duration  `json:"execution_time"`
}

func (*VectorQueryResult) Kind() ResultKind { return KindVectorQuery }

// TopK returns the k best matches by score.
func (r *VectorQueryResult) TopK(k int) []EntityMatch {
	matches := make([]EntityMatch, len(r.Matches))
	copy(matches, r.Matches)
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].Score() > matches[i].Score() {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}

// FilterByConfidence returns a copy keeping only matches at or above the
// threshold.
func (r *VectorQueryResult) FilterByConfidence(threshold float64) *VectorQueryResult {
	out := &VectorQueryResult{Trace: r.Trace, ExecutionTime: r.ExecutionTime}
	for i, m := range r.Matches {
		if r.Confidence[i] >= threshold {
			out.Matches = append(out.Matches, m)
			out.Confidence = append(out.Confidence, r.Confidence[i])
		}
	}
	return out
}

// Recommendation is the top pick of an optimization query.
type Recommendation struct {
	Entity    Entity             `json:"entity"`
	Score     float64            `json:"score"`
	Rationale string             `json:"rationale"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Alternative is a lower-ranked option from an optimization query.
type Alternative struct {
	Entity    Entity  `json:"entity"`
	Score     float64 `json:"score"`
	TradeOffs string  `json:"trade_offs"`
}

// TradeOffAnalysis summarizes the frontier/dominated split of scored options.
type TradeOffAnalysis struct {
	Summary        string   `json:"summary"`
	ParetoFrontier []Entity `json:"pareto_frontier"`
	Dominated      []Entity `json:"dominated"`
}

// RecommendationResult is the result of an optimization query.
type RecommendationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	TradeOffs       TradeOffAnalysis `json:"trade_offs"`
	Alternatives    []Alternative    `json:"alternatives"`
	ObjectiveValue  float64          `json:"objective_value"`
	Trace           ReasoningTrace   `json:"reasoning"`
	ExecutionTime   time.Duration    `json:"execution_time"`
}

func (*RecommendationResult) Kind() ResultKind { return KindRecommendation }

// Explain renders the recommendation for display.
func (r *RecommendationResult) Explain() string {
	if len(r.Recommendations) == 0 {
		return "No recommendations found."
	}
	top := r.Recommendations[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Top Recommendation: %s\n", top.Entity.Name)
	fmt.Fprintf(&b, "Score: %.3f\n\n", top.Score)
	b.WriteString("Why this recommendation:\n")
	b.WriteString(top.Rationale + "\n\n")
	b.WriteString("Trade-offs:\n")
	b.WriteString(r.TradeOffs.Summary + "\n\n")
	b.WriteString("Alternatives considered:\n")
	for i, alt := range r.Alternatives {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "  - %s (score=%.3f)\n", alt.Entity.Name, alt.Score)
	}
	return b.String()
}
