package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/musubu/internal/hdql"
)

func vectorResult() *hdql.VectorQueryResult {
	return &hdql.VectorQueryResult{
		Matches: []hdql.EntityMatch{
			{
				Entity: hdql.Entity{
					Type:        "persona",
					Name:        "developer",
					Description: "writes production software",
					Attributes:  map[string]float64{"job_frequency": 0.8},
				},
				Similarity:  1.0,
				Explanation: "matched persona: writes production software",
			},
			{
				Entity:     hdql.Entity{Type: "persona", Name: "designer"},
				Similarity: 0.95,
			},
		},
		Confidence:    []float64{1.0, 0.95},
		ExecutionTime: 3 * time.Millisecond,
	}
}

func recommendationResult() *hdql.RecommendationResult {
	return &hdql.RecommendationResult{
		Recommendations: []hdql.Recommendation{
			{
				Entity: hdql.Entity{
					Type:       "solution",
					Name:       "search",
					Attributes: map[string]float64{"outcome_coverage": 0.9},
				},
				Score:     1.0,
				Rationale: "high score based on weighted objectives",
			},
		},
		TradeOffs: hdql.TradeOffAnalysis{Summary: "3 options on the frontier"},
		Alternatives: []hdql.Alternative{
			{Entity: hdql.Entity{Type: "solution", Name: "alerts"}, Score: 0.95},
		},
		ObjectiveValue: 1.0,
		ExecutionTime:  5 * time.Millisecond,
	}
}

func TestWriteResult_vectorJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResult(&buf, vectorResult(), OutputJSON); err != nil {
		t.Fatalf("WriteResult(json): %v", err)
	}
	var decoded hdql.VectorQueryResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Matches) != 2 {
		t.Fatalf("matches: got %d, want 2", len(decoded.Matches))
	}
	if decoded.Matches[0].Entity.Name != "developer" {
		t.Errorf("first match: got %+v", decoded.Matches[0].Entity)
	}
}

func TestWriteResult_vectorText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResult(&buf, vectorResult(), OutputText); err != nil {
		t.Fatalf("WriteResult(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{
		"Found 2 matches",
		"Rank: 1",
		"persona:developer",
		"writes production software",
		"job_frequency: 0.800",
		"Rank: 2",
		"persona:designer",
	} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteResult_recommendationText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResult(&buf, recommendationResult(), OutputText); err != nil {
		t.Fatalf("WriteResult(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{
		"Top Recommendation: search",
		"outcome_coverage: 0.900",
		"alerts (score=0.950)",
		"Completed in 5ms",
	} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteResult_unknownFormatFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResult(&buf, vectorResult(), OutputFormat("unknown")); err != nil {
		t.Fatalf("WriteResult(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Found 2 matches") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteResult_emptyVector(t *testing.T) {
	var buf bytes.Buffer
	result := &hdql.VectorQueryResult{Matches: []hdql.EntityMatch{}}
	if err := WriteResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteResult(text): %v", err)
	}
	if !strings.Contains(buf.String(), "Found 0 matches") {
		t.Errorf("empty result output: %q", buf.String())
	}
}

func TestWriteTrace(t *testing.T) {
	result := vectorResult()
	result.Trace = hdql.ReasoningTrace{
		RunID: "test-run",
		Steps: []string{"Looking up persona entities matching 'developer'"},
	}
	var buf bytes.Buffer
	WriteTrace(&buf, result)
	out := buf.String()
	if !strings.Contains(out, "Query Execution Trace") {
		t.Errorf("trace header missing: %q", out)
	}
	if !strings.Contains(out, "Looking up persona entities matching 'developer'") {
		t.Errorf("trace step missing: %q", out)
	}
}
