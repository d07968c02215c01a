// Package cli provides CLI utilities for Musubu.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hyperjump/musubu/internal/hdql"
	"github.com/hyperjump/musubu/pkg/utils"
)

// OutputFormat is the format for query result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteResult writes a query result to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteResult(w io.Writer, result hdql.Result, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		switch r := result.(type) {
		case *hdql.VectorQueryResult:
			writeVectorResultText(w, r)
		case *hdql.RecommendationResult:
			writeRecommendationText(w, r)
		default:
			fmt.Fprintf(w, "%v\n", result)
		}
		return nil
	}
}

func writeVectorResultText(w io.Writer, r *hdql.VectorQueryResult) {
	fmt.Fprintf(w, "\nFound %d matches in %s\n\n", len(r.Matches), r.ExecutionTime)
	for i, m := range r.Matches {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f\n", i+1, m.Similarity)
		fmt.Fprintf(w, "Entity: %s\n", m.Entity.Key())
		if m.Entity.Description != "" {
			fmt.Fprintf(w, "%s\n", utils.Truncate(m.Entity.Description, 200))
		}
		writeAttributes(w, m.Entity.Attributes)
		fmt.Fprintln(w)
	}
}

func writeRecommendationText(w io.Writer, r *hdql.RecommendationResult) {
	fmt.Fprintln(w)
	fmt.Fprint(w, r.Explain())
	if len(r.Recommendations) > 0 {
		writeAttributes(w, r.Recommendations[0].Entity.Attributes)
	}
	fmt.Fprintf(w, "\nCompleted in %s\n", r.ExecutionTime)
}

func writeAttributes(w io.Writer, attrs map[string]float64) {
	if len(attrs) == 0 {
		return
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %.3f\n", name, attrs[name])
	}
}

// WriteTrace writes the reasoning trace of a result to w.
func WriteTrace(w io.Writer, result hdql.Result) {
	switch r := result.(type) {
	case *hdql.VectorQueryResult:
		fmt.Fprint(w, r.Trace.Explain())
	case *hdql.RecommendationResult:
		fmt.Fprint(w, r.Trace.Explain())
	}
}
