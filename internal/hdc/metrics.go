package hdc

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultBins is the histogram resolution used by InformationDistance and
// Stats when no bin count is given.
const DefaultBins = 50

// Cosine returns the cosine similarity between a and b, clipped to [-1, 1].
// Returns 0 when either vector has near-zero norm or the lengths differ.
func Cosine(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	dot := floats.Dot(a, b)
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na < epsilon || nb < epsilon {
		return 0
	}
	sim := dot / (na * nb)
	return math.Max(-1, math.Min(1, sim))
}

// Euclidean returns the L2 distance between a and b, or 0 when the lengths
// differ.
func Euclidean(a, b Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Hamming returns the number of positions where a and b disagree after
// sign-thresholding both at threshold.
func Hamming(a, b Vector, threshold float64) int {
	if len(a) != len(b) {
		return 0
	}
	var n int
	for i := range a {
		if (a[i] > threshold) != (b[i] > threshold) {
			n++
		}
	}
	return n
}

// InformationDistance returns the square root of the Jensen-Shannon
// divergence between the value distributions of a and b, each summarized as a
// normalized histogram with the given number of bins (DefaultBins when
// bins <= 0). The square root makes the divergence a metric.
func InformationDistance(a, b Vector, bins int) float64 {
	if bins <= 0 {
		bins = DefaultBins
	}
	pa := histogram(a, bins)
	pb := histogram(b, bins)

	m := make([]float64, bins)
	for i := range m {
		m[i] = 0.5 * (pa[i] + pb[i])
	}
	js := 0.5*klDivergence(pa, m) + 0.5*klDivergence(pb, m)
	return math.Sqrt(js)
}

// VectorStats summarizes the distribution of a vector's components.
type VectorStats struct {
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Norm     float64 `json:"norm"`
	Sparsity float64 `json:"sparsity"` // fraction of components with |x| < 0.01
	Entropy  float64 `json:"entropy"`  // Shannon entropy of |v|'s histogram
}

// Stats reports mean, population standard deviation, L2 norm, sparsity and
// the Shannon entropy of the absolute-value histogram of v.
func Stats(v Vector) VectorStats {
	if len(v) == 0 {
		return VectorStats{}
	}
	mean := floats.Sum(v) / float64(len(v))
	var sq float64
	var sparse int
	abs := make(Vector, len(v))
	for i, x := range v {
		d := x - mean
		sq += d * d
		if math.Abs(x) < 0.01 {
			sparse++
		}
		abs[i] = math.Abs(x)
	}
	hist := histogram(abs, DefaultBins)
	var entropy float64
	for _, p := range hist {
		entropy -= p * math.Log(p+epsilon)
	}
	return VectorStats{
		Mean:     mean,
		Std:      math.Sqrt(sq / float64(len(v))),
		Norm:     floats.Norm(v, 2),
		Sparsity: float64(sparse) / float64(len(v)),
		Entropy:  entropy,
	}
}

// histogram bins v over its own [min, max] range and returns per-bin
// probabilities summing to 1. A constant vector lands in a single bin.
func histogram(v Vector, bins int) []float64 {
	p := make([]float64, bins)
	if len(v) == 0 {
		return p
	}
	vmin := floats.Min(v)
	vmax := floats.Max(v)
	width := (vmax - vmin) / float64(bins)
	if width < epsilon {
		p[0] = 1
		return p
	}
	for _, x := range v {
		i := int((x - vmin) / width)
		if i >= bins {
			i = bins - 1
		}
		p[i]++
	}
	for i := range p {
		p[i] /= float64(len(v))
	}
	return p
}

// klDivergence computes KL(p || q) with a small epsilon guarding log(0).
func klDivergence(p, q []float64) float64 {
	var sum float64
	for i := range p {
		pi := p[i] + epsilon
		qi := q[i] + epsilon
		sum += pi * math.Log(pi/qi)
	}
	return sum
}
