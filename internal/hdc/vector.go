// Package hdc implements hyperdimensional computing primitives: deterministic
// vector generation, normalization, binding via circular convolution, bundling,
// permutation, and similarity metrics.
package hdc

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Vector is a fixed-length real vector. All operations in this package assume
// both operands have the same length.
type Vector []float64

// DefaultDimensions is the default vector dimensionality. 1000 dimensions is
// enough for near-orthogonality of random vectors at catalog scale.
const DefaultDimensions = 1000

// epsilon below which a norm, std or range is treated as zero.
const epsilon = 1e-10

// Strategy selects how generated vectors are normalized.
type Strategy string

const (
	// L2 scales to unit Euclidean length.
	L2 Strategy = "l2"
	// MinMax rescales values into [-1, 1].
	MinMax Strategy = "minmax"
	// ZScore subtracts the mean and divides by the standard deviation.
	ZScore Strategy = "zscore"
)

// ParseStrategy validates a strategy name from config or a stored snapshot.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case L2, MinMax, ZScore:
		return Strategy(s), nil
	case "":
		return L2, nil
	}
	return "", fmt.Errorf("unknown normalization strategy %q", s)
}

// Normalize applies the strategy to v, returning a new vector.
// An unknown strategy falls back to L2.
func (s Strategy) Normalize(v Vector) Vector {
	switch s {
	case MinMax:
		return NormalizeMinMax(v)
	case ZScore:
		return NormalizeZScore(v)
	default:
		return NormalizeL2(v)
	}
}

// DimensionError reports a vector whose length disagrees with the declared
// dimensionality.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector has %d dimensions, want %d", e.Got, e.Want)
}

// Embed deterministically generates the embedding for key. The first 4 bytes
// of the SHA-256 hash of key (big-endian) seed a PRNG that draws dims
// standard-normal values, which are then normalized per strategy.
//
// Identical (key, dims, strategy) always yields a bit-identical vector,
// independent of process or call order, so Embed is safe to call concurrently
// with no coordination.
func Embed(key string, dims int, strategy Strategy) Vector {
	if dims <= 0 {
		return nil
	}
	digest := sha256.Sum256([]byte(key))
	seed := binary.BigEndian.Uint32(digest[:4])
	rng := rand.New(rand.NewSource(int64(seed)))

	v := make(Vector, dims)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return strategy.Normalize(v)
}

// NormalizeL2 scales v to unit Euclidean length. A vector with near-zero norm
// is returned unchanged to avoid division by zero.
func NormalizeL2(v Vector) Vector {
	norm := floats.Norm(v, 2)
	if norm < epsilon {
		return v
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// NormalizeMinMax rescales v into [-1, 1]. A constant vector maps to the zero
// vector.
func NormalizeMinMax(v Vector) Vector {
	if len(v) == 0 {
		return v
	}
	vmin := floats.Min(v)
	vmax := floats.Max(v)
	out := make(Vector, len(v))
	if math.Abs(vmax-vmin) < epsilon {
		return out
	}
	for i, x := range v {
		out[i] = 2.0*(x-vmin)/(vmax-vmin) - 1.0
	}
	return out
}

// NormalizeZScore standardizes v to zero mean and unit variance. When the
// standard deviation is near zero only the mean is subtracted.
func NormalizeZScore(v Vector) Vector {
	if len(v) == 0 {
		return v
	}
	mean := floats.Sum(v) / float64(len(v))
	var sq float64
	for _, x := range v {
		d := x - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(v)))
	out := make(Vector, len(v))
	if std < epsilon {
		for i, x := range v {
			out[i] = x - mean
		}
		return out
	}
	for i, x := range v {
		out[i] = (x - mean) / std
	}
	return out
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}
