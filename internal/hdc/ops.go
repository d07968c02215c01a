package hdc

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrNoVectors is returned by Superpose when the input is empty.
var ErrNoVectors = errors.New("superpose: no input vectors")

// Bind composes two vectors via circular convolution, computed in the
// frequency domain: transform both, multiply elementwise, inverse-transform,
// keep the real part, L2-normalize. Binding encodes "a relates to b"; it is
// commutative, associative, and approximately invertible via Unbind.
func Bind(a, b Vector) (Vector, error) {
	if len(a) != len(b) {
		return nil, &DimensionError{Got: len(b), Want: len(a)}
	}
	if len(a) == 0 {
		return nil, errors.New("bind: empty vectors")
	}
	return spectralProduct(a, b, false), nil
}

// Unbind approximately inverts Bind: given Bind(a, b) and b, it recovers a
// vector close to a (cosine similarity typically > 0.7 at 1000+ dimensions).
// Implemented as circular correlation: the bound vector's transform is
// multiplied by the conjugate of b's transform.
func Unbind(bound, b Vector) (Vector, error) {
	if len(bound) != len(b) {
		return nil, &DimensionError{Got: len(b), Want: len(bound)}
	}
	if len(bound) == 0 {
		return nil, errors.New("unbind: empty vectors")
	}
	return spectralProduct(bound, b, true), nil
}

// spectralProduct multiplies the DFTs of a and b elementwise (conjugating b's
// when conj is set), inverse-transforms, and L2-normalizes the real part.
// The FFT handles arbitrary lengths, so dimensionality need not be a power
// of two.
func spectralProduct(a, b Vector, conj bool) Vector {
	n := len(a)
	fft := fourier.NewCmplxFFT(n)

	ca := make([]complex128, n)
	cb := make([]complex128, n)
	for i := 0; i < n; i++ {
		ca[i] = complex(a[i], 0)
		cb[i] = complex(b[i], 0)
	}
	fa := fft.Coefficients(nil, ca)
	fb := fft.Coefficients(nil, cb)
	for i := range fa {
		if conj {
			fa[i] *= cmplx.Conj(fb[i])
		} else {
			fa[i] *= fb[i]
		}
	}
	seq := fft.Sequence(nil, fa)

	// Sequence(Coefficients(x)) scales by n; undo that before normalizing.
	out := make(Vector, n)
	for i := range seq {
		out[i] = real(seq[i]) / float64(n)
	}
	return NormalizeL2(out)
}

// Superpose bundles vectors into one by weighted elementwise sum followed by
// L2 normalization. A nil weights slice means uniform weights. The result is
// similar to every input, which is what makes bundling useful for representing
// sets of concepts.
func Superpose(vectors []Vector, weights []float64) (Vector, error) {
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}
	if weights == nil {
		weights = make([]float64, len(vectors))
		for i := range weights {
			weights[i] = 1.0 / float64(len(vectors))
		}
	}
	if len(weights) != len(vectors) {
		return nil, fmt.Errorf("superpose: %d weights for %d vectors", len(weights), len(vectors))
	}
	dims := len(vectors[0])
	out := make(Vector, dims)
	for i, v := range vectors {
		if len(v) != dims {
			return nil, &DimensionError{Got: len(v), Want: dims}
		}
		for j, x := range v {
			out[j] += weights[i] * x
		}
	}
	return NormalizeL2(out), nil
}

// Permute circularly rotates v by shift positions (negative shifts rotate the
// other way). Permutation encodes roles or sequence positions: a permuted
// vector is nearly orthogonal to the original.
func Permute(v Vector, shift int) Vector {
	n := len(v)
	if n == 0 {
		return v
	}
	shift = ((shift % n) + n) % n
	out := make(Vector, n)
	for i, x := range v {
		out[(i+shift)%n] = x
	}
	return out
}
