// Package math32 provides scalar float32 vector kernels.
// This is an internal package - external users should use the distance package.
package math32

import "math"

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

// SquaredL2 calculates the squared L2 distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		d := a[i] - b[i]
		distance += d * d
	}

	return distance
}

// L1 calculates the L1 (Manhattan) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func L1(a, b []float32) float32 {
	var distance float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		distance += d
	}

	return distance
}

// Sqrt returns the square root of x.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// Norm calculates the L2 norm (magnitude) of v.
func Norm(v []float32) float32 {
	return Sqrt(Dot(v, v))
}
