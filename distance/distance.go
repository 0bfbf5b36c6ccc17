// Package distance provides the public API for vector distance calculations.
//
// All metrics share the same ordering convention: smaller values mean more
// similar vectors. Dot product similarity is therefore exposed as its negation.
package distance

import (
	"fmt"
	"math"

	"github.com/proximadb/proxima/internal/math32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return math32.Dot(a, b)
}

// Euclidean calculates the L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Euclidean(a, b []float32) float32 {
	return math32.Sqrt(math32.SquaredL2(a, b))
}

// Manhattan calculates the L1 (Manhattan) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Manhattan(a, b []float32) float32 {
	return math32.L1(a, b)
}

// Cosine calculates the cosine distance 1 - cos(a, b) between two vectors.
// Assumes vectors are the same length (caller's responsibility).
//
// If either vector has zero L2 norm the angle is undefined; Cosine returns
// math.MaxFloat32 so that zero vectors sort behind every real match instead
// of propagating a NaN through heaps and sorts.
func Cosine(a, b []float32) float32 {
	normA := math32.Norm(a)
	normB := math32.Norm(b)
	if normA == 0 || normB == 0 {
		return math.MaxFloat32
	}
	return 1 - math32.Dot(a, b)/(normA*normB)
}

// NegativeDot calculates -dot(a, b), the dot product expressed as a distance.
// Assumes vectors are the same length (caller's responsibility).
func NegativeDot(a, b []float32) float32 {
	return -math32.Dot(a, b)
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
	MetricManhattan
	MetricDot
)

// String returns the stable name of the metric, as used in snapshots.
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	case MetricManhattan:
		return "manhattan"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// ParseMetric returns the metric for a stable name.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "cosine":
		return MetricCosine, nil
	case "euclidean":
		return MetricEuclidean, nil
	case "manhattan":
		return MetricManhattan, nil
	case "dot":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("distance: unknown metric %q", name)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
// The function is resolved once at store construction so the hot traversal
// loop dispatches through a plain function value, not a switch.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricEuclidean:
		return Euclidean, nil
	case MetricManhattan:
		return Manhattan, nil
	case MetricDot:
		return NegativeDot, nil
	default:
		return nil, fmt.Errorf("distance: unsupported metric: %v", m)
	}
}
