package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 5.196152},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"UnitAxes", []float32{1, 0, 0}, []float32{0, 1, 0}, 1.4142135},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Euclidean(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestManhattan(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 9},
		{"Identical", []float32{-1, 2}, []float32{-1, 2}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Manhattan(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"Scaled", []float32{1, 1}, []float32{5, 5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestCosineZeroVector(t *testing.T) {
	// Zero norm must yield the maximal distance, never NaN.
	got := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	assert.Equal(t, float32(math.MaxFloat32), got)
	assert.False(t, math.IsNaN(float64(got)))

	got = Cosine([]float32{1, 2, 3}, []float32{0, 0, 0})
	assert.Equal(t, float32(math.MaxFloat32), got)
}

func TestNegativeDot(t *testing.T) {
	assert.InDelta(t, float32(-32), NegativeDot([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-5)
	assert.InDelta(t, float32(4), NegativeDot([]float32{1, -1, 2}, []float32{1, 1, -2}), 1e-5)
}

func TestMetricString(t *testing.T) {
	assert.Equal(t, "cosine", MetricCosine.String())
	assert.Equal(t, "euclidean", MetricEuclidean.String())
	assert.Equal(t, "manhattan", MetricManhattan.String())
	assert.Equal(t, "dot", MetricDot.String())
}

func TestParseMetric(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricEuclidean, MetricManhattan, MetricDot} {
		parsed, err := ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMetric("hamming")
	require.Error(t, err)
}

func TestProvider(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricEuclidean, MetricManhattan, MetricDot} {
		fn, err := Provider(m)
		require.NoError(t, err)
		require.NotNil(t, fn)
		// d(a, a) == 0 for every metric except dot, where it is -|a|^2.
		a := []float32{1, 2, 2}
		if m == MetricDot {
			assert.InDelta(t, float32(-9), fn(a, a), 1e-5)
		} else {
			assert.InDelta(t, float32(0), fn(a, a), 1e-5)
		}
	}

	_, err := Provider(Metric(99))
	require.Error(t, err)
}
