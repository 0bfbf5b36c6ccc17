// Package testutil provides deterministic data generators shared by tests
// and benchmarks.
package testutil

import (
	"math"
	"math/rand"
	"sync"
)

// RNG is a seeded random source safe for concurrent use.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64
}

// NewRNG creates a new RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rand = rand.New(rand.NewSource(r.seed))
}

// Intn returns a non-negative pseudo-random number in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0.0, 1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rand.Float32()
}

// FillUniform fills dst with random values in [0, 1). It locks once per
// call, so prefer it over calling Float32 in a loop.
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVector returns a single random vector with values in [0, 1).
func (r *RNG) UniformVector(dimensions int) []float32 {
	vec := make([]float32, dimensions)
	r.FillUniform(vec)

	return vec
}

// UniformVectors generates random vectors with values in [0, 1), sharing a
// single backing array.
func (r *RNG) UniformVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range vectors {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}

		vectors[i] = vec
	}

	return vectors
}

// GaussianVectors generates random vectors drawn from a standard normal
// distribution.
func (r *RNG) GaussianVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range vectors {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}

		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors on the hypersphere.
func (r *RNG) UnitVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range vectors {
		vec := data[i*dimensions : (i+1)*dimensions]

		var norm float64

		for j := range vec {
			v := r.rand.NormFloat64()
			vec[j] = float32(v)
			norm += v * v
		}

		if norm == 0 {
			norm = 1
		}

		inv := float32(1.0 / math.Sqrt(norm))
		for j := range vec {
			vec[j] *= inv
		}

		vectors[i] = vec
	}

	return vectors
}

// Recall returns the fraction of ground-truth ids present in approximate,
// judged over the first min(len) entries of the ground truth.
func Recall(groundTruth, approximate []string) float64 {
	if len(groundTruth) == 0 {
		if len(approximate) == 0 {
			return 1.0
		}

		return 0.0
	}

	truth := make(map[string]struct{}, len(groundTruth))
	for _, id := range groundTruth {
		truth[id] = struct{}{}
	}

	hits := 0

	for _, id := range approximate {
		if _, ok := truth[id]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(groundTruth))
}
