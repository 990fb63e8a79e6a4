// Package clusters provides density-based clustering over embedding vectors.
package clusters

import "math"

// DistanceFunc measures distance between two n-dimensional vectors.
type DistanceFunc func(a, b []float32) float64

// HardClusterer assigns every observation to at most one cluster.
type HardClusterer interface {
	// Learn clusters the given observations.
	Learn(data [][]float32) error

	// Guesses returns the mapping from observation index to cluster number.
	// Cluster numbering begins at 1; 0 marks noise.
	Guesses() []int

	// Sizes returns the size of each cluster, indexed by cluster number - 1.
	Sizes() []int
}

var (
	// EuclideanDistance is the straight-line distance between two vectors.
	EuclideanDistance DistanceFunc = func(a, b []float32) float64 {
		var s, t float32

		for i := range a {
			t = a[i] - b[i]
			s += t * t
		}

		return math.Sqrt(float64(s))
	}

	// CosineDistance is 1 - cosine similarity. For unit-norm vectors the dot
	// product alone is the similarity; the general form divides by the norms
	// so that unnormalized inputs still behave.
	CosineDistance DistanceFunc = func(a, b []float32) float64 {
		var dot, na, nb float64

		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}

		if na == 0 || nb == 0 {
			return 1
		}

		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	}
)
