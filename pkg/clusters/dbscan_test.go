package clusters

import (
	"math"
	"testing"
)

func TestDBSCANGroupsDensePoints(t *testing.T) {
	data := [][]float32{
		{0.0, 0.0},
		{0.1, 0.0},
		{0.0, 0.1},
		{5.0, 5.0},
		{5.1, 5.0},
		{9.0, 0.0}, // isolated
	}

	c, err := NewDBSCAN(0.5, 2, EuclideanDistance)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Learn(data); err != nil {
		t.Fatal(err)
	}

	guesses := c.Guesses()

	if guesses[0] == 0 || guesses[0] != guesses[1] || guesses[1] != guesses[2] {
		t.Errorf("expected points 0-2 in one cluster, got %v", guesses)
	}

	if guesses[3] == 0 || guesses[3] != guesses[4] {
		t.Errorf("expected points 3-4 in one cluster, got %v", guesses)
	}

	if guesses[0] == guesses[3] {
		t.Errorf("expected two distinct clusters, got %v", guesses)
	}

	if guesses[5] != 0 {
		t.Errorf("expected point 5 to be noise, got cluster %d", guesses[5])
	}

	sizes := c.Sizes()
	if len(sizes) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(sizes))
	}

	if sizes[guesses[0]-1] != 3 || sizes[guesses[3]-1] != 2 {
		t.Errorf("unexpected cluster sizes %v", sizes)
	}
}

func TestDBSCANAllNoise(t *testing.T) {
	data := [][]float32{
		{0, 0},
		{10, 10},
		{20, 20},
	}

	c, _ := NewDBSCAN(0.5, 2, EuclideanDistance)

	if err := c.Learn(data); err != nil {
		t.Fatal(err)
	}

	for i, g := range c.Guesses() {
		if g != 0 {
			t.Errorf("point %d: expected noise, got cluster %d", i, g)
		}
	}

	if len(c.Sizes()) != 0 {
		t.Errorf("expected no clusters, got %v", c.Sizes())
	}
}

func TestDBSCANEmptyInput(t *testing.T) {
	c, _ := NewDBSCAN(0.5, 2, nil)

	if err := c.Learn(nil); err != nil {
		t.Fatal(err)
	}

	if len(c.Guesses()) != 0 {
		t.Errorf("expected no guesses, got %v", c.Guesses())
	}
}

func TestDBSCANRejectsBadParams(t *testing.T) {
	if _, err := NewDBSCAN(0, 2, nil); err == nil {
		t.Error("expected error for eps = 0")
	}

	if _, err := NewDBSCAN(0.5, 0, nil); err == nil {
		t.Error("expected error for minPts = 0")
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	if d := CosineDistance(a, a); math.Abs(d) > 1e-9 {
		t.Errorf("distance to self = %v, want 0", d)
	}

	if d := CosineDistance(a, b); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal distance = %v, want 1", d)
	}

	// Symmetry
	if CosineDistance(a, b) != CosineDistance(b, a) {
		t.Error("cosine distance is not symmetric")
	}
}

func TestCosineDistanceClusteringOfSimilarEmbeddings(t *testing.T) {
	// Two near-identical directions and one opposite
	data := [][]float32{
		{1, 0.01, 0},
		{1, 0.02, 0},
		{-1, 0, 0},
	}

	c, _ := NewDBSCAN(0.5, 2, CosineDistance)

	if err := c.Learn(data); err != nil {
		t.Fatal(err)
	}

	guesses := c.Guesses()

	if guesses[0] == 0 || guesses[0] != guesses[1] {
		t.Errorf("expected similar embeddings clustered together, got %v", guesses)
	}

	if guesses[2] != 0 {
		t.Errorf("expected opposite embedding to be noise, got %v", guesses)
	}
}
