package vision

import (
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float32
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 30, 30}, 0},
		{"half overlap", Box{0, 0, 10, 10}, Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", Box{5, 5, 5, 5}, Box{0, 0, 10, 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IoU(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("IoU = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNMSSuppressesOverlaps(t *testing.T) {
	dets := []Detection{
		{Box: Box{0, 0, 10, 10}, Confidence: 0.9},
		{Box: Box{1, 1, 11, 11}, Confidence: 0.8}, // overlaps the first
		{Box: Box{50, 50, 60, 60}, Confidence: 0.7},
	}

	kept := NMS(dets, 0.4)

	if len(kept) != 2 {
		t.Fatalf("kept %d detections, want 2", len(kept))
	}
	if kept[0].Confidence != 0.9 || kept[1].Confidence != 0.7 {
		t.Errorf("unexpected survivors: %+v", kept)
	}
}

func TestNMSKeepsDescendingOrder(t *testing.T) {
	dets := []Detection{
		{Box: Box{50, 50, 60, 60}, Confidence: 0.3},
		{Box: Box{0, 0, 10, 10}, Confidence: 0.9},
		{Box: Box{100, 100, 110, 110}, Confidence: 0.6},
	}

	kept := NMS(dets, 0.4)

	for i := 1; i < len(kept); i++ {
		if kept[i].Confidence > kept[i-1].Confidence {
			t.Fatalf("results not sorted: %+v", kept)
		}
	}
}

func TestNMSPerClassKeepsDifferentClasses(t *testing.T) {
	// Same box, different classes: both survive.
	dets := []Detection{
		{Box: Box{0, 0, 10, 10}, Confidence: 0.9, ClassID: 0},
		{Box: Box{0, 0, 10, 10}, Confidence: 0.8, ClassID: 1},
		{Box: Box{1, 1, 11, 11}, Confidence: 0.5, ClassID: 0},
	}

	kept := NMSPerClass(dets, 0.4)

	if len(kept) != 2 {
		t.Fatalf("kept %d detections, want 2", len(kept))
	}
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	L2Normalize(v)

	if math.Abs(float64(v[0]-0.6)) > 1e-6 || math.Abs(float64(v[1]-0.8)) > 1e-6 {
		t.Errorf("normalized = %v, want [0.6 0.8]", v)
	}

	zero := []float32{0, 0}
	L2Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestMatchScore(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}

	if s := MatchScore(a, a); math.Abs(float64(s-1)) > 1e-6 {
		t.Errorf("self score = %v, want 1", s)
	}
	if s := MatchScore(a, b); math.Abs(float64(s)) > 1e-6 {
		t.Errorf("opposite score = %v, want 0", s)
	}
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})

	var sum float32
	for _, p := range probs {
		sum += p
	}
	if math.Abs(float64(sum-1)) > 1e-5 {
		t.Errorf("softmax sum = %v, want 1", sum)
	}
	if !(probs[2] > probs[1] && probs[1] > probs[0]) {
		t.Errorf("softmax not monotone: %v", probs)
	}
}
