package vision

import "math"

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// Area returns the box area, clamped to zero for degenerate boxes.
func (b Box) Area() float32 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection-over-union of two boxes.
func IoU(a, b Box) float32 {
	ix1 := maxf(a.X1, b.X1)
	iy1 := maxf(a.Y1, b.Y1)
	ix2 := minf(a.X2, b.X2)
	iy2 := minf(a.Y2, b.Y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a scored box with an optional class label.
type Detection struct {
	Box        Box
	Confidence float32
	ClassID    int
}

// NMS performs greedy non-maximum suppression: detections are processed
// in descending confidence order and any detection overlapping an
// already kept one above iouThreshold is dropped. The returned slice
// preserves the descending confidence order.
func NMS(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) == 0 {
		return nil
	}

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sortByConfidence(dets, order)

	kept := make([]Detection, 0, len(dets))
	suppressed := make([]bool, len(dets))

	for _, i := range order {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		for _, j := range order {
			if suppressed[j] || j == i {
				continue
			}
			if IoU(dets[i].Box, dets[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// NMSPerClass applies NMS independently within each class, so boxes of
// different classes never suppress one another.
func NMSPerClass(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) == 0 {
		return nil
	}

	byClass := map[int][]Detection{}
	for _, d := range dets {
		byClass[d.ClassID] = append(byClass[d.ClassID], d)
	}

	var out []Detection
	for _, group := range byClass {
		out = append(out, NMS(group, iouThreshold)...)
	}
	sortDetections(out)
	return out
}

func sortByConfidence(dets []Detection, order []int) {
	// Insertion sort keeps this dependency-free; detection counts per
	// image are small.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && dets[order[j]].Confidence > dets[order[j-1]].Confidence; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
}

func sortDetections(dets []Detection) {
	for i := 1; i < len(dets); i++ {
		for j := i; j > 0 && dets[j].Confidence > dets[j-1].Confidence; j-- {
			dets[j], dets[j-1] = dets[j-1], dets[j]
		}
	}
}

// L2Normalize scales v in place to unit length. Zero vectors are left
// unchanged.
func L2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// MatchScore maps the cosine similarity of two unit embeddings into
// [0, 1], where 1 is an exact match.
func MatchScore(a, b []float32) float32 {
	return (Dot(a, b) + 1) / 2
}

// Softmax converts raw logits into a probability distribution.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	exps := make([]float64, len(logits))
	for i, v := range logits {
		exps[i] = math.Exp(float64(v - max))
		sum += exps[i]
	}
	out := make([]float32, len(logits))
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
