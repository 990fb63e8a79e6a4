package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"pixvault/infrastructure/inference"
)

const (
	faceInputSize    = 640
	faceNMSThreshold = 0.4
)

// faceStrides are the SCRFD feature map strides; each carries two
// anchors per cell.
var faceStrides = []int{8, 16, 32}

// FaceDetection is one detected face with coordinates normalized to
// the original image.
type FaceDetection struct {
	Box        Box
	Confidence float32
	// Landmarks holds five (x, y) points: eyes, nose, mouth corners.
	Landmarks [5][2]float32
}

// FaceDetector runs the retinaface model over full images.
type FaceDetector struct {
	runner    Runner
	threshold float32
}

// NewFaceDetector builds a detector with the given score threshold.
func NewFaceDetector(runner Runner, threshold float32) *FaceDetector {
	return &FaceDetector{runner: runner, threshold: threshold}
}

// Detect finds faces in img. Boxes and landmarks come back normalized
// to [0, 1] relative to the original image dimensions.
func (d *FaceDetector) Detect(ctx context.Context, img image.Image) ([]FaceDetection, error) {
	bounds := img.Bounds()
	origW := float32(bounds.Dx())
	origH := float32(bounds.Dy())
	if origW <= 0 || origH <= 0 {
		return nil, fmt.Errorf("empty image")
	}

	fit := FitSquare(img, faceInputSize, color.Black)
	input := ToNCHW(fit.Image, [3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})
	shape := []int64{1, 3, faceInputSize, faceInputSize}

	outs, _, err := d.runner.RunMulti(ctx, inference.ModelFaceDetect, input, shape)
	if err != nil {
		return nil, fmt.Errorf("face detect: %w", err)
	}
	if len(outs) < 9 {
		return nil, fmt.Errorf("face detect: expected 9 outputs, got %d", len(outs))
	}

	type candidate struct {
		det       Detection
		landmarks [5][2]float32
	}
	var cands []candidate

	for si, stride := range faceStrides {
		scores := outs[si]
		bboxes := outs[3+si]
		kps := outs[6+si]

		grid := faceInputSize / stride
		count := grid * grid * 2 // two anchors per cell
		if len(scores) < count || len(bboxes) < count*4 || len(kps) < count*10 {
			return nil, fmt.Errorf("face detect: short output at stride %d", stride)
		}

		for i := 0; i < count; i++ {
			score := scores[i]
			if score < d.threshold {
				continue
			}

			cell := i / 2
			cx := float32((cell%grid)*stride)
			cy := float32((cell/grid)*stride)

			// Box regression is distance to each edge in stride units.
			s := float32(stride)
			x1 := cx - bboxes[i*4+0]*s
			y1 := cy - bboxes[i*4+1]*s
			x2 := cx + bboxes[i*4+2]*s
			y2 := cy + bboxes[i*4+3]*s

			var lm [5][2]float32
			for p := 0; p < 5; p++ {
				lm[p][0] = cx + kps[i*10+p*2]*s
				lm[p][1] = cy + kps[i*10+p*2+1]*s
			}

			cands = append(cands, candidate{
				det: Detection{
					Box:        Box{x1, y1, x2, y2},
					Confidence: score,
				},
				landmarks: lm,
			})
		}
	}

	if len(cands) == 0 {
		return nil, nil
	}

	dets := make([]Detection, len(cands))
	for i, c := range cands {
		dets[i] = c.det
	}
	kept := NMS(dets, faceNMSThreshold)

	results := make([]FaceDetection, 0, len(kept))
	for _, k := range kept {
		// Recover the candidate by box identity to keep its landmarks.
		var lm [5][2]float32
		for _, c := range cands {
			if c.det.Box == k.Box && c.det.Confidence == k.Confidence {
				lm = c.landmarks
				break
			}
		}

		// Map from canvas to original pixels, then normalize.
		box := Box{
			X1: k.Box.X1 / fit.Scale / origW,
			Y1: k.Box.Y1 / fit.Scale / origH,
			X2: k.Box.X2 / fit.Scale / origW,
			Y2: k.Box.Y2 / fit.Scale / origH,
		}
		for p := range lm {
			lm[p][0] = lm[p][0] / fit.Scale / origW
			lm[p][1] = lm[p][1] / fit.Scale / origH
		}

		results = append(results, FaceDetection{
			Box:        ClampUnit(box),
			Confidence: k.Confidence,
			Landmarks:  lm,
		})
	}

	return results, nil
}
