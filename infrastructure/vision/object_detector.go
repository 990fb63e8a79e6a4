package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"pixvault/infrastructure/inference"
)

const (
	objectInputSize    = 640
	objectNMSThreshold = 0.45
)

// yoloPadColor matches the gray padding the model was trained with.
var yoloPadColor = color.RGBA{114, 114, 114, 255}

// ObjectDetection is one detected object with coordinates normalized
// to the original image.
type ObjectDetection struct {
	Label      string
	ClassID    int
	Box        Box
	Confidence float32
}

// ObjectDetector runs the yolov8n model over full images.
type ObjectDetector struct {
	runner    Runner
	threshold float32
}

func NewObjectDetector(runner Runner, threshold float32) *ObjectDetector {
	return &ObjectDetector{runner: runner, threshold: threshold}
}

// Detect finds objects in img. Boxes come back normalized to [0, 1].
func (d *ObjectDetector) Detect(ctx context.Context, img image.Image) ([]ObjectDetection, error) {
	bounds := img.Bounds()
	origW := float32(bounds.Dx())
	origH := float32(bounds.Dy())
	if origW <= 0 || origH <= 0 {
		return nil, fmt.Errorf("empty image")
	}

	fit := Letterbox(img, objectInputSize, yoloPadColor)
	input := ToNCHW(fit.Image, [3]float32{0, 0, 0}, [3]float32{255, 255, 255})
	shape := []int64{1, 3, objectInputSize, objectInputSize}

	out, outShape, err := d.runner.Run(ctx, inference.ModelObjects, input, shape)
	if err != nil {
		return nil, fmt.Errorf("object detect: %w", err)
	}

	// Output layout is (1, 4+classes, anchors): rows are cx, cy, w, h
	// followed by one score row per class.
	if len(outShape) != 3 {
		return nil, fmt.Errorf("object detect: unexpected output rank %d", len(outShape))
	}
	rows := int(outShape[1])
	anchors := int(outShape[2])
	classes := rows - 4
	if classes <= 0 || len(out) < rows*anchors {
		return nil, fmt.Errorf("object detect: malformed output %v", outShape)
	}

	var dets []Detection
	for a := 0; a < anchors; a++ {
		bestClass := -1
		var bestScore float32
		for c := 0; c < classes; c++ {
			if score := out[(4+c)*anchors+a]; score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestScore < d.threshold {
			continue
		}

		cx := out[0*anchors+a]
		cy := out[1*anchors+a]
		w := out[2*anchors+a]
		h := out[3*anchors+a]

		dets = append(dets, Detection{
			Box: Box{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Confidence: bestScore,
			ClassID:    bestClass,
		})
	}

	kept := NMSPerClass(dets, objectNMSThreshold)

	results := make([]ObjectDetection, 0, len(kept))
	for _, k := range kept {
		// Undo letterbox, map to original pixels, then normalize.
		box := Box{
			X1: (k.Box.X1 - float32(fit.PadX)) / fit.Scale / origW,
			Y1: (k.Box.Y1 - float32(fit.PadY)) / fit.Scale / origH,
			X2: (k.Box.X2 - float32(fit.PadX)) / fit.Scale / origW,
			Y2: (k.Box.Y2 - float32(fit.PadY)) / fit.Scale / origH,
		}

		label := "unknown"
		if k.ClassID >= 0 && k.ClassID < len(cocoLabels) {
			label = cocoLabels[k.ClassID]
		}

		results = append(results, ObjectDetection{
			Label:      label,
			ClassID:    k.ClassID,
			Box:        ClampUnit(box),
			Confidence: k.Confidence,
		})
	}

	return results, nil
}
