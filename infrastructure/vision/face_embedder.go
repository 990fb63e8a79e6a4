package vision

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"pixvault/domain/models"
	"pixvault/infrastructure/inference"
)

const (
	embedInputSize = 112
	// cropMargin expands the detection box before embedding so the
	// recognition model sees the full face contour.
	cropMargin = 0.2
)

// FaceEmbedder extracts identity embeddings from face crops.
type FaceEmbedder struct {
	runner Runner
}

func NewFaceEmbedder(runner Runner) *FaceEmbedder {
	return &FaceEmbedder{runner: runner}
}

// Embed crops the face region of img given a normalized box, runs the
// arcface model and returns a unit-length embedding.
func (e *FaceEmbedder) Embed(ctx context.Context, img image.Image, box Box) ([]float32, error) {
	crop := CropMargin(img, box, cropMargin)
	if crop == nil {
		return nil, fmt.Errorf("degenerate face region")
	}

	resized := imaging.Resize(crop, embedInputSize, embedInputSize, imaging.Linear)
	input := ToNCHW(resized, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
	shape := []int64{1, 3, embedInputSize, embedInputSize}

	out, _, err := e.runner.Run(ctx, inference.ModelFaceEmbed, input, shape)
	if err != nil {
		return nil, fmt.Errorf("face embed: %w", err)
	}
	if len(out) < models.EmbeddingDim {
		return nil, fmt.Errorf("face embed: got %d values, want %d", len(out), models.EmbeddingDim)
	}

	embedding := make([]float32, models.EmbeddingDim)
	copy(embedding, out)
	L2Normalize(embedding)

	return embedding, nil
}

// Crop returns the padded face crop used for person thumbnails.
func (e *FaceEmbedder) Crop(img image.Image, box Box) image.Image {
	return CropMargin(img, box, cropMargin)
}
