package vision

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"pixvault/infrastructure/inference"
)

const (
	sceneResizeTo  = 256
	sceneInputSize = 224
	sceneTopK      = 5
	sceneFloor     = 0.1
)

// ImageNet statistics in 0..255 pixel space.
var (
	imagenetMean = [3]float32{123.675, 116.28, 103.53}
	imagenetStd  = [3]float32{58.395, 57.12, 57.375}
)

// SceneLabel is one scene prediction.
type SceneLabel struct {
	Label      string
	Confidence float32
}

// SceneClassifier runs the places365 model over full images.
type SceneClassifier struct {
	runner Runner
	labels []string
}

func NewSceneClassifier(runner Runner, labels []string) *SceneClassifier {
	return &SceneClassifier{runner: runner, labels: labels}
}

// Classify returns up to five scene labels above the confidence floor,
// strongest first.
func (c *SceneClassifier) Classify(ctx context.Context, img image.Image) ([]SceneLabel, error) {
	if len(c.labels) == 0 {
		return nil, fmt.Errorf("scene classify: %w: no label table", inference.ErrUnavailable)
	}

	cropped := CenterCrop(img, sceneResizeTo, sceneInputSize)
	input := ToNCHW(cropped, imagenetMean, imagenetStd)
	shape := []int64{1, 3, sceneInputSize, sceneInputSize}

	out, _, err := c.runner.Run(ctx, inference.ModelScenes, input, shape)
	if err != nil {
		return nil, fmt.Errorf("scene classify: %w", err)
	}
	if len(out) != len(c.labels) {
		return nil, fmt.Errorf("scene classify: %d logits for %d labels", len(out), len(c.labels))
	}

	probs := Softmax(out)

	var results []SceneLabel
	for k := 0; k < sceneTopK; k++ {
		best := -1
		var bestProb float32
		for i, p := range probs {
			if p > bestProb {
				bestProb = p
				best = i
			}
		}
		if best < 0 || bestProb < sceneFloor {
			break
		}
		results = append(results, SceneLabel{Label: c.labels[best], Confidence: bestProb})
		probs[best] = 0
	}

	return results, nil
}

// LoadSceneLabels parses a places365 category file of lines like
// "/a/airfield 0" into human-readable labels ("airfield").
func LoadSceneLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene labels: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		name := fields[0]
		// Strip the leading "/x/" letter bucket.
		if len(name) > 3 && name[0] == '/' {
			name = name[3:]
		}
		name = strings.ReplaceAll(name, "_", " ")
		name = strings.ReplaceAll(name, "/", " - ")
		labels = append(labels, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scene labels: %w", err)
	}
	return labels, nil
}
