package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pixvault/pkg/logger"
)

// ModelSpec describes one ONNX artifact the pipeline can run.
type ModelSpec struct {
	Name        string
	FileName    string
	URL         string
	SHA256      string // empty disables checksum verification
	InputName   string
	OutputNames []string
}

// Model names used by the vision stages.
const (
	ModelFaceDetect = "retinaface"
	ModelFaceEmbed  = "arcface"
	ModelObjects    = "yolov8n"
	ModelScenes     = "places365"
)

var registry = map[string]ModelSpec{
	// The insightface releases ship buffalo_l as a zip only; these
	// mirrors expose the unpacked ONNX files directly.
	ModelFaceDetect: {
		Name:        ModelFaceDetect,
		FileName:    "det_10g.onnx",
		URL:         "https://huggingface.co/immich-app/buffalo_l/resolve/main/detection/model.onnx",
		InputName:   "input.1",
		OutputNames: []string{"448", "471", "494", "451", "474", "497", "454", "477", "500"},
	},
	ModelFaceEmbed: {
		Name:        ModelFaceEmbed,
		FileName:    "w600k_r50.onnx",
		URL:         "https://huggingface.co/immich-app/buffalo_l/resolve/main/recognition/model.onnx",
		InputName:   "input.1",
		OutputNames: []string{"683"},
	},
	ModelObjects: {
		Name:        ModelObjects,
		FileName:    "yolov8n.onnx",
		URL:         "https://github.com/ultralytics/assets/releases/download/v8.1.0/yolov8n.onnx",
		InputName:   "images",
		OutputNames: []string{"output0"},
	},
	// Places365 is published as PyTorch weights only; there is no
	// hosted ONNX artifact. The converted model has to be provisioned
	// into the model dir by the operator, so URL stays empty and the
	// scene stage degrades until the file appears.
	ModelScenes: {
		Name:        ModelScenes,
		FileName:    "places365_resnet18.onnx",
		InputName:   "input",
		OutputNames: []string{"output"},
	},
}

// SceneLabelsSpec is the places365 category list. Not a model, but it
// rides the same download-once machinery.
var SceneLabelsSpec = ModelSpec{
	Name:     "places365_labels",
	FileName: "categories_places365.txt",
	URL:      "https://raw.githubusercontent.com/csailvision/places365/master/categories_places365.txt",
}

// Spec returns the registered model spec by name.
func Spec(name string) (ModelSpec, error) {
	spec, ok := registry[name]
	if !ok {
		return ModelSpec{}, fmt.Errorf("unknown model %q", name)
	}
	return spec, nil
}

// EnsureModel makes sure the model artifact exists in dir, downloading
// it once if missing. Downloads go to a temp file and are renamed into
// place only after the checksum (when configured) verifies, so a
// crashed download never leaves a partial artifact behind.
func EnsureModel(ctx context.Context, dir string, spec ModelSpec) (string, error) {
	path := filepath.Join(dir, spec.FileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if spec.URL == "" {
		return "", fmt.Errorf("model %s has no download source, provision %s into %s", spec.Name, spec.FileName, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	logger.Vision("model_download", "Downloading model artifact", map[string]interface{}{
		"model": spec.Name,
		"url":   spec.URL,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", spec.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download model %s: unexpected status %d", spec.Name, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, spec.FileName+".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write model %s: %w", spec.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if spec.SHA256 != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if sum != spec.SHA256 {
			return "", fmt.Errorf("model %s checksum mismatch: got %s want %s", spec.Name, sum, spec.SHA256)
		}
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install model %s: %w", spec.Name, err)
	}

	logger.Vision("model_ready", "Model artifact installed", map[string]interface{}{
		"model": spec.Name,
		"path":  path,
	})

	return path, nil
}
