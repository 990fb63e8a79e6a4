// Package inference manages ONNX Runtime sessions for the vision
// stages. Model artifacts are fetched once into a local cache dir and
// sessions are created lazily on first use, so workers that never run
// an ML stage pay nothing.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"pixvault/pkg/logger"
)

// ErrUnavailable marks model load failures (runtime missing, download
// failed). Callers degrade to empty results instead of retrying.
var ErrUnavailable = errors.New("model unavailable")

// SessionCache lazily creates and caches one ONNX session per model.
type SessionCache struct {
	modelDir string
	libPath  string

	initOnce sync.Once
	initErr  error

	mu       sync.Mutex
	sessions map[string]*modelSession
}

type modelSession struct {
	once    sync.Once
	err     error
	session *ort.DynamicAdvancedSession
	spec    ModelSpec
}

// NewSessionCache builds a cache rooted at modelDir. libPath points to
// the onnxruntime shared library; empty uses the loader default.
func NewSessionCache(modelDir, libPath string) *SessionCache {
	return &SessionCache{
		modelDir: modelDir,
		libPath:  libPath,
		sessions: make(map[string]*modelSession),
	}
}

func (c *SessionCache) initRuntime() error {
	c.initOnce.Do(func() {
		if c.libPath != "" {
			ort.SetSharedLibraryPath(c.libPath)
		}
		c.initErr = ort.InitializeEnvironment()
		if c.initErr == nil {
			logger.Vision("runtime_init", "ONNX runtime environment initialized", nil)
		}
	})
	return c.initErr
}

func (c *SessionCache) get(ctx context.Context, model string) (*modelSession, error) {
	c.mu.Lock()
	ms, ok := c.sessions[model]
	if !ok {
		spec, err := Spec(model)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		ms = &modelSession{spec: spec}
		c.sessions[model] = ms
	}
	c.mu.Unlock()

	ms.once.Do(func() {
		if err := c.initRuntime(); err != nil {
			ms.err = fmt.Errorf("%w: init onnx runtime: %v", ErrUnavailable, err)
			return
		}

		path, err := EnsureModel(ctx, c.modelDir, ms.spec)
		if err != nil {
			ms.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}

		session, err := ort.NewDynamicAdvancedSession(path,
			[]string{ms.spec.InputName}, ms.spec.OutputNames, nil)
		if err != nil {
			ms.err = fmt.Errorf("%w: create session for %s: %v", ErrUnavailable, model, err)
			return
		}
		ms.session = session

		logger.Vision("session_ready", "Model session created", map[string]interface{}{
			"model": model,
			"path":  path,
		})
	})

	if ms.err != nil {
		return nil, ms.err
	}
	return ms, nil
}

// Run executes the named model. input is laid out according to shape
// (NCHW for all registered models). The first output tensor's data and
// shape are returned; models with multiple outputs use RunMulti.
func (c *SessionCache) Run(ctx context.Context, model string, input []float32, shape []int64) ([]float32, []int64, error) {
	outs, shapes, err := c.RunMulti(ctx, model, input, shape)
	if err != nil {
		return nil, nil, err
	}
	return outs[0], shapes[0], nil
}

// RunMulti executes the named model and returns every output tensor.
func (c *SessionCache) RunMulti(ctx context.Context, model string, input []float32, shape []int64) ([][]float32, [][]int64, error) {
	ms, err := c.get(ctx, model)
	if err != nil {
		return nil, nil, err
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, len(ms.spec.OutputNames))
	if err := ms.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, nil, fmt.Errorf("run %s: %w", model, err)
	}

	data := make([][]float32, len(outputs))
	shapes := make([][]int64, len(outputs))
	for i, out := range outputs {
		tensor, ok := out.(*ort.Tensor[float32])
		if !ok {
			out.Destroy()
			return nil, nil, fmt.Errorf("run %s: output %d is not float32", model, i)
		}
		raw := tensor.GetData()
		data[i] = make([]float32, len(raw))
		copy(data[i], raw)
		shapes[i] = tensor.GetShape()
		tensor.Destroy()
	}

	return data, shapes, nil
}

// Close destroys all cached sessions and the runtime environment.
func (c *SessionCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, ms := range c.sessions {
		if ms.session != nil {
			ms.session.Destroy()
		}
		delete(c.sessions, name)
	}
	ort.DestroyEnvironment()
}
