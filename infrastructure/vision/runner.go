// Package vision wraps the ONNX models the pipeline runs over media:
// face detection and embedding, object detection and scene
// classification, plus the tensor pre and post processing around them.
package vision

import "context"

// Runner executes a named model over an NCHW float32 tensor. Satisfied
// by inference.SessionCache; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, model string, input []float32, shape []int64) ([]float32, []int64, error)
	RunMulti(ctx context.Context, model string, input []float32, shape []int64) ([][]float32, [][]int64, error)
}
