// Package inference - Inference engine interface and implementations.
package inference

import (
	"context"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Engine runs a detector network: one [1, 3, S, S] float32 tensor in, one raw output tensor out.
//
// Infer blocks until the network finishes. Implementations do not observe ctx once the
// network is running.
type Engine interface {
	Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
	Close() error
}

// EngineFunc adapts a plain function to the Engine interface. Close is a no-op.
type EngineFunc func(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)

// Infer calls f(ctx, input).
func (f EngineFunc) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	return f(ctx, input)
}

// Close does nothing.
func (f EngineFunc) Close() error {
	return nil
}

// NewEngine opens the engine selected by cfg.Backend.
//
// Arguments:
//   - cfg: The engine configuration.
//   - log: Logger for load and close messages.
//
// Returns:
//   - Engine: The opened engine. The caller must Close it.
//   - error: If the backend is unknown or the model cannot be loaded.
func NewEngine(cfg Config, log logs.Log) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendONNX:
		return NewSession(cfg, log)
	case BackendOpenCV:
		return NewNet(cfg, log)
	}
	return nil, errors.Errorf("unknown backend %q", cfg.Backend)
}

// inputData returns the contiguous float32 data and shape of an input tensor.
func inputData(t *tensor.Dense) ([]float32, []int, error) {
	if t == nil {
		return nil, nil, errors.New("input tensor is nil")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, nil, errors.Errorf("input dtype %v, want float32", t.Dtype())
	}
	if t.IsView() {
		materialized, ok := t.Materialize().(*tensor.Dense)
		if !ok {
			return nil, nil, errors.New("cannot materialize input view")
		}
		t = materialized
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, nil, errors.New("input backing data is not []float32")
	}
	return data, []int(t.Shape().Clone()), nil
}

// outputTensor copies engine-owned output memory into a new tensor.
func outputTensor(shape []int, data []float32) (*tensor.Dense, error) {
	size := 1
	for _, d := range shape {
		size *= d
	}
	if len(shape) == 0 || len(data) < size {
		return nil, errors.Errorf("output shape %v does not match %d values", shape, len(data))
	}
	backing := make([]float32, size)
	copy(backing, data)
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing)), nil
}
