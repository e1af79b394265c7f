// Package inference - Inference sessions.
package inference

import (
	"context"
	"os"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// The onnxruntime environment is process wide. Sessions share it and the last one to
// close tears it down.
var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "error initializing ORT environment")
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	envRefs--
	if envRefs > 0 || !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// releaseAfter runs release and returns err, annotated with the release error if any.
func releaseAfter(err error, release func() error) error {
	if relErr := release(); relErr != nil {
		return errors.Wrapf(err, "also failed to destroy ORT environment (%v)", relErr)
	}
	return err
}

// Session represents a model session from the onnxruntime.
//
// The underlying dynamic session allocates its output on every call, so Infer is safe
// for concurrent use.
type Session struct {
	session *ort.DynamicAdvancedSession
	cfg     Config
	log     logs.Log
	once    sync.Once
}

// NewSession loads an ONNX model with onnxruntime.
//
// Arguments:
//   - cfg: The engine configuration. Backend is ignored.
//   - log: Logger for load and close messages.
//
// Returns:
//   - *Session: The session.
//   - error: If the shared library or the model cannot be loaded.
func NewSession(cfg Config, log logs.Log) (*Session, error) {
	libPath := cfg.SharedLibraryPath
	if libPath == "" {
		var err error
		if libPath, err = GetSharedLibPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "ONNX model not found at %s", cfg.ModelPath)
	}

	if err := acquireEnvironment(libPath); err != nil {
		return nil, err
	}

	session, err := newDynamicSession(cfg)
	if err != nil {
		return nil, releaseAfter(err, releaseEnvironment)
	}

	log.Infof("Loaded ONNX model %s (input %q, output %q)", cfg.ModelPath, cfg.InputName, cfg.OutputName)

	return &Session{
		session: session,
		cfg:     cfg,
		log:     log,
	}, nil
}

func newDynamicSession(cfg Config) (*ort.DynamicAdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, errors.Wrap(err, "error setting intra-op threads")
		}
	}
	if cfg.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
			return nil, errors.Wrap(err, "error setting inter-op threads")
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		options,
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	return session, nil
}

// Infer runs the network on input and returns a copy of its first output.
func (s *Session) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	data, shape, err := inputData(input)
	if err != nil {
		return nil, err
	}

	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	in, err := ort.NewTensor(ort.NewShape(dims...), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("unexpected output type %T", outputs[0])
	}

	outShape := make([]int, len(out.GetShape()))
	for i, d := range out.GetShape() {
		outShape[i] = int(d)
	}
	return outputTensor(outShape, out.GetData())
}

// Close releases the session, and the environment once no session uses it.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		if destroyErr := s.session.Destroy(); destroyErr != nil {
			err = errors.Wrap(destroyErr, "error destroying ORT session")
		}
		if envErr := releaseEnvironment(); envErr != nil && err == nil {
			err = errors.Wrap(envErr, "error destroying ORT environment")
		}
		s.log.Infof("Closed ONNX model %s", s.cfg.ModelPath)
	})
	return err
}
