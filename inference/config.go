package inference

import (
	"strings"

	"github.com/pkg/errors"
)

// Backend is the type of the engine.
type Backend string

const (
	// BackendONNX is the ONNX engine that uses the onnxruntime library.
	BackendONNX Backend = "onnx"
	// BackendOpenCV is the OpenCV DNN engine that uses gocv.
	BackendOpenCV Backend = "opencv"
)

// Backends is a list of all supported backends.
var Backends = []Backend{BackendONNX, BackendOpenCV}

// ParseBackend parses a backend name, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", errors.Errorf("unknown backend %q", s)
}

// Config describes how to load a detector network.
type Config struct {
	// Backend selects the runtime.
	Backend Backend `json:"backend" yaml:"backend"`
	// ModelPath is the path to the .onnx file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibraryPath is the onnxruntime library. Empty means GetSharedLibPath.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// InputName is the name of the network input.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName is the name of the network output.
	OutputName string `json:"output_name" yaml:"output_name"`
	// IntraOpThreads parallelizes execution within graph nodes. 0 uses the runtime default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads parallelizes execution across graph nodes. 0 uses the runtime default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
}

// DefaultConfig returns the settings of an Ultralytics YOLO ONNX export.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendONNX,
		InputName:  "images",
		OutputName: "output0",
	}
}

// Validate checks that the config can be used to open an engine.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.Errorf("thread counts must be >= 0, got %d/%d", c.IntraOpThreads, c.InterOpThreads)
	}
	return nil
}
