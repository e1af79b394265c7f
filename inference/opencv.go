package inference

import (
	"context"
	"os"
	"sync"
	"unsafe"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// Net runs an ONNX model through the OpenCV DNN module.
//
// A gocv.Net holds its input between SetInput and Forward, so calls are serialized.
type Net struct {
	mu     sync.Mutex
	net    gocv.Net
	cfg    Config
	log    logs.Log
	closed bool
}

// NewNet loads an ONNX model with OpenCV on the default backend and the CPU target.
func NewNet(cfg Config, log logs.Log) (*Net, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "ONNX model not found at %s", cfg.ModelPath)
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load %s with OpenCV", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	log.Infof("Loaded OpenCV DNN model %s", cfg.ModelPath)

	return &Net{
		net: net,
		cfg: cfg,
		log: log,
	}, nil
}

// Infer runs the network on input and returns a copy of the named output.
func (n *Net) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	data, shape, err := inputData(input)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("input tensor is empty")
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
	blob, err := gocv.NewMatWithSizesFromBytes(shape, gocv.MatTypeCV32F, raw)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input blob")
	}
	defer blob.Close()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, errors.New("OpenCV net is closed")
	}

	n.net.SetInput(blob, n.cfg.InputName)
	out := n.net.Forward(n.cfg.OutputName)
	defer out.Close()
	if out.Empty() {
		return nil, errors.New("OpenCV forward pass returned no output")
	}

	dims := out.Size()
	if len(dims) != 3 {
		return nil, errors.Errorf("unexpected OpenCV output dims %v", dims)
	}
	values := make([]float32, 0, dims[0]*dims[1]*dims[2])
	for b := 0; b < dims[0]; b++ {
		for c := 0; c < dims[1]; c++ {
			for i := 0; i < dims[2]; i++ {
				values = append(values, out.GetFloatAt3(b, c, i))
			}
		}
	}
	return outputTensor(dims, values)
}

// Close releases the network.
func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	if err := n.net.Close(); err != nil {
		return errors.Wrap(err, "error closing OpenCV net")
	}
	n.log.Infof("Closed OpenCV DNN model %s", n.cfg.ModelPath)
	return nil
}
