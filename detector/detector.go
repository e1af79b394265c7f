// Package detector runs the full single-image detection pipeline around an inference engine.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/models/preprocess"
)

// Timings records how long each stage of a Detect call took.
type Timings struct {
	Preprocess  time.Duration `json:"preprocess"`
	Inference   time.Duration `json:"inference"`
	PostProcess time.Duration `json:"post_process"`
}

// Total is the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Preprocess + t.Inference + t.PostProcess
}

// Result is the outcome of one Detect call.
type Result struct {
	// Source is the original image, untouched. Detections are in its coordinates.
	Source image.Image
	// Canvas is the letterboxed model input.
	Canvas *image.RGBA
	// Params is the letterbox mapping used for the call.
	Params images.LetterboxParams
	// Candidates is the number of columns that passed the confidence threshold.
	Candidates int
	// Detections are the final detections, grouped by class in first-appearance order,
	// each group in descending score order.
	Detections []postprocess.Detection
	Timings    Timings
}

// Detector wires letterboxing, inference, decoding, suppression and rescaling together.
//
// A Detector holds no per-call state. It is safe for concurrent use when its engine is.
type Detector struct {
	engine inference.Engine
	log    logs.Log
}

// New creates a detector around engine. log may be nil, which disables debug output.
func New(engine inference.Engine, log logs.Log) *Detector {
	return &Detector{
		engine: engine,
		log:    log,
	}
}

// Detect finds objects in img.
//
// The context is checked once before inference starts. Inference itself is not
// interruptible.
//
// Arguments:
//   - ctx: Cancels the call before inference.
//   - img: The source image. Never modified.
//   - cfg: The per-call settings.
//
// Returns:
//   - *Result: Detections in source image coordinates, plus the intermediate canvas.
//   - error: ErrInvalidConfig, images.ErrInvalidDimensions, postprocess.ErrMalformedOutput,
//     ctx.Err() or a wrapped engine error.
//
// @example
// det := detector.New(engine, logger)
// result, err := det.Detect(ctx, frame, detector.DefaultConfig())
//
//	if err != nil {
//	    return err
//	}
//
// render.Report(os.Stdout, result.Detections, models.YOLOClasses)
func (d *Detector) Detect(ctx context.Context, img image.Image, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var timings Timings
	start := time.Now()

	pre := preprocess.NewPreprocessor(cfg.TargetSize, d.log)
	pre.SetDebugMode(cfg.Debug)
	input, err := pre.Preprocess(img)
	if err != nil {
		return nil, err
	}
	params := input.Letterbox.Params
	timings.Preprocess = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	output, err := d.engine.Infer(ctx, input.Tensor)
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	timings.Inference = time.Since(start)

	start = time.Now()

	candidates, err := postprocess.Decode(output, cfg.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	kept := postprocess.ApplyNMS(candidates, cfg.NMS())
	final := postprocess.Rescale(kept, params, cfg.Rescale())
	timings.PostProcess = time.Since(start)

	if cfg.Debug {
		d.debugf("Output %v: %d candidates above %.2f, %d after NMS at IoU %.2f",
			output.Shape(), len(candidates), cfg.ConfidenceThreshold, len(kept), cfg.IoUThreshold)
		d.debugf("Timings: preprocess %v, inference %v, postprocess %v",
			timings.Preprocess, timings.Inference, timings.PostProcess)
	}

	return &Result{
		Source:     input.Letterbox.Source,
		Canvas:     input.Letterbox.Canvas,
		Params:     params,
		Candidates: len(candidates),
		Detections: final,
		Timings:    timings,
	}, nil
}

func (d *Detector) debugf(format string, args ...any) {
	if d.log != nil {
		d.log.Debugf(format, args...)
	}
}

// Close closes the underlying engine.
func (d *Detector) Close() error {
	return d.engine.Close()
}
