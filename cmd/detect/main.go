package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/render"
	"github.com/nvr-ai/go-detect/util"
)

// Output file names. In directory mode they are prefixed with the input file name.
const (
	annotatedName = "output.png"
	canvasName    = "processed.png"
)

type flags struct {
	image       *string
	dir         *string
	model       *string
	configFile  *string
	envFile     *string
	backend     *string
	size        *int
	confidence  *float64
	iou         *float64
	coordinates *string
	classFile   *string
	outputDir   *string
	clip        *bool
	canvas      *bool
	noAnnotate  *bool
	debug       *bool
}

func main() {
	logger, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	parser := argparse.NewParser("detect", "Run a YOLO ONNX model on images and print the detections")
	f := flags{
		image:       parser.String("i", "image", &argparse.Options{Help: "Input image file"}),
		dir:         parser.String("d", "dir", &argparse.Options{Help: "Directory of input images"}),
		model:       parser.String("m", "model", &argparse.Options{Help: "ONNX model file"}),
		configFile:  parser.String("c", "config", &argparse.Options{Help: "YAML config file"}),
		envFile:     parser.String("e", "env", &argparse.Options{Help: ".env file (default .env if present)"}),
		backend:     parser.String("b", "backend", &argparse.Options{Help: "Inference backend: onnx or opencv"}),
		size:        parser.Int("s", "size", &argparse.Options{Help: "Model input size (square)", Default: 0}),
		confidence:  parser.Float("t", "confidence", &argparse.Options{Help: "Confidence threshold", Default: -1.0}),
		iou:         parser.Float("n", "iou", &argparse.Options{Help: "NMS IoU threshold", Default: -1.0}),
		coordinates: parser.String("k", "coordinates", &argparse.Options{Help: "Box coordinate space: pixel or normalized"}),
		classFile:   parser.String("l", "labels", &argparse.Options{Help: "Class label file, one name per line"}),
		outputDir:   parser.String("o", "output", &argparse.Options{Help: "Output directory for images"}),
		clip:        parser.Flag("", "clip", &argparse.Options{Help: "Clamp boxes to the image bounds"}),
		canvas:      parser.Flag("", "canvas", &argparse.Options{Help: "Also write the letterboxed model input"}),
		noAnnotate:  parser.Flag("", "no-annotate", &argparse.Options{Help: "Do not write the annotated image"}),
		debug:       parser.Flag("", "debug", &argparse.Options{Help: "Log pipeline details"}),
	}
	if err := parser.Parse(os.Args); err != nil {
		logger.Errorf(parser.Usage(err))
		os.Exit(1)
	}
	if (*f.image == "") == (*f.dir == "") {
		logger.Errorf(parser.Usage("exactly one of --image or --dir is required"))
		os.Exit(1)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	classes := models.YOLOClasses
	if cfg.ClassFile != "" {
		if classes, err = models.LoadClassFile(cfg.ClassFile); err != nil {
			logger.Errorf("Failed to load class file: %v", err)
			os.Exit(1)
		}
	}

	engine, err := inference.NewEngine(cfg.Model, logger)
	if err != nil {
		logger.Errorf("Failed to load model '%v': %v", cfg.Model.ModelPath, err)
		os.Exit(1)
	}
	det := detector.New(engine, logger)
	defer det.Close()

	r := &runner{
		det:     det,
		cfg:     cfg,
		classes: classes,
		log:     logger,
		out:     os.Stdout,
	}

	if *f.image != "" {
		err = r.runFile(context.Background(), util.ImageFile{Path: *f.image, Frame: -1}, "")
	} else {
		err = r.runDir(context.Background(), *f.dir)
	}
	if err != nil {
		logger.Errorf("%v", err)
		det.Close()
		os.Exit(1)
	}
}

// loadConfig merges the config file, environment and command line flags. Flags win.
func loadConfig(f flags) (config.Config, error) {
	var envFiles []string
	if *f.envFile != "" {
		envFiles = append(envFiles, *f.envFile)
	}
	cfg, err := config.Load(*f.configFile, envFiles...)
	if err != nil {
		return cfg, err
	}

	if *f.model != "" {
		cfg.Model.ModelPath = *f.model
	}
	if *f.backend != "" {
		if cfg.Model.Backend, err = inference.ParseBackend(*f.backend); err != nil {
			return cfg, err
		}
	}
	if *f.coordinates != "" {
		if cfg.Detection.Coordinates, err = postprocess.ParseCoordinateSpace(*f.coordinates); err != nil {
			return cfg, err
		}
	}
	if *f.size > 0 {
		cfg.Detection.TargetSize = *f.size
	}
	if *f.confidence >= 0 {
		cfg.Detection.ConfidenceThreshold = float32(*f.confidence)
	}
	if *f.iou >= 0 {
		cfg.Detection.IoUThreshold = float32(*f.iou)
	}
	if *f.classFile != "" {
		cfg.ClassFile = *f.classFile
	}
	if *f.outputDir != "" {
		cfg.Output.Directory = *f.outputDir
	}
	cfg.Detection.Clip = cfg.Detection.Clip || *f.clip
	cfg.Detection.Debug = cfg.Detection.Debug || *f.debug
	cfg.Output.Canvas = cfg.Output.Canvas || *f.canvas
	if *f.noAnnotate {
		cfg.Output.Annotated = false
	}

	if err := cfg.Model.Validate(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Detection.Validate()
}

type runner struct {
	det     *detector.Detector
	cfg     config.Config
	classes *models.OutputClassSet
	log     logs.Log
	out     io.Writer
}

// runDir processes every image in dir in order. A failing image is logged and skipped.
func (r *runner) runDir(ctx context.Context, dir string) error {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no images found in %s", dir)
	}

	failed := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "# %s\n", file.Path)
		if err := r.runFile(ctx, file, file.Name()+"-"); err != nil {
			r.log.Warnf("Skipping %s: %v", file.Path, err)
			failed++
		}
	}
	r.log.Infof("Processed %d images, %d failed", len(files), failed)
	return nil
}

// runFile detects objects in one image, prints the report and writes the output images.
func (r *runner) runFile(ctx context.Context, file util.ImageFile, prefix string) error {
	img, err := file.Load()
	if err != nil {
		return err
	}

	result, err := r.det.Detect(ctx, img, r.cfg.Detection)
	if err != nil {
		return errors.Wrapf(err, "detect %s", file.Path)
	}
	r.log.Infof("%s: %d detections in %v (inference %v)",
		file.Path, len(result.Detections), result.Timings.Total(), result.Timings.Inference)

	var classes *models.OutputClassSet
	if r.cfg.ClassFile != "" {
		classes = r.classes
	}
	if err := render.Report(r.out, result.Detections, classes); err != nil {
		return err
	}

	return r.writeImages(result, prefix)
}

func (r *runner) writeImages(result *detector.Result, prefix string) error {
	dir := r.cfg.Output.Directory
	if r.cfg.Output.Annotated {
		// Detections are in source pixels whatever the model's coordinate space.
		annotated := render.Annotate(result.Source, result.Detections, r.classes)
		if err := util.SaveImage(filepath.Join(dir, prefix+annotatedName), annotated); err != nil {
			return err
		}
	}
	if r.cfg.Output.Canvas {
		if err := util.SaveImage(filepath.Join(dir, prefix+canvasName), result.Canvas); err != nil {
			return err
		}
	}
	return nil
}
