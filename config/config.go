// Package config loads detection settings from a YAML file, .env files and the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Environment variables read by Load. They override values from the YAML file.
const (
	EnvModelPath   = "DETECT_MODEL_PATH"
	EnvBackend     = "DETECT_BACKEND"
	EnvTargetSize  = "DETECT_TARGET_SIZE"
	EnvConfidence  = "DETECT_CONFIDENCE"
	EnvIoU         = "DETECT_IOU"
	EnvCoordinates = "DETECT_COORDINATES"
	EnvClassFile   = "DETECT_CLASS_FILE"
	EnvOutputDir   = "DETECT_OUTPUT_DIR"
)

// OutputConfig controls what the command line tool writes.
type OutputConfig struct {
	// Directory receives the output images.
	Directory string `yaml:"directory"`
	// Annotated writes the source image with boxes and labels drawn on it.
	Annotated bool `yaml:"annotated"`
	// Canvas writes the letterboxed model input.
	Canvas bool `yaml:"canvas"`
}

// Config is the complete configuration of a detection run.
type Config struct {
	Model     inference.Config `yaml:"model"`
	Detection detector.Config  `yaml:"detection"`
	Output    OutputConfig     `yaml:"output"`
	// ClassFile is a label file with one class per line. Empty means the COCO labels.
	ClassFile string `yaml:"class_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:     inference.DefaultConfig(),
		Detection: detector.DefaultConfig(),
		Output: OutputConfig{
			Directory: ".",
			Annotated: true,
		},
	}
}

// Load builds a configuration from defaults, an optional YAML file and the environment.
//
// envFiles are loaded with godotenv before the environment is read. With no envFiles, a
// .env file in the working directory is loaded if present. Variables already set in the
// process environment are never overwritten by .env files.
//
// Arguments:
//   - path: The YAML file. Empty skips it.
//   - envFiles: .env files to load.
//
// Returns:
//   - Config: The merged configuration.
//   - error: If a file cannot be read or parsed, or the detection settings are invalid.
func Load(path string, envFiles ...string) (Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Detection.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return errors.Wrap(err, "load .env")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Model.ModelPath = getEnv(EnvModelPath, cfg.Model.ModelPath)
	cfg.Model.SharedLibraryPath = getEnv(inference.LibraryPathEnv, cfg.Model.SharedLibraryPath)
	cfg.ClassFile = getEnv(EnvClassFile, cfg.ClassFile)
	cfg.Output.Directory = getEnv(EnvOutputDir, cfg.Output.Directory)
	cfg.Detection.TargetSize = getEnvAsInt(EnvTargetSize, cfg.Detection.TargetSize)
	cfg.Detection.ConfidenceThreshold = getEnvAsFloat32(EnvConfidence, cfg.Detection.ConfidenceThreshold)
	cfg.Detection.IoUThreshold = getEnvAsFloat32(EnvIoU, cfg.Detection.IoUThreshold)

	if v := os.Getenv(EnvBackend); v != "" {
		backend, err := inference.ParseBackend(v)
		if err != nil {
			return errors.Wrap(err, EnvBackend)
		}
		cfg.Model.Backend = backend
	}
	if v := os.Getenv(EnvCoordinates); v != "" {
		coords, err := postprocess.ParseCoordinateSpace(v)
		if err != nil {
			return errors.Wrap(err, EnvCoordinates)
		}
		cfg.Detection.Coordinates = coords
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}
