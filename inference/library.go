package inference

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// LibraryPathEnv overrides the location of the onnxruntime shared library.
const LibraryPathEnv = "ONNXRUNTIME_LIB"

// GetSharedLibPath returns the path to the onnxruntime shared library for the current platform.
//
// The ONNXRUNTIME_LIB environment variable wins over the bundled third_party layout.
//
// Returns:
//   - string: The path to the shared library.
//   - error: When no library is known for this GOOS/GOARCH.
func GetSharedLibPath() (string, error) {
	if path := os.Getenv(LibraryPathEnv); path != "" {
		return path, nil
	}
	return bundledLibPath(runtime.GOOS, runtime.GOARCH)
}

func bundledLibPath(goos, goarch string) (string, error) {
	switch goos {
	case "windows":
		if goarch == "amd64" {
			return "third_party/onnxruntime.dll", nil
		}
	case "darwin":
		if goarch == "arm64" {
			return "third_party/onnxruntime_arm64.dylib", nil
		}
		if goarch == "amd64" {
			return "third_party/onnxruntime_amd64.dylib", nil
		}
	case "linux":
		if goarch == "arm64" {
			return "third_party/onnxruntime_arm64.so", nil
		}
		return "third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library for %s/%s, set %s", goos, goarch, LibraryPathEnv)
}
