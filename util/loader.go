// Package util - Image file I/O for the detection tools.
package util

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/chai2010/webp"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// ImageExtensions are the file extensions LoadDirectoryImageFiles picks up.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from names like "frame-42.jpg", or -1.
	Frame int
}

// Name returns the file name without directory and extension.
func (f ImageFile) Name() string {
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load decodes the image file.
func (f ImageFile) Load() (image.Image, error) {
	return LoadImage(f.Path)
}

// LoadImage decodes a JPEG, PNG or WebP file.
func LoadImage(path string) (image.Image, error) {
	img, err := gg.LoadImage(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load image %s", path)
	}
	return img, nil
}

// SaveImage writes img to path as PNG, creating the parent directory if needed.
func SaveImage(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	if err := gg.SavePNG(path, img); err != nil {
		return errors.Wrapf(err, "save image %s", path)
	}
	return nil
}

// IsImageFile reports whether name has one of ImageExtensions, case-insensitively.
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range ImageExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// LoadDirectoryImageFiles lists the image files in a directory, without decoding them.
//
// Files named "frame-<n>.<ext>" are ordered by frame number and come first; all other
// images follow in name order. Subdirectories are not visited.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The image files in processing order.
// - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	files := []ImageFile{}
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		files = append(files, ImageFile{
			Path:  filepath.Join(dir, entry.Name()),
			Frame: frameNumber(entry.Name()),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		fi, fj := files[i].Frame, files[j].Frame
		switch {
		case fi >= 0 && fj >= 0:
			return fi < fj
		case fi >= 0 || fj >= 0:
			return fi >= 0
		}
		return files[i].Path < files[j].Path
	})

	return files, nil
}

func frameNumber(name string) int {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(stem, "frame-") {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(stem, "frame-"))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
