// Package models - Output class labels for detection models.
package models

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet is the ordered list of labels a model was trained on.
type OutputClassSet struct {
	// Classes indexed by the model's class index.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewOutputClassSet builds a class set from names ordered by class index.
func NewOutputClassSet(names []string) *OutputClassSet {
	s := &OutputClassSet{
		Classes:   make([]OutputClass, len(names)),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, name := range names {
		s.Classes[i] = OutputClass{Index: i, Name: name}
		if _, dup := s.nameToIdx[name]; !dup {
			s.nameToIdx[name] = i
		}
	}
	return s
}

// Len returns the number of classes.
func (s *OutputClassSet) Len() int {
	return len(s.Classes)
}

// Name returns the label for idx. Indices the set does not know about yield "class_<idx>",
// so a model with more outputs than labels still produces readable results.
func (s *OutputClassSet) Name(idx int) string {
	if s == nil || idx < 0 || idx >= len(s.Classes) {
		return fmt.Sprintf("class_%d", idx)
	}
	return s.Classes[idx].Name
}

// Index returns the class index for name.
func (s *OutputClassSet) Index(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("class %q not found", name)
	}
	return idx, nil
}

// Names returns the labels in index order.
func (s *OutputClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// LoadClassFile reads a class set from a text file with one label per line.
// Blank lines are skipped.
func LoadClassFile(filename string) (*OutputClassSet, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open class file")
	}
	defer f.Close()

	names := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read class file %s", filename)
	}
	if len(names) == 0 {
		return nil, errors.Errorf("class file %s has no labels", filename)
	}
	return NewOutputClassSet(names), nil
}

// cocoNames are the 80 COCO labels in YOLO order, without a background class.
var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// YOLOClasses is the 80 COCO classes (no background).
// YOLO models index directly into this zero-based list.
var YOLOClasses = NewOutputClassSet(cocoNames)
