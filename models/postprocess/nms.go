package postprocess

import (
	"slices"

	flatbush "github.com/bmharper/flatbush-go"

	"github.com/nvr-ai/go-detect/images"
)

// indexThreshold is the partition size above which overlap queries go through a spatial index.
const indexThreshold = 32

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold suppresses a box whose IoU with a kept box of the same class is >= this value.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
}

// DefaultNMSConfig returns the standard YOLO suppression threshold.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: 0.45}
}

// ApplyNMS filters overlapping detections using class-aware greedy Non-Maximum Suppression.
//
// Detections are partitioned by class and each partition is processed on its own, so boxes
// of different classes never suppress each other. Within a partition, detections are
// ordered by descending score (stable, so equal scores keep candidate order) and the best
// remaining box repeatedly suppresses every other box with IoU >= IoUThreshold.
//
// The input slice is not modified.
//
// Arguments:
//   - detections: Candidate detections in any order.
//   - config: NMS configuration.
//
// Returns:
//   - The kept detections, grouped by class in order of each class's first appearance in
//     detections, each group in descending score order. Empty, never nil, for empty input.
func ApplyNMS(detections []Detection, config NMSConfig) []Detection {
	kept := make([]Detection, 0, len(detections))
	for _, partition := range partitionByClass(detections) {
		kept = append(kept, suppress(partition, config.IoUThreshold)...)
	}
	return kept
}

// partitionByClass returns fresh per-class slices in order of first appearance.
func partitionByClass(detections []Detection) [][]Detection {
	index := make(map[int]int)
	partitions := make([][]Detection, 0)
	for _, d := range detections {
		i, ok := index[d.Class]
		if !ok {
			i = len(partitions)
			index[d.Class] = i
			partitions = append(partitions, nil)
		}
		partitions[i] = append(partitions[i], d)
	}
	return partitions
}

// suppress runs greedy NMS over detections of a single class. It sorts the slice in place.
func suppress(detections []Detection, threshold float32) []Detection {
	slices.SortStableFunc(detections, func(a, b Detection) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(detections) <= 1 {
		return detections
	}
	// Every IoU is >= a non-positive threshold, so the best box suppresses all the others.
	if threshold <= 0 {
		return detections[:1]
	}

	var overlapping func(i int) []int
	if len(detections) > indexThreshold {
		overlapping = spatialIndex(detections)
	} else {
		overlapping = func(i int) []int {
			all := make([]int, 0, len(detections)-i-1)
			for j := i + 1; j < len(detections); j++ {
				all = append(all, j)
			}
			return all
		}
	}

	suppressed := make([]bool, len(detections))
	kept := make([]Detection, 0, len(detections))
	for i, best := range detections {
		if suppressed[i] {
			continue
		}
		kept = append(kept, best)
		for _, j := range overlapping(i) {
			if j <= i || suppressed[j] {
				continue
			}
			if images.IoU(best.Box, detections[j].Box) >= threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// spatialIndex builds a flatbush over the boxes and returns a query for the boxes whose
// bounds touch box i. Any pair with a positive intersection is always returned.
func spatialIndex(detections []Detection) func(i int) []int {
	bounds := func(b images.Box) (float64, float64, float64, float64) {
		return float64(min(b.X1, b.X2)), float64(min(b.Y1, b.Y2)),
			float64(max(b.X1, b.X2)), float64(max(b.Y1, b.Y2))
	}

	fb := flatbush.NewFlatbush[float64]()
	fb.Reserve(len(detections))
	for _, d := range detections {
		fb.Add(bounds(d.Box))
	}
	fb.Finish()

	return func(i int) []int {
		return fb.Search(bounds(detections[i].Box))
	}
}
