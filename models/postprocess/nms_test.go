package postprocess

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/images"
)

func det(class int, score, x1, y1, x2, y2 float32) Detection {
	return Detection{Box: images.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Score: score, Class: class}
}

func TestApplyNMS_WithinClassDuplicate(t *testing.T) {
	a := det(0, 0.9, 0, 0, 10, 10)
	b := det(0, 0.8, 0, 0, 10, 6) // IoU with a is 0.6
	require.InDelta(t, 0.6, images.IoU(a.Box, b.Box), 1e-6)

	kept := ApplyNMS([]Detection{b, a}, NMSConfig{IoUThreshold: 0.45})
	assert.Equal(t, []Detection{a}, kept)
}

func TestApplyNMS_CrossClassIndependence(t *testing.T) {
	a := det(0, 0.9, 0, 0, 10, 10)
	b := det(1, 0.8, 0, 0, 10, 10)

	kept := ApplyNMS([]Detection{a, b}, NMSConfig{IoUThreshold: 0.45})
	assert.Equal(t, []Detection{a, b}, kept)
}

func TestApplyNMS_ThresholdIsInclusive(t *testing.T) {
	a := det(3, 0.9, 0, 0, 10, 10)
	b := det(3, 0.8, 0, 0, 10, 5) // IoU 0.5

	assert.Equal(t, []Detection{a}, ApplyNMS([]Detection{a, b}, NMSConfig{IoUThreshold: 0.5}))
	assert.Equal(t, []Detection{a, b}, ApplyNMS([]Detection{a, b}, NMSConfig{IoUThreshold: 0.51}))
}

func TestApplyNMS_ClassOrderByFirstAppearance(t *testing.T) {
	input := []Detection{
		det(2, 0.5, 0, 0, 10, 10),
		det(0, 0.6, 20, 20, 30, 30),
		det(2, 0.9, 40, 40, 50, 50),
		det(1, 0.7, 60, 60, 70, 70),
	}

	kept := ApplyNMS(input, NMSConfig{IoUThreshold: 0.45})
	require.Len(t, kept, 4)
	assert.Equal(t, []int{2, 2, 0, 1}, classesOf(kept))
	// Within a class, highest score first.
	assert.Equal(t, float32(0.9), kept[0].Score)
	assert.Equal(t, float32(0.5), kept[1].Score)
}

func TestApplyNMS_StableForEqualScores(t *testing.T) {
	first := det(0, 0.7, 0, 0, 10, 10)
	second := det(0, 0.7, 100, 100, 110, 110)
	third := det(0, 0.7, 1, 1, 11, 11) // overlaps first heavily

	kept := ApplyNMS([]Detection{first, second, third}, NMSConfig{IoUThreshold: 0.45})
	assert.Equal(t, []Detection{first, second}, kept)
}

func TestApplyNMS_EmptyInput(t *testing.T) {
	kept := ApplyNMS(nil, DefaultNMSConfig())
	assert.NotNil(t, kept)
	assert.Empty(t, kept)

	kept = ApplyNMS([]Detection{}, DefaultNMSConfig())
	assert.Empty(t, kept)
}

func TestApplyNMS_DegenerateBoxes(t *testing.T) {
	good := det(0, 0.9, 0, 0, 10, 10)
	zero := det(0, 0.8, 5, 5, 5, 5)
	inverted := det(0, 0.7, 10, 10, 0, 0)

	kept := ApplyNMS([]Detection{good, zero, inverted}, DefaultNMSConfig())
	assert.Equal(t, []Detection{good, zero, inverted}, kept)
}

func TestApplyNMS_NonPositiveThresholdKeepsBestPerClass(t *testing.T) {
	input := []Detection{
		det(0, 0.5, 0, 0, 10, 10),
		det(0, 0.9, 500, 500, 510, 510),
		det(1, 0.4, 0, 0, 1, 1),
	}

	for _, threshold := range []float32{0, -1} {
		kept := ApplyNMS(input, NMSConfig{IoUThreshold: threshold})
		assert.Equal(t, []Detection{input[1], input[2]}, kept)
	}
}

func TestApplyNMS_DoesNotModifyInput(t *testing.T) {
	input := randomDetections(rand.New(rand.NewSource(7)), 50, 3)
	snapshot := append([]Detection(nil), input...)

	_ = ApplyNMS(input, DefaultNMSConfig())
	assert.Equal(t, snapshot, input)
}

func TestApplyNMS_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{5, 40, 400} {
		input := randomDetections(rng, n, 4)
		once := ApplyNMS(input, DefaultNMSConfig())
		twice := ApplyNMS(once, DefaultNMSConfig())
		assert.Equal(t, once, twice, "n=%d", n)
	}
}

func TestApplyNMS_IndexMatchesExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, threshold := range []float32{0.1, 0.45, 0.7} {
		input := randomDetections(rng, 300, 2)
		got := ApplyNMS(input, NMSConfig{IoUThreshold: threshold})
		assert.Equal(t, exhaustiveNMS(input, threshold), got, "threshold=%v", threshold)
	}
}

func TestApplyNMS_SurvivorsDoNotOverlap(t *testing.T) {
	const threshold = 0.45
	kept := ApplyNMS(randomDetections(rand.New(rand.NewSource(9)), 500, 3), NMSConfig{IoUThreshold: threshold})

	for i := range kept {
		for j := i + 1; j < len(kept); j++ {
			if kept[i].Class == kept[j].Class {
				assert.Less(t, images.IoU(kept[i].Box, kept[j].Box), float32(threshold))
			}
		}
	}
}

func BenchmarkApplyNMS(b *testing.B) {
	for _, n := range []int{20, 200, 2000} {
		input := randomDetections(rand.New(rand.NewSource(42)), n, 5)
		b.Run(sizeName(n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = ApplyNMS(input, DefaultNMSConfig())
			}
		})
	}
}

func randomDetections(rng *rand.Rand, n, classes int) []Detection {
	dets := make([]Detection, n)
	for i := range dets {
		x := rng.Float32() * 600
		y := rng.Float32() * 600
		w := 10 + rng.Float32()*80
		h := 10 + rng.Float32()*80
		dets[i] = Detection{
			Box:   images.Box{X1: x, Y1: y, X2: x + w, Y2: y + h},
			Score: 0.05 + rng.Float32()*0.95,
			Class: rng.Intn(classes),
		}
	}
	return dets
}

// exhaustiveNMS is a direct O(n^2) greedy reference, grouped by first appearance.
func exhaustiveNMS(input []Detection, threshold float32) []Detection {
	var order []int
	groups := map[int][]Detection{}
	for _, d := range input {
		if _, ok := groups[d.Class]; !ok {
			order = append(order, d.Class)
		}
		groups[d.Class] = append(groups[d.Class], d)
	}

	out := []Detection{}
	for _, class := range order {
		group := groups[class]
		// Insertion sort keeps equal scores in input order.
		for i := 1; i < len(group); i++ {
			for j := i; j > 0 && group[j].Score > group[j-1].Score; j-- {
				group[j], group[j-1] = group[j-1], group[j]
			}
		}
		removed := make([]bool, len(group))
		for i := range group {
			if removed[i] {
				continue
			}
			out = append(out, group[i])
			for j := i + 1; j < len(group); j++ {
				if !removed[j] && images.IoU(group[i].Box, group[j].Box) >= threshold {
					removed[j] = true
				}
			}
		}
	}
	return out
}

func classesOf(dets []Detection) []int {
	out := make([]int, len(dets))
	for i, d := range dets {
		out[i] = d.Class
	}
	return out
}

func sizeName(n int) string {
	switch {
	case n >= 1000:
		return "large"
	case n >= 100:
		return "medium"
	}
	return "small"
}
