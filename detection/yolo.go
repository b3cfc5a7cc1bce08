package detection

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// ErrUnexpectedOutput is returned when the network output does not have the YOLO layout
var ErrUnexpectedOutput = errors.New("unexpected network output")

// candidate is a raw box before suppression
type candidate struct {
	box     image.Rectangle
	classID int
	score   float32
}

// decodeYOLO reads a [4+classes, anchors] row-major tensor where the first four
// attributes are cx, cy, w, h in network input pixels. Boxes are scaled back to
// frame pixels.
func decodeYOLO(data []float32, attrs, anchors int, scaleX, scaleY, minScore float64) ([]candidate, error) {
	if attrs < 5 || anchors <= 0 {
		return nil, fmt.Errorf("%w: %d attributes x %d anchors", ErrUnexpectedOutput, attrs, anchors)
	}
	if len(data) < attrs*anchors {
		return nil, fmt.Errorf("%w: %d values for %d attributes x %d anchors", ErrUnexpectedOutput, len(data), attrs, anchors)
	}

	value := func(attr, anchor int) float32 {
		return data[attr*anchors+anchor]
	}

	var out []candidate
	for a := 0; a < anchors; a++ {
		bestClass, bestScore := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := value(c, a); s > bestScore {
				bestClass, bestScore = c-4, s
			}
		}
		if bestClass < 0 || float64(bestScore) < minScore {
			continue
		}

		cx := float64(value(0, a)) * scaleX
		cy := float64(value(1, a)) * scaleY
		w := float64(value(2, a)) * scaleX
		h := float64(value(3, a)) * scaleY

		box := image.Rect(
			int(math.Round(cx-w/2)),
			int(math.Round(cy-h/2)),
			int(math.Round(cx+w/2)),
			int(math.Round(cy+h/2)),
		)
		if box.Empty() {
			continue
		}
		out = append(out, candidate{box: box, classID: bestClass, score: bestScore})
	}
	return out, nil
}

// suppress performs greedy per-class non-maximum suppression, highest score first
func suppress(candidates []candidate, threshold float64) []candidate {
	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	var kept []candidate
	for _, c := range sorted {
		overlapping := false
		for _, k := range kept {
			if k.classID == c.classID && IoU(k.box, c.box) > threshold {
				overlapping = true
				break
			}
		}
		if !overlapping {
			kept = append(kept, c)
		}
	}
	return kept
}

// IoU returns the intersection over union of two boxes
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}
