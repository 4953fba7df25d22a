package detector

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"skywatch/internal/models"
)

// anchorCount returns the number of prediction anchors a YOLOv8 head
// emits for a square input: one per cell at strides 8, 16 and 32
// (8400 for the standard 640 input).
func anchorCount(inputSize int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		c := inputSize / stride
		n += c * c
	}
	return n
}

// chwTensor resizes the frame to the model's square input and lays it
// out as CHW float32 normalized to [0,1].
func chwTensor(frame *image.RGBA, inputSize int) []float32 {
	resized := imaging.Resize(frame, inputSize, inputSize, imaging.Linear)

	data := make([]float32, 3*inputSize*inputSize)
	plane := inputSize * inputSize
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			i := resized.PixOffset(x, y)
			data[0*plane+y*inputSize+x] = float32(resized.Pix[i]) / 255.0
			data[1*plane+y*inputSize+x] = float32(resized.Pix[i+1]) / 255.0
			data[2*plane+y*inputSize+x] = float32(resized.Pix[i+2]) / 255.0
		}
	}
	return data
}

// rawDetection is a decoded candidate in model-input coordinates.
type rawDetection struct {
	box   [4]float32 // x1, y1, x2, y2
	class int
	score float32
}

// decodeOutput parses a [1, 4+C, N] YOLOv8 output tensor: per anchor a
// center-format box followed by C class scores. Candidates below the
// confidence threshold are dropped.
func decodeOutput(data []float32, shape []int64, threshold float32) ([]rawDetection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, errors.Errorf("unsupported output shape %v", shape)
	}
	features := int(shape[1])
	anchors := int(shape[2])
	classes := features - 4
	if classes <= 0 || len(data) < features*anchors {
		return nil, errors.Errorf("malformed output: %d features, %d values", features, len(data))
	}

	at := func(feature, anchor int) float32 { return data[feature*anchors+anchor] }

	var dets []rawDetection
	for i := 0; i < anchors; i++ {
		best, bestClass := float32(0), 0
		for c := 0; c < classes; c++ {
			if s := at(4+c, i); s > best {
				best, bestClass = s, c
			}
		}
		if best < threshold {
			continue
		}

		cx, cy := at(0, i), at(1, i)
		w, h := at(2, i), at(3, i)
		dets = append(dets, rawDetection{
			box:   [4]float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
			class: bestClass,
			score: best,
		})
	}
	return dets, nil
}

// suppress applies greedy non-max suppression per class. Input order
// does not matter: candidates are sorted by score first (ties by class
// then geometry) so the result is reproducible.
func suppress(dets []rawDetection, iouThreshold float32) []rawDetection {
	if len(dets) == 0 {
		return dets
	}
	sort.SliceStable(dets, func(i, j int) bool {
		if dets[i].score != dets[j].score {
			return dets[i].score > dets[j].score
		}
		if dets[i].class != dets[j].class {
			return dets[i].class < dets[j].class
		}
		return dets[i].box[0] < dets[j].box[0]
	})

	keep := dets[:0:0]
	for _, d := range dets {
		suppressed := false
		for _, k := range keep {
			if k.class == d.class && iou(k.box, d.box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			keep = append(keep, d)
		}
	}
	return keep
}

func iou(a, b [4]float32) float32 {
	interX1 := max32(a[0], b[0])
	interY1 := max32(a[1], b[1])
	interX2 := min32(a[2], b[2])
	interY2 := min32(a[3], b[3])

	inter := max32(0, interX2-interX1) * max32(0, interY2-interY1)
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	return inter / (areaA + areaB - inter + 1e-6)
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// toDetections scales raw candidates into frame pixel coordinates and
// orders them by descending confidence, ties by ascending label.
func toDetections(raw []rawDetection, labels []string, scaleX, scaleY float32) []models.Detection {
	dets := make([]models.Detection, 0, len(raw))
	for _, r := range raw {
		label := "unknown"
		if r.class >= 0 && r.class < len(labels) {
			label = labels[r.class]
		}
		dets = append(dets, models.Detection{
			Box: image.Rect(
				int(r.box[0]*scaleX), int(r.box[1]*scaleY),
				int(r.box[2]*scaleX), int(r.box[3]*scaleY),
			),
			Label:      label,
			Confidence: r.score,
		})
	}
	models.Sort(dets)
	return dets
}
