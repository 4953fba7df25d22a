package detector

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchorCount(t *testing.T) {
	// 80*80 + 40*40 + 20*20 for the standard 640 input.
	assert.Equal(t, 8400, anchorCount(640))
	assert.Equal(t, 2100, anchorCount(320))
}

// buildOutput lays candidates into a [1, 4+classes, anchors] tensor
// the way a YOLOv8 head emits them.
func buildOutput(anchors, classes int, cands []rawDetection) []float32 {
	features := 4 + classes
	data := make([]float32, features*anchors)
	for i, c := range cands {
		cx := (c.box[0] + c.box[2]) / 2
		cy := (c.box[1] + c.box[3]) / 2
		w := c.box[2] - c.box[0]
		h := c.box[3] - c.box[1]
		data[0*anchors+i] = cx
		data[1*anchors+i] = cy
		data[2*anchors+i] = w
		data[3*anchors+i] = h
		data[(4+c.class)*anchors+i] = c.score
	}
	return data
}

func TestDecodeOutputThresholdAndBoxes(t *testing.T) {
	cands := []rawDetection{
		{box: [4]float32{100, 100, 200, 200}, class: 0, score: 0.9},
		{box: [4]float32{300, 300, 340, 340}, class: 1, score: 0.4}, // below threshold
		{box: [4]float32{10, 20, 50, 80}, class: 1, score: 0.7},
	}
	data := buildOutput(100, 2, cands)

	got, err := decodeOutput(data, []int64{1, 6, 100}, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.InDelta(t, 100, got[0].box[0], 0.01)
	assert.InDelta(t, 200, got[0].box[3], 0.01)
	assert.Equal(t, 0, got[0].class)
	assert.Equal(t, 1, got[1].class)
	assert.InDelta(t, 0.7, got[1].score, 0.001)
}

func TestDecodeOutputRejectsBadShapes(t *testing.T) {
	_, err := decodeOutput(make([]float32, 10), []int64{1, 6}, 0.5)
	assert.Error(t, err)

	_, err = decodeOutput(make([]float32, 10), []int64{2, 6, 100}, 0.5)
	assert.Error(t, err)

	_, err = decodeOutput(make([]float32, 10), []int64{1, 4, 100}, 0.5)
	assert.Error(t, err, "zero classes is malformed")
}

func TestIOU(t *testing.T) {
	a := [4]float32{0, 0, 10, 10}
	assert.InDelta(t, 1.0, iou(a, a), 0.001)

	b := [4]float32{20, 20, 30, 30}
	assert.InDelta(t, 0.0, iou(a, b), 0.001)

	c := [4]float32{0, 0, 10, 5}
	assert.InDelta(t, 0.5, iou(a, c), 0.001)
}

func TestSuppressKeepsBestPerOverlapCluster(t *testing.T) {
	dets := []rawDetection{
		{box: [4]float32{0, 0, 10, 10}, class: 0, score: 0.6},
		{box: [4]float32{1, 1, 11, 11}, class: 0, score: 0.9},
		{box: [4]float32{0, 0, 10, 10}, class: 1, score: 0.5}, // other class survives
		{box: [4]float32{50, 50, 60, 60}, class: 0, score: 0.7},
	}

	kept := suppress(dets, 0.45)
	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].score, 0.001, "highest score first")

	classes := map[int]int{}
	for _, k := range kept {
		classes[k.class]++
	}
	assert.Equal(t, 2, classes[0])
	assert.Equal(t, 1, classes[1])
}

func TestSuppressDeterministicRegardlessOfInputOrder(t *testing.T) {
	forward := []rawDetection{
		{box: [4]float32{0, 0, 10, 10}, class: 0, score: 0.8},
		{box: [4]float32{30, 30, 40, 40}, class: 1, score: 0.8},
		{box: [4]float32{70, 70, 80, 80}, class: 0, score: 0.3},
	}
	backward := []rawDetection{forward[2], forward[1], forward[0]}

	a := suppress(append([]rawDetection(nil), forward...), 0.45)
	b := suppress(append([]rawDetection(nil), backward...), 0.45)
	assert.Equal(t, a, b)
}

func TestToDetectionsScalesAndOrders(t *testing.T) {
	raw := []rawDetection{
		{box: [4]float32{10, 10, 20, 20}, class: 1, score: 0.5},
		{box: [4]float32{0, 0, 10, 10}, class: 0, score: 0.9},
		{box: [4]float32{30, 30, 40, 40}, class: 2, score: 0.5},
	}
	labels := []string{"car", "person", "bicycle"}

	dets := toDetections(raw, labels, 2, 0.5)
	require.Len(t, dets, 3)

	assert.Equal(t, "car", dets[0].Label)
	assert.Equal(t, image.Rect(0, 0, 20, 5), dets[0].Box)

	// Equal confidence: ascending label order.
	assert.Equal(t, "bicycle", dets[1].Label)
	assert.Equal(t, "person", dets[2].Label)
}

func TestToDetectionsUnknownClass(t *testing.T) {
	raw := []rawDetection{{box: [4]float32{0, 0, 1, 1}, class: 7, score: 0.9}}
	dets := toDetections(raw, []string{"person"}, 1, 1)
	require.Len(t, dets, 1)
	assert.Equal(t, "unknown", dets[0].Label)
}

func TestChWTensorLayout(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			i := frame.PixOffset(x, y)
			frame.Pix[i] = 255   // R
			frame.Pix[i+1] = 0   // G
			frame.Pix[i+2] = 128 // B
			frame.Pix[i+3] = 255
		}
	}

	data := chwTensor(frame, 2)
	require.Len(t, data, 3*2*2)

	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, data[i], 0.01, "red plane")
		assert.InDelta(t, 0.0, data[4+i], 0.01, "green plane")
		assert.InDelta(t, 0.5, data[8+i], 0.01, "blue plane")
	}
}
