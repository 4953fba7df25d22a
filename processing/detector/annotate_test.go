package detector

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/models"
)

func grayFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x7f
	}
	return img
}

func clonePix(img *image.RGBA) []byte {
	return append([]byte(nil), img.Pix...)
}

func TestAnnotateNoDetectionsIsNoOp(t *testing.T) {
	frame := grayFrame(32, 32)
	before := clonePix(frame)

	out := Annotate(frame, nil, DefaultStyle())

	assert.Same(t, frame, out)
	assert.Equal(t, before, out.Pix, "empty detections must leave pixels untouched")
}

func TestAnnotateDrawsBox(t *testing.T) {
	frame := grayFrame(64, 64)
	style := DefaultStyle()
	style.ShowLabels = false

	dets := []models.Detection{{Box: image.Rect(10, 10, 30, 30), Label: "person", Confidence: 0.9}}
	out := Annotate(frame, dets, style)

	assert.Equal(t, style.BoxColor, out.RGBAAt(10, 10), "box corner painted")
	assert.Equal(t, style.BoxColor, out.RGBAAt(20, 10), "top edge painted")
	assert.Equal(t, color.RGBA{0x7f, 0x7f, 0x7f, 0x7f}, out.RGBAAt(20, 20), "interior untouched")
}

func TestAnnotateClipsOutOfBoundsBoxes(t *testing.T) {
	style := DefaultStyle()

	cases := []struct {
		name string
		box  image.Rectangle
	}{
		{"beyond right and bottom", image.Rect(24, 24, 200, 200)},
		{"negative origin", image.Rect(-50, -50, 10, 10)},
		{"fully outside", image.Rect(100, 100, 220, 220)},
		{"degenerate inverted", image.Rect(30, 30, 30, 30)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := grayFrame(32, 32)
			assert.NotPanics(t, func() {
				Annotate(frame, []models.Detection{{Box: tc.box, Label: "person", Confidence: 0.5}}, style)
			})
		})
	}
}

func TestAnnotateDeterministic(t *testing.T) {
	dets := []models.Detection{
		{Box: image.Rect(5, 5, 25, 25), Label: "car", Confidence: 0.8},
		{Box: image.Rect(2, 28, 60, 60), Label: "dog", Confidence: 0.6},
	}
	style := DefaultStyle()

	a := Annotate(grayFrame(64, 64), dets, style)
	b := Annotate(grayFrame(64, 64), dets, style)

	require.Equal(t, a.Pix, b.Pix, "same frame + same detections must be pixel-identical")
}

func TestAnnotateLabelNearTopEdgeStaysInBounds(t *testing.T) {
	frame := grayFrame(64, 64)
	dets := []models.Detection{{Box: image.Rect(0, 0, 20, 20), Label: "person", Confidence: 1.0}}

	assert.NotPanics(t, func() {
		Annotate(frame, dets, DefaultStyle())
	})
}
