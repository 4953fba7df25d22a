package detector

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"skywatch/internal/models"
)

// Style fixes the drawing parameters so annotation is a pure function
// of frame + detections.
type Style struct {
	BoxColor   color.RGBA
	TextColor  color.RGBA
	Thickness  int
	ShowLabels bool
}

func DefaultStyle() Style {
	return Style{
		BoxColor:   color.RGBA{0, 255, 0, 255},
		TextColor:  color.RGBA{0, 255, 0, 255},
		Thickness:  3,
		ShowLabels: true,
	}
}

// Annotate draws detection overlays onto img in place and returns it.
// With no detections the frame is returned untouched. Boxes extending
// beyond the frame are clipped, never an error.
func Annotate(img *image.RGBA, dets []models.Detection, style Style) *image.RGBA {
	if len(dets) == 0 {
		return img
	}
	for _, d := range dets {
		drawRect(img, d.Box, style.BoxColor, style.Thickness)
		if style.ShowLabels {
			drawLabel(img, d, style)
		}
	}
	return img
}

func drawRect(img *image.RGBA, box image.Rectangle, col color.RGBA, thickness int) {
	bounds := img.Bounds()
	set := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.SetRGBA(x, y, col)
		}
	}

	for t := 0; t < thickness; t++ {
		for x := box.Min.X; x <= box.Max.X; x++ {
			set(x, box.Min.Y+t)
			set(x, box.Max.Y-t)
		}
		for y := box.Min.Y; y <= box.Max.Y; y++ {
			set(box.Min.X+t, y)
			set(box.Max.X-t, y)
		}
	}
}

func drawLabel(img *image.RGBA, d models.Detection, style Style) {
	face := basicfont.Face7x13
	text := fmt.Sprintf("%s %.0f%%", d.Label, d.Confidence*100)

	x := d.Box.Min.X
	y := d.Box.Min.Y - 4
	if y-face.Ascent < img.Bounds().Min.Y {
		// No room above the box: draw inside it instead.
		y = d.Box.Min.Y + face.Ascent + style.Thickness + 1
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(style.TextColor),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
