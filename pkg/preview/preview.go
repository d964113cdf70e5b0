// Package preview renders generated samples with their label drawn on top,
// for eyeballing that boxes line up with the cards.
package preview

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/menta2k/cardsynth/pkg/types"
)

var (
	boxColor   = color.NRGBA{0, 255, 0, 255}
	labelColor = color.NRGBA{255, 204, 0, 255}
)

// Draw returns a copy of img with box outlined and caption written above it
func Draw(img image.Image, box types.PixelBox, caption string) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	dc := gg.NewContextForRGBA(dst)
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)

	stroke := math.Max(2, 0.004*float64(min(b.Dx(), b.Dy())))
	dc.SetColor(boxColor)
	dc.SetLineWidth(stroke)
	dc.DrawRectangle(float64(box.XMin), float64(box.YMin), float64(box.Width()), float64(box.Height()))
	dc.Stroke()

	if caption != "" {
		y := float64(box.YMin) - stroke
		if y < 12 {
			y = float64(box.YMax) + 12
		}
		dc.SetColor(labelColor)
		dc.DrawString(caption, float64(box.XMin), y)
	}

	return imaging.Clone(dst)
}
