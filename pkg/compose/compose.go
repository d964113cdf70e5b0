// Package compose places a transformed card on a background canvas and
// builds the card-collage negatives.
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cardsynth/pkg/types"
)

// ErrForegroundTooLarge is returned when the foreground can't be placed fully inside the canvas
var ErrForegroundTooLarge = errors.New("foreground larger than canvas")

// FitBackground returns a copy of bg resized to exactly w x h using area averaging
func FitBackground(bg image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(bg, w, h, imaging.Box)
}

// Blank returns an opaque black w x h canvas
func Blank(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{0, 0, 0, 255})
}

// Overlay blends fg onto canvas at a uniformly drawn offset where it fits entirely.
// canvas is not modified; the result and the pixel box of fg are returned.
func Overlay(fg, canvas image.Image, rng *rand.Rand) (*image.NRGBA, types.PixelBox, error) {
	cw, ch := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	fw, fh := fg.Bounds().Dx(), fg.Bounds().Dy()
	if fw > cw || fh > ch {
		return nil, types.PixelBox{}, fmt.Errorf("%w: %dx%d on %dx%d", ErrForegroundTooLarge, fw, fh, cw, ch)
	}
	x := rng.IntN(cw - fw + 1)
	y := rng.IntN(ch - fh + 1)
	return OverlayAt(fg, canvas, x, y)
}

// OverlayAt blends fg onto a copy of canvas with its top-left corner at (x, y).
// Each color channel becomes alpha*fg + (1-alpha)*bg where alpha is fg's
// normalized alpha. Pixels outside the placed region keep the canvas values,
// as does the canvas alpha channel.
func OverlayAt(fg, canvas image.Image, x, y int) (*image.NRGBA, types.PixelBox, error) {
	out := imaging.Clone(canvas)
	src := imaging.Clone(fg)
	cw, ch := out.Bounds().Dx(), out.Bounds().Dy()
	fw, fh := src.Bounds().Dx(), src.Bounds().Dy()

	box := types.PixelBox{XMin: x, YMin: y, XMax: x + fw, YMax: y + fh}
	if !box.Within(cw, ch) {
		return nil, types.PixelBox{}, fmt.Errorf("%w: %dx%d at (%d,%d) on %dx%d", ErrForegroundTooLarge, fw, fh, x, y, cw, ch)
	}

	for row := 0; row < fh; row++ {
		s := src.Pix[row*src.Stride : row*src.Stride+fw*4]
		o := (y+row)*out.Stride + x*4
		d := out.Pix[o : o+fw*4]
		for i := 0; i < len(s); i += 4 {
			a := float64(s[i+3]) / 255
			for c := 0; c < 3; c++ {
				v := a*float64(s[i+c]) + (1-a)*float64(d[i+c])
				d[i+c] = uint8(v + 0.5)
			}
		}
	}

	return out, box, nil
}
