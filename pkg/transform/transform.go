// Package transform implements the geometric part of sample synthesis:
// scaling a card to a random size and rotating it onto an enlarged,
// transparent canvas whose bounds become the card's footprint.
package transform

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Resize scales card to a height drawn uniformly from [minScale, maxScale] * maxHeight.
// The width follows the nominal aspect ratio, not the card's own proportions.
func Resize(card image.Image, maxHeight int, aspect, minScale, maxScale float64, rng *rand.Rand) (*image.NRGBA, int, int) {
	scale := minScale + rng.Float64()*(maxScale-minScale)
	return ResizeTo(card, maxHeight, aspect, scale)
}

// ResizeTo scales card to round(maxHeight*scale) pixels high using area averaging.
func ResizeTo(card image.Image, maxHeight int, aspect, scale float64) (*image.NRGBA, int, int) {
	height := max(1, int(math.Round(float64(maxHeight)*scale)))
	width := max(1, int(math.Round(float64(height)*aspect)))
	return imaging.Resize(card, width, height, imaging.Box), width, height
}

// Footprint returns the size of the smallest axis-aligned canvas holding a
// w x h image rotated by angleDegrees.
func Footprint(w, h int, angleDegrees float64) (int, int) {
	rad := angleDegrees * math.Pi / 180
	c := math.Abs(math.Cos(rad))
	s := math.Abs(math.Sin(rad))
	// the epsilon keeps exact integer extents from truncating down
	nw := int(float64(h)*s + float64(w)*c + 1e-9)
	nh := int(float64(h)*c + float64(w)*s + 1e-9)
	return max(1, nw), max(1, nh)
}

// MaxFootprint returns the largest footprint width and height over all
// angles in [minAngle, maxAngle].
func MaxFootprint(w, h int, minAngle, maxAngle float64) (int, int) {
	peakW := math.Atan2(float64(h), float64(w)) * 180 / math.Pi
	peakH := math.Atan2(float64(w), float64(h)) * 180 / math.Pi
	candidates := []float64{minAngle, maxAngle, 0, peakW, -peakW, peakH, -peakH}

	var mw, mh int
	for _, a := range candidates {
		if a < minAngle || a > maxAngle {
			continue
		}
		fw, fh := Footprint(w, h, a)
		mw = max(mw, fw)
		mh = max(mh, fh)
	}
	return mw, mh
}

// Rotate rotates card counter-clockwise by angleDegrees about its center.
// The output is enlarged to the Footprint and the rotated content is centered in it.
// Pixels not covered by the card are fully transparent.
func Rotate(card image.Image, angleDegrees float64) *image.NRGBA {
	b := card.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := Footprint(w, h, angleDegrees)

	rad := angleDegrees * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	cx, cy := float64(w)/2, float64(h)/2

	// source -> destination, y axis pointing down
	m := f64.Aff3{
		cos, sin, (1-cos)*cx - sin*cy,
		-sin, cos, sin*cx + (1-cos)*cy,
	}
	m[2] += float64(nw)/2 - cx
	m[5] += float64(nh)/2 - cy
	// account for sources whose bounds don't start at the origin
	ox, oy := float64(b.Min.X), float64(b.Min.Y)
	m[2] -= m[0]*ox + m[1]*oy
	m[5] -= m[3]*ox + m[4]*oy

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.BiLinear.Transform(dst, m, card, b, xdraw.Src, nil)
	return imaging.Clone(dst)
}
